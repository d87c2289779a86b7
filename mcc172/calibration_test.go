package mcc172

import (
	"io"
	"log"
	"math"
	"testing"
)

// Testable property 4: calibration/scale flag combinations.
func TestApplyCalibration(t *testing.T) {
	const raw = int32(1000)
	const slope = 2.0
	const offset = 0.5

	want := map[string]float64{
		"both":    (float64(raw)*slope + offset) * lsbSize,
		"noScale": float64(raw)*slope + offset,
		"noCal":   float64(raw) * lsbSize,
		"neither": float64(raw),
	}

	if got := applyCalibration(raw, slope, offset, true, true); got != want["both"] {
		t.Errorf("both: got %v want %v", got, want["both"])
	}
	if got := applyCalibration(raw, slope, offset, true, false); got != want["noScale"] {
		t.Errorf("noScale: got %v want %v", got, want["noScale"])
	}
	if got := applyCalibration(raw, slope, offset, false, true); got != want["noCal"] {
		t.Errorf("noCal: got %v want %v", got, want["noCal"])
	}
	if got := applyCalibration(raw, slope, offset, false, false); got != want["neither"] {
		t.Errorf("neither: got %v want %v", got, want["neither"])
	}
}

func TestParseFactoryDataValid(t *testing.T) {
	blob := []byte(`{"serial":"12345678","calibration":{"date":"2024-05-01","slopes":[1.01,0.99],"offsets":[0.01,-0.02]}}`)
	fd := parseFactoryData(log.New(io.Discard, "", 0), blob)
	if fd.Serial != "12345678" || fd.CalibrationDate != "2024-05-01" {
		t.Errorf("got %+v", fd)
	}
	if fd.Slopes != [NumChannels]float64{1.01, 0.99} {
		t.Errorf("slopes = %v", fd.Slopes)
	}
	if fd.Offsets != [NumChannels]float64{0.01, -0.02} {
		t.Errorf("offsets = %v", fd.Offsets)
	}
}

func TestParseFactoryDataFallsBackOnGarbage(t *testing.T) {
	for _, blob := range [][]byte{
		nil,
		[]byte("not json"),
		[]byte(`{"serial":"x"}`),
		[]byte(`{"serial":"x","calibration":{"date":"d","slopes":[1.0],"offsets":[0.0,0.0]}}`),
	} {
		fd := parseFactoryData(log.New(io.Discard, "", 0), blob)
		want := defaultFactoryData()
		if fd != want {
			t.Errorf("blob %q: got %+v, want defaults %+v", blob, fd, want)
		}
	}
}

func TestSignExtension24Bit(t *testing.T) {
	// Testable property 3's byte-triple decoding is tested in
	// internal/wire/wire_test.go; this checks the calibration path's side of
	// it: the decoded extreme codes are treated as plain signed int32 values
	// by applyCalibration with no further masking.
	cases := []struct {
		raw  int32
		want float64
	}{
		{-8388608, -8388608 * lsbSize},
		{8388607, 8388607 * lsbSize},
		{1, lsbSize},
	}
	for _, c := range cases {
		got := applyCalibration(c.raw, 1.0, 0.0, false, true)
		if math.Abs(got-c.want) > 1e-12 {
			t.Errorf("raw=%d: got %v want %v", c.raw, got, c.want)
		}
	}
}
