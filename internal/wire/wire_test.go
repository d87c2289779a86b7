package wire

import "testing"

// Testable property 3: 24-bit two's-complement sign extension.
func TestDecodeSamplesSignExtension(t *testing.T) {
	cases := []struct {
		bytes [3]byte
		want  int32
	}{
		{[3]byte{0x80, 0x00, 0x00}, -8388608},
		{[3]byte{0x7F, 0xFF, 0xFF}, 8388607},
		{[3]byte{0x00, 0x00, 0x01}, 1},
	}
	for _, c := range cases {
		got, err := DecodeSamples(c.bytes[:])
		if err != nil {
			t.Fatalf("DecodeSamples(%v): %v", c.bytes, err)
		}
		if len(got) != 1 || got[0] != c.want {
			t.Errorf("DecodeSamples(%v) = %v, want [%d]", c.bytes, got, c.want)
		}
	}
}

func TestSamplesRoundTrip(t *testing.T) {
	codes := []int32{-8388608, 8388607, 0, 1, -1, 4200000}
	encoded := EncodeSamples(codes)
	decoded, err := DecodeSamples(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != len(codes) {
		t.Fatalf("got %d codes, want %d", len(decoded), len(codes))
	}
	for i, c := range codes {
		if decoded[i] != c {
			t.Errorf("index %d: got %d want %d", i, decoded[i], c)
		}
	}
}

func TestScanStatusRoundTrip(t *testing.T) {
	s := ScanStatus{Flags: ScanStatusRunning | ScanStatusTriggered, AvailableSamples: 512, MaxReadNow: 256}
	got, err := DecodeScanStatus(EncodeScanStatus(s))
	if err != nil {
		t.Fatal(err)
	}
	if got != s {
		t.Errorf("got %+v, want %+v", got, s)
	}
}

func TestClockConfigRoundTrip(t *testing.T) {
	encoded := EncodeClockConfig(1, 200)
	source, divisor, synced, err := DecodeClockConfig(append(encoded, 1))
	if err != nil {
		t.Fatal(err)
	}
	if source != 1 || divisor != 200 || !synced {
		t.Errorf("got source=%d divisor=%d synced=%t", source, divisor, synced)
	}
}

func TestDecodeSamplesRejectsPartialTriples(t *testing.T) {
	if _, err := DecodeSamples([]byte{1, 2}); err == nil {
		t.Fatal("expected an error for a non-multiple-of-3 payload")
	}
}
