package mcc172

import (
	"encoding/json"
	"log"
)

// FactoryData is the per-board factory calibration record decoded from the
// HAT EEPROM's calibration blob (see HatInfo in hatinfo.go).
type FactoryData struct {
	Serial          string
	CalibrationDate string
	Slopes          [NumChannels]float64
	Offsets         [NumChannels]float64
}

// defaultFactoryData is installed whenever the EEPROM blob is missing or
// malformed, per spec.md §4.C.
func defaultFactoryData() FactoryData {
	return FactoryData{
		Serial:          "00000000",
		CalibrationDate: "1970-01-01",
		Slopes:          [NumChannels]float64{1.0, 1.0},
		Offsets:         [NumChannels]float64{0.0, 0.0},
	}
}

// calibrationDoc mirrors the exact JSON shape documented in spec.md §4.C.
// Parsing is tolerant of extra keys; json.Unmarshal already ignores fields
// it doesn't know about.
type calibrationDoc struct {
	Serial      string `json:"serial"`
	Calibration struct {
		Date    string    `json:"date"`
		Slopes  []float64 `json:"slopes"`
		Offsets []float64 `json:"offsets"`
	} `json:"calibration"`
}

// parseFactoryData parses the factory calibration JSON blob read from the
// HAT EEPROM. On any structural problem it logs a single warning and
// returns the defaults, per spec.md §4.C — it never returns an error,
// since a missing/bad calibration blob must not prevent the board from
// opening.
func parseFactoryData(logger *log.Logger, blob []byte) FactoryData {
	var doc calibrationDoc
	if err := json.Unmarshal(blob, &doc); err != nil {
		logger.Printf("mcc172: calibration: invalid JSON, using defaults: %v", err)
		return defaultFactoryData()
	}
	if doc.Serial == "" || doc.Calibration.Date == "" ||
		len(doc.Calibration.Slopes) != NumChannels || len(doc.Calibration.Offsets) != NumChannels {
		logger.Printf("mcc172: calibration: incomplete calibration record, using defaults")
		return defaultFactoryData()
	}
	fd := FactoryData{Serial: doc.Serial, CalibrationDate: doc.Calibration.Date}
	copy(fd.Slopes[:], doc.Calibration.Slopes)
	copy(fd.Offsets[:], doc.Calibration.Offsets)
	return fd
}

// applyCalibration converts a raw code into a calibrated, optionally scaled voltage,
// per spec.md testable property 4.
func applyCalibration(raw int32, slope, offset float64, calibrate, scale bool) float64 {
	v := float64(raw)
	if calibrate {
		v = v*slope + offset
	}
	if scale {
		v *= lsbSize
	}
	return v
}
