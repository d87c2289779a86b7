package mcc172

import "testing"

// Testable property 9: the clock divisor is clamp(round(51200/rate), 1, 256).
func TestRoundDivisor(t *testing.T) {
	cases := []struct {
		d    float64
		want uint16
	}{
		{1.0, 1},
		{1.4, 1},
		{1.5, 2},
		{1.49999, 1},
		{255.5, 256},
		{255.4, 255},
		{0.4, 0},
	}
	for _, c := range cases {
		if got := roundDivisor(c.d); got != c.want {
			t.Errorf("roundDivisor(%v) = %d, want %d", c.d, got, c.want)
		}
	}
}

func TestClampDivisor(t *testing.T) {
	cases := []struct {
		d    uint16
		want uint16
	}{
		{0, 1},
		{1, 1},
		{256, 256},
		{257, 256},
		{65535, 256},
	}
	for _, c := range cases {
		if got := clampDivisor(c.d); got != c.want {
			t.Errorf("clampDivisor(%d) = %d, want %d", c.d, got, c.want)
		}
	}
}

// TestDivisorLawMatchesSpec cross-checks the composed
// clampDivisor(roundDivisor(...)) pipeline AinClockConfigWrite uses against
// the closed-form spec.md §4.E divisor law directly, at the same boundary
// rates TestRoundDivisor and TestClampDivisor probe individually.
func TestDivisorLawMatchesSpec(t *testing.T) {
	cases := []struct {
		rate float64
		want uint16
	}{
		{maxScanRate, 1},
		{maxScanRate * 2, 1},
		{maxScanRate / 256, 256},
		{maxScanRate / 300, 256},
		{maxScanRate / 1.5, 2},
		{maxScanRate / 1.4, 1},
	}
	for _, c := range cases {
		got := clampDivisor(roundDivisor(maxScanRate / c.rate))
		if got != c.want {
			t.Errorf("divisor(rate=%v) = %d, want %d", c.rate, got, c.want)
		}
	}
}
