package mcc172

import "testing"

// Testable property 10: continuous-mode buffer sizing picks a rate-bucket
// floor (<=1024 S/s -> 1000, <=10240 S/s -> 10000, else 100000), raised to
// samplesPerChannel if larger, then multiplied by channelCount.
func TestContinuousFloor(t *testing.T) {
	cases := []struct {
		rate float64
		want int
	}{
		{1, 1000},
		{1000, 1000},
		{1024, 1000},
		{1024.0001, 10000},
		{2000, 10000},
		{10240, 10000},
		{10240.0001, 100000},
		{51200, 100000},
	}
	for _, c := range cases {
		if got := continuousFloor(c.rate); got != c.want {
			t.Errorf("continuousFloor(%v) = %d, want %d", c.rate, got, c.want)
		}
	}
}

func TestComputeBufferSizeContinuous(t *testing.T) {
	cases := []struct {
		name              string
		rate              float64
		samplesPerChannel int
		channelCount      int
		want              int
	}{
		{"low rate floor, one channel", 100, 0, 1, 1000},
		{"low rate floor, two channels", 100, 0, 2, 2000},
		{"mid rate floor", 5000, 0, 1, 10000},
		{"high rate floor", 51200, 0, 2, 200000},
		{"samplesPerChannel raises the floor", 100, 5000, 1, 5000},
		{"samplesPerChannel below the floor is ignored", 100, 10, 2, 2000},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := computeBufferSize(true, c.rate, c.samplesPerChannel, c.channelCount)
			if err != nil {
				t.Fatalf("computeBufferSize: %v", err)
			}
			if got != c.want {
				t.Errorf("computeBufferSize(continuous, rate=%v, spc=%d, cc=%d) = %d, want %d",
					c.rate, c.samplesPerChannel, c.channelCount, got, c.want)
			}
		})
	}
}

func TestComputeBufferSizeFinite(t *testing.T) {
	got, err := computeBufferSize(false, 1000, 500, 2)
	if err != nil {
		t.Fatalf("computeBufferSize: %v", err)
	}
	if want := 1000; got != want {
		t.Errorf("finite buffer size = %d, want %d", got, want)
	}
}

func TestComputeBufferSizeRejectsOverCap(t *testing.T) {
	_, err := computeBufferSize(false, 1000, maxBufferSamples, 2)
	if err == nil {
		t.Fatal("expected an error when the requested buffer exceeds the hard cap")
	}
}

// computeReadThreshold clamps rate/10 to [channelCount, MAX_SAMPLES_READ]
// then rounds down to a multiple of channelCount.
func TestComputeReadThreshold(t *testing.T) {
	cases := []struct {
		rate         float64
		channelCount int
		want         int
	}{
		{1000, 2, 100},    // 1000/10=100, already a multiple of 2
		{1000, 3, 99},     // 100 rounded down to a multiple of 3
		{1, 2, 2},         // clamped up to channelCount
		{51200, 1, maxSamplesRead},
		{51200, 3, maxSamplesRead - maxSamplesRead%3},
	}
	for _, c := range cases {
		if got := computeReadThreshold(c.rate, c.channelCount); got != c.want {
			t.Errorf("computeReadThreshold(%v, %d) = %d, want %d", c.rate, c.channelCount, got, c.want)
		}
	}
}
