package filterdesign

import (
	"math"
	"testing"
)

func TestWindowedSincOddLengthSymmetric(t *testing.T) {
	spec := Spec{
		SampleRate:     50000,
		NumTaps:        101,
		PassBandEdge:   12000,
		StopBandEdge:   13000,
		PassBandRipple: 0.01,
		StopBandRipple: 0.028,
	}

	taps := WindowedSinc(spec)
	if len(taps) != 101 {
		t.Fatalf("expected 101 taps, got %d", len(taps))
	}

	for i := 0; i < len(taps); i++ {
		j := len(taps) - 1 - i
		if math.Abs(taps[i]-taps[j]) > 1e-9 {
			t.Fatalf("taps not symmetric at %d/%d: %v != %v", i, j, taps[i], taps[j])
		}
	}
}

func TestWindowedSincUnityDCGain(t *testing.T) {
	spec := Spec{
		SampleRate:     50000,
		NumTaps:        75,
		PassBandEdge:   10000,
		StopBandEdge:   11000,
		PassBandRipple: 0.01,
		StopBandRipple: 0.028,
	}
	taps := WindowedSinc(spec)

	sum := 0.0
	for _, t := range taps {
		sum += t
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Fatalf("expected unity DC gain, got %v", sum)
	}
}

func TestWindowedSincAttenuatesStopband(t *testing.T) {
	spec := Spec{
		SampleRate:     48000,
		NumTaps:        127,
		PassBandEdge:   8000,
		StopBandEdge:   10000,
		PassBandRipple: 0.01,
		StopBandRipple: 0.028,
	}
	taps := WindowedSinc(spec)

	passGain := magnitudeAt(taps, 2000.0/48000)
	stopGain := magnitudeAt(taps, 16000.0/48000)

	if passGain < 0.9 {
		t.Fatalf("expected passband gain near unity, got %v", passGain)
	}
	if stopGain > 0.05 {
		t.Fatalf("expected stopband gain well below passband, got %v", stopGain)
	}
}

func TestDesignNeverErrors(t *testing.T) {
	spec := Spec{
		SampleRate:     50000,
		NumTaps:        51,
		PassBandEdge:   12000,
		StopBandEdge:   13000,
		PassBandRipple: 0.01,
		StopBandRipple: 0.028,
	}

	taps := Design(spec)
	if len(taps) != 51 {
		t.Fatalf("expected 51 taps, got %d", len(taps))
	}
}

func TestRemezRejectsEvenLength(t *testing.T) {
	spec := Spec{SampleRate: 50000, NumTaps: 50, PassBandEdge: 12000, StopBandEdge: 13000,
		PassBandRipple: 0.01, StopBandRipple: 0.028}
	if _, err := Remez(spec); err == nil {
		t.Fatal("expected error for even NumTaps")
	}
}

// magnitudeAt evaluates the FIR frequency response magnitude at normalized
// frequency f (cycles/sample) via direct DFT summation.
func magnitudeAt(taps []float64, f float64) float64 {
	var re, im float64
	for n, h := range taps {
		angle := -2 * math.Pi * f * float64(n)
		re += h * math.Cos(angle)
		im += h * math.Sin(angle)
	}
	return math.Hypot(re, im)
}
