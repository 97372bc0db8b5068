package resample

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/go-trunk/trunkcore/pkg/sbuf"
)

func TestDownsampleProducesFewerSamples(t *testing.T) {
	r := New(16000, 8000, 4096, 128)

	var total int
	r.SetListener(func(buf *sbuf.RealBuffer) {
		total += buf.SampleCount()
		buf.DecrementUserCount()
	})

	pool := sbuf.NewRealPool(4096)
	input := pool.Get(2000)
	samples := input.Samples()
	for i := range samples {
		samples[i] = 1.0
	}
	r.Resample(input)
	r.Flush()

	if total == 0 {
		t.Fatal("expected some output samples")
	}
	if total >= 2000 {
		t.Fatalf("expected downsampled output to be fewer than 2000 samples, got %d", total)
	}
}

func TestUpsampleProducesMoreSamples(t *testing.T) {
	r := New(8000, 16000, 4096, 128)

	var total int
	r.SetListener(func(buf *sbuf.RealBuffer) {
		total += buf.SampleCount()
		buf.DecrementUserCount()
	})

	pool := sbuf.NewRealPool(4096)
	input := pool.Get(1000)
	samples := input.Samples()
	for i := range samples {
		samples[i] = 1.0
	}
	r.Resample(input)
	r.Flush()

	if total <= 1000 {
		t.Fatalf("expected upsampled output to exceed 1000 samples, got %d", total)
	}
}

func TestConstantSignalStaysFlatAfterSettling(t *testing.T) {
	r := New(16000, 8000, 4096, 128)

	var outputs []float32
	r.SetListener(func(buf *sbuf.RealBuffer) {
		outputs = append(outputs, buf.Samples()...)
		buf.DecrementUserCount()
	})

	pool := sbuf.NewRealPool(4096)
	for c := 0; c < 4; c++ {
		input := pool.Get(1000)
		samples := input.Samples()
		for i := range samples {
			samples[i] = 2.0
		}
		r.Resample(input)
	}
	r.Flush()

	if len(outputs) < 10 {
		t.Fatalf("expected enough output to check settled region, got %d", len(outputs))
	}
	for _, v := range outputs[len(outputs)-10:] {
		if v < 1.9 || v > 2.1 {
			t.Fatalf("expected settled output near 2.0, got %v", v)
		}
	}
}

// TestDownsample_AttenuatesAboveNyquist verifies the windowed-sinc
// interpolator acts as an anti-aliasing filter: a tone placed above the
// downsampled output's Nyquist frequency should arrive heavily attenuated
// relative to a tone comfortably inside the output passband.
func TestDownsample_AttenuatesAboveNyquist(t *testing.T) {
	const inputRate = 48000.0
	const outputRate = 8000.0
	const n = 4096

	passbandMag := measureToneMagnitude(t, inputRate, outputRate, n, 1000)   // well inside 4kHz output Nyquist
	stopbandMag := measureToneMagnitude(t, inputRate, outputRate, n, 15000) // above output Nyquist, below input Nyquist

	if stopbandMag >= passbandMag/4 {
		t.Fatalf("expected stopband tone attenuated to <1/4 passband magnitude, got passband=%v stopband=%v", passbandMag, stopbandMag)
	}
}

// measureToneMagnitude feeds a single tone at toneHz through a resampler
// from inputRate to outputRate and returns the FFT magnitude of the output
// at the nearest bin to toneHz (aliased down if toneHz exceeds the output
// Nyquist).
func measureToneMagnitude(t *testing.T, inputRate, outputRate float64, n int, toneHz float64) float64 {
	t.Helper()

	r := New(inputRate, outputRate, n*4, n*4)

	var output []float32
	r.SetListener(func(buf *sbuf.RealBuffer) {
		output = append(output, buf.Samples()...)
		buf.DecrementUserCount()
	})

	pool := sbuf.NewRealPool(n)
	input := pool.Get(n)
	samples := input.Samples()
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * toneHz * float64(i) / inputRate))
	}
	r.Resample(input)
	r.Flush()

	if len(output) < 8 {
		t.Fatalf("expected usable resampler output, got %d samples", len(output))
	}

	fft := fourier.NewFFT(len(output))
	in := make([]float64, len(output))
	for i, v := range output {
		in[i] = float64(v)
	}
	coeffs := fft.Coefficients(nil, in)

	binHz := outputRate / float64(len(output))
	aliasHz := math.Abs(toneHz - outputRate*math.Round(toneHz/outputRate))
	targetBin := int(math.Round(aliasHz / binHz))
	if targetBin >= len(coeffs) {
		targetBin = len(coeffs) - 1
	}
	return cmplxAbs(coeffs[targetBin])
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func TestFlushDeliversPartialChunk(t *testing.T) {
	r := New(8000, 8000, 4096, 1000) // chunk size larger than input, forces partial flush

	delivered := false
	r.SetListener(func(buf *sbuf.RealBuffer) {
		delivered = true
		buf.DecrementUserCount()
	})

	pool := sbuf.NewRealPool(4096)
	input := pool.Get(100)
	samples := input.Samples()
	for i := range samples {
		samples[i] = 1.0
	}
	r.Resample(input)

	if delivered {
		t.Fatal("expected no delivery before Flush with a partial chunk")
	}

	r.Flush()

	if !delivered {
		t.Fatal("expected Flush to deliver the partial chunk")
	}
}
