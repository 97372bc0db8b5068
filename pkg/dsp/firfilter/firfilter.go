// Package firfilter implements the complex baseband lowpass filter (spec.md
// component B) that precedes FM demodulation.
package firfilter

import (
	"github.com/go-trunk/trunkcore/pkg/sbuf"
)

// ComplexFilter is a stateful, direct-form FIR filter applied to complex IQ
// samples. The same real-valued tap array is convolved against both the
// in-phase and quadrature rails, matching sdrtrunk's ComplexFIRFilter2.
//
// A delay line of len(taps)-1 complex samples carries history between
// calls to Filter; Dispose clears it.
type ComplexFilter struct {
	taps    []float32
	history []complex64 // most recent len(taps)-1 samples, oldest first
	pool    *sbuf.ComplexPool
}

// New constructs a filter from a tap array. Taps are expected to be
// symmetric low-pass coefficients, typically from pkg/dsp/filterdesign.
// Output buffers are drawn from pool.
func New(taps []float64, pool *sbuf.ComplexPool) *ComplexFilter {
	t32 := make([]float32, len(taps))
	for i, v := range taps {
		t32[i] = float32(v)
	}
	return &ComplexFilter{
		taps:    t32,
		history: make([]complex64, len(taps)-1),
		pool:    pool,
	}
}

// Filter convolves input against the filter's taps, returning a new pooled
// buffer of the same sample count, and releases the input buffer's
// reference exactly once.
func (f *ComplexFilter) Filter(input *sbuf.ComplexBuffer) *sbuf.ComplexBuffer {
	in := input.Samples()
	out := f.pool.Get(len(in))
	outSamples := out.Samples()

	histLen := len(f.history)
	extended := make([]complex64, histLen+len(in))
	copy(extended, f.history)
	copy(extended[histLen:], in)

	for i := 0; i < len(in); i++ {
		var acc complex64
		base := i + histLen
		for j, tap := range f.taps {
			acc += extended[base-j] * complex(tap, 0)
		}
		outSamples[i] = acc
	}

	if histLen > 0 {
		copy(f.history, extended[len(extended)-histLen:])
	}

	input.DecrementUserCount()
	return out
}

// Dispose clears the filter's delay line. The filter may be reused
// afterward with a fresh (zeroed) history, matching sdrtrunk's
// ComplexFIRFilter2.dispose() semantics.
func (f *ComplexFilter) Dispose() {
	for i := range f.history {
		f.history[i] = 0
	}
}

// TapCount returns the number of taps backing this filter.
func (f *ComplexFilter) TapCount() int {
	return len(f.taps)
}
