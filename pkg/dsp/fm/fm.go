// Package fm implements phase-difference FM demodulation over complex IQ
// samples (spec.md component C), with an embedded power squelch tracking
// signal strength sample-by-sample.
package fm

import (
	"math/cmplx"

	"github.com/go-trunk/trunkcore/pkg/dsp/squelch"
	"github.com/go-trunk/trunkcore/pkg/sbuf"
)

// Demodulator converts complex baseband samples into real-valued
// demodulated audio via the scaled phase difference between successive
// samples, mirroring sdrtrunk's FMDemodulator.
type Demodulator struct {
	previous complex64 // last sample of the prior buffer, for continuity across calls
	squelch  *squelch.PowerSquelch
	pool     *sbuf.RealPool
}

// New constructs a Demodulator with an embedded PowerSquelch parameterized
// by alpha, thresholdDb, and ramp. Output real buffers are drawn from pool.
func New(alpha, thresholdDb float64, ramp int, pool *sbuf.RealPool) *Demodulator {
	return &Demodulator{
		squelch: squelch.New(alpha, thresholdDb, ramp),
		pool:    pool,
	}
}

// Demodulate computes, for each complex sample z[n], the phase difference
// arg(z[n] * conj(z[n-1])) and updates the embedded squelch with |z[n]|^2.
// It emits demodulated samples for every input sample regardless of mute
// state; gating the output is the caller's responsibility. The input
// buffer's reference is released exactly once.
func (d *Demodulator) Demodulate(input *sbuf.ComplexBuffer) *sbuf.RealBuffer {
	in := input.Samples()
	out := d.pool.Get(len(in))
	outSamples := out.Samples()

	prev := d.previous
	for i, z := range in {
		diff := z * complex64(cmplx.Conj(complex128(prev)))
		outSamples[i] = float32(cmplx.Phase(complex128(diff)))

		d.squelch.Process(float64(real(z)), float64(imag(z)))
		prev = z
	}
	if len(in) > 0 {
		d.previous = prev
	}

	input.DecrementUserCount()
	return out
}

// Reset clears the phase-continuity history and the embedded squelch state.
func (d *Demodulator) Reset() {
	d.previous = 0
	d.squelch.Reset()
}

// IsMuted reports the embedded squelch's current mute state.
func (d *Demodulator) IsMuted() bool {
	return d.squelch.IsMuted()
}

// IsSquelchChanged reports and does not clear the embedded squelch's
// sticky changed flag; callers wanting edge-triggered behavior should pair
// this with SetSquelchChanged(false).
func (d *Demodulator) IsSquelchChanged() bool {
	return d.squelch.IsSquelchChanged()
}

// SetSquelchChanged clears (or sets) the embedded squelch's changed flag.
func (d *Demodulator) SetSquelchChanged(changed bool) {
	d.squelch.SetSquelchChanged(changed)
}

// Squelch exposes the embedded PowerSquelch for callers that need direct
// access, e.g. telemetry reporting current power level.
func (d *Demodulator) Squelch() *squelch.PowerSquelch {
	return d.squelch
}
