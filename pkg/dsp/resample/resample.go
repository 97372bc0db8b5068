// Package resample implements rational-rate resampling of real-valued
// audio (spec.md component E), carrying a windowed-sinc interpolation
// history across calls so that channel audio can be fed to it in
// arbitrarily sized chunks without discontinuities at the chunk
// boundaries.
//
// Grounded on teabreakninja-go-iq-decoder's windowed-sinc Resample
// function, generalized into a stateful, pooled-buffer, listener-driven
// component instead of a one-shot whole-signal transform.
package resample

import (
	"math"

	"github.com/go-trunk/trunkcore/pkg/sbuf"
)

const sincWindowHalfWidth = 16 // taps considered on each side of the interpolation point

// Resampler converts a stream of real samples from inputRate to
// outputRate, forwarding chunkSize-sized output buffers to a registered
// listener as they become available.
type Resampler struct {
	ratio      float64 // outputRate / inputRate
	invRatio   float64
	chunkSize  int
	pool       *sbuf.RealPool
	listener   func(*sbuf.RealBuffer)

	history []float32 // tail of the previous input block, long enough to feed the sinc window
	pos     float64   // position of the next output sample, in input-sample units relative to the start of the next input buffer; may be negative (reaching back into history)
	pending []float32 // output samples accumulated but not yet flushed as a full chunk
}

// New constructs a Resampler. bufferSize bounds the output pool's buffer
// capacity; chunkSize is the size of buffers Resample forwards to the
// listener (only Flush forwards a shorter one).
func New(inputRate, outputRate float64, bufferSize, chunkSize int) *Resampler {
	history := make([]float32, sincWindowHalfWidth)
	return &Resampler{
		ratio:     outputRate / inputRate,
		invRatio:  inputRate / outputRate,
		chunkSize: chunkSize,
		pool:      sbuf.NewRealPool(bufferSize),
		history:   history,
	}
}

// SetListener registers the downstream consumer of resampled buffers.
func (r *Resampler) SetListener(listener func(*sbuf.RealBuffer)) {
	r.listener = listener
}

// Resample consumes one input buffer, releasing its reference, and
// forwards zero or more chunkSize-sized output buffers to the registered
// listener.
func (r *Resampler) Resample(input *sbuf.RealBuffer) {
	in := input.Samples()
	histLen := len(r.history)

	extended := make([]float32, histLen+len(in))
	copy(extended, r.history)
	copy(extended[histLen:], in)

	limit := float64(histLen + len(in) - 1)
	cutoff := math.Min(1, r.ratio)
	for {
		absPos := float64(histLen) + r.pos
		if absPos > limit {
			break
		}
		r.pending = append(r.pending, interpolate(extended, absPos, cutoff))
		r.flushFullChunks()
		r.pos += r.invRatio
	}
	r.pos -= float64(len(in))

	if histLen > 0 {
		if len(in) >= histLen {
			copy(r.history, in[len(in)-histLen:])
		} else {
			n := copy(r.history, r.history[len(in):])
			copy(r.history[n:], in)
		}
	}

	input.DecrementUserCount()
}

func (r *Resampler) flushFullChunks() {
	for len(r.pending) >= r.chunkSize {
		r.flush(r.chunkSize)
	}
}

// Flush forwards any remaining accumulated output as a final, possibly
// short, buffer. Channels call this on end-of-stream to avoid dropping a
// partial chunk.
func (r *Resampler) Flush() {
	if len(r.pending) > 0 {
		r.flush(len(r.pending))
	}
}

func (r *Resampler) flush(n int) {
	out := r.pool.Get(n)
	copy(out.Samples(), r.pending[:n])
	r.pending = r.pending[n:]

	if r.listener != nil {
		r.listener(out)
	} else {
		out.DecrementUserCount()
	}
}

// interpolate evaluates a windowed-sinc reconstruction of samples at
// fractional position pos (in sample units, relative to the start of
// samples). cutoff is the sinc bandwidth as a fraction of the input
// Nyquist frequency; below 1 it band-limits the signal to the output
// Nyquist frequency when downsampling.
func interpolate(samples []float32, pos, cutoff float64) float32 {
	center := int(math.Round(pos))

	var acc, weightSum float32
	for j := -sincWindowHalfWidth; j < sincWindowHalfWidth; j++ {
		idx := center + j
		if idx < 0 || idx >= len(samples) {
			continue
		}

		delta := pos - float64(idx)
		sinc := float32(1.0)
		if delta != 0 {
			piDelta := math.Pi * delta * cutoff
			sinc = float32(math.Sin(piDelta) / piDelta)
		}
		window := float32(0.54 - 0.46*math.Cos(2*math.Pi*float64(j+sincWindowHalfWidth)/float64(2*sincWindowHalfWidth)))
		tap := sinc * window

		acc += samples[idx] * tap
		weightSum += tap
	}

	if weightSum == 0 {
		return 0
	}
	return acc / weightSum
}
