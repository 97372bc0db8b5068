// Package squelch implements power-based squelching of complex IQ samples
// (spec.md component D). It is modeled after gnuradio's complex power
// squelch block, by way of sdrtrunk's PowerSquelch: a single-pole IIR
// tracks instantaneous signal power, and a four-state ramp machine
// (mute/attack/unmute/decay) smooths the transition to avoid chatter at
// the threshold boundary.
package squelch

import "math"

// State is the current phase of the squelch ramp machine.
type State int

const (
	Mute State = iota
	Attack
	Decay
	Unmute
)

func (s State) String() string {
	switch s {
	case Mute:
		return "MUTE"
	case Attack:
		return "ATTACK"
	case Decay:
		return "DECAY"
	case Unmute:
		return "UNMUTE"
	default:
		return "UNKNOWN"
	}
}

// PowerSquelch tracks signal power against a threshold and exposes a
// hysteresis-smoothed mute/unmute state.
//
// Recommended starting point for a 12.5kHz analog FM channel: alpha 0.0001,
// threshold -78.0dB, ramp 4 samples. A threshold of -80dB tends to flap
// during unsquelch.
type PowerSquelch struct {
	alpha     float64 // single-pole IIR decay constant, 0.0-1.0
	filtered  float64 // IIR-filtered power estimate (linear)
	threshold float64 // linear power threshold
	state     State

	rampThreshold int // samples required to transition mute<->unmute
	rampCount     int

	changed bool
}

// New constructs a PowerSquelch. thresholdDb is in decibels; ramp is a
// sample count. Setting ramp to zero causes immediate mute/unmute
// transitions with no attack/decay smoothing.
func New(alpha, thresholdDb float64, ramp int) *PowerSquelch {
	s := &PowerSquelch{
		alpha:         alpha,
		state:         Mute,
		rampThreshold: ramp,
	}
	s.SetThreshold(thresholdDb)
	return s
}

// Threshold returns the current squelch threshold in decibels.
func (s *PowerSquelch) Threshold() float64 {
	return 10.0 * math.Log10(s.threshold)
}

// SetThreshold sets the squelch threshold, given in decibels.
func (s *PowerSquelch) SetThreshold(thresholdDb float64) {
	s.threshold = math.Pow(10.0, thresholdDb/10.0)
}

// Process updates the power estimate from one complex IQ sample and
// advances the squelch state machine.
func (s *PowerSquelch) Process(inphase, quadrature float64) {
	instant := inphase*inphase + quadrature*quadrature
	s.filtered = singlePoleIIR(s.filtered, instant, s.alpha)

	switch s.state {
	case Mute:
		if !s.belowThreshold() {
			if s.rampThreshold > 0 {
				s.state = Attack
				s.rampCount++
			} else {
				s.state = Unmute
				s.changed = true
			}
		}
	case Attack:
		if s.rampCount >= s.rampThreshold {
			s.state = Unmute
			s.changed = true
		} else {
			s.rampCount++
		}
	case Decay:
		if s.rampCount <= 0 {
			s.state = Mute
			s.changed = true
		} else {
			s.rampCount--
		}
	case Unmute:
		if s.belowThreshold() {
			if s.rampThreshold > 0 {
				s.state = Decay
				s.rampCount--
			} else {
				s.state = Mute
				s.changed = true
			}
		}
	}
}

// belowThreshold reports whether the current power estimate sits below the
// squelch threshold, i.e. the channel should be considered muted.
func (s *PowerSquelch) belowThreshold() bool {
	return s.filtered < s.threshold
}

// IsMuted reports whether the squelch is fully closed.
func (s *PowerSquelch) IsMuted() bool { return s.state == Mute }

// IsUnmuted reports whether the squelch is fully open.
func (s *PowerSquelch) IsUnmuted() bool { return s.state == Unmute }

// IsAttack reports whether the squelch is ramping toward unmuted.
func (s *PowerSquelch) IsAttack() bool { return s.state == Attack }

// IsDecay reports whether the squelch is ramping toward muted.
func (s *PowerSquelch) IsDecay() bool { return s.state == Decay }

// State returns the current ramp-machine state.
func (s *PowerSquelch) State() State { return s.state }

// Power returns the current filtered power estimate in decibels.
func (s *PowerSquelch) Power() float64 {
	return 10.0 * math.Log10(s.filtered)
}

// IsSquelchChanged reports whether the mute/unmute state transitioned since
// the flag was last cleared.
func (s *PowerSquelch) IsSquelchChanged() bool {
	return s.changed
}

// SetSquelchChanged sets or clears the squelch-changed flag. Callers clear
// it after observing a transition.
func (s *PowerSquelch) SetSquelchChanged(changed bool) {
	s.changed = changed
}

// Reset clears the power estimate, ramp counter, and changed flag and
// returns to MUTE, keeping the configured alpha, threshold, and ramp length
// unchanged.
func (s *PowerSquelch) Reset() {
	s.filtered = 0
	s.state = Mute
	s.rampCount = 0
	s.changed = false
}

// singlePoleIIR applies one step of a single-pole (exponential moving
// average) IIR filter: y[n] = y[n-1] + alpha*(x[n] - y[n-1]).
func singlePoleIIR(prev, sample, alpha float64) float64 {
	return prev + alpha*(sample-prev)
}
