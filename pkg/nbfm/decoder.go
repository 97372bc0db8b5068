// Package nbfm wires the DSP stages (firfilter, fm, resample) into the
// narrowband FM decoder pipeline (spec.md component F): it reacts to
// sample-rate change events by lazily (re)building the I/Q filter and
// resampler, gates demodulated audio by the embedded squelch, and emits
// channel-state events on a channelstate.Bus.
//
// Grounded on NBFMDecoder.java and its inner SourceEventProcessor.
package nbfm

import (
	"fmt"

	"github.com/go-trunk/trunkcore/pkg/channelstate"
	"github.com/go-trunk/trunkcore/pkg/dsp/filterdesign"
	"github.com/go-trunk/trunkcore/pkg/dsp/firfilter"
	"github.com/go-trunk/trunkcore/pkg/dsp/fm"
	"github.com/go-trunk/trunkcore/pkg/dsp/resample"
	"github.com/go-trunk/trunkcore/pkg/sbuf"
)

const (
	defaultChannelBandwidth = 12500.0
	defaultOutputSampleRate = 8000.0

	defaultSquelchAlpha     = 0.0001
	defaultSquelchThreshold = -78.0
	defaultSquelchRamp      = 4
)

// Config parameterizes a Decoder's channel bandwidth, output rate, and
// squelch tuning. Zero values fall back to the defaults sdrtrunk's
// NBFMDecoder hardcodes for a 12.5kHz channel.
type Config struct {
	ChannelBandwidthHz float64
	OutputSampleRateHz float64

	SquelchAlpha     float64
	SquelchThreshold float64
	SquelchRamp      int

	ComplexPoolCapacity int
	RealPoolCapacity    int
	ResamplerChunkSize  int

	// Name identifies the channel for telemetry and REQUEST_RESET
	// channel-name refresh; not used by the DSP graph itself.
	Name string
}

func (c Config) withDefaults() Config {
	if c.ChannelBandwidthHz == 0 {
		c.ChannelBandwidthHz = defaultChannelBandwidth
	}
	if c.OutputSampleRateHz == 0 {
		c.OutputSampleRateHz = defaultOutputSampleRate
	}
	if c.SquelchAlpha == 0 {
		c.SquelchAlpha = defaultSquelchAlpha
	}
	if c.SquelchThreshold == 0 {
		c.SquelchThreshold = defaultSquelchThreshold
	}
	if c.SquelchRamp == 0 {
		c.SquelchRamp = defaultSquelchRamp
	}
	if c.ComplexPoolCapacity == 0 {
		c.ComplexPoolCapacity = 16384
	}
	if c.RealPoolCapacity == 0 {
		c.RealPoolCapacity = 16384
	}
	if c.ResamplerChunkSize == 0 {
		c.ResamplerChunkSize = 2000
	}
	return c
}

// Decoder owns the DSP graph for one channel: an I/Q lowpass filter, an FM
// demodulator with embedded squelch, and a resampler, built lazily on the
// first sample-rate change event.
type Decoder struct {
	config Config
	bus    *channelstate.Bus

	complexPool *sbuf.ComplexPool
	realPool    *sbuf.RealPool

	iqFilter   *firfilter.ComplexFilter
	demod      *fm.Demodulator
	resampler  *resample.Resampler
	squelched  bool

	bufferListener func(*sbuf.RealBuffer)
	activity       squelchBridge
}

// squelchBridge adapts a squelch mute/unmute transition into the
// channel-activity snapshot returned by Decoder.State, independent of the
// CALL/IDLE events Receive already emits on the bus. Grounded on
// NBFMDecoderState.SquelchStateListener.
type squelchBridge struct {
	state channelstate.ChannelState
}

func (s *squelchBridge) observe(squelched bool) {
	if squelched {
		s.state = channelstate.StateIdle
	} else {
		s.state = channelstate.StateCall
	}
}

// New constructs a Decoder publishing channel-state events on bus.
func New(bus *channelstate.Bus, config Config) *Decoder {
	config = config.withDefaults()
	realPool := sbuf.NewRealPool(config.RealPoolCapacity)
	return &Decoder{
		config:      config,
		bus:         bus,
		complexPool: sbuf.NewComplexPool(config.ComplexPoolCapacity),
		realPool:    realPool,
		demod:       fm.New(config.SquelchAlpha, config.SquelchThreshold, config.SquelchRamp, realPool),
		squelched:   true,
	}
}

// SetBufferListener registers the demodulated-and-resampled audio sink.
func (d *Decoder) SetBufferListener(listener func(*sbuf.RealBuffer)) {
	d.bufferListener = listener
	if d.resampler != nil {
		d.resampler.SetListener(listener)
	}
}

// RemoveBufferListener unregisters the audio sink.
func (d *Decoder) RemoveBufferListener() {
	d.bufferListener = nil
	if d.resampler != nil {
		d.resampler.SetListener(nil)
	}
}

// Receive processes one complex IQ buffer through filter, demodulation,
// squelch gating, and resampling. It panics if no sample-rate event has
// been delivered yet, releasing the buffer first — mirroring sdrtrunk's
// IllegalStateException on a misconfigured pipeline.
func (d *Decoder) Receive(input *sbuf.ComplexBuffer) {
	if d.iqFilter == nil {
		input.DecrementUserCount()
		panic("nbfm: decoder must receive a sample-rate change event before processing complex sample buffers")
	}

	filtered := d.iqFilter.Filter(input)
	demodulated := d.demod.Demodulate(filtered)

	// IsSquelchChanged is sticky until cleared: it also fires on the
	// UNMUTE->MUTE transition that drives the END emission below, so it
	// must be consumed here unconditionally or a stale true leaks into
	// the next buffer and fires a spurious START.
	if d.demod.IsSquelchChanged() {
		d.demod.SetSquelchChanged(false)
		if d.squelched {
			d.squelched = false
			d.activity.observe(false)
			d.bus.Broadcast(channelstate.Event{Source: d, Type: channelstate.EventStart, State: channelstate.StateCall})
		}
	}

	if d.squelched {
		demodulated.DecrementUserCount()
		d.bus.Broadcast(channelstate.Event{Source: d, Type: channelstate.EventContinuation, State: channelstate.StateIdle})
	} else {
		d.resampler.Resample(demodulated)
		d.bus.Broadcast(channelstate.Event{Source: d, Type: channelstate.EventContinuation, State: channelstate.StateCall})
	}

	if !d.squelched && d.demod.IsMuted() {
		d.squelched = true
		d.activity.observe(true)
		d.bus.Broadcast(channelstate.Event{Source: d, Type: channelstate.EventEnd, State: channelstate.StateIdle})
	}
}

// State returns the channel-activity snapshot maintained by the squelch
// bridge, independent of the CALL/IDLE events emitted by Receive.
func (d *Decoder) State() channelstate.ChannelState {
	return d.activity.state
}

// HandleRequestReset re-publishes the channel's name as a Metadata record,
// matching NBFMDecoderState's REQUEST_RESET handling: a peer asking to
// refresh its display without tearing down the channel's DSP state.
func (d *Decoder) HandleRequestReset() {
	d.bus.Broadcast(channelstate.Event{
		Source:         d,
		Type:           channelstate.EventMetadata,
		MetadataRecord: channelstate.Metadata{Attribute: channelstate.AttributeChannelName, Value: d.config.Name},
	})
}

// HandleSourceEvent reacts to a source-rate-change event carrying
// sampleRateHz. It panics on rates below twice the configured channel
// bandwidth.
func (d *Decoder) HandleSourceEvent(sampleRateHz float64) {
	if d.iqFilter != nil {
		d.iqFilter.Dispose()
		d.iqFilter = nil
	}

	if sampleRateHz < 2.0*d.config.ChannelBandwidthHz {
		panic(fmt.Sprintf("nbfm: channel bandwidth %v requires a sample rate of at least %v, got %v",
			d.config.ChannelBandwidthHz, 2.0*d.config.ChannelBandwidthHz, sampleRateHz))
	}

	cutoff := sampleRateHz / 4.0
	spec := filterdesign.Spec{
		SampleRate:     sampleRateHz,
		NumTaps:        designTapCount(sampleRateHz),
		PassBandEdge:   cutoff - 500,
		StopBandEdge:   cutoff + 500,
		PassBandRipple: 0.01,
		StopBandRipple: 0.028,
		GridDensity:    16,
	}
	taps := filterdesign.Design(spec)

	d.iqFilter = firfilter.New(taps, d.complexPool)
	d.resampler = resample.New(sampleRateHz, d.config.OutputSampleRateHz, d.config.RealPoolCapacity, d.config.ResamplerChunkSize)
	d.resampler.SetListener(d.bufferListener)
}

// designTapCount picks an odd tap count that scales with sample rate,
// matching the general shape of FIRFilterSpecification.lowPassBuilder's
// odd-length requirement without hardcoding a single rate's tap count.
func designTapCount(sampleRateHz float64) int {
	n := int(sampleRateHz/1000) | 1 // force odd
	if n < 31 {
		n = 31
	}
	if n > 401 {
		n = 401
	}
	return n
}

// Reset delegates to the embedded FM demodulator, clearing phase
// continuity history and squelch state.
func (d *Decoder) Reset() {
	d.demod.Reset()
}
