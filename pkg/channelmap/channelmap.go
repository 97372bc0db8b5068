// Package channelmap provides the static channel-number to frequency
// mapping MPT1327DecoderState consults when resolving a traffic channel
// grant (spec.md component I).
package channelmap

// Map is a pure, read-only mapping from channel number to frequency in
// hertz. It is not mutated by any decoder; callers construct it once from
// configuration.
type Map struct {
	frequencies map[int]float64
}

// New constructs a Map from a channel-number to frequency-in-hertz table.
func New(frequencies map[int]float64) *Map {
	m := make(map[int]float64, len(frequencies))
	for k, v := range frequencies {
		m[k] = v
	}
	return &Map{frequencies: m}
}

// FrequencyHz returns the frequency assigned to channel, or 0 if channel
// has no mapping.
func (m *Map) FrequencyHz(channel int) float64 {
	if m == nil {
		return 0
	}
	return m.frequencies[channel]
}
