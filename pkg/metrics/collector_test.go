package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterVecValue(t *testing.T, c *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.WithLabelValues(labels...).Write(m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeVecValue(t *testing.T, g *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.WithLabelValues(labels...).Write(m); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector(prometheus.NewRegistry())
	if collector == nil {
		t.Fatal("expected non-nil collector")
	}
}

func TestCollector_SquelchTransition(t *testing.T) {
	collector := NewCollector(prometheus.NewRegistry())

	collector.SquelchTransition("ch1", "UNMUTE")
	collector.SquelchTransition("ch1", "UNMUTE")

	if got := counterVecValue(t, collector.squelchTransitions, "ch1", "UNMUTE"); got != 2 {
		t.Errorf("expected 2 transitions, got %v", got)
	}
}

func TestCollector_SquelchMutedGauge(t *testing.T) {
	collector := NewCollector(prometheus.NewRegistry())

	collector.SetSquelchMuted("ch1", true)
	if got := gaugeVecValue(t, collector.squelchMuted, "ch1"); got != 1 {
		t.Errorf("expected muted gauge 1, got %v", got)
	}

	collector.SetSquelchMuted("ch1", false)
	if got := gaugeVecValue(t, collector.squelchMuted, "ch1"); got != 0 {
		t.Errorf("expected muted gauge 0, got %v", got)
	}
}

func TestCollector_BufferAllocationTracksInUse(t *testing.T) {
	collector := NewCollector(prometheus.NewRegistry())

	collector.BufferAllocated("iq")
	collector.BufferAllocated("iq")
	collector.BufferReleased("iq")

	if got := counterVecValue(t, collector.buffersAllocated, "iq"); got != 2 {
		t.Errorf("expected 2 allocations, got %v", got)
	}
	if got := counterVecValue(t, collector.buffersReleased, "iq"); got != 1 {
		t.Errorf("expected 1 release, got %v", got)
	}
	if got := gaugeVecValue(t, collector.poolInUse, "iq"); got != 1 {
		t.Errorf("expected 1 buffer in use, got %v", got)
	}
}

func TestCollector_CallEvent(t *testing.T) {
	collector := NewCollector(prometheus.NewRegistry())

	collector.CallEvent("REGISTER")
	collector.CallEvent("REGISTER")
	collector.CallEvent("RESPONSE")

	if got := counterVecValue(t, collector.callEvents, "REGISTER"); got != 2 {
		t.Errorf("expected 2 REGISTER events, got %v", got)
	}
	if got := counterVecValue(t, collector.callEvents, "RESPONSE"); got != 1 {
		t.Errorf("expected 1 RESPONSE event, got %v", got)
	}
}

func TestCollector_TrafficChannelAllocated(t *testing.T) {
	collector := NewCollector(prometheus.NewRegistry())

	collector.TrafficChannelAllocated()
	collector.TrafficChannelAllocated()

	m := &dto.Metric{}
	if err := collector.trafficAllocated.Write(m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Errorf("expected 2 allocations, got %v", got)
	}
}

func TestCollector_DecoderPanic(t *testing.T) {
	collector := NewCollector(prometheus.NewRegistry())

	collector.DecoderPanic("ch1")

	if got := counterVecValue(t, collector.decoderPanics, "ch1"); got != 1 {
		t.Errorf("expected 1 panic recorded, got %v", got)
	}
}

func TestCollector_SeparateRegistriesDoNotCollide(t *testing.T) {
	a := NewCollector(prometheus.NewRegistry())
	b := NewCollector(prometheus.NewRegistry())

	a.SquelchTransition("ch1", "MUTE")
	b.SquelchTransition("ch1", "MUTE")

	if got := counterVecValue(t, a.squelchTransitions, "ch1", "MUTE"); got != 1 {
		t.Errorf("expected collector a to see 1 transition, got %v", got)
	}
	if got := counterVecValue(t, b.squelchTransitions, "ch1", "MUTE"); got != 1 {
		t.Errorf("expected collector b to see 1 transition, got %v", got)
	}
}
