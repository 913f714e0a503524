package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// newTestCollector creates a Collector registered with a fresh registry
// so tests don't conflict with each other or with the default registry.
func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	c := New()
	return c, c.Registry
}

func getGaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	g.Write(m)
	return m.GetGauge().GetValue()
}

func getCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	c.Write(m)
	return m.GetCounter().GetValue()
}

func findFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric family %q not found", name)
	return nil
}

func TestUpdatePoolStatsIsAuthoritative(t *testing.T) {
	c, _ := newTestCollector(t)

	c.UpdatePoolStats(3, 5, 8, 1)
	if v := getGaugeValue(c.connectionsActive); v != 3 {
		t.Errorf("expected active=3, got %v", v)
	}
	if v := getGaugeValue(c.connectionsIdle); v != 5 {
		t.Errorf("expected idle=5, got %v", v)
	}
	if v := getGaugeValue(c.connectionsTotal); v != 8 {
		t.Errorf("expected total=8, got %v", v)
	}
	if v := getGaugeValue(c.connectionsWaiting); v != 1 {
		t.Errorf("expected waiting=1, got %v", v)
	}

	// A second call replaces, not accumulates.
	c.UpdatePoolStats(2, 4, 6, 0)
	if v := getGaugeValue(c.connectionsActive); v != 2 {
		t.Errorf("expected active=2 after update, got %v", v)
	}
}

func TestSessionDuration(t *testing.T) {
	c, reg := newTestCollector(t)

	c.SessionDuration(50 * time.Millisecond)
	c.SessionDuration(150 * time.Millisecond)

	f := findFamily(t, reg, "docgate_session_duration_seconds")
	samples := f.GetMetric()
	if len(samples) == 0 {
		t.Fatal("no metric samples")
	}
	if samples[0].GetHistogram().GetSampleCount() != 2 {
		t.Errorf("expected 2 samples, got %d", samples[0].GetHistogram().GetSampleCount())
	}
}

func TestCommandCompletedRecordsDurationAndStatus(t *testing.T) {
	c, reg := newTestCollector(t)

	c.CommandCompleted("find", 10*time.Millisecond, true)
	c.CommandCompleted("find", 20*time.Millisecond, true)
	c.CommandCompleted("find", 5*time.Millisecond, false)

	ok := getCounterValue(c.commandsTotal.WithLabelValues("find", "ok"))
	if ok != 2 {
		t.Errorf("expected ok=2, got %v", ok)
	}
	errCount := getCounterValue(c.commandsTotal.WithLabelValues("find", "error"))
	if errCount != 1 {
		t.Errorf("expected error=1, got %v", errCount)
	}

	f := findFamily(t, reg, "docgate_command_duration_seconds")
	var total uint64
	for _, m := range f.GetMetric() {
		total += m.GetHistogram().GetSampleCount()
	}
	if total != 3 {
		t.Errorf("expected 3 duration samples across all commands, got %d", total)
	}
}

func TestPoolExhausted(t *testing.T) {
	c, _ := newTestCollector(t)

	c.PoolExhausted()
	c.PoolExhausted()
	c.PoolExhausted()

	if v := getCounterValue(c.poolExhausted); v != 3 {
		t.Errorf("expected exhausted=3, got %v", v)
	}
}

func TestSetBackendHealth(t *testing.T) {
	c, _ := newTestCollector(t)

	c.SetBackendHealth(true)
	if v := getGaugeValue(c.backendHealth); v != 1 {
		t.Errorf("expected health=1 (healthy), got %v", v)
	}

	c.SetBackendHealth(false)
	if v := getGaugeValue(c.backendHealth); v != 0 {
		t.Errorf("expected health=0 (unhealthy), got %v", v)
	}
}

func TestAcquireDuration(t *testing.T) {
	c, reg := newTestCollector(t)

	c.AcquireDuration(5 * time.Millisecond)

	f := findFamily(t, reg, "docgate_acquire_duration_seconds")
	samples := f.GetMetric()
	if len(samples) == 0 || samples[0].GetHistogram().GetSampleCount() != 1 {
		t.Error("expected 1 acquire duration sample")
	}
}

func TestNewDoesNotPanicOnMultipleCalls(t *testing.T) {
	// Each call registers on its own private registry, so repeated calls
	// (as happen across tests in this package) never collide.
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("New() panicked on repeated calls: %v", r)
		}
	}()

	c1 := New()
	c2 := New()

	c1.UpdatePoolStats(1, 0, 1, 0)
	c2.UpdatePoolStats(2, 0, 2, 0)

	if v := getGaugeValue(c1.connectionsActive); v != 1 {
		t.Errorf("c1 expected active=1, got %v", v)
	}
	if v := getGaugeValue(c2.connectionsActive); v != 2 {
		t.Errorf("c2 expected active=2, got %v", v)
	}
}
