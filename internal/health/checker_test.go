package health

import (
	"testing"
	"time"

	"docgate/internal/config"
)

var testHealthCfg = config.HealthConfig{
	Interval:          30 * time.Second,
	FailureThreshold:  3,
	ConnectionTimeout: 5 * time.Second,
}

func newTestChecker() *Checker {
	return NewChecker(nil, nil, testHealthCfg)
}

func TestCheckerInitialState(t *testing.T) {
	c := newTestChecker()

	if !c.IsHealthy() {
		t.Error("unknown status should be treated as healthy")
	}
	if c.GetStatus().Status != StatusUnknown {
		t.Errorf("expected StatusUnknown, got %v", c.GetStatus().Status)
	}
}

func TestCheckerUpdateStatusHealthy(t *testing.T) {
	c := newTestChecker()

	c.updateStatus(true)
	if !c.IsHealthy() {
		t.Error("should be healthy after a healthy update")
	}
	if c.GetStatus().Status != StatusHealthy {
		t.Errorf("expected StatusHealthy, got %v", c.GetStatus().Status)
	}
	if c.GetStatus().ConsecutiveFailures != 0 {
		t.Error("consecutive failures should reset to 0 on success")
	}
}

func TestCheckerFailureThreshold(t *testing.T) {
	c := newTestChecker()

	// Two failures, below the threshold of 3: still considered healthy.
	c.updateStatus(false)
	c.updateStatus(false)
	if !c.IsHealthy() {
		t.Error("should still be healthy below the failure threshold")
	}

	// Third consecutive failure crosses the threshold.
	c.updateStatus(false)
	if c.IsHealthy() {
		t.Error("should be unhealthy once failures reach the threshold")
	}
	if c.GetStatus().ConsecutiveFailures != 3 {
		t.Errorf("expected 3 consecutive failures, got %d", c.GetStatus().ConsecutiveFailures)
	}
}

func TestCheckerRecoversAfterSuccess(t *testing.T) {
	c := newTestChecker()

	c.updateStatus(false)
	c.updateStatus(false)
	c.updateStatus(false)
	if c.GetStatus().Status != StatusUnhealthy {
		t.Fatal("setup: expected unhealthy state")
	}

	c.updateStatus(true)
	if !c.IsHealthy() {
		t.Error("should recover to healthy after a single successful probe")
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusUnknown:   "unknown",
		StatusHealthy:   "healthy",
		StatusUnhealthy: "unhealthy",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}
