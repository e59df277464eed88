// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

package health

import (
	"testing"
	"time"

	"github.com/tomtom215/eventscope/internal/models"
)

func TestMonitor_TimeoutDefaultsWithoutHistory(t *testing.T) {
	m := NewMonitor(Config{DefaultTimeout: 5 * time.Second})

	if got := m.Timeout("unseen"); got != 5*time.Second {
		t.Errorf("expected default timeout, got %v", got)
	}
}

func TestMonitor_TimeoutTracksEWMA(t *testing.T) {
	m := NewMonitor(Config{
		Alpha:          0.5,
		TimeoutMargin:  2.0,
		MinTimeout:     100 * time.Millisecond,
		MaxTimeout:     30 * time.Second,
		DefaultTimeout: 5 * time.Second,
	})

	m.RecordSuccess("ticketstar", 1*time.Second)
	// EWMA = 1000ms, timeout = 2000ms.
	if got := m.Timeout("ticketstar"); got != 2*time.Second {
		t.Errorf("after one sample: got %v, want 2s", got)
	}

	m.RecordSuccess("ticketstar", 3*time.Second)
	// EWMA = 0.5*3000 + 0.5*1000 = 2000ms, timeout = 4s.
	if got := m.Timeout("ticketstar"); got != 4*time.Second {
		t.Errorf("after two samples: got %v, want 4s", got)
	}
}

func TestMonitor_TimeoutClamped(t *testing.T) {
	m := NewMonitor(Config{
		Alpha:         0.5,
		TimeoutMargin: 2.0,
		MinTimeout:    1 * time.Second,
		MaxTimeout:    6 * time.Second,
	})

	m.RecordSuccess("fast", 10*time.Millisecond)
	if got := m.Timeout("fast"); got != 1*time.Second {
		t.Errorf("expected min clamp, got %v", got)
	}

	m.RecordSuccess("slow", 30*time.Second)
	if got := m.Timeout("slow"); got != 6*time.Second {
		t.Errorf("expected max clamp, got %v", got)
	}
}

func TestMonitor_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	m := NewMonitor(Config{TripThreshold: 3, Cooldown: time.Hour})

	if !m.Eligible("flaky") {
		t.Fatal("fresh source must be eligible")
	}

	m.RecordFailure("flaky", models.ErrorKindFailure, 0)
	m.RecordFailure("flaky", models.ErrorKindFailure, 0)
	if !m.Eligible("flaky") {
		t.Fatal("source must stay eligible below the trip threshold")
	}

	m.RecordFailure("flaky", models.ErrorKindFailure, 0)
	if m.Eligible("flaky") {
		t.Fatal("expected circuit open after trip threshold failures")
	}
}

func TestMonitor_SuccessResetsConsecutiveFailures(t *testing.T) {
	m := NewMonitor(Config{TripThreshold: 3, Cooldown: time.Hour})

	m.RecordFailure("wobbly", models.ErrorKindTimeout, 0)
	m.RecordFailure("wobbly", models.ErrorKindTimeout, 0)
	m.RecordSuccess("wobbly", 100*time.Millisecond)
	m.RecordFailure("wobbly", models.ErrorKindTimeout, 0)
	m.RecordFailure("wobbly", models.ErrorKindTimeout, 0)

	if !m.Eligible("wobbly") {
		t.Fatal("success must reset the consecutive failure count")
	}
}

func TestMonitor_CircuitReadmitsAfterCooldown(t *testing.T) {
	m := NewMonitor(Config{TripThreshold: 2, Cooldown: 50 * time.Millisecond})

	m.RecordFailure("flaky", models.ErrorKindFailure, 0)
	m.RecordFailure("flaky", models.ErrorKindFailure, 0)
	if m.Eligible("flaky") {
		t.Fatal("expected circuit open")
	}

	time.Sleep(80 * time.Millisecond)
	if !m.Eligible("flaky") {
		t.Fatal("expected half-open probe after cooldown")
	}
}

func TestMonitor_TimeoutFailureFeedsLatency(t *testing.T) {
	// A timed-out source's elapsed time pushes the EWMA (and therefore
	// the next timeout) upward.
	m := NewMonitor(Config{
		Alpha:         0.5,
		TimeoutMargin: 2.0,
		MinTimeout:    100 * time.Millisecond,
		MaxTimeout:    time.Minute,
	})

	m.RecordSuccess("sluggish", 1*time.Second)
	before := m.Timeout("sluggish")

	m.RecordFailure("sluggish", models.ErrorKindTimeout, 5*time.Second)
	after := m.Timeout("sluggish")

	if after <= before {
		t.Errorf("timeout did not adapt upward: before=%v after=%v", before, after)
	}
}

func TestMonitor_Snapshot(t *testing.T) {
	m := NewMonitor(Config{TripThreshold: 2, Cooldown: time.Hour, DefaultTimeout: 5 * time.Second})

	m.RecordSuccess("good", 200*time.Millisecond)
	m.RecordFailure("bad", models.ErrorKindTimeout, 0)
	m.RecordFailure("bad", models.ErrorKindTimeout, 0)

	snap := m.Snapshot([]string{"good", "bad", "unseen"})
	if len(snap) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(snap))
	}

	byName := make(map[string]models.SourceStatus)
	for _, s := range snap {
		byName[s.Name] = s
	}

	if byName["good"].CircuitState != "closed" || !byName["good"].Eligible {
		t.Errorf("good: %+v", byName["good"])
	}
	if byName["bad"].CircuitState != "open" || byName["bad"].Eligible {
		t.Errorf("bad: %+v", byName["bad"])
	}
	if byName["bad"].RecentFailures != 2 {
		t.Errorf("bad: expected 2 recent failures, got %d", byName["bad"].RecentFailures)
	}
	if byName["bad"].LastFailureKind != string(models.ErrorKindTimeout) {
		t.Errorf("bad: last failure kind %q", byName["bad"].LastFailureKind)
	}
	if byName["unseen"].CircuitState != "closed" || !byName["unseen"].Eligible {
		t.Errorf("unseen: %+v", byName["unseen"])
	}
}

func TestMonitor_RollingWindowBounded(t *testing.T) {
	m := NewMonitor(Config{WindowSize: 4, TripThreshold: 100, Cooldown: time.Hour})

	for i := 0; i < 10; i++ {
		m.RecordFailure("busy", models.ErrorKindFailure, 0)
	}
	m.RecordSuccess("busy", time.Millisecond)

	snap := m.Snapshot([]string{"busy"})
	if snap[0].RecentSessions != 4 {
		t.Errorf("expected window capped at 4, got %d", snap[0].RecentSessions)
	}
	if snap[0].RecentFailures != 3 {
		t.Errorf("expected 3 failures in window, got %d", snap[0].RecentFailures)
	}
}
