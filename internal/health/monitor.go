// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

// Package health tracks per-source latency and failure history across
// aggregation sessions. The orchestrator reads it to size per-source
// timeouts and to exclude sources whose circuit is open.
//
// All retry and backoff intelligence lives here: adapters make a single
// attempt and report success or failure, and the circuit breaker is the
// longer-horizon retry mechanism across sessions.
package health

import (
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/eventscope/internal/logging"
	"github.com/tomtom215/eventscope/internal/metrics"
	"github.com/tomtom215/eventscope/internal/models"
)

// Config tunes the monitor.
type Config struct {
	// Alpha is the EWMA smoothing factor in (0, 1]; higher weights
	// recent sessions more.
	Alpha float64

	// WindowSize is the number of recent sessions kept for the rolling
	// failure count.
	WindowSize int

	// TripThreshold is the number of consecutive failed sessions after
	// which a source's circuit opens.
	TripThreshold int

	// Cooldown is how long an open circuit waits before re-admitting
	// the source for a probe attempt.
	Cooldown time.Duration

	// TimeoutMargin multiplies the EWMA latency when sizing a source's
	// per-session timeout.
	TimeoutMargin float64

	// DefaultTimeout is used for sources with no recorded history.
	DefaultTimeout time.Duration

	// MinTimeout and MaxTimeout clamp the computed timeout. MaxTimeout
	// should stay below the orchestrator's global deadline.
	MinTimeout time.Duration
	MaxTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Alpha:          0.3,
		WindowSize:     20,
		TripThreshold:  5,
		Cooldown:       2 * time.Minute,
		TimeoutMargin:  2.0,
		DefaultTimeout: 5 * time.Second,
		MinTimeout:     1 * time.Second,
		MaxTimeout:     8 * time.Second,
	}
}

// sourceState is the per-source rolling record. Guarded by Monitor.mu.
type sourceState struct {
	ewmaMS       float64
	hasLatency   bool
	window       []bool // true = failed; ring buffer of recent sessions
	windowPos    int
	windowFilled bool
	lastErrKind  models.ErrorKind
	breaker      *gobreaker.CircuitBreaker[struct{}]
}

// Monitor is shared across sessions and safe for concurrent use.
type Monitor struct {
	cfg    Config
	mu     sync.RWMutex
	states map[string]*sourceState
}

// NewMonitor creates a Monitor with the given configuration. Zero-valued
// fields fall back to DefaultConfig.
func NewMonitor(cfg Config) *Monitor {
	def := DefaultConfig()
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = def.Alpha
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = def.WindowSize
	}
	if cfg.TripThreshold <= 0 {
		cfg.TripThreshold = def.TripThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.TimeoutMargin <= 0 {
		cfg.TimeoutMargin = def.TimeoutMargin
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = def.DefaultTimeout
	}
	if cfg.MinTimeout <= 0 {
		cfg.MinTimeout = def.MinTimeout
	}
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = def.MaxTimeout
	}
	return &Monitor{
		cfg:    cfg,
		states: make(map[string]*sourceState),
	}
}

// state returns the per-source record, creating it on first sight.
// Callers must hold mu.
func (m *Monitor) state(source string) *sourceState {
	st, ok := m.states[source]
	if !ok {
		st = &sourceState{
			window:  make([]bool, m.cfg.WindowSize),
			breaker: m.newBreaker(source),
		}
		m.states[source] = st
	}
	return st
}

// newBreaker builds the per-source circuit breaker. The circuit opens
// after TripThreshold consecutive failed sessions and probes again after
// the cooldown window.
func (m *Monitor) newBreaker(source string) *gobreaker.CircuitBreaker[struct{}] {
	threshold := uint32(m.cfg.TripThreshold)
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        source,
		MaxRequests: 1,
		Timeout:     m.cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("source", name).
				Str("from", stateString(from)).
				Str("to", stateString(to)).
				Msg("source circuit state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateString(from), stateString(to)).Inc()
		},
	})
}

// RecordSuccess feeds one successful source completion into the rolling
// statistics.
func (m *Monitor) RecordSuccess(source string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state(source)
	ms := float64(latency.Milliseconds())
	if !st.hasLatency {
		st.ewmaMS = ms
		st.hasLatency = true
	} else {
		st.ewmaMS = m.cfg.Alpha*ms + (1-m.cfg.Alpha)*st.ewmaMS
	}
	st.push(false)
	st.lastErrKind = ""

	// Feed the breaker so consecutive-failure counts reset.
	_, _ = st.breaker.Execute(func() (struct{}, error) { return struct{}{}, nil })

	metrics.SourceLatency.WithLabelValues(source).Observe(latency.Seconds())
}

// RecordFailure feeds one failed source attempt into the rolling
// statistics. Timeouts count toward the latency EWMA at their full
// duration so the computed timeout adapts upward.
func (m *Monitor) RecordFailure(source string, kind models.ErrorKind, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state(source)
	st.push(true)
	st.lastErrKind = kind

	if kind == models.ErrorKindTimeout && elapsed > 0 {
		ms := float64(elapsed.Milliseconds())
		if !st.hasLatency {
			st.ewmaMS = ms
			st.hasLatency = true
		} else {
			st.ewmaMS = m.cfg.Alpha*ms + (1-m.cfg.Alpha)*st.ewmaMS
		}
	}

	_, _ = st.breaker.Execute(func() (struct{}, error) { return struct{}{}, errFailureRecorded })

	metrics.SourceFailures.WithLabelValues(source, string(kind)).Inc()
}

// Timeout sizes the per-source timeout from the rolling latency average
// plus a safety margin, clamped into [MinTimeout, MaxTimeout].
func (m *Monitor) Timeout(source string) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.states[source]
	if !ok || !st.hasLatency {
		return m.cfg.DefaultTimeout
	}

	timeout := time.Duration(st.ewmaMS*m.cfg.TimeoutMargin) * time.Millisecond
	if timeout < m.cfg.MinTimeout {
		return m.cfg.MinTimeout
	}
	if timeout > m.cfg.MaxTimeout {
		return m.cfg.MaxTimeout
	}
	return timeout
}

// Eligible reports whether a source may participate in the next fan-out.
// An open circuit excludes the source until the cooldown elapses; the
// breaker's half-open probe re-admits it.
func (m *Monitor) Eligible(source string) bool {
	m.mu.RLock()
	st, ok := m.states[source]
	m.mu.RUnlock()
	if !ok {
		return true
	}
	return st.breaker.State() != gobreaker.StateOpen
}

// Snapshot returns the current per-source status for the sources API.
func (m *Monitor) Snapshot(sources []string) []models.SourceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.SourceStatus, 0, len(sources))
	for _, name := range sources {
		status := models.SourceStatus{
			Name:         name,
			CircuitState: "closed",
			Eligible:     true,
		}
		if st, ok := m.states[name]; ok {
			status.CircuitState = stateString(st.breaker.State())
			status.Eligible = st.breaker.State() != gobreaker.StateOpen
			status.AvgLatencyMS = int64(st.ewmaMS)
			status.RecentFailures, status.RecentSessions = st.windowCounts()
			status.LastFailureKind = string(st.lastErrKind)
		}
		timeout := m.timeoutLocked(name)
		status.CurrentTimeout = timeout
		status.TimeoutMS = timeout.Milliseconds()
		out = append(out, status)
	}
	return out
}

// timeoutLocked mirrors Timeout for callers already holding mu.
func (m *Monitor) timeoutLocked(source string) time.Duration {
	st, ok := m.states[source]
	if !ok || !st.hasLatency {
		return m.cfg.DefaultTimeout
	}
	timeout := time.Duration(st.ewmaMS*m.cfg.TimeoutMargin) * time.Millisecond
	if timeout < m.cfg.MinTimeout {
		return m.cfg.MinTimeout
	}
	if timeout > m.cfg.MaxTimeout {
		return m.cfg.MaxTimeout
	}
	return timeout
}

// push appends one session outcome to the ring buffer.
func (st *sourceState) push(failed bool) {
	st.window[st.windowPos] = failed
	st.windowPos++
	if st.windowPos == len(st.window) {
		st.windowPos = 0
		st.windowFilled = true
	}
}

// windowCounts returns (failures, sessions) over the rolling window.
func (st *sourceState) windowCounts() (int, int) {
	size := st.windowPos
	if st.windowFilled {
		size = len(st.window)
	}
	failures := 0
	for i := 0; i < size; i++ {
		if st.window[i] {
			failures++
		}
	}
	return failures, size
}

func stateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
