// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

// Package aggregator implements the orchestrator that runs one
// aggregation session per search request: fan out to every eligible
// source concurrently, normalize and deduplicate each payload as it
// arrives, and emit progress, batch and done frames through the
// dispatcher.
//
// Concurrency model: one goroutine per source call writes into a
// buffered completion channel; a single consumer goroutine owns the
// session and the dedup index, so accepted_events is never mutated
// concurrently. The global deadline cancels pending calls best-effort;
// a call that resolves after the session finished is ignored.
package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/eventscope/internal/cache"
	"github.com/tomtom215/eventscope/internal/dedupe"
	"github.com/tomtom215/eventscope/internal/health"
	"github.com/tomtom215/eventscope/internal/logging"
	"github.com/tomtom215/eventscope/internal/metrics"
	"github.com/tomtom215/eventscope/internal/models"
	"github.com/tomtom215/eventscope/internal/normalize"
	"github.com/tomtom215/eventscope/internal/source"
	"github.com/tomtom215/eventscope/internal/stream"
)

// cacheSourceName labels the synthetic batch emitted on a cache hit.
const cacheSourceName = "cache"

// Config controls session-level behavior.
type Config struct {
	// GlobalDeadline is the hard ceiling on a session's wall time.
	GlobalDeadline time.Duration

	// MaxEvents caps accepted events per session. Batches are
	// truncated once the cap is reached; 0 means no cap.
	MaxEvents int

	// Dedupe configures the per-session duplicate matcher.
	Dedupe dedupe.Config
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		GlobalDeadline: 10 * time.Second,
		MaxEvents:      500,
	}
}

// Orchestrator runs aggregation sessions. Construct once at startup
// and share across requests; per-session state lives in the session
// goroutine.
type Orchestrator struct {
	cfg        Config
	registry   *source.Registry
	normalizer *normalize.Normalizer
	monitor    *health.Monitor
	results    *cache.Cache
	dispatcher *stream.Dispatcher

	wg sync.WaitGroup
}

// NewOrchestrator wires the pipeline together.
func NewOrchestrator(cfg Config, reg *source.Registry, n *normalize.Normalizer, m *health.Monitor, c *cache.Cache, d *stream.Dispatcher) *Orchestrator {
	if cfg.GlobalDeadline <= 0 {
		cfg.GlobalDeadline = 10 * time.Second
	}
	return &Orchestrator{
		cfg:        cfg,
		registry:   reg,
		normalizer: n,
		monitor:    m,
		results:    c,
		dispatcher: d,
	}
}

// Prepare creates a session for the query against every registered
// source. Callers subscribe to the session on the dispatcher before
// calling Run so no frame is missed.
func (o *Orchestrator) Prepare(q models.Query) (*models.Session, error) {
	sources := o.registry.Names()
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources registered")
	}
	return models.NewSession(q, sources), nil
}

// Run starts the session in its own goroutine and returns immediately.
// The session is not tied to any client: a disconnect stops delivery,
// not the session.
func (o *Orchestrator) Run(sess *models.Session) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(sess)
	}()
}

// Drain blocks until all in-flight sessions finish or ctx expires.
func (o *Orchestrator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fetchResult struct {
	source  string
	payload json.RawMessage
	err     error
	elapsed time.Duration
}

func (o *Orchestrator) run(sess *models.Session) {
	sessionID := sess.ID.String()
	started := time.Now()

	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	defer func() {
		metrics.SessionsTotal.WithLabelValues(string(sess.Status)).Inc()
		metrics.SessionDuration.Observe(time.Since(started).Seconds())
		o.dispatcher.EndSession(sessionID)
	}()

	key := cache.Key(sess.Query)
	if cached, ok := o.results.Get(key); ok {
		o.replayCached(sess, sessionID, cached)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.GlobalDeadline)
	defer cancel()

	results := make(chan fetchResult, len(sess.SourcesRequested))
	matcher := dedupe.NewMatcher(o.cfg.Dedupe)
	truncated := false

	inFlight := 0
	for _, name := range sess.SourcesRequested {
		if !o.monitor.Eligible(name) {
			sess.SourcesFailed[name] = models.ErrorKindCircuitOpen
			o.publishProgress(sess, sessionID, name)
			continue
		}
		adapter, ok := o.registry.Get(name)
		if !ok {
			sess.SourcesFailed[name] = models.ErrorKindFailure
			o.publishProgress(sess, sessionID, name)
			continue
		}

		inFlight++
		go o.fetchOne(ctx, adapter, sess.Query, results)
	}

	// Single consumer: all session mutation happens here.
	for inFlight > 0 && !sess.Settled() {
		select {
		case res := <-results:
			inFlight--
			if res.err != nil {
				o.handleFailure(sess, sessionID, res)
				continue
			}
			if o.handleSuccess(sess, sessionID, matcher, res) {
				truncated = true
			}

		case <-ctx.Done():
			// Deadline elapsed; everything still outstanding is a
			// timeout for this session.
			for _, name := range sess.SourcesRequested {
				if sess.SourceSettled(name) {
					continue
				}
				sess.SourcesFailed[name] = models.ErrorKindTimeout
				o.monitor.RecordFailure(name, models.ErrorKindTimeout, o.cfg.GlobalDeadline)
				o.publishProgress(sess, sessionID, name)
			}
			inFlight = 0
		}
	}

	// Whether the session was cut by the global deadline, regardless of
	// which select branch observed the stragglers.
	o.finish(sess, sessionID, key, truncated, ctx.Err() != nil)
}

// fetchOne performs one source call under its monitor-sized timeout.
// It only writes to the buffered results channel, never to the
// session.
func (o *Orchestrator) fetchOne(ctx context.Context, adapter source.Adapter, q models.Query, results chan<- fetchResult) {
	name := adapter.Name()
	timeout := o.monitor.Timeout(name)

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	payload, err := adapter.Fetch(callCtx, q)
	results <- fetchResult{
		source:  name,
		payload: payload,
		err:     err,
		elapsed: time.Since(start),
	}
}

func (o *Orchestrator) handleFailure(sess *models.Session, sessionID string, res fetchResult) {
	kind := source.Classify(res.err)
	sess.SourcesFailed[res.source] = kind
	o.monitor.RecordFailure(res.source, kind, res.elapsed)

	logging.Warn().
		Str("session_id", sessionID).
		Str("source", res.source).
		Str("kind", string(kind)).
		Err(res.err).
		Msg("source failed")

	o.publishProgress(sess, sessionID, res.source)
}

// handleSuccess normalizes and deduplicates one source's payload and
// emits the progress and batch frames. Returns true when the event cap
// truncated the batch.
func (o *Orchestrator) handleSuccess(sess *models.Session, sessionID string, matcher *dedupe.Matcher, res fetchResult) bool {
	events, stats, err := o.normalizer.Normalize(res.source, res.payload)
	if err != nil {
		// Malformed payload counts as a source failure, not a crash.
		res.err = source.NewError(res.source, models.ErrorKindFailure, err)
		o.handleFailure(sess, sessionID, res)
		return false
	}

	sess.SourcesCompleted = append(sess.SourcesCompleted, res.source)
	o.monitor.RecordSuccess(res.source, res.elapsed)
	metrics.EventsRejected.WithLabelValues(res.source).Add(float64(stats.Rejected))

	truncated := false
	var batch []models.Event
	for i := range events {
		if idx := matcher.Match(&events[i]); idx >= 0 {
			merged := dedupe.Merge(&sess.AcceptedEvents[idx], &events[i])
			sess.AcceptedEvents[idx] = merged
			metrics.EventsMerged.Inc()
			continue
		}
		if o.cfg.MaxEvents > 0 && len(sess.AcceptedEvents) >= o.cfg.MaxEvents {
			truncated = true
			break
		}
		sess.AcceptedEvents = append(sess.AcceptedEvents, events[i])
		matcher.Add(&events[i], len(sess.AcceptedEvents)-1)
		batch = append(batch, events[i])
		metrics.EventsAccepted.WithLabelValues(res.source).Inc()
	}

	logging.Debug().
		Str("session_id", sessionID).
		Str("source", res.source).
		Int("accepted", len(batch)).
		Int("rejected", stats.Rejected).
		Int("running_total", len(sess.AcceptedEvents)).
		Msg("source completed")

	o.publishProgress(sess, sessionID, res.source)
	if len(batch) > 0 {
		o.dispatcher.Publish(sessionID,
			models.NewBatchMessage(sessionID, res.source, batch, len(sess.AcceptedEvents)))
	}
	return truncated
}

func (o *Orchestrator) publishProgress(sess *models.Session, sessionID, sourceName string) {
	o.dispatcher.Publish(sessionID,
		models.NewProgressMessage(sessionID, sourceName, sess.Progress()))
}

func (o *Orchestrator) finish(sess *models.Session, sessionID, key string, truncated, deadlineFired bool) {
	now := time.Now().UTC()
	sess.FinishedAt = &now

	// A deadline-cut session is a partial answer, not a dead one; only
	// a session where every source failed on its own reports that no
	// sources were available.
	switch {
	case len(sess.SourcesCompleted) == 0 && !deadlineFired:
		sess.Status = models.SessionNoSources
	case len(sess.SourcesFailed) > 0:
		sess.Status = models.SessionCompletedWithErrors
	default:
		sess.Status = models.SessionCompleted
	}

	// A session where at least one source answered is worth caching;
	// an all-failed session would only pin an empty result for the TTL.
	if len(sess.SourcesCompleted) > 0 {
		o.results.Set(key, cache.Result{
			Events:        sess.AcceptedEvents,
			SourcesUsed:   sess.SourcesCompleted,
			SourcesFailed: sess.SourcesFailed,
			Status:        sess.Status,
			GeneratedAt:   now,
		})
	}

	logging.Info().
		Str("session_id", sessionID).
		Str("status", string(sess.Status)).
		Int("total_events", len(sess.AcceptedEvents)).
		Int("sources_completed", len(sess.SourcesCompleted)).
		Int("sources_failed", len(sess.SourcesFailed)).
		Dur("elapsed", now.Sub(sess.StartedAt)).
		Msg("session finished")

	o.dispatcher.Publish(sessionID,
		models.NewDoneMessage(sessionID, sess.Status, len(sess.AcceptedEvents), sess.SourcesFailed, truncated))
}

// replayCached resolves a session instantly from the result cache: one
// batch with the stored events, then done, with no source fan-out.
func (o *Orchestrator) replayCached(sess *models.Session, sessionID string, cached cache.Result) {
	now := time.Now().UTC()
	sess.Status = models.SessionCacheHit
	sess.AcceptedEvents = cached.Events
	sess.SourcesCompleted = cached.SourcesUsed
	sess.FinishedAt = &now

	logging.Debug().
		Str("session_id", sessionID).
		Int("total_events", len(cached.Events)).
		Time("generated_at", cached.GeneratedAt).
		Msg("session resolved from cache")

	if len(cached.Events) > 0 {
		o.dispatcher.Publish(sessionID,
			models.NewBatchMessage(sessionID, cacheSourceName, cached.Events, len(cached.Events)))
	}
	o.dispatcher.Publish(sessionID,
		models.NewDoneMessage(sessionID, models.SessionCacheHit, len(cached.Events), nil, false))
}
