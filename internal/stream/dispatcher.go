// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

// Package stream delivers orchestrator output to connected clients as
// an ordered sequence of progress, batch and done frames. Delivery is
// per-session: each subscription owns a bounded buffer, and a
// subscriber that falls behind is dropped rather than allowed to grow
// memory without bound. Dropping a subscriber never affects the
// session producing the frames.
package stream

import (
	"sync"

	"github.com/tomtom215/eventscope/internal/logging"
	"github.com/tomtom215/eventscope/internal/metrics"
	"github.com/tomtom215/eventscope/internal/models"
)

// DefaultBufferSize is the per-subscription frame buffer used when the
// dispatcher is constructed with a non-positive size.
const DefaultBufferSize = 64

// Subscription is one client's ordered view of a session's frames.
// The channel closes after the done frame is delivered, or early if
// the subscriber overflowed its buffer and was dropped.
type Subscription struct {
	C <-chan models.StreamMessage

	id      uint64
	session string
	ch      chan models.StreamMessage
	dropped bool
}

// Dropped reports whether this subscription was removed for falling
// behind. Only meaningful after C has closed.
func (s *Subscription) Dropped() bool {
	return s.dropped
}

// Dispatcher fans session frames out to subscribers. The orchestrator
// publishes from its single session goroutine, so frames for one
// session arrive here already ordered; the dispatcher preserves that
// order per subscriber.
type Dispatcher struct {
	mu       sync.Mutex
	sessions map[string][]*Subscription
	buffer   int
	nextID   uint64
}

// NewDispatcher creates a dispatcher with the given per-subscription
// buffer size.
func NewDispatcher(bufferSize int) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Dispatcher{
		sessions: make(map[string][]*Subscription),
		buffer:   bufferSize,
	}
}

// Subscribe attaches a new subscriber to a session. Frames published
// after this call are delivered in order on the returned channel.
func (d *Dispatcher) Subscribe(sessionID string) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	ch := make(chan models.StreamMessage, d.buffer)
	sub := &Subscription{
		C:       ch,
		id:      d.nextID,
		session: sessionID,
		ch:      ch,
	}
	d.sessions[sessionID] = append(d.sessions[sessionID], sub)
	metrics.StreamClients.Inc()
	return sub
}

// Unsubscribe detaches a subscriber, typically on client disconnect.
// The session keeps running; only delivery stops.
func (d *Dispatcher) Unsubscribe(sub *Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.removeLocked(sub, false)
}

// Publish delivers one frame to every subscriber of the session. A
// subscriber whose buffer is full is dropped on the spot; remaining
// subscribers are unaffected.
func (d *Dispatcher) Publish(sessionID string, msg models.StreamMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Copy the slice: dropping a subscriber mutates the map entry
	// mid-iteration otherwise.
	subs := append([]*Subscription(nil), d.sessions[sessionID]...)
	for _, sub := range subs {
		select {
		case sub.ch <- msg:
		default:
			logging.Warn().
				Str("session_id", sessionID).
				Uint64("subscriber_id", sub.id).
				Msg("subscriber buffer full, dropping connection")
			metrics.StreamClientsDropped.Inc()
			d.removeLocked(sub, true)
		}
	}
}

// EndSession closes all remaining subscriptions for a session. Called
// by the orchestrator after the done frame has been published.
func (d *Dispatcher) EndSession(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, sub := range d.sessions[sessionID] {
		close(sub.ch)
		metrics.StreamClients.Dec()
	}
	delete(d.sessions, sessionID)
}

// SubscriberCount reports the active subscribers for a session.
func (d *Dispatcher) SubscriberCount(sessionID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.sessions[sessionID])
}

func (d *Dispatcher) removeLocked(sub *Subscription, dropped bool) {
	subs := d.sessions[sub.session]
	for i, s := range subs {
		if s.id == sub.id {
			subs = append(subs[:i], subs[i+1:]...)
			if len(subs) == 0 {
				delete(d.sessions, sub.session)
			} else {
				d.sessions[sub.session] = subs
			}
			sub.dropped = dropped
			close(sub.ch)
			metrics.StreamClients.Dec()
			return
		}
	}
}
