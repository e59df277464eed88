// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

package stream

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/eventscope/internal/logging"
	"github.com/tomtom215/eventscope/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024 // clients only ever send control frames
)

// Client bridges one websocket connection and one session
// subscription. The write pump runs until the subscription channel
// closes (session done or subscriber dropped); the read pump exists
// only to notice disconnects and keep pong deadlines fresh.
type Client struct {
	conn       *websocket.Conn
	sub        *Subscription
	dispatcher *Dispatcher
	done       chan struct{}
}

// NewClient wraps an upgraded websocket connection around a session
// subscription.
func NewClient(conn *websocket.Conn, sub *Subscription, d *Dispatcher) *Client {
	return &Client{
		conn:       conn,
		sub:        sub,
		dispatcher: d,
		done:       make(chan struct{}),
	}
}

// Run pumps frames to the client until the session ends or the client
// disconnects. Blocks until delivery is finished; the caller's handler
// goroutine is the write pump.
func (c *Client) Run() {
	go c.readPump()
	c.writePump()
}

// readPump consumes control frames and detects disconnects. A client
// going away unsubscribes but never cancels the underlying session.
func (c *Client) readPump() {
	defer func() {
		c.dispatcher.Unsubscribe(c.sub)
		close(c.done)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Debug().Err(err).Msg("websocket read ended")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sub.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// Session finished or subscriber dropped
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				logging.Debug().Err(err).Msg("failed to write stream frame")
				return
			}

			if msg.Type == models.MessageDone {
				// Terminal frame delivered; wait for the dispatcher to
				// close the channel rather than racing it.
				continue
			}

		case <-c.done:
			return

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
