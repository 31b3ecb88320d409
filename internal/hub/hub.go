// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hub broadcasts band events to websocket clients.
package hub

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/kortschak/miband/internal/logutil"
)

// Event is a message sent to every client.
type Event struct {
	Type    string    `json:"type"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload,omitempty"`
}

var (
	pingInterval = 30 * time.Second
	writeWait    = 100 * time.Millisecond
)

// Hub is an http.Handler accepting websocket clients and broadcasting
// events to them.
type Hub struct {
	log      logrus.FieldLogger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// client serialises writes to a connection, which allows only one
// concurrent writer.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(typ int, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err != nil {
		return err
	}
	if typ == websocket.PingMessage {
		return c.conn.WriteMessage(typ, nil)
	}
	return c.conn.WriteJSON(v)
}

// New returns a new Hub.
func New(log logrus.FieldLogger) *Hub {
	return &Hub{
		log:     logutil.OrDiscard(log),
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request to a websocket and holds the client
// until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithFields(logrus.Fields{"remote": r.RemoteAddr, "error": err}).Warn("websocket upgrade failed")
		return
	}
	c := &client{conn: conn}
	h.add(c)
	defer h.remove(c)
	h.log.WithField("remote", r.RemoteAddr).Debug("websocket client connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.WithFields(logrus.Fields{"remote": r.RemoteAddr, "error": err}).Debug("websocket read failed")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			h.log.WithField("remote", r.RemoteAddr).Debug("websocket client disconnected")
			return
		case <-ticker.C:
			err := c.write(websocket.PingMessage, nil)
			if err != nil {
				h.log.WithFields(logrus.Fields{"remote": r.RemoteAddr, "error": err}).Debug("websocket ping failed")
				return
			}
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.conn.Close()
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends e to every client, dropping clients that cannot keep
// up. A zero event time is set to now.
func (h *Hub) Broadcast(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	var (
		wg       sync.WaitGroup
		failedMu sync.Mutex
		failed   []*client
	)
	for _, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.write(websocket.TextMessage, e); err != nil {
				failedMu.Lock()
				failed = append(failed, c)
				failedMu.Unlock()
			}
		}()
	}
	wg.Wait()
	for _, c := range failed {
		h.log.WithField("remote", c.conn.RemoteAddr()).Debug("dropping slow websocket client")
		h.remove(c)
	}
}

// Close disconnects all clients.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var errs []error
	for c := range h.clients {
		errs = append(errs, c.conn.Close())
		delete(h.clients, c)
	}
	return errors.Join(errs...)
}
