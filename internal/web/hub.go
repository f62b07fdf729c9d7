// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package web

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/relabs-tech/nmea_simulator/internal/feeder"
	"github.com/relabs-tech/nmea_simulator/internal/gps"
)

// WebSocket message types
const (
	MsgTypeConnected = "connected"
	MsgTypeNMEA      = "nmea"
	MsgTypeFix       = "fix"
)

// clientQueue is the number of messages buffered per client before new ones
// are dropped for that client.
const clientQueue = 32

// Message is what the hub sends to browsers.
type Message struct {
	Type      string   `json:"type"`
	ID        string   `json:"id,omitempty"`
	Epoch     int      `json:"epoch"`
	Sentences []string `json:"sentences,omitempty"`
	Fix       *gps.Fix `json:"fix,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub streams replayed batches and decoded fixes to websocket clients.
// Slow clients lose messages; the feeder is never held up.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client

	dropped atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local development
			},
		},
		clients: make(map[string]*client),
	}
}

// Push broadcasts a batch.
func (h *Hub) Push(b feeder.Batch) {
	h.broadcast(Message{Type: MsgTypeNMEA, Epoch: b.Seq, Sentences: b.Sentences})
}

// PublishFix broadcasts a decoded fix.
func (h *Hub) PublishFix(f gps.Fix) {
	h.broadcast(Message{Type: MsgTypeFix, Epoch: f.Epoch, Fix: &f})
}

func (h *Hub) broadcast(msg Message) {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("web: marshal %s message: %v", msg.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropped.Add(1)
		}
	}
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped counts messages discarded because a client queue was full.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// ServeWS upgrades the request and keeps the client registered until it
// disconnects.
func (h *Hub) ServeWS(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return nil
	}

	cl := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, clientQueue)}
	hello, _ := json.Marshal(Message{Type: MsgTypeConnected, ID: cl.id, Timestamp: time.Now().UnixMilli()})
	cl.send <- hello

	h.register(cl)
	log.Printf("web: websocket client %s connected (%d total)", cl.id, h.Clients())

	go cl.writeLoop()

	// Inbound messages are ignored; reading is only needed to notice the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("web: websocket client %s read error: %v", cl.id, err)
			}
			break
		}
	}

	h.unregister(cl)
	log.Printf("web: websocket client %s disconnected", cl.id)
	return nil
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("web: websocket client %s write error: %v", c.id, err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
