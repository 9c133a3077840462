// Package ws carries the per-connection session loops and the hub
// that fans world snapshots out to every connected client.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/skysquad-server/internal/domain"
)

// Targeted message types pushed to a single session.
const (
	MessageTypeAchievement = "achievement"
	MessageTypeProgress    = "progress"
	MessageTypeChallenges  = "challenges"
	MessageTypeError       = "error"
)

// Message is the envelope for targeted (non-broadcast) messages.
// World snapshots are broadcast bare, without an envelope.
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub maintains the set of active sessions and broadcasts snapshots
type Hub struct {
	sessions map[*Session]bool

	register   chan *Session
	unregister chan *Session
	broadcast  chan []byte

	mu     sync.RWMutex
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		sessions:   make(map[*Session]bool),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		broadcast:  make(chan []byte, 256),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("session hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("session hub stopping")
			return

		case session := <-h.register:
			h.mu.Lock()
			h.sessions[session] = true
			h.mu.Unlock()
			h.logger.Debug("session registered", "connection_id", session.id)

		case session := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.sessions[session]; ok {
				delete(h.sessions, session)
				close(session.send)
			}
			h.mu.Unlock()
			h.logger.Debug("session unregistered", "connection_id", session.id)

		case payload := <-h.broadcast:
			h.fanOut(payload)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// fanOut delivers a payload to every connected session. A session
// whose send buffer is full is skipped rather than blocking the tick.
func (h *Hub) fanOut(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for session := range h.sessions {
		select {
		case session.send <- payload:
		default:
			h.logger.Warn("session buffer full, skipping", "connection_id", session.id)
		}
	}
}

// BroadcastSnapshot pushes a world snapshot to all sessions.
func (h *Hub) BroadcastSnapshot(snap domain.WorldSnapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		h.logger.Error("failed to marshal snapshot", "error", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("broadcast channel full, dropping snapshot")
	}
}

// Register adds a session to the hub. After Stop it is a no-op, so a
// session racing with shutdown never blocks on a dead loop.
func (h *Hub) Register(session *Session) {
	select {
	case h.register <- session:
	case <-h.ctx.Done():
	}
}

// Unregister removes a session from the hub. After Stop it is a no-op.
func (h *Hub) Unregister(session *Session) {
	select {
	case h.unregister <- session:
	case <-h.ctx.Done():
	}
}

// TotalConnections returns the number of connected sessions
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
