package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/skysquad-server/internal/auth"
	"github.com/skysquad-server/internal/config"
	"github.com/skysquad-server/internal/domain"
	"github.com/skysquad-server/internal/game"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Close code sent when token verification fails
	closeInvalidToken = 4401
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// Command is an inbound client message. The move direction is
// accepted under both the "command" and "direction" keys.
type Command struct {
	Type      string `json:"type"`
	Username  string `json:"username,omitempty"`
	Command   string `json:"command,omitempty"`
	Direction string `json:"direction,omitempty"`
	StarID    string `json:"starId,omitempty"`
}

func (c *Command) direction() domain.Direction {
	if c.Command != "" {
		return domain.Direction(c.Command)
	}
	return domain.Direction(c.Direction)
}

// Session is one connected player's control loop, from accept to
// disconnect. It owns the connection-scoped state: the opaque
// connection id used as the world key, and the user id bound by the
// first join command.
type Session struct {
	id         string
	authUserID string
	userID     string

	hub    *Hub
	game   *game.Service
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger

	commands    chan Command
	tick        time.Duration
	commandWait time.Duration
}

// newSession creates a session for an upgraded connection.
func newSession(hub *Hub, svc *game.Service, conn *websocket.Conn, authUserID string, cfg *config.GameConfig, logger *slog.Logger) *Session {
	return &Session{
		id:          uuid.NewString(),
		authUserID:  authUserID,
		hub:         hub,
		game:        svc,
		conn:        conn,
		send:        make(chan []byte, 256),
		logger:      logger,
		commands:    make(chan Command, 64),
		tick:        cfg.TickInterval,
		commandWait: cfg.CommandTimeout,
	}
}

// run is the session loop: wait briefly for a command, apply it,
// broadcast the world snapshot to every session, sleep a tick, and
// repeat until the connection closes.
func (s *Session) run() {
	defer func() {
		s.game.Leave(s.id)
		s.hub.Unregister(s)
		s.logger.Debug("session closed", "connection_id", s.id, "user_id", s.userID)
	}()

	timer := time.NewTimer(s.commandWait)
	defer timer.Stop()

	for {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.commandWait)

		select {
		case cmd, ok := <-s.commands:
			if !ok {
				// Normal disconnect.
				return
			}
			s.handleCommand(cmd)
		case <-timer.C:
			// No command this tick; broadcast anyway.
		}

		s.hub.BroadcastSnapshot(s.game.Snapshot())
		time.Sleep(s.tick)
	}
}

// handleCommand dispatches one inbound command. Malformed or
// out-of-state commands are no-ops: they never terminate the session.
func (s *Session) handleCommand(cmd Command) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch cmd.Type {
	case "join":
		s.handleJoin(ctx, cmd)

	case "move":
		s.game.Move(s.id, cmd.direction())

	case "collect_star":
		s.handleCollect(ctx, cmd)

	case "get_progress":
		if s.userID != "" {
			s.push(MessageTypeProgress, s.game.Progress(ctx, s.userID))
		}

	case "get_challenges":
		s.push(MessageTypeChallenges, s.game.Challenges())

	default:
		s.logger.Debug("unknown command type", "type", cmd.Type, "connection_id", s.id)
	}
}

func (s *Session) handleJoin(ctx context.Context, cmd Command) {
	if cmd.Username == "" {
		s.pushError("username required for join")
		return
	}
	if s.userID != "" {
		// Identity binds exactly once per connection.
		s.logger.Debug("duplicate join ignored", "connection_id", s.id, "user_id", s.userID)
		return
	}

	result := s.game.Join(ctx, s.id, s.authUserID, cmd.Username)
	s.userID = result.UserID

	s.push(MessageTypeProgress, result.Progress)
	s.push(MessageTypeChallenges, result.Challenges)
	if result.StreakAchievement != nil {
		s.push(MessageTypeAchievement, result.StreakAchievement)
	}

	s.logger.Info("player joined", "connection_id", s.id, "user_id", s.userID, "username", cmd.Username)
}

func (s *Session) handleCollect(ctx context.Context, cmd Command) {
	result, err := s.game.CollectStar(ctx, s.id, s.userID, cmd.StarID)
	if err != nil {
		// Stale id, lost race, or out of range: all expected, all silent.
		if errors.Is(err, domain.ErrStarNotFound) || errors.Is(err, domain.ErrStarOutOfRange) || errors.Is(err, domain.ErrPlayerNotFound) {
			return
		}
		s.logger.Warn("collect failed", "connection_id", s.id, "star_id", cmd.StarID, "error", err)
		return
	}

	for _, ach := range result.Unlocked {
		s.push(MessageTypeAchievement, ach)
	}
}

// push queues a targeted message for this session only.
func (s *Session) push(messageType string, data any) {
	msg := Message{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal message", "type", messageType, "error", err)
		return
	}
	select {
	case s.send <- payload:
	default:
		s.logger.Warn("session buffer full, dropping message", "connection_id", s.id, "type", messageType)
	}
}

func (s *Session) pushError(errMsg string) {
	s.push(MessageTypeError, map[string]string{"error": errMsg})
}

// readPump pumps inbound messages from the connection into the
// session loop. Closing the commands channel is the disconnect signal.
func (s *Session) readPump() {
	defer func() {
		close(s.commands)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket error", "connection_id", s.id, "error", err)
			}
			break
		}

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			s.logger.Debug("invalid message format", "connection_id", s.id, "error", err)
			s.pushError("invalid message format")
			continue
		}

		select {
		case s.commands <- cmd:
		default:
			// Command backlog; shed rather than stall the read loop.
			s.logger.Warn("command buffer full, dropping command", "connection_id", s.id, "type", cmd.Type)
		}
	}
}

// writePump pumps messages from the hub and session to the connection
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := s.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(s.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-s.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the connection, verifies the token boundary, and
// starts the session. Token failures close the connection with a
// distinct code before the session ever becomes active.
func ServeWs(hub *Hub, svc *game.Service, verifier auth.Verifier, authCfg *config.AuthConfig, gameCfg *config.GameConfig, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	// Authenticating: resolve the presented token before going active.
	var authUserID string
	token := r.URL.Query().Get("token")
	if token != "" {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		authUserID, err = verifier.Verify(ctx, token)
		if err != nil {
			refuse(conn, logger, "token verification failed", err)
			return
		}
	} else if authCfg.Required {
		refuse(conn, logger, "token required", domain.ErrInvalidToken)
		return
	}

	session := newSession(hub, svc, conn, authUserID, gameCfg, logger)

	// Active: the player exists in the world from here until disconnect.
	svc.Enter(session.id)
	hub.Register(session)

	go session.writePump()
	go session.run()
	go session.readPump()

	logger.Debug("new session", "connection_id", session.id, "user_id", authUserID)
}

func refuse(conn *websocket.Conn, logger *slog.Logger, reason string, err error) {
	logger.Warn("connection refused", "reason", reason, "error", err)
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(closeInvalidToken, reason),
		time.Now().Add(writeWait),
	)
	conn.Close()
}
