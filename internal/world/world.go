// Package world owns the authoritative in-memory game state: the
// registry of connected players, the live star set, and the global
// score counter. Every read-modify-write on that state goes through
// one mutex so session goroutines and the spawner never observe a
// half-applied mutation.
package world

import (
	"math"
	"sync"

	"github.com/skysquad-server/internal/config"
	"github.com/skysquad-server/internal/domain"
)

// World is the single authoritative store of live game state.
type World struct {
	mu      sync.Mutex
	players map[string]*domain.Player
	stars   map[string]domain.Star
	score   int64

	moveStep     float64
	pickupRadius float64
}

// New creates an empty world.
func New(cfg *config.GameConfig) *World {
	return &World{
		players:      make(map[string]*domain.Player),
		stars:        make(map[string]domain.Star),
		moveStep:     cfg.MoveStep,
		pickupRadius: cfg.PickupRadius,
	}
}

// AddPlayer registers a player at the origin with an empty username.
// Must be called at most once per connection id.
func (w *World) AddPlayer(connectionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.players[connectionID] = &domain.Player{ConnectionID: connectionID}
}

// RemovePlayer removes a player. Safe to call for an unknown id.
func (w *World) RemovePlayer(connectionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.players, connectionID)
}

// BindUser attaches identity to a connected player. The user id is
// bound exactly once; later calls only refresh the username.
func (w *World) BindUser(connectionID, userID, username string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[connectionID]
	if !ok {
		return
	}
	if p.UserID == "" {
		p.UserID = userID
	}
	p.Username = username
}

// MovePlayer applies a fixed-magnitude delta in the given direction.
// Unrecognized directions are no-ops. Positions are unbounded: the
// play field has no walls.
func (w *World) MovePlayer(connectionID string, dir domain.Direction) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[connectionID]
	if !ok {
		return
	}
	switch dir {
	case domain.DirectionUp:
		p.Y += w.moveStep
	case domain.DirectionDown:
		p.Y -= w.moveStep
	case domain.DirectionLeft:
		p.X -= w.moveStep
	case domain.DirectionRight:
		p.X += w.moveStep
	}
}

// Player returns a copy of the player for a connection id.
func (w *World) Player(connectionID string) (domain.Player, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[connectionID]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return *p, nil
}

// AddStar inserts a star into the live set.
func (w *World) AddStar(star domain.Star) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stars[star.ID] = star
}

// Star returns a copy of a live star.
func (w *World) Star(id string) (domain.Star, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.stars[id]
	if !ok {
		return domain.Star{}, domain.ErrStarNotFound
	}
	return s, nil
}

// Collect atomically removes the star if present and returns its
// value. A second collect on the same id reports ErrStarNotFound, so
// at most one of two racing collects succeeds.
func (w *World) Collect(starID string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.stars[starID]
	if !ok {
		return 0, domain.ErrStarNotFound
	}
	delete(w.stars, starID)
	return s.Value, nil
}

// AddScore increments the global score counter and returns the new total.
func (w *World) AddScore(delta int) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.score += int64(delta)
	return w.score
}

// Score returns the current global score.
func (w *World) Score() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.score
}

// Snapshot returns a consistent point-in-time view for broadcast.
func (w *World) Snapshot() domain.WorldSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := domain.WorldSnapshot{
		Score:   w.score,
		Players: make([]domain.Player, 0, len(w.players)),
		Stars:   make([]domain.Star, 0, len(w.stars)),
	}
	for _, p := range w.players {
		snap.Players = append(snap.Players, *p)
	}
	for _, s := range w.stars {
		snap.Stars = append(snap.Stars, s)
	}
	return snap
}

// PlayerCount returns the number of registered players.
func (w *World) PlayerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.players)
}

// StarCount returns the number of live stars.
func (w *World) StarCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.stars)
}

// WithinPickup applies the collection proximity rule: both axis
// offsets must be inside the pickup radius. The zone is a square, not
// a circle; the per-axis check is a deliberate simplification.
func (w *World) WithinPickup(p domain.Player, s domain.Star) bool {
	return math.Abs(p.X-s.X) < w.pickupRadius && math.Abs(p.Y-s.Y) < w.pickupRadius
}
