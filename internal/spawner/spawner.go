// Package spawner generates collectible stars on a fixed cadence and
// on demand after a collection.
package spawner

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/skysquad-server/internal/config"
	"github.com/skysquad-server/internal/domain"
	"github.com/skysquad-server/internal/events"
	"github.com/skysquad-server/internal/world"
)

// Spawner creates stars with randomized position and value.
type Spawner struct {
	world    *world.World
	events   events.Publisher
	logger   *slog.Logger
	interval time.Duration

	extent        float64
	specialChance float64
	specialValue  int
}

// New creates a spawner bound to the world.
func New(w *world.World, pub events.Publisher, cfg *config.GameConfig, logger *slog.Logger) *Spawner {
	return &Spawner{
		world:         w,
		events:        pub,
		logger:        logger,
		interval:      cfg.SpawnInterval,
		extent:        cfg.WorldExtent,
		specialChance: cfg.SpecialChance,
		specialValue:  cfg.SpecialValue,
	}
}

// Seed places the initial batch of stars at startup.
func (s *Spawner) Seed(count int) {
	for i := 0; i < count; i++ {
		s.Spawn()
	}
	s.logger.Info("seeded initial stars", "count", count)
}

// Start launches the background spawn loop. The timer runs
// unconditionally for the lifetime of the process, whether or not any
// players are connected; there is no cancellation path.
func (s *Spawner) Start() {
	s.logger.Info("spawner started", "interval", s.interval)
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for range ticker.C {
			s.Spawn()
		}
	}()
}

// Spawn creates one star with a fresh id, position drawn uniformly
// from the play square, and value 5 with the configured probability
// (1 otherwise), adds it to the world, and emits a spawn event.
func (s *Spawner) Spawn() domain.Star {
	star := domain.Star{
		ID:    uuid.NewString(),
		X:     s.randomCoord(),
		Y:     s.randomCoord(),
		Value: 1,
	}
	if rand.Float64() < s.specialChance {
		star.Value = s.specialValue
	}

	s.world.AddStar(star)
	s.events.Publish(events.EventStarSpawned, star)
	s.logger.Debug("star spawned", "star_id", star.ID, "x", star.X, "y", star.Y, "value", star.Value)
	return star
}

func (s *Spawner) randomCoord() float64 {
	return rand.Float64()*2*s.extent - s.extent
}
