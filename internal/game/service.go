// Package game provides the business logic behind session commands,
// tying the world store, progression engine, spawner, score mirror,
// and event pipeline together.
package game

import (
	"context"
	"log/slog"

	"github.com/skysquad-server/internal/config"
	"github.com/skysquad-server/internal/domain"
	"github.com/skysquad-server/internal/events"
	"github.com/skysquad-server/internal/progression"
	"github.com/skysquad-server/internal/spawner"
	"github.com/skysquad-server/internal/world"
)

// ScoreMirror is the best-effort Redis reflection of live counters.
// Mirror failures are logged and never fail a command.
type ScoreMirror interface {
	IncrGlobalScore(ctx context.Context, delta int) (int64, error)
	IncrPlayerStars(ctx context.Context, userID, username string, delta int) error
}

// Service coordinates game commands against the shared state.
type Service struct {
	world       *world.World
	progression *progression.Engine
	spawner     *spawner.Spawner
	mirror      ScoreMirror
	events      events.Publisher
	logger      *slog.Logger
	xpPerStar   int
}

// NewService creates the game service.
func NewService(
	w *world.World,
	engine *progression.Engine,
	sp *spawner.Spawner,
	mirror ScoreMirror,
	pub events.Publisher,
	cfg *config.GameConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		world:       w,
		progression: engine,
		spawner:     sp,
		mirror:      mirror,
		events:      pub,
		logger:      logger,
		xpPerStar:   cfg.XPPerStar,
	}
}

// Enter registers a new connection's player in the world.
func (s *Service) Enter(connectionID string) {
	s.world.AddPlayer(connectionID)
}

// Leave removes a disconnected player from the world.
func (s *Service) Leave(connectionID string) {
	s.world.RemovePlayer(connectionID)
}

// JoinResult carries everything a session pushes back after a join.
type JoinResult struct {
	UserID            string
	Streak            int
	StreakAchievement *domain.Achievement
	Progress          domain.UserProgress
	Challenges        []domain.Challenge
}

// Join binds identity to the connection, fetches or creates the
// backing user record, applies the login-streak update, and returns
// the progress and challenge snapshots for this connection.
func (s *Service) Join(ctx context.Context, connectionID, authUserID, username string) JoinResult {
	var user *domain.UserRecord
	if authUserID != "" {
		user = s.progression.GetOrCreate(ctx, authUserID, username)
	} else {
		user = s.progression.GetOrCreateByUsername(ctx, username)
	}

	s.world.BindUser(connectionID, user.ID, username)
	streak, streakAch := s.progression.UpdateLoginStreak(ctx, user.ID)

	s.events.Publish(events.EventPlayerJoined, map[string]any{
		"user_id":  user.ID,
		"username": username,
		"streak":   streak,
	})

	return JoinResult{
		UserID:            user.ID,
		Streak:            streak,
		StreakAchievement: streakAch,
		Progress:          s.progression.UserProgress(ctx, user.ID),
		Challenges:        s.progression.Challenges(),
	}
}

// Move applies a movement command to the connection's player.
func (s *Service) Move(connectionID string, dir domain.Direction) {
	s.world.MovePlayer(connectionID, dir)
}

// CollectResult describes a successful star collection.
type CollectResult struct {
	Star     domain.Star
	Score    int64
	NewXP    int
	NewLevel int
	Unlocked []domain.Achievement
}

// CollectStar applies the pickup proximity rule, then collects
// atomically. On success the global score grows by the star's value,
// experience and star tallies are updated, a replacement star is
// spawned, and any newly unlocked achievements are returned.
// ErrStarNotFound covers both a stale id and a lost collection race;
// ErrStarOutOfRange means the player is too far away. Both are
// expected conditions, not failures.
func (s *Service) CollectStar(ctx context.Context, connectionID, userID, starID string) (*CollectResult, error) {
	player, err := s.world.Player(connectionID)
	if err != nil {
		return nil, err
	}
	star, err := s.world.Star(starID)
	if err != nil {
		return nil, err
	}
	if !s.world.WithinPickup(player, star) {
		return nil, domain.ErrStarOutOfRange
	}

	value, err := s.world.Collect(starID)
	if err != nil {
		// Lost the race to another session.
		return nil, err
	}

	result := &CollectResult{Star: star, Score: s.world.AddScore(value)}

	if _, err := s.mirror.IncrGlobalScore(ctx, value); err != nil {
		s.logger.Warn("failed to mirror global score", "error", err)
	}

	if userID != "" {
		newXP, newLevel, levelAch := s.progression.AddExperience(ctx, userID, s.xpPerStar)
		result.NewXP = newXP
		result.NewLevel = newLevel
		result.Unlocked = s.progression.TrackStarCollection(ctx, userID, value)
		if levelAch != nil {
			result.Unlocked = append(result.Unlocked, *levelAch)
		}

		if err := s.mirror.IncrPlayerStars(ctx, userID, player.Username, 1); err != nil {
			s.logger.Warn("failed to mirror star tally", "user_id", userID, "error", err)
		}
	}

	// Replace the collected star so the field does not thin out.
	s.spawner.Spawn()

	s.events.Publish(events.EventStarCollected, map[string]any{
		"star_id": star.ID,
		"user_id": userID,
		"value":   value,
		"score":   result.Score,
	})
	for _, ach := range result.Unlocked {
		s.events.Publish(events.EventAchievementUnlocked, map[string]any{
			"user_id":        userID,
			"achievement_id": ach.ID,
		})
	}

	s.logger.Info("star collected",
		"star_id", star.ID,
		"user_id", userID,
		"value", value,
		"score", result.Score,
	)
	return result, nil
}

// Progress returns the progress snapshot for a joined user.
func (s *Service) Progress(ctx context.Context, userID string) domain.UserProgress {
	return s.progression.UserProgress(ctx, userID)
}

// Challenges returns the active challenge batch.
func (s *Service) Challenges() []domain.Challenge {
	return s.progression.Challenges()
}

// Snapshot returns the broadcastable world view.
func (s *Service) Snapshot() domain.WorldSnapshot {
	return s.world.Snapshot()
}
