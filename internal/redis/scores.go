// Package redis mirrors live game counters into Redis: the global
// score and the per-user star-collection leaderboard. The world store
// stays authoritative for the running process; the mirror feeds the
// HTTP stats/leaderboard endpoints and survives restarts.
package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/skysquad-server/internal/config"
	"github.com/skysquad-server/internal/domain"
)

const (
	globalScoreKey     = "game:score"
	starLeaderboardKey = "leaderboard:stars"
)

// ScoreService provides Redis-based score operations
type ScoreService struct {
	client *redis.Client
	logger *slog.Logger
}

// NewScoreService creates a new Redis score service
func NewScoreService(cfg *config.RedisConfig, logger *slog.Logger) (*ScoreService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &ScoreService{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (s *ScoreService) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client
func (s *ScoreService) Client() *redis.Client {
	return s.client
}

func (s *ScoreService) playerInfoKey(userID string) string {
	return fmt.Sprintf("player:%s:info", userID)
}

// IncrGlobalScore adds a collected star's value to the mirrored
// global score and returns the new total.
func (s *ScoreService) IncrGlobalScore(ctx context.Context, delta int) (int64, error) {
	total, err := s.client.IncrBy(ctx, globalScoreKey, int64(delta)).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing global score: %w", err)
	}
	return total, nil
}

// GlobalScore returns the mirrored global score.
func (s *ScoreService) GlobalScore(ctx context.Context) (int64, error) {
	score, err := s.client.Get(ctx, globalScoreKey).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("getting global score: %w", err)
	}
	return score, nil
}

// IncrPlayerStars bumps a user's star tally on the leaderboard sorted
// set and refreshes the cached username.
func (s *ScoreService) IncrPlayerStars(ctx context.Context, userID, username string, delta int) error {
	pipe := s.client.Pipeline()
	pipe.ZIncrBy(ctx, starLeaderboardKey, float64(delta), userID)
	if username != "" {
		pipe.HSet(ctx, s.playerInfoKey(userID), "username", username)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("incrementing player stars: %w", err)
	}
	return nil
}

// TopCollectors returns the top N star collectors with usernames.
func (s *ScoreService) TopCollectors(ctx context.Context, n int) ([]domain.StarLeaderboardEntry, error) {
	results, err := s.client.ZRevRangeWithScores(ctx, starLeaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top collectors: %w", err)
	}

	entries := make([]domain.StarLeaderboardEntry, len(results))
	for i, result := range results {
		entries[i] = domain.StarLeaderboardEntry{
			Rank:   int64(i + 1),
			UserID: result.Member.(string),
			Stars:  int64(result.Score),
		}
	}

	// Resolve usernames in one round trip.
	pipe := s.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(entries))
	for i, entry := range entries {
		cmds[i] = pipe.HMGet(ctx, s.playerInfoKey(entry.UserID), "username")
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		s.logger.Warn("failed to resolve leaderboard usernames", "error", err)
		return entries, nil
	}
	for i, cmd := range cmds {
		values, err := cmd.Result()
		if err != nil || len(values) == 0 || values[0] == nil {
			continue
		}
		if username, ok := values[0].(string); ok {
			entries[i].Username = username
		}
	}

	return entries, nil
}
