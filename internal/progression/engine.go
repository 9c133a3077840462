// Package progression implements the per-user experience, level,
// achievement, challenge, and login-streak state machine.
package progression

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skysquad-server/internal/catalog"
	"github.com/skysquad-server/internal/config"
	"github.com/skysquad-server/internal/domain"
)

// Store is the external persistence collaborator for user records.
// Store failures never fail a game operation: the engine degrades to
// in-memory state and retries through the sync worker.
type Store interface {
	GetUser(ctx context.Context, userID string) (*domain.UserRecord, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.UserRecord, error)
	UpsertUser(ctx context.Context, user *domain.UserRecord) error
	RecordAchievement(ctx context.Context, userID, achievementID string, unlockedAt time.Time) error
}

// CalculateLevel returns the largest level index whose threshold the
// experience total meets. Levels are capped at the last table index.
func CalculateLevel(xp int) int {
	level := 0
	for level < catalog.MaxLevel && xp >= catalog.LevelThresholds[level+1] {
		level++
	}
	return level
}

// NextLevelXP returns the experience required for the next level, or
// -1 when the level is already at the cap.
func NextLevelXP(level int) int {
	if level >= catalog.MaxLevel {
		return -1
	}
	return catalog.LevelThresholds[level+1]
}

// Engine holds the cached user records and the active challenge
// batch. All operations are serialized through one mutex: the same
// user may act from several connections at once.
type Engine struct {
	mu     sync.Mutex
	store  Store
	logger *slog.Logger

	cache map[string]*domain.UserRecord
	dirty map[string]struct{}

	active            []domain.Challenge
	challengeCount    int
	challengeDuration time.Duration

	now func() time.Time
}

// NewEngine creates an engine and generates the initial challenge batch.
func NewEngine(store Store, cfg *config.ChallengesConfig, logger *slog.Logger) *Engine {
	e := &Engine{
		store:             store,
		logger:            logger,
		cache:             make(map[string]*domain.UserRecord),
		dirty:             make(map[string]struct{}),
		challengeCount:    cfg.Count,
		challengeDuration: cfg.Duration,
		now:               time.Now,
	}
	e.active = e.generateChallenges()
	return e
}

// GetOrCreate loads the user record for a known user id, creating a
// fresh record when neither the cache nor the store has one.
func (e *Engine) GetOrCreate(ctx context.Context, userID, username string) *domain.UserRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	user := e.loadLocked(ctx, userID, username)
	return user.Clone()
}

// GetOrCreateByUsername resolves a user by name for unauthenticated
// joins, creating a record with a generated id on first sight.
func (e *Engine) GetOrCreateByUsername(ctx context.Context, username string) *domain.UserRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, u := range e.cache {
		if u.Username == username {
			return u.Clone()
		}
	}

	user, err := e.store.GetUserByUsername(ctx, username)
	if err == nil {
		e.adopt(user)
		return user.Clone()
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		e.logger.Warn("user lookup failed, creating in-memory record", "username", username, "error", err)
	}

	created := e.createLocked(ctx, uuid.NewString(), username)
	return created.Clone()
}

// AddExperience adds experience, recomputes the level, and persists
// both in the same operation. When the level increased, the level_5
// and level_10 achievements are checked in that order; only the last
// unlock attempted is returned.
func (e *Engine) AddExperience(ctx context.Context, userID string, amount int) (int, int, *domain.Achievement) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user := e.loadLocked(ctx, userID, "")
	previousLevel := user.Level

	user.Experience += amount
	user.Level = CalculateLevel(user.Experience)

	var unlocked *domain.Achievement
	if user.Level > previousLevel {
		e.logger.Info("player leveled up",
			"user_id", userID,
			"old_level", previousLevel,
			"new_level", user.Level,
			"xp_gained", amount,
			"total_xp", user.Experience,
		)
		if user.Level >= 5 {
			unlocked = e.unlockLocked(ctx, user, catalog.AchLevel5)
		}
		if user.Level >= 10 {
			unlocked = e.unlockLocked(ctx, user, catalog.AchLevel10)
		}
	}

	e.persistLocked(ctx, user)
	return user.Experience, user.Level, unlocked
}

// UnlockAchievement unlocks an achievement exactly once per user,
// granting its points as experience. Returns nil when the id is
// unknown or already unlocked.
func (e *Engine) UnlockAchievement(ctx context.Context, userID, achievementID string) *domain.Achievement {
	e.mu.Lock()
	defer e.mu.Unlock()

	user := e.loadLocked(ctx, userID, "")
	unlocked := e.unlockLocked(ctx, user, achievementID)
	if unlocked != nil {
		e.persistLocked(ctx, user)
	}
	return unlocked
}

// unlockLocked is the shared unlock path. Caller holds the mutex and
// is responsible for persisting the record.
func (e *Engine) unlockLocked(ctx context.Context, user *domain.UserRecord, achievementID string) *domain.Achievement {
	if user.HasAchievement(achievementID) {
		return nil
	}

	ach, ok := catalog.AchievementByID(achievementID)
	if !ok {
		e.logger.Error("achievement not found", "achievement_id", achievementID)
		return nil
	}

	user.Achievements = append(user.Achievements, achievementID)
	user.Experience += ach.Points
	user.Level = CalculateLevel(user.Experience)

	if err := e.store.RecordAchievement(ctx, user.ID, achievementID, e.now()); err != nil {
		e.logger.Warn("failed to record achievement", "user_id", user.ID, "achievement_id", achievementID, "error", err)
	}

	e.logger.Info("achievement unlocked",
		"user_id", user.ID,
		"achievement_id", achievementID,
		"achievement_title", ach.Title,
		"points_earned", ach.Points,
	)
	return &ach
}

// TrackStarCollection updates the star tallies, unlocks every
// collection achievement whose threshold is newly met, and advances
// matching active challenge counters. Returns all newly unlocked
// achievements.
func (e *Engine) TrackStarCollection(ctx context.Context, userID string, starValue int) []domain.Achievement {
	e.mu.Lock()
	defer e.mu.Unlock()

	user := e.loadLocked(ctx, userID, "")
	user.TotalStars++
	if starValue > 1 {
		user.SpecialStars++
	}

	checks := []struct {
		id  string
		met bool
	}{
		{catalog.AchFirstStar, user.TotalStars >= 1},
		{catalog.AchCollector10, user.TotalStars >= 10},
		{catalog.AchCollector50, user.TotalStars >= 50},
		{catalog.AchCollector100, user.TotalStars >= 100},
		{catalog.AchSpecial5, user.SpecialStars >= 5},
		{catalog.AchSpecial20, user.SpecialStars >= 20},
	}

	var unlocked []domain.Achievement
	for _, check := range checks {
		if !check.met {
			continue
		}
		if ach := e.unlockLocked(ctx, user, check.id); ach != nil {
			unlocked = append(unlocked, *ach)
		}
	}

	for _, ch := range e.active {
		switch ch.Kind {
		case domain.ChallengeKindStars:
			user.ChallengeProgress[ch.ID]++
		case domain.ChallengeKindSpecialStars:
			if starValue > 1 {
				user.ChallengeProgress[ch.ID]++
			}
		}
	}

	e.persistLocked(ctx, user)
	return unlocked
}

// UpdateLoginStreak applies the calendar-day streak rules: first
// login ever starts at 1, a consecutive day increments, the same day
// leaves the streak unchanged (the timestamp still moves), and any
// longer gap resets to 1. The streak_3 and streak_7 achievements are
// checked in that order with the same last-wins return as level-ups.
func (e *Engine) UpdateLoginStreak(ctx context.Context, userID string) (int, *domain.Achievement) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user := e.loadLocked(ctx, userID, "")
	now := e.now()

	var streak int
	switch {
	case user.LastLogin.IsZero():
		streak = 1
	case calendarDays(user.LastLogin, now) == 1:
		streak = user.LoginStreak + 1
	case calendarDays(user.LastLogin, now) == 0:
		streak = user.LoginStreak
	default:
		streak = 1
	}

	previous := user.LoginStreak
	user.LoginStreak = streak
	user.LastLogin = now

	var unlocked *domain.Achievement
	if streak >= 3 {
		unlocked = e.unlockLocked(ctx, user, catalog.AchStreak3)
	}
	if streak >= 7 {
		unlocked = e.unlockLocked(ctx, user, catalog.AchStreak7)
	}

	e.persistLocked(ctx, user)
	e.logger.Info("login streak updated", "user_id", userID, "previous_streak", previous, "new_streak", streak)
	return streak, unlocked
}

// calendarDays returns the number of calendar days from a to b.
// Dates are re-anchored in UTC so that DST transitions (23- or
// 25-hour wall days) cannot make two calendar days look like one.
func calendarDays(a, b time.Time) int {
	aY, aM, aD := a.Date()
	bY, bM, bD := b.Date()
	aDay := time.Date(aY, aM, aD, 0, 0, 0, 0, time.UTC)
	bDay := time.Date(bY, bM, bD, 0, 0, 0, 0, time.UTC)
	return int(bDay.Sub(aDay).Hours() / 24)
}

// loadLocked resolves a user record: cache first, store second, fresh
// record last. Caller holds the mutex.
func (e *Engine) loadLocked(ctx context.Context, userID, username string) *domain.UserRecord {
	if user, ok := e.cache[userID]; ok {
		if username != "" {
			user.Username = username
		}
		return user
	}

	user, err := e.store.GetUser(ctx, userID)
	if err == nil {
		if username != "" {
			user.Username = username
		}
		e.adopt(user)
		return user
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		e.logger.Warn("user load failed, creating in-memory record", "user_id", userID, "error", err)
	}

	return e.createLocked(ctx, userID, username)
}

// adopt normalizes a record loaded from the store and caches it.
func (e *Engine) adopt(user *domain.UserRecord) {
	if user.ChallengeProgress == nil {
		user.ChallengeProgress = make(map[string]int)
	}
	e.cache[user.ID] = user
}

func (e *Engine) createLocked(ctx context.Context, userID, username string) *domain.UserRecord {
	user := &domain.UserRecord{
		ID:                userID,
		Username:          username,
		ChallengeProgress: make(map[string]int),
		CreatedAt:         e.now(),
	}
	e.cache[userID] = user
	e.persistLocked(ctx, user)
	return user
}

// persistLocked writes the record to the store, best-effort. On
// failure the record stays dirty and the sync worker retries later.
func (e *Engine) persistLocked(ctx context.Context, user *domain.UserRecord) {
	e.dirty[user.ID] = struct{}{}
	if err := e.store.UpsertUser(ctx, user.Clone()); err != nil {
		e.logger.Warn("failed to persist user record, keeping in-memory", "user_id", user.ID, "error", err)
		return
	}
	delete(e.dirty, user.ID)
}

// FlushDirty persists every record whose last write failed. Returns
// the number of records flushed.
func (e *Engine) FlushDirty(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var flushed int
	var lastErr error
	for userID := range e.dirty {
		user, ok := e.cache[userID]
		if !ok {
			delete(e.dirty, userID)
			continue
		}
		if err := e.store.UpsertUser(ctx, user.Clone()); err != nil {
			lastErr = err
			continue
		}
		delete(e.dirty, userID)
		flushed++
	}
	return flushed, lastErr
}

// DirtyCount reports how many records are awaiting persistence.
func (e *Engine) DirtyCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.dirty)
}
