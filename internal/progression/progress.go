package progression

import (
	"context"

	"github.com/skysquad-server/internal/catalog"
	"github.com/skysquad-server/internal/domain"
)

// UserProgress assembles the full progress snapshot for a user:
// level, experience, percentage to the next level, streak, star
// tallies, per-challenge progress, and unlocked achievements.
func (e *Engine) UserProgress(ctx context.Context, userID string) domain.UserProgress {
	e.mu.Lock()
	defer e.mu.Unlock()

	user := e.loadLocked(ctx, userID, "")
	now := e.now()

	progress := domain.UserProgress{
		UserID:       user.ID,
		Username:     user.Username,
		Level:        user.Level,
		Experience:   user.Experience,
		NextLevelXP:  NextLevelXP(user.Level),
		LoginStreak:  user.LoginStreak,
		TotalStars:   user.TotalStars,
		SpecialStars: user.SpecialStars,
	}

	if progress.NextLevelXP > 0 {
		base := catalog.LevelThresholds[user.Level]
		span := progress.NextLevelXP - base
		percent := (user.Experience - base) * 100 / span
		progress.ProgressPercent = clampPercent(percent)
	} else {
		// Max level
		progress.ProgressPercent = 100
	}

	progress.Challenges = make([]domain.ChallengeStatus, 0, len(e.active))
	for _, ch := range e.active {
		count := user.ChallengeProgress[ch.ID]
		progress.Challenges = append(progress.Challenges, domain.ChallengeStatus{
			Challenge:       ch,
			RemainingHours:  ch.RemainingHours(now),
			Progress:        count,
			Complete:        count >= ch.Goal,
			ProgressPercent: clampPercent(count * 100 / ch.Goal),
		})
	}

	progress.Unlocked = make([]domain.Achievement, 0, len(user.Achievements))
	for _, id := range user.Achievements {
		if ach, ok := catalog.AchievementByID(id); ok {
			progress.Unlocked = append(progress.Unlocked, ach)
		}
	}
	progress.AchievementPercent = len(progress.Unlocked) * 100 / catalog.AchievementCount()

	return progress
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
