package domain

import "time"

// Achievement is an immutable catalog entry. Unlocking one grants
// Points experience exactly once per user.
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Points      int    `json:"points"`
	Hidden      bool   `json:"hidden"`
}

// ChallengeKind tags what kind of activity a challenge counts.
type ChallengeKind string

const (
	ChallengeKindStars        ChallengeKind = "stars"
	ChallengeKindSpecialStars ChallengeKind = "special_stars"
	ChallengeKindPlayTime     ChallengeKind = "play_time"
	ChallengeKindScore        ChallengeKind = "score"
)

// Challenge is a time-boxed, randomly parameterized goal. It is
// immutable after generation; the whole active batch is regenerated
// once any member expires.
type Challenge struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Goal        int           `json:"goal"`
	Reward      int           `json:"reward"`
	Kind        ChallengeKind `json:"kind"`
	Category    string        `json:"category"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
}

// Expired reports whether the challenge has passed its end time.
func (c Challenge) Expired(now time.Time) bool {
	return now.After(c.EndTime)
}

// RemainingHours returns the hours left before expiry, floored at zero.
func (c Challenge) RemainingHours(now time.Time) float64 {
	remaining := c.EndTime.Sub(now).Hours()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ChallengeStatus is a challenge annotated with one user's progress.
type ChallengeStatus struct {
	Challenge
	RemainingHours  float64 `json:"remaining_hours"`
	Progress        int     `json:"progress"`
	Complete        bool    `json:"is_complete"`
	ProgressPercent int     `json:"progress_percentage"`
}

// UserRecord is the persisted progression state for one user.
// Level is always derived from Experience; any write to Experience
// recomputes Level in the same operation.
type UserRecord struct {
	ID                string         `json:"id"`
	Username          string         `json:"username"`
	Email             string         `json:"email,omitempty"`
	Experience        int            `json:"experience"`
	Level             int            `json:"level"`
	TotalStars        int            `json:"total_stars"`
	SpecialStars      int            `json:"special_stars"`
	LoginStreak       int            `json:"login_streak"`
	LastLogin         time.Time      `json:"last_login"`
	Achievements      []string       `json:"achievements"`
	ChallengeProgress map[string]int `json:"challenge_progress"`
	CreatedAt         time.Time      `json:"created_at"`
}

// HasAchievement reports whether the achievement id is already unlocked.
func (u *UserRecord) HasAchievement(id string) bool {
	for _, a := range u.Achievements {
		if a == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the record.
func (u *UserRecord) Clone() *UserRecord {
	cp := *u
	cp.Achievements = append([]string(nil), u.Achievements...)
	cp.ChallengeProgress = make(map[string]int, len(u.ChallengeProgress))
	for k, v := range u.ChallengeProgress {
		cp.ChallengeProgress[k] = v
	}
	return &cp
}

// UserProgress is the assembled progress snapshot pushed to a client.
type UserProgress struct {
	UserID             string            `json:"user_id"`
	Username           string            `json:"username"`
	Level              int               `json:"level"`
	Experience         int               `json:"experience"`
	NextLevelXP        int               `json:"next_level_xp"`
	ProgressPercent    int               `json:"progress_percentage"`
	LoginStreak        int               `json:"login_streak"`
	TotalStars         int               `json:"total_stars"`
	SpecialStars       int               `json:"special_stars"`
	Challenges         []ChallengeStatus `json:"challenges"`
	Unlocked           []Achievement     `json:"unlocked_achievements"`
	AchievementPercent int               `json:"achievement_percentage"`
}
