// Package catalog holds the static achievement and challenge
// definitions plus the level threshold table. All data here is
// immutable; callers receive copies.
package catalog

import "github.com/skysquad-server/internal/domain"

// LevelThresholds maps level index to the minimum total experience
// required for that level. The table is non-strictly increasing:
// levels 5 and 6 share a threshold on purpose, so both become
// reachable at 1000 XP.
var LevelThresholds = []int{0, 100, 250, 450, 700, 1000, 1000, 1750, 2200, 2700, 3250}

// MaxLevel is the highest reachable level.
var MaxLevel = len(LevelThresholds) - 1

// Achievement ids referenced by the progression engine.
const (
	AchFirstStar    = "first_star"
	AchCollector10  = "collector_10"
	AchCollector50  = "collector_50"
	AchCollector100 = "collector_100"
	AchSpecial5     = "special_5"
	AchSpecial20    = "special_20"
	AchLevel5       = "level_5"
	AchLevel10      = "level_10"
	AchStreak3      = "streak_3"
	AchStreak7      = "streak_7"
)

var achievements = []domain.Achievement{
	{ID: AchFirstStar, Title: "First Star", Description: "Collect your first star", Icon: "⭐", Points: 5},
	{ID: AchCollector10, Title: "Star Collector", Description: "Collect 10 stars", Icon: "🌠", Points: 10},
	{ID: AchCollector50, Title: "Star Master", Description: "Collect 50 stars", Icon: "✨", Points: 20},
	{ID: AchCollector100, Title: "Star Champion", Description: "Collect 100 stars", Icon: "🌌", Points: 30},
	{ID: AchSpecial5, Title: "Special Star Hunter", Description: "Collect 5 special stars", Icon: "🌟", Points: 15},
	{ID: AchSpecial20, Title: "Special Star Expert", Description: "Collect 20 special stars", Icon: "🔆", Points: 30},
	{ID: AchLevel5, Title: "Rising Pilot", Description: "Reach level 5", Icon: "🚀", Points: 20},
	{ID: AchLevel10, Title: "Star Captain", Description: "Reach level 10", Icon: "👨‍✈️", Points: 50},
	{ID: AchStreak3, Title: "Regular Flyer", Description: "Play 3 days in a row", Icon: "📅", Points: 15},
	{ID: AchStreak7, Title: "Dedicated Pilot", Description: "Play 7 days in a row", Icon: "📆", Points: 25},
}

// Achievements returns a copy of the full achievement catalog.
func Achievements() []domain.Achievement {
	out := make([]domain.Achievement, len(achievements))
	copy(out, achievements)
	return out
}

// AchievementCount returns the size of the catalog.
func AchievementCount() int {
	return len(achievements)
}

// AchievementByID looks up an achievement definition.
func AchievementByID(id string) (domain.Achievement, bool) {
	for _, a := range achievements {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Achievement{}, false
}

// ChallengeTemplate describes the parameter space for one generated
// challenge. Description carries a %d verb for the drawn goal.
type ChallengeTemplate struct {
	ID          string
	Title       string
	Description string
	GoalMin     int
	GoalMax     int
	RewardMin   int
	RewardMax   int
	Kind        domain.ChallengeKind
	Category    string
}

var challengeTemplates = []ChallengeTemplate{
	{
		ID: "collect_stars", Title: "Star Collector", Description: "Collect %d stars",
		GoalMin: 10, GoalMax: 30, RewardMin: 20, RewardMax: 50,
		Kind: domain.ChallengeKindStars, Category: "collection",
	},
	{
		ID: "collect_special", Title: "Special Hunter", Description: "Collect %d special stars",
		GoalMin: 3, GoalMax: 10, RewardMin: 30, RewardMax: 80,
		Kind: domain.ChallengeKindSpecialStars, Category: "collection",
	},
	{
		ID: "play_time", Title: "Flight Time", Description: "Play for %d minutes",
		GoalMin: 5, GoalMax: 20, RewardMin: 15, RewardMax: 40,
		Kind: domain.ChallengeKindPlayTime, Category: "engagement",
	},
	{
		ID: "high_score", Title: "High Flyer", Description: "Get a score of %d in one session",
		GoalMin: 50, GoalMax: 200, RewardMin: 30, RewardMax: 100,
		Kind: domain.ChallengeKindScore, Category: "performance",
	},
}

// ChallengeTemplates returns a copy of the template catalog.
func ChallengeTemplates() []ChallengeTemplate {
	out := make([]ChallengeTemplate, len(challengeTemplates))
	copy(out, challengeTemplates)
	return out
}
