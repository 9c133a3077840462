package progression

import (
	"fmt"
	"math/rand"

	"github.com/skysquad-server/internal/catalog"
	"github.com/skysquad-server/internal/domain"
)

// Challenges returns the active batch, regenerating it first when it
// is empty or any member has expired. Expired challenges are replaced
// en masse, never individually.
func (e *Engine) Challenges() []domain.Challenge {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshChallengesLocked()

	out := make([]domain.Challenge, len(e.active))
	copy(out, e.active)
	return out
}

func (e *Engine) refreshChallengesLocked() {
	if len(e.active) == 0 || e.anyExpiredLocked() {
		e.active = e.generateChallenges()
		e.logger.Info("refreshed challenges", "count", len(e.active))
	}
}

func (e *Engine) anyExpiredLocked() bool {
	now := e.now()
	for _, c := range e.active {
		if c.Expired(now) {
			return true
		}
	}
	return false
}

// generateChallenges draws distinct templates at random, then draws a
// goal and reward within each template's range. Every challenge in
// the batch shares the same start time and duration.
func (e *Engine) generateChallenges() []domain.Challenge {
	templates := catalog.ChallengeTemplates()
	count := e.challengeCount
	if count > len(templates) {
		count = len(templates)
	}

	now := e.now()
	challenges := make([]domain.Challenge, 0, count)
	for _, idx := range rand.Perm(len(templates))[:count] {
		tpl := templates[idx]
		goal := randInRange(tpl.GoalMin, tpl.GoalMax)
		reward := randInRange(tpl.RewardMin, tpl.RewardMax)

		challenges = append(challenges, domain.Challenge{
			ID:          fmt.Sprintf("%s_%d", tpl.ID, now.Unix()),
			Title:       tpl.Title,
			Description: fmt.Sprintf(tpl.Description, goal),
			Goal:        goal,
			Reward:      reward,
			Kind:        tpl.Kind,
			Category:    tpl.Category,
			StartTime:   now,
			EndTime:     now.Add(e.challengeDuration),
		})
	}

	e.logger.Info("generated daily challenges", "count", len(challenges))
	return challenges
}

func randInRange(min, max int) int {
	if max <= min {
		return min
	}
	return min + rand.Intn(max-min+1)
}
