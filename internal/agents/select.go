package agents

import "github.com/marcus/sprintd/internal/tasks"

// Scoring weights for agent selection.
const (
	capabilityScore     = 10 // per required capability the agent possesses
	heavyTierBonus      = 5  // heavy agents on complex tasks
	lightTierBonus      = 3  // light agents on simple tasks
	loadPenalty         = 2  // per active task, balances load across the pool
	complexityThreshold = 7
)

// Score computes the match score between a task and an agent.
func Score(t *tasks.Task, requirements []string, a *Agent) int {
	score := 0
	for _, req := range requirements {
		if a.HasCapability(req) {
			score += capabilityScore
		}
	}
	if t.Complexity > complexityThreshold && a.Tier == TierHeavy {
		score += heavyTierBonus
	}
	if t.Complexity <= complexityThreshold && a.Tier == TierLight {
		score += lightTierBonus
	}
	score -= loadPenalty * a.ActiveCount
	return score
}

// Select returns the best available agent for a task, or nil if every agent
// is at capacity. Ties go to the earlier candidate, so selection over a
// fixed roster is deterministic.
func Select(t *tasks.Task, requirements []string, candidates []*Agent) *Agent {
	var best *Agent
	bestScore := 0

	for _, a := range candidates {
		if !a.Available() {
			continue
		}
		s := Score(t, requirements, a)
		if best == nil || s > bestScore {
			best = a
			bestScore = s
		}
	}
	return best
}
