// Package agents provides the executor pool: agent records, the shared
// registry, the selection policy, and execution backends.
package agents

// Tier classifies an agent kind's capability level. The selection policy
// prefers heavy agents for complex tasks and light agents for simple ones.
type Tier string

const (
	TierHeavy    Tier = "heavy"
	TierStandard Tier = "standard"
	TierLight    Tier = "light"
)

// Valid returns true if the tier is a known value.
func (t Tier) Valid() bool {
	switch t {
	case TierHeavy, TierStandard, TierLight:
		return true
	default:
		return false
	}
}

// Status is derived from an agent's active task count.
type Status string

const (
	StatusIdle Status = "idle"
	StatusBusy Status = "busy"
)

// Agent is an executor with capabilities and a concurrency ceiling.
type Agent struct {
	ID            string
	Kind          string // which backend family the agent wraps
	Tier          Tier
	Capabilities  []string
	MaxConcurrent int
	ActiveCount   int
}

// Available reports whether the agent can take another task. Busy agents
// with spare slots are still available (multi-tenant agents).
func (a *Agent) Available() bool {
	return a.ActiveCount < a.MaxConcurrent
}

// Status returns Idle when the agent has no active tasks.
func (a *Agent) Status() Status {
	if a.ActiveCount == 0 {
		return StatusIdle
	}
	return StatusBusy
}

// HasCapability reports whether the agent satisfies a capability tag.
func (a *Agent) HasCapability(tag string) bool {
	for _, c := range a.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// clone returns a copy safe to hand outside the registry lock.
func (a *Agent) clone() *Agent {
	cp := *a
	cp.Capabilities = append([]string(nil), a.Capabilities...)
	return &cp
}
