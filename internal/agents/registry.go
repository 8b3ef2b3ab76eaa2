package agents

import (
	"fmt"
	"sync"
)

// Registry is the single shared, lock-protected table of agents. Sessions
// reference agents by id and never duplicate them. Acquire and Release keep
// ActiveCount consistent with the per-agent set of active task ids, which
// the stuck-task sweep uses to cross-check assignments.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	agents map[string]*Agent
	active map[string]map[string]struct{} // agent id -> task ids in flight
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]*Agent),
		active: make(map[string]map[string]struct{}),
	}
}

// Register adds an agent to the pool.
func (r *Registry) Register(a *Agent) error {
	if a.ID == "" {
		return fmt.Errorf("agent with empty id")
	}
	if a.MaxConcurrent < 1 {
		return fmt.Errorf("agent %q: max concurrent must be positive, got %d", a.ID, a.MaxConcurrent)
	}
	if a.Tier == "" {
		a.Tier = TierStandard
	}
	if !a.Tier.Valid() {
		return fmt.Errorf("agent %q: unknown tier %q", a.ID, a.Tier)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[a.ID]; exists {
		return fmt.Errorf("agent %q already registered", a.ID)
	}
	r.agents[a.ID] = a.clone()
	r.agents[a.ID].ActiveCount = 0
	r.active[a.ID] = make(map[string]struct{})
	r.order = append(r.order, a.ID)
	return nil
}

// Acquire reserves a slot on an agent for a task. Fails if the agent is at
// its ceiling, keeping 0 <= ActiveCount <= MaxConcurrent at all times.
func (r *Registry) Acquire(agentID, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("unknown agent %q", agentID)
	}
	if a.ActiveCount >= a.MaxConcurrent {
		return fmt.Errorf("agent %q at capacity (%d/%d)", agentID, a.ActiveCount, a.MaxConcurrent)
	}
	if _, dup := r.active[agentID][taskID]; dup {
		return fmt.Errorf("agent %q already processing task %q", agentID, taskID)
	}

	a.ActiveCount++
	r.active[agentID][taskID] = struct{}{}
	return nil
}

// Release frees the slot a task held on an agent. Releasing a task the agent
// is not processing is a no-op, so completion handlers and the stuck-task
// sweep cannot double-decrement.
func (r *Registry) Release(agentID, taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks, ok := r.active[agentID]
	if !ok {
		return
	}
	if _, held := tasks[taskID]; !held {
		return
	}
	delete(tasks, taskID)
	if a := r.agents[agentID]; a != nil && a.ActiveCount > 0 {
		a.ActiveCount--
	}
}

// IsProcessing reports whether the agent currently holds a slot for taskID.
func (r *Registry) IsProcessing(agentID, taskID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks, ok := r.active[agentID]
	if !ok {
		return false
	}
	_, held := tasks[taskID]
	return held
}

// Get returns a copy of the agent record.
func (r *Registry) Get(agentID string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[agentID]
	if !ok {
		return nil, false
	}
	return a.clone(), true
}

// Snapshot returns copies of all agents in registration order, so selection
// over a snapshot is deterministic.
func (r *Registry) Snapshot() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id].clone())
	}
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
