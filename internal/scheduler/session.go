// Package scheduler implements the autonomous dispatch engine: it takes a
// sprint's task list, drives a pool of agents to completion through
// continuation chaining, and recovers stuck work with a periodic sweep.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/marcus/sprintd/internal/tasks"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
)

// Config holds the policy knobs for one session.
type Config struct {
	// MaxAgents caps how many tasks the session may have in flight at once,
	// independent of per-agent ceilings.
	MaxAgents int
	// ContinuousMode keeps the session dispatching after a task fails.
	// When false, a failure stalls the session until it is resumed.
	ContinuousMode bool
	// RequireReview is passed through to backends, which fold a review pass
	// into execution.
	RequireReview bool
	// CostLimit pauses the session once accumulated cost exceeds it.
	// Zero means unlimited.
	CostLimit float64
}

// Validate rejects configurations the engine cannot run.
func (c Config) Validate() error {
	if c.MaxAgents <= 0 {
		return fmt.Errorf("max agents must be positive, got %d", c.MaxAgents)
	}
	if c.CostLimit < 0 {
		return fmt.Errorf("cost limit must not be negative, got %v", c.CostLimit)
	}
	return nil
}

// Metrics aggregates a session's progress.
type Metrics struct {
	TasksTotal         int
	TasksCompleted     int
	TasksFailed        int
	TotalCost          float64
	AverageTimePerTask time.Duration
}

// Session is a read-only snapshot of a scheduler session, as returned by
// the control surface.
type Session struct {
	ID          string
	SprintID    string
	Status      SessionStatus
	Config      Config
	Metrics     Metrics
	Stalled     bool
	StartedAt   time.Time
	CompletedAt time.Time
	Tasks       []*tasks.Task
}

// session is the engine's mutable per-session state. All mutation happens
// under mu; the dispatcher goroutine is the only writer during dispatch,
// completion handlers and the sweep take the same lock.
type session struct {
	id       string
	sprintID string

	mu       sync.Mutex
	status   SessionStatus
	cfg      Config
	tasks    []*tasks.Task
	store    map[string]map[string]any // execution context store, task id -> result
	metrics  Metrics
	stalled  bool // failure with ContinuousMode off; cleared by resume
	inflight int
	elapsed  time.Duration // total task execution time, for the average

	startedAt   time.Time
	completedAt time.Time

	wake chan struct{}
	stop chan struct{}
}

// wakeUp posts a dispatch wake. The channel is buffered: a pending wake
// already covers any number of triggers.
func (s *session) wakeUp() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// snapshot copies the session for external observers. Caller holds s.mu.
func (s *session) snapshot() *Session {
	snap := &Session{
		ID:          s.id,
		SprintID:    s.sprintID,
		Status:      s.status,
		Config:      s.cfg,
		Metrics:     s.metrics,
		Stalled:     s.stalled,
		StartedAt:   s.startedAt,
		CompletedAt: s.completedAt,
	}
	for _, t := range s.tasks {
		snap.Tasks = append(snap.Tasks, t.Clone())
	}
	return snap
}

// findTask returns the session's task with the given id. Caller holds s.mu.
func (s *session) findTask(taskID string) *tasks.Task {
	for _, t := range s.tasks {
		if t.ID == taskID {
			return t
		}
	}
	return nil
}

// allTerminal reports whether every task has resolved. Caller holds s.mu.
func (s *session) allTerminal() bool {
	for _, t := range s.tasks {
		if !t.Status.Terminal() {
			return false
		}
	}
	return true
}
