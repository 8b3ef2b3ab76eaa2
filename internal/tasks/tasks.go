// Package tasks defines the scheduler's task model, the dispatch ordering
// policy, and loading of sprint task lists from work sources.
package tasks

import (
	"time"

	"github.com/google/uuid"
)

// DefaultPriority is assigned to tasks that declare no priority.
const DefaultPriority = 5

// Status represents the lifecycle state of a task.
type Status string

const (
	// StatusQueued indicates the task is waiting for dispatch.
	StatusQueued Status = "queued"
	// StatusInProgress indicates the task is assigned to an agent.
	StatusInProgress Status = "in_progress"
	// StatusCompleted indicates the task finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the task's execution failed.
	StatusFailed Status = "failed"
)

// Terminal returns true if the status is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Spec is a raw work item as delivered by a work source.
type Spec struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies,omitempty"`
	Priority     int      `json:"priority,omitempty"`
	Complexity   int      `json:"complexity,omitempty"`
}

// Task is a scheduled unit of work. ID is assigned at enqueue time and is
// distinct from SourceID, which references the originating work item.
type Task struct {
	ID           string
	SourceID     string
	Title        string
	Description  string
	Dependencies []string // SourceIDs of work items that conceptually precede this one
	Priority     int
	Complexity   int
	Status       Status
	AssignedAgent string
	Attempt      int // dispatch attempts, bumps when the sweep requeues
	Context      map[string]any // merged results of completed predecessors
	Result       map[string]any
	StartedAt    time.Time
	CompletedAt  time.Time
}

// New enqueues a spec as a schedulable task.
func New(spec Spec) *Task {
	priority := spec.Priority
	if priority == 0 {
		priority = DefaultPriority
	}
	return &Task{
		ID:           uuid.NewString(),
		SourceID:     spec.ID,
		Title:        spec.Title,
		Description:  spec.Description,
		Dependencies: append([]string(nil), spec.Dependencies...),
		Priority:     priority,
		Complexity:   spec.Complexity,
		Status:       StatusQueued,
		Context:      make(map[string]any),
	}
}

// DependsOn reports whether the task declares sourceID as a dependency.
func (t *Task) DependsOn(sourceID string) bool {
	for _, dep := range t.Dependencies {
		if dep == sourceID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy, safe to hand to external observers.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Dependencies = append([]string(nil), t.Dependencies...)
	if t.Context != nil {
		cp.Context = make(map[string]any, len(t.Context))
		for k, v := range t.Context {
			cp.Context[k] = v
		}
	}
	if t.Result != nil {
		cp.Result = make(map[string]any, len(t.Result))
		for k, v := range t.Result {
			cp.Result[k] = v
		}
	}
	return &cp
}
