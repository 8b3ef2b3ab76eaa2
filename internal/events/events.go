// Package events provides the scheduler's event sink: lifecycle
// notifications delivered through a channel-based pub-sub bus. Delivery is
// fire-and-forget; dispatch logic never depends on listener side effects.
package events

import "time"

// Type identifies a lifecycle event.
type Type string

const (
	SessionStarted   Type = "session:started"
	SessionPaused    Type = "session:paused"
	SessionResumed   Type = "session:resumed"
	SessionCompleted Type = "session:completed"
	TaskStarted      Type = "task:started"
	TaskCompleted    Type = "task:completed"
	TaskFailed       Type = "task:failed"
	TaskRequeued     Type = "task:requeued" // stuck-task sweep recovered the task
)

// Topic constants.
const (
	TopicSession = "session"
	TopicTask    = "task"
)

// Topic returns the bus topic for the event type ("session" or "task").
func (t Type) Topic() string {
	s := string(t)
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i]
		}
	}
	return s
}

// Event carries data about a scheduler lifecycle event.
type Event struct {
	Type      Type
	SessionID string
	TaskID    string
	AgentID   string
	Payload   map[string]any
	Time      time.Time
}
