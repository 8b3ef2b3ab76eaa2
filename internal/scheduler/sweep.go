package scheduler

import (
	"github.com/marcus/sprintd/internal/events"
	"github.com/marcus/sprintd/internal/tasks"
)

// sweepStuck reconciles every active session's queue against the agent
// registry. A task marked in progress whose assigned agent does not report
// it as active has silently died; it goes back to the queue and the session
// is re-woken. This is the only self-healing path for lost executions, and
// it is surfaced as a requeue event, never an error.
func (e *Engine) sweepStuck() {
	e.mu.RLock()
	sessions := make([]*session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.mu.RUnlock()

	for _, s := range sessions {
		e.sweepSession(s)
	}
}

func (e *Engine) sweepSession(s *session) {
	s.mu.Lock()

	if s.status != SessionActive {
		s.mu.Unlock()
		return
	}

	type requeue struct {
		taskID  string
		agentID string
	}
	var requeued []requeue

	for _, t := range s.tasks {
		if t.Status != tasks.StatusInProgress {
			continue
		}
		if e.registry.IsProcessing(t.AssignedAgent, t.ID) {
			continue
		}
		requeued = append(requeued, requeue{taskID: t.ID, agentID: t.AssignedAgent})
		t.Status = tasks.StatusQueued
		t.AssignedAgent = ""
		s.inflight--
	}
	sessionID := s.id
	s.mu.Unlock()

	if len(requeued) == 0 {
		return
	}

	for _, r := range requeued {
		e.log.WarnCtx("stuck task requeued", map[string]any{
			"session": sessionID, "task": r.taskID, "agent": r.agentID,
		})
		e.bus.Publish(events.Event{
			Type:      events.TaskRequeued,
			SessionID: sessionID,
			TaskID:    r.taskID,
			AgentID:   r.agentID,
		})
	}
	s.wakeUp()
}
