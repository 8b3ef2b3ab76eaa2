package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/marcus/sprintd/internal/agents"
	"github.com/marcus/sprintd/internal/events"
	"github.com/marcus/sprintd/internal/history"
	"github.com/marcus/sprintd/internal/tasks"
)

// run is the per-session dispatcher goroutine. It is the single writer over
// the session's dispatch decisions: completions, backoff timers, resume, and
// the stuck-task sweep all post to the wake channel instead of recursing.
func (e *Engine) run(s *session) {
	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
			e.dispatch(s)
		}
	}
}

// dispatch drains ready work for one session: repeatedly pick the first
// queued task in dispatch order, pick the best available agent, and hand the
// pair to a backend. Looping here is the continuation chaining from a
// completion wake: an agent freed by one task can pick up another in the
// same tick.
func (e *Engine) dispatch(s *session) {
	for {
		s.mu.Lock()

		if s.status != SessionActive || s.stalled {
			s.mu.Unlock()
			return
		}

		next := tasks.FirstQueued(s.tasks)
		if next == nil {
			if s.inflight == 0 && s.allTerminal() {
				e.completeSession(s)
				return
			}
			// Remaining tasks are in flight; a completion or the sweep
			// will wake us.
			s.mu.Unlock()
			return
		}

		if s.inflight >= s.cfg.MaxAgents {
			s.mu.Unlock()
			return
		}

		requirements := e.infer(next)
		pick := agents.Select(next, requirements, e.registry.Snapshot())
		if pick == nil {
			s.mu.Unlock()
			e.retryLater(s)
			return
		}
		if err := e.registry.Acquire(pick.ID, next.ID); err != nil {
			// Another session won the slot between snapshot and acquire.
			s.mu.Unlock()
			e.retryLater(s)
			return
		}

		next.Status = tasks.StatusInProgress
		next.AssignedAgent = pick.ID
		next.StartedAt = time.Now()
		next.Attempt++
		attempt := next.Attempt
		s.inflight++

		opts := agents.ExecuteOptions{
			TaskID:        next.ID,
			Prompt:        buildPrompt(next),
			Context:       cloneContext(next.Context),
			RequireReview: s.cfg.RequireReview,
		}
		backend := e.backends[pick.Kind]
		sessionID := s.id
		taskID := next.ID
		s.mu.Unlock()

		e.log.InfoCtx("task dispatched", map[string]any{
			"session": sessionID, "task": taskID, "agent": pick.ID,
		})
		e.bus.Publish(events.Event{
			Type:      events.TaskStarted,
			SessionID: sessionID,
			TaskID:    taskID,
			AgentID:   pick.ID,
		})

		go e.execute(s, taskID, pick.ID, attempt, backend, opts)
	}
}

// execute invokes the backend and feeds the outcome back into the session.
// This is the scheduler's sole suspension point.
func (e *Engine) execute(s *session, taskID, agentID string, attempt int, backend agents.Backend, opts agents.ExecuteOptions) {
	var (
		result *agents.ExecuteResult
		err    error
	)
	if backend == nil {
		err = fmt.Errorf("no backend for agent %q", agentID)
	} else {
		result, err = backend.Execute(context.Background(), opts)
	}
	e.complete(s, taskID, agentID, attempt, result, err)
}

// complete resolves a dispatched task: updates task and agent state, merges
// the result into the context store and into queued dependents, and wakes
// the dispatcher.
func (e *Engine) complete(s *session, taskID, agentID string, attempt int, result *agents.ExecuteResult, execErr error) {
	s.mu.Lock()

	t := s.findTask(taskID)
	if t == nil || t.Status != tasks.StatusInProgress || t.AssignedAgent != agentID || t.Attempt != attempt {
		// The sweep requeued this task while we were executing; this
		// result belongs to an assignment that no longer exists and its
		// registry slot, if any, belongs to the new assignment.
		s.mu.Unlock()
		s.wakeUp()
		return
	}

	t.AssignedAgent = ""
	t.CompletedAt = time.Now()
	s.inflight--
	s.elapsed += t.CompletedAt.Sub(t.StartedAt)

	failed := execErr != nil || result == nil || !result.IsSuccess()
	var published []events.Event

	if failed {
		t.Status = tasks.StatusFailed
		s.metrics.TasksFailed++
		if !s.cfg.ContinuousMode {
			s.stalled = true
		}
		published = append(published, events.Event{
			Type:      events.TaskFailed,
			SessionID: s.id,
			TaskID:    taskID,
			AgentID:   agentID,
			Payload:   map[string]any{"error": errorMessage(result, execErr)},
		})
	} else {
		t.Status = tasks.StatusCompleted
		payload := result.ContextPayload()
		t.Result = payload
		s.store[t.ID] = payload
		s.metrics.TasksCompleted++
		s.metrics.TotalCost += result.CostUSD

		// Continuation chaining: queued successors see this result.
		for _, succ := range s.tasks {
			if succ.Status == tasks.StatusQueued && succ.DependsOn(t.SourceID) {
				succ.Context[t.SourceID] = payload
			}
		}

		published = append(published, events.Event{
			Type:      events.TaskCompleted,
			SessionID: s.id,
			TaskID:    taskID,
			AgentID:   agentID,
			Payload:   payload,
		})
	}

	resolved := s.metrics.TasksCompleted + s.metrics.TasksFailed
	if resolved > 0 {
		s.metrics.AverageTimePerTask = s.elapsed / time.Duration(resolved)
	}

	if s.cfg.CostLimit > 0 && s.metrics.TotalCost > s.cfg.CostLimit && s.status == SessionActive {
		s.status = SessionPaused
		published = append(published, events.Event{
			Type:      events.SessionPaused,
			SessionID: s.id,
			Payload:   map[string]any{"reason": "cost limit exceeded", "total_cost": s.metrics.TotalCost},
		})
	}

	stalled := s.stalled
	s.mu.Unlock()

	e.registry.Release(agentID, taskID)

	for _, ev := range published {
		e.bus.Publish(ev)
	}
	if stalled {
		e.log.WarnCtx("session stalled on failure", map[string]any{
			"session": s.id, "task": taskID,
		})
	}
	s.wakeUp()
}

// completeSession finalizes a session whose tasks have all resolved. The
// task queue and context store are released; the snapshot keeps metrics.
// Caller holds s.mu, which is released here.
func (e *Engine) completeSession(s *session) {
	s.status = SessionCompleted
	s.completedAt = time.Now()
	metrics := s.metrics
	s.tasks = nil
	s.store = nil
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	s.mu.Unlock()

	e.log.InfoCtx("session completed", map[string]any{
		"session":   s.id,
		"completed": metrics.TasksCompleted,
		"failed":    metrics.TasksFailed,
	})
	e.bus.Publish(events.Event{
		Type:      events.SessionCompleted,
		SessionID: s.id,
		Payload: map[string]any{
			"tasks_total":     metrics.TasksTotal,
			"tasks_completed": metrics.TasksCompleted,
			"tasks_failed":    metrics.TasksFailed,
			"total_cost":      metrics.TotalCost,
		},
	})

	if e.history != nil {
		rec := history.Record{
			SessionID:      s.id,
			SprintID:       s.sprintID,
			Status:         string(SessionCompleted),
			TasksTotal:     metrics.TasksTotal,
			TasksCompleted: metrics.TasksCompleted,
			TasksFailed:    metrics.TasksFailed,
			TotalCost:      metrics.TotalCost,
			StartedAt:      s.startedAt,
			CompletedAt:    s.completedAt,
		}
		if err := e.history.Record(rec); err != nil {
			e.log.Err(err).Str("session", s.id).Msg("recording session history")
		}
	}
}

// retryLater re-wakes the dispatcher after the backoff. No agent being
// available is transient, never an error.
func (e *Engine) retryLater(s *session) {
	time.AfterFunc(e.backoff, s.wakeUp)
}

// buildPrompt renders the task into a backend instruction.
func buildPrompt(t *tasks.Task) string {
	return fmt.Sprintf("Task %s: %s\n\n%s", t.SourceID, t.Title, t.Description)
}

func cloneContext(ctx map[string]any) map[string]any {
	if len(ctx) == 0 {
		return nil
	}
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		out[k] = v
	}
	return out
}

func errorMessage(result *agents.ExecuteResult, err error) string {
	if err != nil {
		return err.Error()
	}
	if result != nil && result.Error != "" {
		return result.Error
	}
	return "execution failed"
}
