package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcus/sprintd/internal/agents"
	"github.com/marcus/sprintd/internal/events"
	"github.com/marcus/sprintd/internal/tasks"
)

func TestSweepRequeuesLostTask(t *testing.T) {
	src := tasks.StaticSource{"s": {{ID: "T1", Title: "crashes"}}}

	// The first execution hangs until released, standing in for an agent
	// process that died without reporting back.
	release := make(chan struct{})
	var calls atomic.Int32
	backend := &fakeBackend{}
	backend.exec = func(agents.ExecuteOptions) (*agents.ExecuteResult, error) {
		if calls.Add(1) == 1 {
			<-release
			return okResult(map[string]any{"from": "dead attempt"}), nil
		}
		return okResult(map[string]any{"from": "retry"}), nil
	}
	e, reg, bus := newTestEngine(t, src, backend, testAgent("a1", 1))

	taskEvents := bus.Subscribe(events.TopicTask, 16)

	id, err := e.StartSession(context.Background(), "s", Config{MaxAgents: 1})
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, 5*time.Second, "first dispatch", func() bool { return calls.Load() == 1 })

	snap, _ := e.SessionStatus(id)
	taskID := snap.Tasks[0].ID

	// Simulate the silent death: the agent no longer reports the task.
	reg.Release("a1", taskID)
	e.sweepStuck()

	var requeued bool
	waitFor(t, 5*time.Second, "task:requeued event", func() bool {
		select {
		case ev := <-taskEvents:
			if ev.Type == events.TaskRequeued && ev.TaskID == taskID && ev.AgentID == "a1" {
				requeued = true
			}
		default:
		}
		return requeued
	})

	// The requeued task is picked up again and the retry completes the
	// session.
	snap = waitForStatus(t, e, id, SessionCompleted)
	if snap.Metrics.TasksCompleted != 1 || snap.Metrics.TasksFailed != 0 {
		t.Errorf("metrics = %+v, want exactly 1 completed", snap.Metrics)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("backend called %d times, want 2 (original + retry)", got)
	}

	// The dead attempt eventually returns; its result must be discarded,
	// not double-counted, and must not disturb the registry.
	close(release)
	time.Sleep(50 * time.Millisecond)

	snap, _ = e.SessionStatus(id)
	if snap.Metrics.TasksCompleted != 1 {
		t.Errorf("stale completion changed metrics: %+v", snap.Metrics)
	}
	a, _ := reg.Get("a1")
	if a.ActiveCount != 0 {
		t.Errorf("ActiveCount = %d after stale completion, want 0", a.ActiveCount)
	}
}

func TestSweepLeavesHealthyTasksAlone(t *testing.T) {
	src := tasks.StaticSource{"s": {{ID: "T1"}}}

	release := make(chan struct{})
	backend := &fakeBackend{}
	backend.exec = func(agents.ExecuteOptions) (*agents.ExecuteResult, error) {
		<-release
		return okResult(nil), nil
	}
	e, _, bus := newTestEngine(t, src, backend, testAgent("a1", 1))

	taskEvents := bus.Subscribe(events.TopicTask, 16)

	id, err := e.StartSession(context.Background(), "s", Config{MaxAgents: 1})
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, 5*time.Second, "dispatch", func() bool {
		snap, _ := e.SessionStatus(id)
		return len(snap.Tasks) == 1 && snap.Tasks[0].Status == tasks.StatusInProgress
	})

	// The agent still reports the task, so the sweep must not touch it.
	e.sweepStuck()

	snap, _ := e.SessionStatus(id)
	if snap.Tasks[0].Status != tasks.StatusInProgress {
		t.Errorf("task status = %s after sweep, want in_progress", snap.Tasks[0].Status)
	}

	close(release)
	waitForStatus(t, e, id, SessionCompleted)

	for {
		select {
		case ev := <-taskEvents:
			if ev.Type == events.TaskRequeued {
				t.Errorf("healthy task was requeued: %+v", ev)
			}
			continue
		default:
		}
		break
	}
}

func TestSweepSkipsPausedSessions(t *testing.T) {
	src := tasks.StaticSource{"s": {{ID: "T1"}}}

	release := make(chan struct{})
	backend := &fakeBackend{}
	backend.exec = func(agents.ExecuteOptions) (*agents.ExecuteResult, error) {
		<-release
		return okResult(nil), nil
	}
	e, reg, _ := newTestEngine(t, src, backend, testAgent("a1", 1))

	id, err := e.StartSession(context.Background(), "s", Config{MaxAgents: 1})
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, 5*time.Second, "dispatch", func() bool {
		snap, _ := e.SessionStatus(id)
		return len(snap.Tasks) == 1 && snap.Tasks[0].Status == tasks.StatusInProgress
	})
	snap, _ := e.SessionStatus(id)
	taskID := snap.Tasks[0].ID

	if err := e.PauseSession(id); err != nil {
		t.Fatal(err)
	}
	reg.Release("a1", taskID)
	e.sweepStuck()

	snap, _ = e.SessionStatus(id)
	if snap.Tasks[0].Status != tasks.StatusInProgress {
		t.Errorf("paused session was swept: task status = %s", snap.Tasks[0].Status)
	}
	close(release)
}
