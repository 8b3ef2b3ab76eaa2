package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/marcus/sprintd/internal/agents"
	"github.com/marcus/sprintd/internal/events"
	"github.com/marcus/sprintd/internal/history"
	"github.com/marcus/sprintd/internal/logging"
	"github.com/marcus/sprintd/internal/tasks"
)

// Default engine timings.
const (
	DefaultSweepInterval   = 30 * time.Second
	DefaultDispatchBackoff = 5 * time.Second
)

// Engine runs sessions over the shared agent registry. It is the control
// surface for operators: start, pause, resume, and observe sessions.
type Engine struct {
	registry *agents.Registry
	backends map[string]agents.Backend // agent kind -> backend
	source   tasks.Source
	bus      *events.Bus
	history  *history.Store
	log      *logging.Logger
	infer    tasks.InferFunc

	sweepInterval time.Duration
	backoff       time.Duration

	mu       sync.RWMutex
	sessions map[string]*session

	cron    *cron.Cron
	started bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry sets the shared agent registry.
func WithRegistry(r *agents.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithBackend maps an agent kind to its execution backend.
func WithBackend(kind string, b agents.Backend) Option {
	return func(e *Engine) { e.backends[kind] = b }
}

// WithSource sets the work source sessions fetch their tasks from.
func WithSource(s tasks.Source) Option {
	return func(e *Engine) { e.source = s }
}

// WithBus sets the event bus lifecycle notifications are published to.
func WithBus(b *events.Bus) Option {
	return func(e *Engine) { e.bus = b }
}

// WithHistory sets the store completed runs are recorded to.
func WithHistory(h *history.Store) Option {
	return func(e *Engine) { e.history = h }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithInfer overrides the default requirement inference.
func WithInfer(f tasks.InferFunc) Option {
	return func(e *Engine) { e.infer = f }
}

// WithSweepInterval sets how often the stuck-task sweep runs.
func WithSweepInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.sweepInterval = d
		}
	}
}

// WithDispatchBackoff sets the retry delay when no agent is available.
func WithDispatchBackoff(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.backoff = d
		}
	}
}

// New creates an engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		registry:      agents.NewRegistry(),
		backends:      make(map[string]agents.Backend),
		bus:           events.NewBus(),
		log:           logging.Component("scheduler"),
		infer:         tasks.InferRequirements,
		sweepInterval: DefaultSweepInterval,
		backoff:       DefaultDispatchBackoff,
		sessions:      make(map[string]*session),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the periodic stuck-task sweep.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return
	}
	e.cron = cron.New()
	e.cron.Schedule(cron.Every(e.sweepInterval), cron.FuncJob(e.sweepStuck))
	e.cron.Start()
	e.started = true
}

// Stop halts the sweep and every session's dispatcher. In-flight backend
// executions are not interrupted.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.cron != nil {
		e.cron.Stop()
	}
	e.started = false
	sessions := make([]*session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		select {
		case <-s.stop:
		default:
			close(s.stop)
		}
		s.mu.Unlock()
	}
}

// StartSession accepts a sprint's task list and begins dispatching it.
// Invalid configuration or an invalid task list is fatal: no session is
// created and the error is returned to the caller.
func (e *Engine) StartSession(ctx context.Context, sprintID string, cfg Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("invalid session config: %w", err)
	}
	if e.source == nil {
		return "", fmt.Errorf("no work source configured")
	}

	specs, err := e.source.Fetch(ctx, sprintID)
	if err != nil {
		return "", fmt.Errorf("fetching sprint %q: %w", sprintID, err)
	}
	if len(specs) == 0 {
		return "", fmt.Errorf("sprint %q has no tasks", sprintID)
	}
	if err := tasks.ValidateSpecs(specs); err != nil {
		return "", fmt.Errorf("sprint %q: %w", sprintID, err)
	}

	list := make([]*tasks.Task, 0, len(specs))
	for _, spec := range specs {
		list = append(list, tasks.New(spec))
	}

	s := &session{
		id:        uuid.NewString(),
		sprintID:  sprintID,
		status:    SessionActive,
		cfg:       cfg,
		tasks:     list,
		store:     make(map[string]map[string]any),
		metrics:   Metrics{TasksTotal: len(list)},
		startedAt: time.Now(),
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}

	e.mu.Lock()
	e.sessions[s.id] = s
	e.mu.Unlock()

	e.log.InfoCtx("session started", map[string]any{
		"session": s.id, "sprint": sprintID, "tasks": len(list),
	})
	e.bus.Publish(events.Event{
		Type:      events.SessionStarted,
		SessionID: s.id,
		Payload:   map[string]any{"sprint": sprintID, "tasks_total": len(list)},
	})

	go e.run(s)
	s.wakeUp()
	return s.id, nil
}

// PauseSession stops new dispatch for a session. In-flight executions are
// allowed to finish; their completion handlers still run.
func (e *Engine) PauseSession(sessionID string) error {
	s, err := e.get(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.status != SessionActive {
		status := s.status
		s.mu.Unlock()
		return fmt.Errorf("session %s is %s, cannot pause", sessionID, status)
	}
	s.status = SessionPaused
	s.mu.Unlock()

	e.log.InfoCtx("session paused", map[string]any{"session": sessionID})
	e.bus.Publish(events.Event{Type: events.SessionPaused, SessionID: sessionID})
	return nil
}

// ResumeSession reactivates a paused or stalled session and re-enters the
// dispatch loop.
func (e *Engine) ResumeSession(sessionID string) error {
	s, err := e.get(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.status == SessionCompleted {
		s.mu.Unlock()
		return fmt.Errorf("session %s already completed", sessionID)
	}
	s.status = SessionActive
	s.stalled = false
	s.mu.Unlock()

	e.log.InfoCtx("session resumed", map[string]any{"session": sessionID})
	e.bus.Publish(events.Event{Type: events.SessionResumed, SessionID: sessionID})
	s.wakeUp()
	return nil
}

// SessionStatus returns a read-only snapshot of a session.
func (e *Engine) SessionStatus(sessionID string) (*Session, error) {
	s, err := e.get(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

// Sessions returns snapshots of every known session.
func (e *Engine) Sessions() []*Session {
	e.mu.RLock()
	list := make([]*session, 0, len(e.sessions))
	for _, s := range e.sessions {
		list = append(list, s)
	}
	e.mu.RUnlock()

	out := make([]*Session, 0, len(list))
	for _, s := range list {
		s.mu.Lock()
		out = append(out, s.snapshot())
		s.mu.Unlock()
	}
	return out
}

// ActiveAgents returns the current agent roster with live counts.
func (e *Engine) ActiveAgents() []*agents.Agent {
	return e.registry.Snapshot()
}

func (e *Engine) get(sessionID string) (*session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, ok := e.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("unknown session %q", sessionID)
	}
	return s, nil
}
