package agents

import (
	"context"
	"time"
)

// DefaultTimeout is the default backend execution timeout.
const DefaultTimeout = 30 * time.Minute

// Backend performs the actual work for a dispatched task. Implementations
// must eventually return; the stuck-task sweep exists because that
// assumption can be violated in practice.
type Backend interface {
	// Name returns the backend identifier.
	Name() string

	// Execute runs a task and returns the structured outcome.
	Execute(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error)
}

// ExecuteOptions carries a dispatched task and its accumulated context to
// a backend.
type ExecuteOptions struct {
	TaskID        string
	Prompt        string         // instruction built from the task
	Context       map[string]any // merged results of completed predecessors
	WorkDir       string
	RequireReview bool          // ask the backend to self-review before finishing
	Timeout       time.Duration // 0 = backend default
}

// ExecuteResult holds the outcome of a backend execution.
type ExecuteResult struct {
	Output   string         // raw text output
	Payload  map[string]any // structured output, if the backend produced any
	CostUSD  float64
	ExitCode int
	Duration time.Duration
	Error    string // error message if failed
}

// IsSuccess returns true if the execution succeeded.
func (r *ExecuteResult) IsSuccess() bool {
	return r.ExitCode == 0 && r.Error == ""
}

// ContextPayload returns the result as a context payload for successor
// tasks: the structured payload when present, otherwise the raw output.
func (r *ExecuteResult) ContextPayload() map[string]any {
	if len(r.Payload) > 0 {
		return r.Payload
	}
	return map[string]any{"output": r.Output}
}
