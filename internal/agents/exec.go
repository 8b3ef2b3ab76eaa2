// exec.go implements Backend for CLI-based agents (claude, codex, gemini...).
package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandRunner executes shell commands. Allows mocking in tests.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, dir string, stdin string) (stdout, stderr string, exitCode int, err error)
}

// ExecRunner is the default CommandRunner using os/exec.
type ExecRunner struct{}

// Run executes a command and returns output.
func (r *ExecRunner) Run(ctx context.Context, name string, args []string, dir string, stdin string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	err := cmd.Run()

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	return stdoutBuf.String(), stderrBuf.String(), exitCode, err
}

// ExecBackend spawns a configured CLI for task execution. One instance is
// shared by every agent of the same kind.
type ExecBackend struct {
	name    string
	binary  string
	args    []string
	timeout time.Duration
	runner  CommandRunner
}

// ExecOption configures an ExecBackend.
type ExecOption func(*ExecBackend)

// WithArgs sets extra arguments passed before the prompt.
func WithArgs(args ...string) ExecOption {
	return func(b *ExecBackend) {
		b.args = args
	}
}

// WithDefaultTimeout sets the default execution timeout.
func WithDefaultTimeout(d time.Duration) ExecOption {
	return func(b *ExecBackend) {
		b.timeout = d
	}
}

// WithRunner sets a custom command runner (for testing).
func WithRunner(r CommandRunner) ExecOption {
	return func(b *ExecBackend) {
		b.runner = r
	}
}

// NewExecBackend creates a CLI-spawning backend.
func NewExecBackend(name, binary string, opts ...ExecOption) *ExecBackend {
	b := &ExecBackend{
		name:    name,
		binary:  binary,
		timeout: DefaultTimeout,
		runner:  &ExecRunner{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend identifier.
func (b *ExecBackend) Name() string {
	return b.name
}

// Execute runs the configured binary with the prompt as the final argument
// and the accumulated context as JSON on stdin.
func (b *ExecBackend) Execute(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error) {
	start := time.Now()

	timeout := b.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := opts.Prompt
	if opts.RequireReview {
		prompt += "\n\nReview your own output for correctness before finishing."
	}
	args := append(append([]string(nil), b.args...), prompt)

	var stdin string
	if len(opts.Context) > 0 {
		data, err := json.Marshal(opts.Context)
		if err != nil {
			return &ExecuteResult{
				Error:    fmt.Sprintf("encoding context: %v", err),
				ExitCode: -1,
				Duration: time.Since(start),
			}, err
		}
		stdin = string(data)
	}

	stdout, stderr, exitCode, err := b.runner.Run(ctx, b.binary, args, opts.WorkDir, stdin)

	result := &ExecuteResult{
		Output:   strings.TrimSpace(stdout),
		ExitCode: exitCode,
		Duration: time.Since(start),
	}

	if err != nil {
		result.Error = err.Error()
		if stderr != "" {
			result.Error = fmt.Sprintf("%v: %s", err, strings.TrimSpace(stderr))
		}
		return result, fmt.Errorf("running %s: %w", b.binary, err)
	}
	if exitCode != 0 {
		result.Error = fmt.Sprintf("%s exited %d: %s", b.binary, exitCode, strings.TrimSpace(stderr))
		return result, nil
	}

	result.Payload = extractPayload(result.Output)
	return result, nil
}

// extractPayload pulls a trailing JSON object out of agent output. Agents
// are asked to finish with a JSON summary but often wrap it in prose.
func extractPayload(output string) map[string]any {
	var payload map[string]any
	if err := json.Unmarshal([]byte(output), &payload); err == nil {
		return payload
	}

	// Fall back to the last {...} block in the output.
	end := strings.LastIndex(output, "}")
	if end == -1 {
		return nil
	}
	depth := 0
	for i := end; i >= 0; i-- {
		switch output[i] {
		case '}':
			depth++
		case '{':
			depth--
		}
		if depth == 0 {
			if err := json.Unmarshal([]byte(output[i:end+1]), &payload); err == nil {
				return payload
			}
			return nil
		}
	}
	return nil
}
