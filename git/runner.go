package git

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// CommandRunner executes external commands. Context uses it for every git
// invocation so tests can script the output.
type CommandRunner interface {
	// Run executes name with args in dir and returns trimmed stdout.
	Run(dir, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Env is appended to the process environment.
	Env []string
}

// NewExecRunner returns a runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run implements CommandRunner.
func (r *ExecRunner) Run(dir, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		output := strings.TrimSpace(stderr.String())
		if output == "" {
			output = strings.TrimSpace(stdout.String())
		}
		return strings.TrimSpace(stdout.String()), &CommandError{
			Command: name,
			Args:    args,
			Output:  output,
			Err:     err,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// CommandError is returned when a command exits unsuccessfully.
type CommandError struct {
	Command string
	Args    []string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Output != "" {
		return e.Output
	}
	return fmt.Sprintf("%s %s: %v", e.Command, strings.Join(e.Args, " "), e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Scripted runner
// =============================================================================

// RunnerCall records one command seen by a SequentialMockRunner.
type RunnerCall struct {
	Dir  string
	Name string
	Args []string
}

type scripted struct {
	output string
	err    error
}

// SequentialMockRunner returns queued results in order, one per call.
// Calls past the end of the queue fail.
type SequentialMockRunner struct {
	mu      sync.Mutex
	results []scripted
	Calls   []RunnerCall
}

// NewSequentialMockRunner creates an empty scripted runner.
func NewSequentialMockRunner() *SequentialMockRunner {
	return &SequentialMockRunner{}
}

// AddOutput queues a result.
func (m *SequentialMockRunner) AddOutput(output string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, scripted{output: output, err: err})
}

// AddOutputError queues a failing result whose error carries stderr text.
func (m *SequentialMockRunner) AddOutputError(output, stderr string, err error) {
	if err == nil {
		err = errors.New("exit status 1")
	}
	m.AddOutput(output, &CommandError{Command: "git", Output: stderr, Err: err})
}

// Run implements CommandRunner.
func (m *SequentialMockRunner) Run(dir, name string, args ...string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, RunnerCall{Dir: dir, Name: name, Args: append([]string(nil), args...)})
	i := len(m.Calls) - 1
	if i >= len(m.results) {
		return "", fmt.Errorf("unexpected call %d: %s %s", i+1, name, strings.Join(args, " "))
	}
	return m.results[i].output, m.results[i].err
}
