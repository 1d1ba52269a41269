package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/randalmurphal/llmkit/model"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/ticketflow/agent"
	"github.com/randalmurphal/ticketflow/message"
)

// Command agent errors.
var (
	ErrEmptyCommand   = errors.New("agent command is empty")
	ErrInvalidOutput  = errors.New("agent produced invalid output")
	ErrTicketMismatch = errors.New("agent output is for a different ticket")
)

// maxStderr bounds how much stderr an AgentError keeps.
const maxStderr = 4096

// CommandAgent runs an agent step as a subprocess. The process reads a
// JSON Request on stdin and writes one message envelope on stdout.
type CommandAgent struct {
	Command []string
	Dir     string
	Env     []string
	Timeout time.Duration
	// Model is used when the run does not override the model itself.
	Model model.ModelName
}

// Request is what a command agent receives on stdin.
type Request struct {
	Step    agent.StepType   `json:"step"`
	Model   string           `json:"model"`
	Context RequestContext   `json:"context"`
	Input   message.Envelope `json:"input"`
}

// RequestContext mirrors agent.Context.
type RequestContext struct {
	TicketID         string                       `json:"ticket_id"`
	GraphID          string                       `json:"graph_id,omitempty"`
	PlanRetryCount   int                          `json:"plan_retry_count"`
	ReviewRetryCount int                          `json:"review_retry_count"`
	Rejection        *message.PlanRejectedMessage `json:"rejection,omitempty"`
	CriticalIssues   []string                     `json:"critical_issues,omitempty"`
}

// Invocation adjusts a single run.
type Invocation struct {
	Dir string   // overrides CommandAgent.Dir
	Env []string // appended after the agent's own environment
}

// AgentError reports a command that failed or was cut off.
type AgentError struct {
	Step   agent.StepType
	Stderr string
	Err    error
}

func (e *AgentError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("agent %s: %v: %s", e.Step, e.Err, e.Stderr)
	}
	return fmt.Sprintf("agent %s: %v", e.Step, e.Err)
}

func (e *AgentError) Unwrap() error { return e.Err }

// Handler returns a registry handler running this command for step.
func (a *CommandAgent) Handler(step agent.StepType) agent.Handler {
	return func(ctx context.Context, in message.Message, gc agent.Context) (message.Message, error) {
		return a.Run(ctx, step, in, gc, Invocation{})
	}
}

// Run executes the command once and returns its validated output.
func (a *CommandAgent) Run(ctx context.Context, step agent.StepType, in message.Message, gc agent.Context, inv Invocation) (message.Message, error) {
	out, err := a.run(ctx, step, in, gc, inv)
	if err != nil {
		return nil, err
	}
	if err := message.Validate(out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOutput, err)
	}
	return out, nil
}

func (a *CommandAgent) run(ctx context.Context, step agent.StepType, in message.Message, gc agent.Context, inv Invocation) (message.Message, error) {
	if len(a.Command) == 0 {
		return nil, ErrEmptyCommand
	}
	if gc.Model == "" {
		gc.Model = a.Model
	}
	modelName := agent.ModelFor(step, gc)

	env, err := message.Wrap(in)
	if err != nil {
		return nil, err
	}
	stdin, err := json.Marshal(Request{
		Step:  step,
		Model: string(modelName),
		Context: RequestContext{
			TicketID:         gc.TicketID,
			GraphID:          gc.GraphID,
			PlanRetryCount:   gc.PlanRetryCount,
			ReviewRetryCount: gc.ReviewRetryCount,
			Rejection:        gc.Rejection,
			CriticalIssues:   gc.CriticalIssues,
		},
		Input: env,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, a.Command[0], a.Command[1:]...)
	cmd.WaitDelay = time.Second
	cmd.Dir = a.Dir
	if inv.Dir != "" {
		cmd.Dir = inv.Dir
	}
	cmd.Env = append(os.Environ(), a.Env...)
	cmd.Env = append(cmd.Env,
		"TICKETFLOW_STEP="+string(step),
		"TICKETFLOW_TICKET_ID="+in.Ticket(),
		"TICKETFLOW_MODEL="+string(modelName),
	)
	cmd.Env = append(cmd.Env, inv.Env...)
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &AgentError{Step: step, Stderr: tail(stderr.String(), maxStderr), Err: err}
	}

	out, err := message.Unmarshal(bytes.TrimSpace(stdout.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOutput, err)
	}
	if out.Ticket() != in.Ticket() {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrTicketMismatch, out.Ticket(), in.Ticket())
	}
	return out, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

// =============================================================================
// Agents file
// =============================================================================

type agentsFile struct {
	Steps map[string]agentSpec `yaml:"steps"`
}

type agentSpec struct {
	Command []string          `yaml:"command"`
	Dir     string            `yaml:"dir"`
	Env     map[string]string `yaml:"env"`
	Timeout time.Duration     `yaml:"timeout"`
	Model   string            `yaml:"model"`
}

// LoadAgents reads the agents file at path. Relative dirs are resolved
// against the file's directory.
//
//	steps:
//	  planning:
//	    command: ["plan-agent", "--json"]
//	    timeout: 20m
//	    env:
//	      PLAN_STYLE: terse
func LoadAgents(path string) (map[agent.StepType]*CommandAgent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents file: %w", err)
	}
	agents, err := ParseAgents(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return agents, nil
}

// ParseAgents decodes an agents file.
func ParseAgents(data []byte, baseDir string) (map[agent.StepType]*CommandAgent, error) {
	var f agentsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse agents file: %w", err)
	}

	agents := make(map[agent.StepType]*CommandAgent, len(f.Steps))
	for name, spec := range f.Steps {
		step := agent.StepType(name)
		if !step.Valid() {
			return nil, fmt.Errorf("%w: %q", agent.ErrUnknownStep, name)
		}
		if len(spec.Command) == 0 {
			return nil, fmt.Errorf("step %s: %w", name, ErrEmptyCommand)
		}
		dir := spec.Dir
		if dir != "" && !filepath.IsAbs(dir) {
			dir = filepath.Join(baseDir, dir)
		}
		agents[step] = &CommandAgent{
			Command: spec.Command,
			Dir:     dir,
			Env:     envList(spec.Env),
			Timeout: spec.Timeout,
			Model:   model.ModelName(spec.Model),
		}
	}
	return agents, nil
}

func envList(m map[string]string) []string {
	env := make([]string, 0, len(m))
	for k, v := range m {
		env = append(env, k+"="+v)
	}
	slices.Sort(env)
	return env
}
