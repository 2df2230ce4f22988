// Package agent implements role-specialized workers. An agent binds a
// role to the model router, a domain-scoped memory and a tool set, and
// turns a task into a result either with a single model call or with a
// bounded think/act/observe loop.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/swarmgate/swarmgate/core"
	"github.com/swarmgate/swarmgate/logging"
	"github.com/swarmgate/swarmgate/model"
	"github.com/swarmgate/swarmgate/router"
	"github.com/swarmgate/swarmgate/tool"
)

// Options configures an Agent.
type Options struct {
	// Tools is the agent's capability set. Nil means no tools.
	Tools *tool.Registry
	// Memory is the agent's domain-scoped memory. Nil disables memory
	// access for the agent's tools.
	Memory core.MemoryScope
	// Logger receives agent events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Agent is a role-specialized worker bound to the model router.
type Agent struct {
	name   string
	role   Role
	router *router.Router
	opts   Options
}

// RunInput carries a task into an agent run.
type RunInput struct {
	Task          string
	CorrelationID string
}

// Result is the outcome of an agent run.
type Result struct {
	Text       string
	Confidence float64
	ServedBy   core.ServedBy
	Steps      int
	Partial    bool
}

// New creates an agent for the given role. The name distinguishes
// multiple agents sharing a role within one swarm.
func New(name string, role Role, r *router.Router, optFns ...func(o *Options)) (*Agent, error) {
	if err := role.Validate(); err != nil {
		return nil, err
	}

	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if name == "" {
		name = role.Name
	}

	return &Agent{name: name, role: role, router: r, opts: opts}, nil
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

// Role returns the agent's role.
func (a *Agent) Role() Role { return a.role }

// Run executes the task according to the role's strategy.
func (a *Agent) Run(ctx context.Context, in RunInput) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch a.role.Strategy {
	case StrategyLoop:
		return a.runLoop(ctx, in)
	default:
		return a.runDirect(ctx, in)
	}
}

func (a *Agent) runDirect(ctx context.Context, in RunInput) (*Result, error) {
	req := model.Request{
		Instructions: a.role.Instructions,
		Messages:     []model.Message{{Role: "user", Text: in.Task}},
	}

	resp, served, err := a.router.Call(ctx, a.role.Name, req)
	if err != nil {
		return nil, err
	}

	text, confidence := parseConfidence(resp.Text)
	return &Result{
		Text:       text,
		Confidence: confidence,
		ServedBy:   served,
		Steps:      1,
	}, nil
}

func (a *Agent) runLoop(ctx context.Context, in RunInput) (*Result, error) {
	limit := a.role.StepLimit()
	instructions := a.loopInstructions()
	messages := []model.Message{{Role: "user", Text: in.Task}}

	var served core.ServedBy
	var lastThought string

	for stepNum := 1; stepNum <= limit; stepNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, sb, err := a.router.Call(ctx, a.role.Name, model.Request{
			Instructions: instructions,
			Messages:     messages,
		})
		if err != nil {
			return nil, err
		}
		served = sb

		s, ok := parseStep(resp.Text)
		if !ok {
			a.opts.Logger.Warn("agent.step.unparseable", "agent", a.name, "step", stepNum)
			messages = append(messages,
				model.Message{Role: "assistant", Text: resp.Text},
				model.Message{Role: "user", Text: "observation: reply was not a valid step. Respond with a single JSON object containing \"thought\" and either \"action\" or \"final\"."},
			)
			continue
		}
		lastThought = s.Thought
		messages = append(messages, model.Message{Role: "assistant", Text: resp.Text})

		if s.Final != "" {
			text, confidence := parseConfidence(s.Final)
			a.opts.Logger.Info("agent.run.complete", "agent", a.name, "steps", stepNum)
			return &Result{
				Text:       text,
				Confidence: confidence,
				ServedBy:   served,
				Steps:      stepNum,
			}, nil
		}

		observation, fatal := a.execute(ctx, in, s.Action, stepNum)
		if fatal != nil {
			return nil, fatal
		}
		messages = append(messages, model.Message{Role: "user", Text: "observation: " + observation})
	}

	partial := lastThought
	a.opts.Logger.Warn("agent.step_limit.reached", "agent", a.name, "steps", limit)
	return &Result{
			Text:     partial,
			ServedBy: served,
			Steps:    limit,
			Partial:  true,
		}, &core.AgentStepLimitError{
			Agent:   a.name,
			Steps:   limit,
			Partial: partial,
		}
}

// execute runs one tool call and renders its outcome as an observation.
// Recoverable failures (unknown capability, validation, execution
// errors) come back as observations so the loop can self-correct; only
// fatal tool errors abort the run.
func (a *Agent) execute(ctx context.Context, in RunInput, act *stepAction, stepNum int) (string, error) {
	if a.opts.Tools == nil {
		return fmt.Sprintf("no capabilities are available; %q cannot be called", act.Name), nil
	}
	t, ok := a.opts.Tools.Get(act.Name)
	if !ok {
		available := strings.Join(a.opts.Tools.Names(), ", ")
		a.opts.Logger.Warn("agent.capability.unknown", "agent", a.name, "capability", act.Name)
		return fmt.Sprintf("unknown capability %q; available: %s", act.Name, available), nil
	}

	toolCtx := core.NewToolContext(ctx, in.CorrelationID, a.name, core.NewID(), a.opts.Memory, a.opts.Logger)
	result, err := t.Call(toolCtx, act.Args)
	if err != nil {
		var toolErr *tool.ToolError
		if errors.As(err, &toolErr) && toolErr.Fatal() {
			a.opts.Logger.Error("agent.capability.fatal", "agent", a.name, "capability", act.Name, "error", err)
			return "", err
		}
		return fmt.Sprintf("capability %q failed: %v", act.Name, err), nil
	}

	rendered, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("capability %q returned an unserializable result", act.Name), nil
	}
	a.opts.Logger.Debug("agent.capability.success", "agent", a.name, "capability", act.Name, "step", stepNum)
	return string(rendered), nil
}

// loopInstructions combines role instructions, the capability listing
// and the step protocol into the system prompt.
func (a *Agent) loopInstructions() string {
	var sb strings.Builder
	sb.WriteString(a.role.Instructions)
	sb.WriteString("\n\n")

	if a.opts.Tools != nil && len(a.opts.Tools.Names()) > 0 {
		sb.WriteString("Available capabilities:\n")
		for _, name := range a.opts.Tools.Names() {
			if t, ok := a.opts.Tools.Get(name); ok {
				fmt.Fprintf(&sb, "- %s: %s\n", name, t.Description())
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString(`On every turn respond with exactly one JSON object, nothing else.
To use a capability: {"thought": "...", "action": {"name": "...", "args": {...}}}
To finish: {"thought": "...", "final": "your answer"}`)
	return sb.String()
}
