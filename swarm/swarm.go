// Package swarm coordinates groups of role-specialized agents. A task
// either goes to a single leader agent or through the full staged
// pipeline (analysts in parallel, then a strategist, then a validator),
// with automatic escalation from leader to full swarm when the leader's
// confidence is too low.
package swarm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/swarmgate/swarmgate/agent"
	"github.com/swarmgate/swarmgate/core"
	"github.com/swarmgate/swarmgate/logging"
	"github.com/swarmgate/swarmgate/memory"
	"github.com/swarmgate/swarmgate/router"
	"github.com/swarmgate/swarmgate/tool"
)

// Mode selects how a task is executed.
type Mode string

const (
	// ModeLeader runs the task on a single coordinator agent.
	ModeLeader Mode = "leader"
	// ModeFullSwarm runs the full analyst/strategist/validator pipeline.
	ModeFullSwarm Mode = "full-swarm"
)

// Task is a unit of work submitted to the swarm.
type Task struct {
	ID          string
	Description string
	// Mode selects leader or full-swarm execution.
	Mode Mode
	// ModeExplicit marks the mode as caller-chosen. An explicit leader
	// mode is never auto-escalated.
	ModeExplicit bool
	// Domain is the memory domain the task operates in. Empty means
	// shared.
	Domain        string
	CorrelationID string
}

// Fragment is one agent's contribution to a swarm result.
type Fragment struct {
	Source string `json:"source"`
	Text   string `json:"text"`
	Err    error  `json:"-"`
}

// Result is the outcome of a swarm execution.
type Result struct {
	Text       string
	Fragments  []Fragment
	Stage      string
	Mode       Mode
	Escalated  bool
	Partial    bool
	Confidence float64
	ServedBy   core.ServedBy
}

// Options configures a Coordinator.
type Options struct {
	// AnalystCount is the number of analysts fanned out in the first
	// stage. Defaults to 3.
	AnalystCount int
	// MaxConcurrency bounds parallel analyst execution. Defaults to
	// AnalystCount.
	MaxConcurrency int
	// EscalationThreshold is the leader confidence below which a
	// non-explicit leader task escalates to the full swarm. Defaults
	// to 0.5.
	EscalationThreshold float64
	// Roles overrides the built-in role catalog.
	Roles map[string]agent.Role
	// Tools is the capability set handed to loop agents.
	Tools *tool.Registry
	// Logger receives swarm events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Coordinator executes tasks against a set of role-specialized agents.
type Coordinator struct {
	router *router.Router
	gate   *memory.Gate
	opts   Options
}

// NewCoordinator creates a swarm coordinator on top of the model router
// and the memory gate.
func NewCoordinator(r *router.Router, gate *memory.Gate, optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		AnalystCount:        3,
		EscalationThreshold: 0.5,
		Roles:               agent.BuiltinRoles(),
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.AnalystCount <= 0 {
		opts.AnalystCount = 3
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = opts.AnalystCount
	}
	if opts.Roles == nil {
		opts.Roles = agent.BuiltinRoles()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Coordinator{router: r, gate: gate, opts: opts}
}

// Execute runs the task. A leader task whose confidence falls below the
// escalation threshold is retried on the full swarm unless the caller
// pinned the mode explicitly. Cancellation mid-pipeline returns whatever
// completed along with *core.CancelledError.
func (c *Coordinator) Execute(ctx context.Context, task Task) (*Result, error) {
	if task.ID == "" {
		task.ID = core.NewID()
	}
	mode := task.Mode
	if mode == "" {
		mode = ModeLeader
	}

	start := time.Now()
	c.opts.Logger.Info("swarm.task.start", "task", task.ID, "mode", string(mode), "explicit", task.ModeExplicit)

	if mode == ModeFullSwarm {
		res, err := c.runPipeline(ctx, task)
		c.logDone(task, res, start, err)
		return res, err
	}

	res, err := c.runLeader(ctx, task)
	if err != nil {
		c.logDone(task, res, start, err)
		return res, err
	}

	if !task.ModeExplicit && res.Confidence < c.opts.EscalationThreshold {
		c.opts.Logger.Info("swarm.escalate", "task", task.ID,
			"confidence", res.Confidence, "threshold", c.opts.EscalationThreshold)
		full, err := c.runPipeline(ctx, task)
		if full != nil {
			full.Escalated = true
		}
		c.logDone(task, full, start, err)
		return full, err
	}

	c.logDone(task, res, start, nil)
	return res, nil
}

func (c *Coordinator) logDone(task Task, res *Result, start time.Time, err error) {
	dur := time.Since(start)
	if err != nil {
		c.opts.Logger.Warn("swarm.task.done", "task", task.ID, "duration_ms", dur.Milliseconds(), "error", err)
		return
	}
	c.opts.Logger.Info("swarm.task.done", "task", task.ID, "duration_ms", dur.Milliseconds(), "stage", res.Stage, "partial", res.Partial)
}

func (c *Coordinator) runLeader(ctx context.Context, task Task) (*Result, error) {
	leader, err := c.newAgent("leader", agent.RoleCoordinator, task)
	if err != nil {
		return nil, err
	}

	out, err := leader.Run(ctx, agent.RunInput{Task: task.Description, CorrelationID: task.CorrelationID})
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:       out.Text,
		Stage:      "leader",
		Mode:       ModeLeader,
		Confidence: out.Confidence,
		ServedBy:   out.ServedBy,
		Fragments:  []Fragment{{Source: leader.Name(), Text: out.Text}},
	}, nil
}

// runPipeline executes the staged full-swarm flow. Each stage consumes
// the previous stage's output; a stage failure degrades to the previous
// stage's output marked partial instead of losing the whole run.
func (c *Coordinator) runPipeline(ctx context.Context, task Task) (*Result, error) {
	fragments, served, err := c.runAnalysts(ctx, task)
	if ctxErr := cancelledResult(ctx, task, nil); ctxErr != nil {
		return &Result{Stage: "analysts", Mode: ModeFullSwarm, Partial: true, Fragments: fragments}, ctxErr
	}
	if err != nil {
		return nil, err
	}

	analysis := renderFragments(fragments)
	result := &Result{
		Text:      analysis,
		Fragments: fragments,
		Stage:     "analysts",
		Mode:      ModeFullSwarm,
		ServedBy:  served,
	}

	synthesis, err := c.runStage(ctx, task, agent.RoleStrategist,
		fmt.Sprintf("Task:\n%s\n\nAnalyses:\n%s", task.Description, analysis))
	if err != nil {
		if ctxErr := cancelledResult(ctx, task, result); ctxErr != nil {
			result.Partial = true
			return result, ctxErr
		}
		c.opts.Logger.Warn("swarm.stage.degraded", "task", task.ID, "stage", "strategist", "error", err)
		result.Partial = true
		return result, nil
	}
	result.Text = synthesis.Text
	result.Stage = "strategist"
	result.ServedBy = synthesis.ServedBy
	result.Fragments = append(result.Fragments, Fragment{Source: "strategist", Text: synthesis.Text})

	validation, err := c.runStage(ctx, task, agent.RoleValidator,
		fmt.Sprintf("Task:\n%s\n\nProposed output:\n%s", task.Description, synthesis.Text))
	if err != nil {
		if ctxErr := cancelledResult(ctx, task, result); ctxErr != nil {
			result.Partial = true
			return result, ctxErr
		}
		c.opts.Logger.Warn("swarm.stage.degraded", "task", task.ID, "stage", "validator", "error", err)
		result.Partial = true
		return result, nil
	}
	result.Stage = "validator"
	result.Confidence = validation.Confidence
	result.ServedBy = validation.ServedBy
	result.Fragments = append(result.Fragments, Fragment{Source: "validator", Text: validation.Text})

	return result, nil
}

// runAnalysts fans out the analyst stage with bounded concurrency. A
// single analyst failure is recorded in its fragment; the stage fails
// only when every analyst fails.
func (c *Coordinator) runAnalysts(ctx context.Context, task Task) ([]Fragment, core.ServedBy, error) {
	n := c.opts.AnalystCount
	fragments := make([]Fragment, n)
	servedBy := make([]core.ServedBy, n)

	stageStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.MaxConcurrency)

	for i := 0; i < n; i++ {
		name := fmt.Sprintf("analyst-%d", i+1)
		g.Go(func() error {
			a, err := c.newAgent(name, agent.RoleAnalyst, task)
			if err != nil {
				fragments[i] = Fragment{Source: name, Err: err}
				return nil
			}
			out, err := a.Run(gctx, agent.RunInput{Task: task.Description, CorrelationID: task.CorrelationID})
			if err != nil {
				fragments[i] = Fragment{Source: name, Err: err}
				return nil
			}
			fragments[i] = Fragment{Source: name, Text: out.Text}
			servedBy[i] = out.ServedBy
			return nil
		})
	}
	_ = g.Wait()

	var ok []Fragment
	var served core.ServedBy
	var firstErr error
	for i, f := range fragments {
		if f.Err != nil {
			if firstErr == nil {
				firstErr = f.Err
			}
			c.opts.Logger.Warn("swarm.analyst.failed", "task", task.ID, "analyst", f.Source, "error", f.Err)
			continue
		}
		ok = append(ok, f)
		served = servedBy[i]
	}
	var stageErr error
	if len(ok) == 0 {
		stageErr = fmt.Errorf("analyst stage failed: %w", firstErr)
	}
	c.logStage("analysts", n, stageStart, stageErr)
	if stageErr != nil {
		return nil, core.ServedBy{}, stageErr
	}
	return ok, served, nil
}

func (c *Coordinator) runStage(ctx context.Context, task Task, roleName, input string) (*agent.Result, error) {
	start := time.Now()
	a, err := c.newAgent(roleName, roleName, task)
	if err != nil {
		c.logStage(roleName, 1, start, err)
		return nil, err
	}
	out, err := a.Run(ctx, agent.RunInput{Task: input, CorrelationID: task.CorrelationID})
	c.logStage(roleName, 1, start, err)
	return out, err
}

// logStage reports stage metrics when the configured logger can record
// them.
func (c *Coordinator) logStage(stage string, agents int, start time.Time, err error) {
	if sl, ok := c.opts.Logger.(logging.StageLogger); ok {
		sl.LogStageExecution(stage, agents, time.Since(start), err)
	}
}

func (c *Coordinator) newAgent(name, roleName string, task Task) (*agent.Agent, error) {
	role, ok := c.opts.Roles[roleName]
	if !ok {
		return nil, fmt.Errorf("swarm: unknown role %q", roleName)
	}

	domain := task.Domain
	if domain == "" {
		domain = role.Domain
	}
	if domain == "" {
		domain = memory.DomainShared
	}

	var scope core.MemoryScope
	if c.gate != nil {
		s, err := c.gate.Scope(domain)
		if err != nil {
			return nil, err
		}
		scope = s
	}

	return agent.New(name, role, c.router, func(o *agent.Options) {
		o.Tools = c.opts.Tools
		o.Memory = scope
		o.Logger = c.opts.Logger
	})
}

// cancelledResult converts a dead context into *core.CancelledError
// carrying whatever partial output exists.
func cancelledResult(ctx context.Context, task Task, partial *Result) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var text any
	if partial != nil {
		text = partial.Text
	}
	return &core.CancelledError{CorrelationID: task.CorrelationID, Partial: text}
}

// renderFragments concatenates analyst outputs with source attribution.
func renderFragments(fragments []Fragment) string {
	var sb strings.Builder
	for i, f := range fragments {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%s]\n%s", f.Source, f.Text)
	}
	return sb.String()
}
