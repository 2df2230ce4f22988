// Package engine is the dispatch core. It resolves an incoming request
// to a registered action, binds and validates arguments, routes the
// bound action to a direct handler or an agent swarm, and returns a
// normalized response envelope for every outcome.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/swarmgate/swarmgate/action"
	"github.com/swarmgate/swarmgate/core"
	"github.com/swarmgate/swarmgate/logging"
	"github.com/swarmgate/swarmgate/memory"
	"github.com/swarmgate/swarmgate/swarm"
)

// HandlerContext is passed to direct handlers. It records completed
// steps so a failing handler can report how far it got, and exposes the
// action's memory scope.
type HandlerContext struct {
	ctx           context.Context
	correlationID string
	memory        core.MemoryScope
	logger        logging.Logger

	mu    sync.Mutex
	steps []string
}

// Context returns the dispatch context.
func (h *HandlerContext) Context() context.Context { return h.ctx }

// CorrelationID returns the dispatch correlation id.
func (h *HandlerContext) CorrelationID() string { return h.correlationID }

// Memory returns the action's domain-scoped memory. May be nil.
func (h *HandlerContext) Memory() core.MemoryScope { return h.memory }

// Logger returns the dispatch logger.
func (h *HandlerContext) Logger() logging.Logger { return h.logger }

// StepDone records a completed step. On failure the recorded steps are
// reported in the error envelope.
func (h *HandlerContext) StepDone(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.steps = append(h.steps, name)
}

func (h *HandlerContext) completedSteps() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.steps))
	copy(out, h.steps)
	return out
}

// Handler executes a direct action with bound, validated arguments.
type Handler func(hctx *HandlerContext, args map[string]any) (any, error)

// Formatter post-processes a finished envelope before it is returned.
// It runs outside the dispatch pipeline: a formatter can reshape the
// payload but never change the status, error kind or correlation id.
type Formatter func(env core.Envelope) core.Envelope

// Options configures an Engine.
type Options struct {
	// ConfidenceThreshold is the minimum intent match confidence.
	// Defaults to 0.6.
	ConfidenceThreshold float64
	// Classifier resolves intents. Defaults to the registry classifier.
	Classifier Classifier
	// Formatter optionally reshapes outgoing envelopes.
	Formatter Formatter
	// Logger receives engine events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Engine wires the action registry, direct handlers and the swarm
// coordinator into a single dispatch pipeline.
type Engine struct {
	registry    *action.Registry
	coordinator *swarm.Coordinator
	gate        *memory.Gate
	opts        Options

	mu       sync.Mutex
	handlers map[string]Handler
	active   map[string]context.CancelFunc
}

// New creates an Engine over the registry and swarm coordinator.
func New(registry *action.Registry, coordinator *swarm.Coordinator, gate *memory.Gate, optFns ...func(o *Options)) *Engine {
	opts := Options{
		ConfidenceThreshold: 0.6,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Classifier == nil {
		opts.Classifier = NewRegistryClassifier(registry)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Engine{
		registry:    registry,
		coordinator: coordinator,
		gate:        gate,
		opts:        opts,
		handlers:    make(map[string]Handler),
		active:      make(map[string]context.CancelFunc),
	}
}

// RegisterHandler binds a direct handler name to its implementation.
// Action schemas with handler kind "direct" reference these names.
func (e *Engine) RegisterHandler(name string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = h
}

// Cancel aborts the in-flight dispatch with the given correlation id.
// It reports whether such a dispatch existed.
func (e *Engine) Cancel(correlationID string) bool {
	e.mu.Lock()
	cancel, ok := e.active[correlationID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Dispatch runs the full pipeline for one request and always returns an
// envelope; internal errors surface as classified error envelopes, never
// as raw errors or panics across this boundary.
func (e *Engine) Dispatch(ctx context.Context, req core.DispatchRequest) core.Envelope {
	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = core.NewID()
	}

	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.active[correlationID] = cancel
	e.mu.Unlock()
	defer func() {
		cancel()
		e.mu.Lock()
		delete(e.active, correlationID)
		e.mu.Unlock()
	}()

	start := time.Now()
	env := e.dispatch(ctx, correlationID, req)
	e.opts.Logger.Info("engine.dispatch.done",
		"correlation_id", correlationID,
		"status", string(env.Status),
		"duration_ms", time.Since(start).Milliseconds())

	if e.opts.Formatter != nil {
		env = e.applyFormatter(env)
	}
	return env
}

func (e *Engine) dispatch(ctx context.Context, correlationID string, req core.DispatchRequest) core.Envelope {
	schema, err := e.resolve(ctx, req)
	if err != nil {
		return core.ErrorEnvelope(correlationID, err)
	}
	e.opts.Logger.Debug("engine.action.resolved", "correlation_id", correlationID, "action", schema.Name)

	bound, err := action.Bind(schema, req.Arguments)
	if err != nil {
		return core.ErrorEnvelope(correlationID, err)
	}

	switch schema.Handler.Kind {
	case action.HandlerSwarm:
		return e.dispatchSwarm(ctx, correlationID, req, schema, bound)
	default:
		return e.dispatchDirect(ctx, correlationID, schema, bound)
	}
}

// resolve turns the request into a concrete action schema. An explicit
// action name wins over intent classification.
func (e *Engine) resolve(ctx context.Context, req core.DispatchRequest) (action.Schema, error) {
	if req.ActionName != "" {
		return e.registry.Resolve(req.ActionName)
	}

	name, confidence, err := e.opts.Classifier.Classify(ctx, req.Intent)
	if err != nil {
		return action.Schema{}, err
	}
	if name == "" || confidence < e.opts.ConfidenceThreshold {
		return action.Schema{}, &core.LowConfidenceError{
			Intent:     req.Intent,
			Action:     name,
			Confidence: confidence,
			Threshold:  e.opts.ConfidenceThreshold,
		}
	}
	return e.registry.Resolve(name)
}

func (e *Engine) dispatchDirect(ctx context.Context, correlationID string, schema action.Schema, args map[string]any) core.Envelope {
	e.mu.Lock()
	handler, ok := e.handlers[schema.Handler.Name]
	e.mu.Unlock()
	if !ok {
		return core.ErrorEnvelope(correlationID, &core.HandlerExecutionError{
			Action: schema.Name,
			Err:    fmt.Errorf("no handler registered as %q", schema.Handler.Name),
		})
	}

	hctx := &HandlerContext{
		ctx:           ctx,
		correlationID: correlationID,
		memory:        e.scopeFor(schema),
		logger:        e.opts.Logger,
	}

	payload, err := handler(hctx, args)
	if err != nil {
		if ctx.Err() != nil {
			return core.ErrorEnvelope(correlationID, &core.CancelledError{CorrelationID: correlationID, Partial: payload})
		}
		return core.ErrorEnvelope(correlationID, &core.HandlerExecutionError{
			Action:         schema.Name,
			CompletedSteps: hctx.completedSteps(),
			Err:            err,
		})
	}
	return core.OKEnvelope(correlationID, payload)
}

func (e *Engine) dispatchSwarm(ctx context.Context, correlationID string, req core.DispatchRequest, schema action.Schema, args map[string]any) core.Envelope {
	task := swarm.Task{
		ID:            schema.Handler.Name + "/" + correlationID,
		Description:   renderTask(req, schema, args),
		Domain:        schema.Domain,
		CorrelationID: correlationID,
	}
	switch req.Mode {
	case core.ModeHintLeader:
		task.Mode, task.ModeExplicit = swarm.ModeLeader, true
	case core.ModeHintFullSwarm:
		task.Mode, task.ModeExplicit = swarm.ModeFullSwarm, true
	}

	res, err := e.coordinator.Execute(ctx, task)
	if err != nil {
		return core.ErrorEnvelope(correlationID, err)
	}

	env := core.OKEnvelope(correlationID, SwarmPayload{
		Text:       res.Text,
		Stage:      res.Stage,
		Mode:       string(res.Mode),
		Escalated:  res.Escalated,
		Confidence: res.Confidence,
		Fragments:  res.Fragments,
	})
	env.Partial = res.Partial
	if res.ServedBy != (core.ServedBy{}) {
		served := res.ServedBy
		env.ServedBy = &served
	}
	return env
}

// SwarmPayload is the success payload for swarm-handled actions.
type SwarmPayload struct {
	Text       string           `json:"text"`
	Stage      string           `json:"stage"`
	Mode       string           `json:"mode"`
	Escalated  bool             `json:"escalated,omitempty"`
	Confidence float64          `json:"confidence,omitempty"`
	Fragments  []swarm.Fragment `json:"fragments,omitempty"`
}

// applyFormatter runs the formatter while pinning the fields it must
// not change.
func (e *Engine) applyFormatter(env core.Envelope) core.Envelope {
	out := e.opts.Formatter(env)
	out.Status = env.Status
	out.CorrelationID = env.CorrelationID
	if env.Error != nil {
		if out.Error == nil {
			out.Error = env.Error
		} else {
			out.Error.Kind = env.Error.Kind
		}
	}
	return out
}

func (e *Engine) scopeFor(schema action.Schema) core.MemoryScope {
	if e.gate == nil {
		return nil
	}
	domain := schema.Domain
	if domain == "" {
		domain = memory.DomainShared
	}
	scope, err := e.gate.Scope(domain)
	if err != nil {
		return nil
	}
	return scope
}

// renderTask builds the task description handed to the swarm from the
// request and its bound arguments.
func renderTask(req core.DispatchRequest, schema action.Schema, args map[string]any) string {
	desc := req.Intent
	if desc == "" {
		desc = schema.Description
	}
	if desc == "" {
		desc = schema.Name
	}
	if len(args) == 0 {
		return desc
	}

	out := desc + "\n\nArguments:"
	for _, p := range schema.Parameters {
		if v, ok := args[p.Name]; ok {
			out += fmt.Sprintf("\n- %s: %v", p.Name, v)
		}
	}
	return out
}
