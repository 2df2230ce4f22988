// Package swarmgate provides a high-level façade over the dispatch
// engine and its services (action registry, model router, swarm
// coordinator, memory gate & logging). Most applications interact with
// this package by:
//  1. Creating a SwarmGate via New() (optionally overriding defaults)
//  2. Registering action schemas and direct handlers
//  3. Binding model fallback chains to agent roles
//  4. Dispatching requests by action name or free-text intent
//
// The façade delegates orchestration to engine.Engine while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a
// durable memory store and a structured logger.
package swarmgate

import (
	"context"

	"github.com/swarmgate/swarmgate/action"
	"github.com/swarmgate/swarmgate/core"
	"github.com/swarmgate/swarmgate/engine"
	"github.com/swarmgate/swarmgate/logging"
	"github.com/swarmgate/swarmgate/memory"
	"github.com/swarmgate/swarmgate/model"
	"github.com/swarmgate/swarmgate/router"
	"github.com/swarmgate/swarmgate/swarm"
	"github.com/swarmgate/swarmgate/tool"
)

// Options configures the SwarmGate instance.
type Options struct {
	// MemoryStore backs the domain gate. Defaults to the in-memory
	// implementation.
	MemoryStore memory.Store

	// Tools is the capability set handed to reasoning-loop agents.
	// Defaults to a registry containing the built-in memory tool.
	Tools *tool.Registry

	// ConfidenceThreshold is the minimum intent classification
	// confidence. Zero keeps the engine default.
	ConfidenceThreshold float64

	// Router configuration (per-call timeout, breaker tuning, allowlist).
	RouterOptions []func(o *router.Options)

	// Swarm configuration (analyst count, escalation threshold, roles).
	SwarmOptions []func(o *swarm.Options)

	// Formatter optionally reshapes outgoing envelopes.
	Formatter engine.Formatter

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// SwarmGate is the high-level façade aggregating the underlying engine
// and services.
type SwarmGate struct {
	opts     Options
	registry *action.Registry
	router   *router.Router
	gate     *memory.Gate
	engine   *engine.Engine
}

// New creates a new SwarmGate instance with optional overrides. Any
// unset service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *SwarmGate {
	opts := Options{
		MemoryStore: memory.NewInMemoryStore(),
		Tools:       tool.NewRegistry(tool.NewMemoryTool()),
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	registry := action.NewRegistry()

	routerOpts := append([]func(o *router.Options){func(o *router.Options) {
		o.Logger = opts.Logger
	}}, opts.RouterOptions...)
	r := router.New(routerOpts...)

	gate := memory.NewGate(opts.MemoryStore, func(o *memory.GateOptions) {
		o.Logger = opts.Logger
	})

	swarmOpts := append([]func(o *swarm.Options){func(o *swarm.Options) {
		o.Tools = opts.Tools
		o.Logger = opts.Logger
	}}, opts.SwarmOptions...)
	coordinator := swarm.NewCoordinator(r, gate, swarmOpts...)

	eng := engine.New(registry, coordinator, gate, func(o *engine.Options) {
		if opts.ConfidenceThreshold > 0 {
			o.ConfidenceThreshold = opts.ConfidenceThreshold
		}
		o.Formatter = opts.Formatter
		o.Logger = opts.Logger
	})

	return &SwarmGate{
		opts:     opts,
		registry: registry,
		router:   r,
		gate:     gate,
		engine:   eng,
	}
}

// RegisterAction adds an action schema to the catalog.
func (g *SwarmGate) RegisterAction(s action.Schema) error { return g.registry.Register(s) }

// LoadActions registers every schema declared in a YAML catalog file.
func (g *SwarmGate) LoadActions(path string) error { return action.LoadFile(g.registry, path) }

// RegisterHandler binds a direct handler name to its implementation.
func (g *SwarmGate) RegisterHandler(name string, h engine.Handler) { g.engine.RegisterHandler(name, h) }

// BindRole registers the ordered model fallback chain for an agent role.
func (g *SwarmGate) BindRole(role string, models ...model.Model) { g.router.Bind(role, models...) }

// Dispatch runs a request through the full pipeline and returns its
// response envelope.
func (g *SwarmGate) Dispatch(ctx context.Context, req core.DispatchRequest) core.Envelope {
	return g.engine.Dispatch(ctx, req)
}

// DispatchIntent is a convenience for dispatching a bare free-text
// intent with no arguments.
func (g *SwarmGate) DispatchIntent(ctx context.Context, intent string) core.Envelope {
	return g.engine.Dispatch(ctx, core.DispatchRequest{Intent: intent})
}

// Cancel aborts the in-flight dispatch with the given correlation id.
func (g *SwarmGate) Cancel(correlationID string) bool { return g.engine.Cancel(correlationID) }

// Memory exposes the domain gate for direct reads and writes.
func (g *SwarmGate) Memory() *memory.Gate { return g.gate }
