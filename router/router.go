// Package router selects a concrete model for each agent role. Every
// role binds an ordered fallback chain of models; the router walks the
// chain, skipping entries whose circuit breaker rejects the call, and
// reports which entry ultimately served the request.
package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/swarmgate/swarmgate/core"
	"github.com/swarmgate/swarmgate/logging"
	"github.com/swarmgate/swarmgate/model"
)

// Options configures a Router.
type Options struct {
	// CallTimeout bounds each individual model call. Zero disables the
	// per-call timeout.
	CallTimeout time.Duration
	// Breaker customizes the breaker attached to each route entry.
	Breaker []func(o *BreakerOptions)
	// Allowlist, when non-empty, restricts Bind to the named models.
	// Models outside the allowlist are dropped from the chain.
	Allowlist []string
	// Logger receives routing events. Defaults to NoOpLogger.
	Logger logging.Logger
}

type entry struct {
	model   model.Model
	breaker *Breaker
}

// Router maps agent roles to fallback chains of models.
type Router struct {
	mu     sync.RWMutex
	routes map[string][]*entry
	opts   Options
}

// New creates an empty Router.
func New(optFns ...func(o *Options)) *Router {
	opts := Options{
		CallTimeout: 60 * time.Second,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Router{routes: make(map[string][]*entry), opts: opts}
}

// Bind registers the fallback chain for a role, replacing any previous
// binding. Order is significant: the first model is the preferred one.
// Each entry gets its own circuit breaker. Models filtered out by the
// allowlist are skipped.
func (r *Router) Bind(role string, models ...model.Model) {
	entries := make([]*entry, 0, len(models))
	for _, m := range models {
		if !r.allowed(m) {
			r.opts.Logger.Warn("router.bind.filtered", "role", role, "model", m.Info().Name)
			continue
		}
		entries = append(entries, &entry{
			model:   m,
			breaker: NewBreaker(r.opts.Breaker...),
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[role] = entries
}

// Roles returns the roles with a bound chain.
func (r *Router) Roles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := make([]string, 0, len(r.routes))
	for role := range r.routes {
		roles = append(roles, role)
	}
	return roles
}

// Call walks the role's fallback chain in order and returns the first
// successful response along with the identity of the model that served
// it. Entries whose breaker rejects the call are skipped without
// touching the model. When every entry is skipped or fails, Call
// returns *core.AllProvidersExhaustedError listing each attempt.
func (r *Router) Call(ctx context.Context, role string, req model.Request) (*model.Response, core.ServedBy, error) {
	r.mu.RLock()
	entries := r.routes[role]
	r.mu.RUnlock()

	if len(entries) == 0 {
		return nil, core.ServedBy{}, fmt.Errorf("router: no models bound for role %q", role)
	}

	attempts := make([]string, 0, len(entries))
	for i, e := range entries {
		info := e.model.Info()
		label := info.Provider + "/" + info.Name

		if !e.breaker.Allow() {
			attempts = append(attempts, label+": circuit open")
			r.opts.Logger.Debug("router.entry.skipped", "role", role, "model", info.Name, "position", i)
			continue
		}

		start := time.Now()
		resp, err := r.callOne(ctx, e, req)
		if ml, ok := r.opts.Logger.(logging.ModelCallLogger); ok {
			ml.LogModelCall(role, info.Provider, info.Name, time.Since(start), err)
		}
		if err != nil {
			e.breaker.Failure()
			attempts = append(attempts, fmt.Sprintf("%s: %v", label, err))
			r.opts.Logger.Warn("router.entry.failed", "role", role, "model", info.Name, "position", i, "error", err)
			if ctx.Err() != nil {
				// The parent context is gone; trying further entries
				// would fail the same way.
				return nil, core.ServedBy{}, ctx.Err()
			}
			continue
		}

		e.breaker.Success()
		served := core.ServedBy{Provider: info.Provider, Model: info.Name}
		if i > 0 {
			r.opts.Logger.Info("router.fallback.served", "role", role, "model", info.Name, "position", i)
		}
		return resp, served, nil
	}

	return nil, core.ServedBy{}, &core.AllProvidersExhaustedError{Role: role, Attempts: attempts}
}

func (r *Router) callOne(ctx context.Context, e *entry, req model.Request) (*model.Response, error) {
	if r.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.CallTimeout)
		defer cancel()
	}
	return e.model.Generate(ctx, req)
}

// BreakerState exposes the breaker state of a chain entry, primarily
// for inspection and tests. ok is false when the role or position is
// unknown.
func (r *Router) BreakerState(role string, position int) (BreakerState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.routes[role]
	if position < 0 || position >= len(entries) {
		return StateClosed, false
	}
	return entries[position].breaker.State(), true
}

func (r *Router) allowed(m model.Model) bool {
	if len(r.opts.Allowlist) == 0 {
		return true
	}
	name := m.Info().Name
	for _, allowed := range r.opts.Allowlist {
		if allowed == name {
			return true
		}
	}
	return false
}
