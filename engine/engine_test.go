package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmgate/swarmgate/action"
	"github.com/swarmgate/swarmgate/agent"
	"github.com/swarmgate/swarmgate/core"
	"github.com/swarmgate/swarmgate/memory"
	"github.com/swarmgate/swarmgate/model"
	"github.com/swarmgate/swarmgate/router"
	"github.com/swarmgate/swarmgate/swarm"
)

type fixture struct {
	engine *Engine
	stubs  map[string]*model.StubModel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	stubs := map[string]*model.StubModel{
		agent.RoleCoordinator: model.NewStubModel("coordinator-model", "stub"),
		agent.RoleAnalyst:     model.NewStubModel("analyst-model", "stub"),
		agent.RoleStrategist:  model.NewStubModel("strategist-model", "stub"),
		agent.RoleValidator:   model.NewStubModel("validator-model", "stub"),
	}
	r := router.New()
	for role, stub := range stubs {
		r.Bind(role, stub)
	}

	gate := memory.NewGate(memory.NewInMemoryStore())
	coordinator := swarm.NewCoordinator(r, gate, func(o *swarm.Options) {
		o.AnalystCount = 2
	})

	registry := action.NewRegistry()
	require.NoError(t, registry.Register(action.Schema{
		Name:        "research.web_search",
		Description: "Search the web for information on a topic",
		Parameters: []action.Parameter{
			{Name: "query", Type: "string", Required: true},
			{Name: "limit", Type: "integer", Default: 5},
		},
		Handler: action.HandlerRef{Kind: action.HandlerSwarm, Name: "research"},
	}))
	require.NoError(t, registry.Register(action.Schema{
		Name:        "report.build",
		Description: "Build a report from collected data",
		Parameters: []action.Parameter{
			{Name: "title", Type: "string", Required: true},
		},
		Handler: action.HandlerRef{Kind: action.HandlerDirect, Name: "build_report"},
	}))

	return &fixture{
		engine: New(registry, coordinator, gate),
		stubs:  stubs,
	}
}

func TestDispatchSwarmAction(t *testing.T) {
	f := newFixture(t)
	f.stubs[agent.RoleCoordinator].Script("A validated answer.\nconfidence: 0.9")

	env := f.engine.Dispatch(context.Background(), core.DispatchRequest{
		ActionName: "research.web_search",
		Arguments:  map[string]any{"query": "golang routers"},
	})

	assert.Equal(t, core.StatusOK, env.Status)
	assert.NotEmpty(t, env.CorrelationID)
	require.NotNil(t, env.ServedBy)
	assert.Equal(t, "coordinator-model", env.ServedBy.Model)

	payload, ok := env.Payload.(SwarmPayload)
	require.True(t, ok)
	assert.Equal(t, "A validated answer.", payload.Text)
}

func TestDispatchByIntent(t *testing.T) {
	f := newFixture(t)
	f.stubs[agent.RoleCoordinator].Script("found it\nconfidence: 0.9")

	env := f.engine.Dispatch(context.Background(), core.DispatchRequest{
		Intent:    "search the web",
		Arguments: map[string]any{"query": "dispatch engines"},
	})
	assert.Equal(t, core.StatusOK, env.Status)
}

func TestDispatchLowConfidenceIntent(t *testing.T) {
	f := newFixture(t)

	env := f.engine.Dispatch(context.Background(), core.DispatchRequest{
		Intent: "order me a pizza",
	})
	assert.Equal(t, core.StatusError, env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, core.KindLowConfidence, env.Error.Kind)
}

func TestDispatchUnknownAction(t *testing.T) {
	f := newFixture(t)

	env := f.engine.Dispatch(context.Background(), core.DispatchRequest{ActionName: "no.such"})
	assert.Equal(t, core.StatusError, env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, core.KindUnknownAction, env.Error.Kind)
}

func TestDispatchMissingParameterNeverReachesHandler(t *testing.T) {
	f := newFixture(t)

	called := false
	f.engine.RegisterHandler("build_report", func(_ *HandlerContext, _ map[string]any) (any, error) {
		called = true
		return nil, nil
	})

	env := f.engine.Dispatch(context.Background(), core.DispatchRequest{
		ActionName: "report.build",
		Arguments:  map[string]any{},
	})
	assert.Equal(t, core.StatusError, env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, core.KindMissingParameter, env.Error.Kind)
	assert.False(t, called, "binding failures must short-circuit before the handler")
}

func TestDispatchDirectHandler(t *testing.T) {
	f := newFixture(t)

	f.engine.RegisterHandler("build_report", func(hctx *HandlerContext, args map[string]any) (any, error) {
		hctx.StepDone("collect")
		hctx.StepDone("render")
		return map[string]any{"title": args["title"]}, nil
	})

	env := f.engine.Dispatch(context.Background(), core.DispatchRequest{
		ActionName: "report.build",
		Arguments:  map[string]any{"title": "Q3"},
	})
	assert.Equal(t, core.StatusOK, env.Status)
	assert.Equal(t, map[string]any{"title": "Q3"}, env.Payload)
}

func TestDispatchHandlerFailureReportsCompletedSteps(t *testing.T) {
	f := newFixture(t)

	f.engine.RegisterHandler("build_report", func(hctx *HandlerContext, _ map[string]any) (any, error) {
		hctx.StepDone("collect")
		return nil, errors.New("render crashed")
	})

	env := f.engine.Dispatch(context.Background(), core.DispatchRequest{
		ActionName: "report.build",
		Arguments:  map[string]any{"title": "Q3"},
	})
	assert.Equal(t, core.StatusError, env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, core.KindHandlerExecution, env.Error.Kind)
	assert.Equal(t, []string{"collect"}, env.Error.CompletedSteps)
}

func TestDispatchMissingHandlerRegistration(t *testing.T) {
	f := newFixture(t)

	env := f.engine.Dispatch(context.Background(), core.DispatchRequest{
		ActionName: "report.build",
		Arguments:  map[string]any{"title": "Q3"},
	})
	assert.Equal(t, core.StatusError, env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, core.KindHandlerExecution, env.Error.Kind)
}

func TestDispatchAllProvidersExhausted(t *testing.T) {
	f := newFixture(t)
	for _, stub := range f.stubs {
		stub.AlwaysFail(errors.New("provider outage"))
	}

	env := f.engine.Dispatch(context.Background(), core.DispatchRequest{
		ActionName: "research.web_search",
		Arguments:  map[string]any{"query": "anything"},
		Mode:       core.ModeHintLeader,
	})
	assert.Equal(t, core.StatusError, env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, core.KindAllProvidersExhausted, env.Error.Kind)
}

func TestDispatchExplicitModeHints(t *testing.T) {
	f := newFixture(t)
	f.stubs[agent.RoleAnalyst].Script("analysis")
	f.stubs[agent.RoleStrategist].Script("synthesis")
	f.stubs[agent.RoleValidator].Script("verified\nconfidence: 0.9")

	env := f.engine.Dispatch(context.Background(), core.DispatchRequest{
		ActionName: "research.web_search",
		Arguments:  map[string]any{"query": "topic"},
		Mode:       core.ModeHintFullSwarm,
	})
	require.Equal(t, core.StatusOK, env.Status)
	payload := env.Payload.(SwarmPayload)
	assert.Equal(t, string(swarm.ModeFullSwarm), payload.Mode)
	assert.Equal(t, 0, f.stubs[agent.RoleCoordinator].Calls())
}

func TestCancelAbortsInFlightDispatch(t *testing.T) {
	f := newFixture(t)
	f.stubs[agent.RoleCoordinator].Delay(5 * time.Second)

	const corrID = "cancel-me"
	var wg sync.WaitGroup
	var env core.Envelope
	wg.Add(1)
	go func() {
		defer wg.Done()
		env = f.engine.Dispatch(context.Background(), core.DispatchRequest{
			ActionName:    "research.web_search",
			Arguments:     map[string]any{"query": "slow"},
			Mode:          core.ModeHintLeader,
			CorrelationID: corrID,
		})
	}()

	require.Eventually(t, func() bool {
		return f.engine.Cancel(corrID)
	}, time.Second, 10*time.Millisecond)

	wg.Wait()
	assert.Equal(t, core.StatusError, env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, core.KindCancelled, env.Error.Kind)
	assert.Equal(t, corrID, env.CorrelationID)

	assert.False(t, f.engine.Cancel(corrID), "finished dispatches are deregistered")
}

func TestFormatterCannotChangeOutcome(t *testing.T) {
	registry := action.NewRegistry()
	require.NoError(t, registry.Register(action.Schema{
		Name:    "noop",
		Handler: action.HandlerRef{Kind: action.HandlerDirect, Name: "noop"},
	}))

	gate := memory.NewGate(memory.NewInMemoryStore())
	eng := New(registry, nil, gate, func(o *Options) {
		o.Formatter = func(env core.Envelope) core.Envelope {
			env.Status = core.StatusOK // must be pinned back
			env.CorrelationID = "forged"
			env.Payload = "reshaped"
			return env
		}
	})

	env := eng.Dispatch(context.Background(), core.DispatchRequest{
		ActionName:    "missing.action",
		CorrelationID: "real-id",
	})
	assert.Equal(t, core.StatusError, env.Status)
	assert.Equal(t, "real-id", env.CorrelationID)
	assert.Equal(t, core.KindUnknownAction, env.Error.Kind)
	assert.Equal(t, "reshaped", env.Payload, "payload reshaping is allowed")
}

func TestRegistryClassifier(t *testing.T) {
	registry := action.NewRegistry()
	require.NoError(t, registry.Register(action.Schema{
		Name:        "research.web_search",
		Description: "Search the web for information",
		Handler:     action.HandlerRef{Kind: action.HandlerSwarm, Name: "research"},
	}))

	c := NewRegistryClassifier(registry)
	name, confidence, err := c.Classify(context.Background(), "search the web")
	require.NoError(t, err)
	assert.Equal(t, "research.web_search", name)
	assert.Greater(t, confidence, 0.5)
}
