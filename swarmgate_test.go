package swarmgate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmgate/swarmgate/action"
	"github.com/swarmgate/swarmgate/agent"
	"github.com/swarmgate/swarmgate/core"
	"github.com/swarmgate/swarmgate/engine"
	"github.com/swarmgate/swarmgate/model"
)

func TestFacadeEndToEnd(t *testing.T) {
	gate := New()

	stub := model.NewStubModel("stub-1", "stub").Script("All looks good.\nconfidence: 0.9")
	gate.BindRole(agent.RoleCoordinator, stub)

	require.NoError(t, gate.RegisterAction(action.Schema{
		Name:        "research.web_search",
		Description: "Search the web for information on a topic",
		Parameters: []action.Parameter{
			{Name: "query", Type: "string", Required: true},
		},
		Handler: action.HandlerRef{Kind: action.HandlerSwarm, Name: "research"},
	}))

	env := gate.Dispatch(context.Background(), core.DispatchRequest{
		ActionName: "research.web_search",
		Arguments:  map[string]any{"query": "fallback routing"},
		Mode:       core.ModeHintLeader,
	})
	require.Equal(t, core.StatusOK, env.Status)
	require.NotNil(t, env.ServedBy)
	assert.Equal(t, "stub-1", env.ServedBy.Model)
}

func TestFacadeDirectHandler(t *testing.T) {
	gate := New()

	require.NoError(t, gate.RegisterAction(action.Schema{
		Name:    "echo",
		Handler: action.HandlerRef{Kind: action.HandlerDirect, Name: "echo"},
		Parameters: []action.Parameter{
			{Name: "text", Type: "string", Required: true},
		},
	}))
	gate.RegisterHandler("echo", func(_ *engine.HandlerContext, args map[string]any) (any, error) {
		return args["text"], nil
	})

	env := gate.DispatchIntent(context.Background(), "echo")
	assert.Equal(t, core.StatusError, env.Status, "intent with no arguments cannot bind required parameters")

	env = gate.Dispatch(context.Background(), core.DispatchRequest{
		ActionName: "echo",
		Arguments:  map[string]any{"text": "hello"},
	})
	require.Equal(t, core.StatusOK, env.Status)
	assert.Equal(t, "hello", env.Payload)
}

func TestFacadeMemoryAccess(t *testing.T) {
	gate := New()
	ctx := context.Background()

	require.NoError(t, gate.Memory().WriteShared(ctx, "greeting", "hello from shared"))
	results, err := gate.Memory().Read(ctx, "technical", "greeting", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hello from shared", results[0].Content)
}
