package swarm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmgate/swarmgate/agent"
	"github.com/swarmgate/swarmgate/core"
	"github.com/swarmgate/swarmgate/logging"
	"github.com/swarmgate/swarmgate/memory"
	"github.com/swarmgate/swarmgate/model"
	"github.com/swarmgate/swarmgate/router"
)

type stubSet struct {
	coordinator *model.StubModel
	analyst     *model.StubModel
	strategist  *model.StubModel
	validator   *model.StubModel
	router      *router.Router
}

func newStubSet() *stubSet {
	s := &stubSet{
		coordinator: model.NewStubModel("coordinator-model", "stub"),
		analyst:     model.NewStubModel("analyst-model", "stub"),
		strategist:  model.NewStubModel("strategist-model", "stub"),
		validator:   model.NewStubModel("validator-model", "stub"),
	}
	s.router = router.New()
	s.router.Bind(agent.RoleCoordinator, s.coordinator)
	s.router.Bind(agent.RoleAnalyst, s.analyst)
	s.router.Bind(agent.RoleStrategist, s.strategist)
	s.router.Bind(agent.RoleValidator, s.validator)
	return s
}

func newTestCoordinator(s *stubSet, optFns ...func(o *Options)) *Coordinator {
	gate := memory.NewGate(memory.NewInMemoryStore())
	opts := append([]func(o *Options){func(o *Options) {
		o.AnalystCount = 2
	}}, optFns...)
	return NewCoordinator(s.router, gate, opts...)
}

func TestLeaderMode(t *testing.T) {
	s := newStubSet()
	s.coordinator.Script("Short answer.\nconfidence: 0.9")
	c := newTestCoordinator(s)

	res, err := c.Execute(context.Background(), Task{Description: "quick question"})
	require.NoError(t, err)
	assert.Equal(t, "Short answer.", res.Text)
	assert.Equal(t, "leader", res.Stage)
	assert.Equal(t, ModeLeader, res.Mode)
	assert.False(t, res.Escalated)
	assert.Equal(t, "coordinator-model", res.ServedBy.Model)
	assert.Equal(t, 0, s.analyst.Calls())
}

func TestLeaderEscalatesOnLowConfidence(t *testing.T) {
	s := newStubSet()
	s.coordinator.Script("Not sure.\nconfidence: 0.2")
	s.analyst.Script("analysis fragment")
	s.strategist.Script("synthesized recommendation")
	s.validator.Script("checks out\nconfidence: 0.95")
	c := newTestCoordinator(s)

	res, err := c.Execute(context.Background(), Task{Description: "hard question"})
	require.NoError(t, err)
	assert.True(t, res.Escalated)
	assert.Equal(t, "validator", res.Stage)
	assert.Equal(t, "synthesized recommendation", res.Text)
	assert.Equal(t, 0.95, res.Confidence)
	assert.Equal(t, 2, s.analyst.Calls())
}

func TestExplicitLeaderModeNeverEscalates(t *testing.T) {
	s := newStubSet()
	s.coordinator.Script("Not sure.\nconfidence: 0.2")
	c := newTestCoordinator(s)

	res, err := c.Execute(context.Background(), Task{
		Description:  "hard question",
		Mode:         ModeLeader,
		ModeExplicit: true,
	})
	require.NoError(t, err)
	assert.False(t, res.Escalated)
	assert.Equal(t, "leader", res.Stage)
	assert.Equal(t, 0, s.analyst.Calls())
}

func TestFullSwarmPipeline(t *testing.T) {
	s := newStubSet()
	s.analyst.Script("observed facts")
	s.strategist.Script("the recommendation")
	s.validator.Script("consistent\nconfidence: 0.8")
	c := newTestCoordinator(s)

	res, err := c.Execute(context.Background(), Task{
		Description: "research question",
		Mode:        ModeFullSwarm,
	})
	require.NoError(t, err)
	assert.Equal(t, "the recommendation", res.Text)
	assert.Equal(t, "validator", res.Stage)
	assert.Equal(t, 0.8, res.Confidence)
	assert.False(t, res.Partial)
	assert.Equal(t, "validator-model", res.ServedBy.Model)
	assert.Equal(t, 0, s.coordinator.Calls(), "explicit full-swarm bypasses the leader")

	// Two analysts, the strategist and the validator each contribute an
	// attributed fragment.
	require.Len(t, res.Fragments, 4)
	sources := make([]string, 0, len(res.Fragments))
	for _, f := range res.Fragments {
		sources = append(sources, f.Source)
	}
	assert.Contains(t, sources, "analyst-1")
	assert.Contains(t, sources, "analyst-2")
	assert.Contains(t, sources, "strategist")
	assert.Contains(t, sources, "validator")
}

func TestStrategistReceivesAttributedAnalyses(t *testing.T) {
	s := newStubSet()
	s.analyst.Script("raw analysis")
	s.strategist.Script("synthesis")
	s.validator.Script("fine\nconfidence: 0.9")
	c := newTestCoordinator(s)

	_, err := c.Execute(context.Background(), Task{Description: "topic", Mode: ModeFullSwarm})
	require.NoError(t, err)

	// The strategist prompt carries each analyst's output under its
	// source label.
	fragments := []Fragment{{Source: "analyst-1", Text: "raw analysis"}}
	rendered := renderFragments(fragments)
	assert.Contains(t, rendered, "[analyst-1]")
	assert.Contains(t, rendered, "raw analysis")
}

func TestValidatorFailureDegradesToStrategistOutput(t *testing.T) {
	s := newStubSet()
	s.analyst.Script("analysis")
	s.strategist.Script("strategy text")
	s.validator.AlwaysFail(errors.New("validator models offline"))
	c := newTestCoordinator(s)

	res, err := c.Execute(context.Background(), Task{Description: "q", Mode: ModeFullSwarm})
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, "strategist", res.Stage)
	assert.Equal(t, "strategy text", res.Text)
}

func TestStrategistFailureDegradesToAnalystOutput(t *testing.T) {
	s := newStubSet()
	s.analyst.Script("analysis only")
	s.strategist.AlwaysFail(errors.New("offline"))
	c := newTestCoordinator(s)

	res, err := c.Execute(context.Background(), Task{Description: "q", Mode: ModeFullSwarm})
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, "analysts", res.Stage)
	assert.Contains(t, res.Text, "analysis only")
	assert.Equal(t, 0, s.validator.Calls(), "the pipeline stops at the failed stage")
}

func TestSingleAnalystFailureIsTolerated(t *testing.T) {
	s := newStubSet()
	s.analyst.FailFirst(1)
	s.analyst.AddResponse("q", "surviving analysis")
	s.strategist.Script("synthesis")
	s.validator.Script("good\nconfidence: 0.9")
	c := newTestCoordinator(s, func(o *Options) {
		o.MaxConcurrency = 1
	})

	res, err := c.Execute(context.Background(), Task{Description: "q", Mode: ModeFullSwarm})
	require.NoError(t, err)
	assert.False(t, res.Partial)
	assert.Equal(t, "validator", res.Stage)
}

func TestAllAnalystsFailing(t *testing.T) {
	s := newStubSet()
	s.analyst.AlwaysFail(errors.New("offline"))
	c := newTestCoordinator(s)

	_, err := c.Execute(context.Background(), Task{Description: "q", Mode: ModeFullSwarm})
	require.Error(t, err)
}

func TestCancellationReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newStubSet()
	c := newTestCoordinator(s)

	res, err := c.Execute(ctx, Task{
		Description:   "q",
		Mode:          ModeFullSwarm,
		CorrelationID: "corr-9",
	})
	var cancelled *core.CancelledError
	require.ErrorAs(t, err, &cancelled)
	assert.Equal(t, "corr-9", cancelled.CorrelationID)
	require.NotNil(t, res)
	assert.True(t, res.Partial)
	assert.Equal(t, core.KindCancelled, core.ClassifyError(err))
}

// stageMetricsLogger records pipeline stages through the optional
// logging.StageLogger upgrade.
type stageMetricsLogger struct {
	logging.NoOpLogger
	mu     sync.Mutex
	stages []string
}

func (l *stageMetricsLogger) LogStageExecution(stage string, agents int, _ time.Duration, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	outcome := "ok"
	if err != nil {
		outcome = "err"
	}
	l.stages = append(l.stages, fmt.Sprintf("%s/%d/%s", stage, agents, outcome))
}

func TestPipelineRecordsStageMetrics(t *testing.T) {
	s := newStubSet()
	s.analyst.Script("observed facts")
	s.strategist.Script("the recommendation")
	s.validator.Script("consistent\nconfidence: 0.8")
	rec := &stageMetricsLogger{}
	c := newTestCoordinator(s, func(o *Options) {
		o.Logger = rec
	})

	_, err := c.Execute(context.Background(), Task{
		Description: "research question",
		Mode:        ModeFullSwarm,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"analysts/2/ok", "strategist/1/ok", "validator/1/ok"}, rec.stages)
}
