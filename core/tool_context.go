package core

import (
	"context"

	"github.com/swarmgate/swarmgate/logging"
)

// ToolContext is the constrained surface handed to tool implementations by a
// reasoning agent. It exposes the invocation's context, correlation data and
// the agent's domain-scoped memory handle and nothing else, so a tool cannot
// reach outside the agent's declared capability set.
type ToolContext struct {
	ctx           context.Context
	correlationID string
	agentName     string
	callID        string
	memory        MemoryScope
	logger        logging.Logger
}

// NewToolContext builds a tool context for one tool invocation. A nil logger
// is replaced with a no-op so tools can always log.
func NewToolContext(ctx context.Context, correlationID, agentName, callID string, memory MemoryScope, logger logging.Logger) *ToolContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ToolContext{
		ctx:           ctx,
		correlationID: correlationID,
		agentName:     agentName,
		callID:        callID,
		memory:        memory,
		logger:        logger,
	}
}

// Context returns the context governing the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// CorrelationID returns the dispatch correlation id.
func (tc *ToolContext) CorrelationID() string { return tc.correlationID }

// AgentName returns the invoking agent's name.
func (tc *ToolContext) AgentName() string { return tc.agentName }

// CallID returns the identifier correlating the model's action request with
// this tool execution.
func (tc *ToolContext) CallID() string { return tc.callID }

// Memory returns the agent's domain-scoped memory handle, or nil when the
// agent has no memory capability.
func (tc *ToolContext) Memory() MemoryScope { return tc.memory }

// Logger returns the invocation logger.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }
