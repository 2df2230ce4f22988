package tool

import (
	"fmt"
	"time"

	"github.com/swarmgate/swarmgate/core"
	"github.com/swarmgate/swarmgate/logging"
)

// MemoryTool exposes the caller's domain-scoped memory to the model.
// All access goes through the ToolContext's MemoryScope, so the tool can
// only ever touch the invoking agent's own domain plus shared.
type MemoryTool struct {
	name        string
	description string
}

// NewMemoryTool creates the built-in memory tool. Supported operations:
// store (key + content) and search (query + optional limit).
func NewMemoryTool() *MemoryTool {
	return &MemoryTool{
		name: "memory",
		description: "Stores and retrieves notes in the agent's memory domain. " +
			"Supports operations: store (key, content), search (query, limit).",
	}
}

// Name returns the tool identifier.
func (t *MemoryTool) Name() string {
	return t.name
}

// Description returns the tool description.
func (t *MemoryTool) Description() string {
	return t.description
}

// Parameters returns the JSON schema for tool parameters.
func (t *MemoryTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type":        "string",
				"enum":        []string{"store", "search"},
				"description": "The memory operation to perform",
			},
			"key": map[string]any{
				"type":        "string",
				"description": "Key for store operations",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Content for store operations",
			},
			"query": map[string]any{
				"type":        "string",
				"description": "Query for search operations",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of search results",
			},
		},
		"required": []string{"operation"},
	}
}

// Call dispatches to the requested memory operation.
func (t *MemoryTool) Call(toolCtx *core.ToolContext, args map[string]any) (result any, err error) {
	start := time.Now()
	defer func() {
		if tl, ok := toolCtx.Logger().(logging.ToolCallLogger); ok {
			tl.LogToolCall(t.name, time.Since(start), err)
		}
	}()

	scope := toolCtx.Memory()
	if scope == nil {
		return nil, NewToolError(t.name, "no memory scope attached", CodeExecutionError)
	}

	op, _ := args["operation"].(string)
	switch op {
	case "store":
		key, _ := args["key"].(string)
		content, _ := args["content"].(string)
		if key == "" || content == "" {
			return nil, NewToolError(t.name, "store requires key and content", CodeValidationError)
		}
		if err := scope.Write(toolCtx.Context(), key, content); err != nil {
			return nil, err
		}
		return map[string]any{"stored": key, "domain": scope.Domain()}, nil

	case "search":
		query, _ := args["query"].(string)
		if query == "" {
			return nil, NewToolError(t.name, "search requires query", CodeValidationError)
		}
		limit := 10
		if f, ok := args["limit"].(float64); ok && f > 0 {
			limit = int(f)
		}
		results, err := scope.Read(toolCtx.Context(), query, limit)
		if err != nil {
			return nil, err
		}
		return results, nil

	default:
		return nil, NewToolError(t.name, fmt.Sprintf("unknown operation %q", op), CodeValidationError)
	}
}
