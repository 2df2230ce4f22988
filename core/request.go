package core

// ExecModeHint is an optional caller preference for how a swarm-backed
// action should run. When supplied it overrides automatic confidence
// escalation; when empty the coordinator decides.
type ExecModeHint string

const (
	// ModeHintNone leaves the execution mode to the coordinator.
	ModeHintNone ExecModeHint = ""
	// ModeHintLeader requests single-agent execution (speed over thoroughness).
	ModeHintLeader ExecModeHint = "leader"
	// ModeHintFullSwarm requests the staged analyst→strategist→validator pipeline.
	ModeHintFullSwarm ExecModeHint = "full-swarm"
)

// DispatchRequest is the ephemeral per-call value owned by the engine for
// the duration of one dispatch. Either ActionName or Intent must be set;
// ActionName wins when both are present. It is never persisted beyond
// logging.
type DispatchRequest struct {
	// ActionName addresses a registered action directly (dotted namespace).
	ActionName string `json:"action_name,omitempty"`
	// Intent is free text resolved to an action by the configured classifier.
	Intent string `json:"intent_text,omitempty"`
	// Arguments are the caller-supplied raw argument values.
	Arguments map[string]any `json:"arguments,omitempty"`
	// Mode optionally forces the swarm execution mode.
	Mode ExecModeHint `json:"mode,omitempty"`
	// CorrelationID is generated when the caller leaves it empty.
	CorrelationID string `json:"correlation_id,omitempty"`
}
