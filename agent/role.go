package agent

import "fmt"

// Strategy selects how an agent turns a task into a result.
type Strategy string

const (
	// StrategyDirect issues a single model call and returns its output.
	StrategyDirect Strategy = "direct"
	// StrategyLoop runs a bounded think/act/observe cycle with tool use.
	StrategyLoop Strategy = "loop"
)

// HardStepCeiling is the absolute upper bound on reasoning steps. Role
// step limits are clamped to it; no configuration can exceed it.
const HardStepCeiling = 16

// Role describes a reusable agent specialization: its instructions, its
// execution strategy and its step budget.
type Role struct {
	Name         string
	Instructions string
	Strategy     Strategy
	// MaxSteps bounds the reasoning loop. Zero means the default (8).
	// Values above HardStepCeiling are clamped.
	MaxSteps int
	// Domain is the memory domain agents of this role work in.
	Domain string
}

// Built-in role names.
const (
	RoleAnalyst     = "analyst"
	RoleStrategist  = "strategist"
	RoleValidator   = "validator"
	RolePlanner     = "planner"
	RoleImplementer = "implementer"
	RoleReviewer    = "reviewer"
	RoleResearcher  = "researcher"
	RoleSecurity    = "security"
	RoleCoordinator = "coordinator"
)

// BuiltinRoles returns the default role catalog keyed by name.
func BuiltinRoles() map[string]Role {
	roles := []Role{
		{
			Name:     RoleAnalyst,
			Strategy: StrategyDirect,
			Domain:   "business",
			Instructions: "You are an analyst. Break the task into its essential facts and " +
				"observations. Be concrete and cite what you observe in the task itself.",
		},
		{
			Name:     RoleStrategist,
			Strategy: StrategyDirect,
			Domain:   "business",
			Instructions: "You are a strategist. Synthesize the provided analyses into a " +
				"single coherent recommendation. Resolve conflicts explicitly.",
		},
		{
			Name:     RoleValidator,
			Strategy: StrategyDirect,
			Domain:   "shared",
			Instructions: "You are a validator. Check the proposed output for internal " +
				"consistency, unsupported claims and missed requirements. End your reply " +
				"with a line 'confidence: <0..1>'.",
		},
		{
			Name:     RolePlanner,
			Strategy: StrategyLoop,
			MaxSteps: 10,
			Domain:   "technical",
			Instructions: "You are a planner. Decompose the task into ordered steps, using " +
				"tools to gather anything you are missing before committing to a plan.",
		},
		{
			Name:     RoleImplementer,
			Strategy: StrategyLoop,
			MaxSteps: 12,
			Domain:   "technical",
			Instructions: "You are an implementer. Carry out the task step by step, using " +
				"the available tools. Prefer small verifiable actions.",
		},
		{
			Name:     RoleReviewer,
			Strategy: StrategyDirect,
			Domain:   "technical",
			Instructions: "You are a reviewer. Critique the provided work: correctness " +
				"first, then clarity. End your reply with a line 'confidence: <0..1>'.",
		},
		{
			Name:     RoleResearcher,
			Strategy: StrategyLoop,
			MaxSteps: 10,
			Domain:   "shared",
			Instructions: "You are a researcher. Gather relevant information with the " +
				"available tools, then summarize what you found with sources.",
		},
		{
			Name:     RoleSecurity,
			Strategy: StrategyDirect,
			Domain:   "technical",
			Instructions: "You are a security specialist. Identify risks, unsafe inputs " +
				"and trust boundary violations in the provided task or output.",
		},
		{
			Name:     RoleCoordinator,
			Strategy: StrategyDirect,
			Domain:   "shared",
			Instructions: "You are a coordinator. Produce a single concise answer for the " +
				"task, suitable to return directly to the caller. End your reply with a " +
				"line 'confidence: <0..1>'.",
		},
	}

	m := make(map[string]Role, len(roles))
	for _, r := range roles {
		m[r.Name] = r
	}
	return m
}

// StepLimit returns the effective step budget for the role.
func (r Role) StepLimit() int {
	limit := r.MaxSteps
	if limit <= 0 {
		limit = 8
	}
	if limit > HardStepCeiling {
		limit = HardStepCeiling
	}
	return limit
}

// Validate checks that the role is well formed.
func (r Role) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("role name is required")
	}
	if r.Strategy != StrategyDirect && r.Strategy != StrategyLoop {
		return fmt.Errorf("role %s: unknown strategy %q", r.Name, r.Strategy)
	}
	return nil
}
