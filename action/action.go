// Package action implements the action registry: the catalog of
// dispatchable operations, intent resolution against that catalog, and
// binding of loosely-typed arguments to declared parameter schemas.
package action

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/swarmgate/swarmgate/core"
)

// Handler kinds.
const (
	// HandlerDirect routes the action to a registered handler function.
	HandlerDirect = "direct"
	// HandlerSwarm routes the action to an agent swarm task.
	HandlerSwarm = "swarm"
)

// Parameter declares one named argument of an action.
type Parameter struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"` // string, number, integer, boolean, object, array
	Required    bool   `json:"required" yaml:"required"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// HandlerRef names the execution target of an action.
type HandlerRef struct {
	Kind string `json:"kind" yaml:"kind"` // direct or swarm
	Name string `json:"name" yaml:"name"`
}

// Schema declares a dispatchable action and its parameter contract.
type Schema struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Handler     HandlerRef  `json:"handler" yaml:"handler"`
	// Domain is the memory domain this action operates in. Empty means
	// shared.
	Domain string `json:"domain,omitempty" yaml:"domain,omitempty"`
}

// DuplicateActionError is returned when registering a name twice.
type DuplicateActionError struct {
	Name string
}

func (e *DuplicateActionError) Error() string {
	return fmt.Sprintf("action %q is already registered", e.Name)
}

// InvalidSchemaError is returned when an action schema is malformed.
type InvalidSchemaError struct {
	Name   string
	Reason string
}

func (e *InvalidSchemaError) Error() string {
	return fmt.Sprintf("invalid schema for action %q: %s", e.Name, e.Reason)
}

// Registry is the thread-safe catalog of registered actions.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Schema
}

// NewRegistry creates an empty action registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Schema)}
}

// Register validates and adds a schema to the catalog. Registering a
// name that already exists fails with *DuplicateActionError; a malformed
// schema fails with *InvalidSchemaError.
func (r *Registry) Register(s Schema) error {
	if err := validateSchema(s); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[s.Name]; exists {
		return &DuplicateActionError{Name: s.Name}
	}
	r.actions[s.Name] = s
	return nil
}

// Resolve looks up an action by exact name. Unknown names fail with
// *core.UnknownActionError.
func (r *Registry) Resolve(name string) (Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.actions[name]
	if !ok {
		return Schema{}, &core.UnknownActionError{Name: name}
	}
	return s, nil
}

// Match scores every registered action against a free-text intent and
// returns the best candidate with its confidence in [0, 1]. Zero
// confidence means nothing matched at all.
func (r *Registry) Match(intent string) (Schema, float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := tokenize(intent)
	if len(tokens) == 0 {
		return Schema{}, 0
	}

	var best Schema
	var bestScore float64
	for _, name := range r.sortedNames() {
		s := r.actions[name]
		score := scoreIntent(tokens, s)
		if score > bestScore {
			best = s
			bestScore = score
		}
	}
	return best, bestScore
}

// Names returns the registered action names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames()
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validateSchema(s Schema) error {
	if s.Name == "" {
		return &InvalidSchemaError{Name: s.Name, Reason: "name is required"}
	}
	if s.Handler.Kind != HandlerDirect && s.Handler.Kind != HandlerSwarm {
		return &InvalidSchemaError{Name: s.Name, Reason: fmt.Sprintf("unknown handler kind %q", s.Handler.Kind)}
	}
	if s.Handler.Name == "" {
		return &InvalidSchemaError{Name: s.Name, Reason: "handler name is required"}
	}

	seen := make(map[string]struct{}, len(s.Parameters))
	for _, p := range s.Parameters {
		if p.Name == "" {
			return &InvalidSchemaError{Name: s.Name, Reason: "parameter with empty name"}
		}
		if _, dup := seen[p.Name]; dup {
			return &InvalidSchemaError{Name: s.Name, Reason: fmt.Sprintf("duplicate parameter %q", p.Name)}
		}
		seen[p.Name] = struct{}{}

		if !validParamType(p.Type) {
			return &InvalidSchemaError{Name: s.Name, Reason: fmt.Sprintf("parameter %q has unknown type %q", p.Name, p.Type)}
		}
		// A required parameter with a default is contradictory: the
		// default would mask the requirement.
		if p.Required && p.Default != nil {
			return &InvalidSchemaError{Name: s.Name, Reason: fmt.Sprintf("parameter %q is required but has a default", p.Name)}
		}
	}
	return nil
}

func validParamType(t string) bool {
	switch t {
	case "string", "number", "integer", "boolean", "object", "array":
		return true
	default:
		return false
	}
}

// scoreIntent computes token overlap between the intent and the action's
// name and description. Name tokens weigh double.
func scoreIntent(tokens []string, s Schema) float64 {
	nameTokens := tokenize(s.Name)
	descTokens := tokenize(s.Description)

	var hits, weight float64
	for _, t := range tokens {
		if containsToken(nameTokens, t) {
			hits += 2
		} else if containsToken(descTokens, t) {
			hits++
		}
	}
	weight = float64(len(tokens)) * 2
	if weight == 0 {
		return 0
	}
	score := hits / weight
	if score > 1 {
		score = 1
	}
	return score
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 2 { // skip stopword-sized tokens
			out = append(out, f)
		}
	}
	return out
}

func containsToken(tokens []string, t string) bool {
	for _, tok := range tokens {
		if tok == t {
			return true
		}
	}
	return false
}
