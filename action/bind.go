package action

import (
	"math"
	"sort"

	"github.com/swarmgate/swarmgate/core"
)

// Bind checks the supplied arguments against the schema's parameter
// declarations and returns the bound argument map. Missing required
// parameters are collected and reported together, not one at a time.
// Arguments not declared by the schema are rejected, and declared
// optional parameters receive their defaults. The handler is never
// reached with an unbound argument set.
func Bind(s Schema, args map[string]any) (map[string]any, error) {
	declared := make(map[string]Parameter, len(s.Parameters))
	for _, p := range s.Parameters {
		declared[p.Name] = p
	}

	var unknown []string
	for name := range args {
		if _, ok := declared[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return nil, &core.UnknownParameterError{Action: s.Name, Unknown: sorted(unknown)}
	}

	var missing []string
	bound := make(map[string]any, len(s.Parameters))
	for _, p := range s.Parameters {
		value, present := args[p.Name]
		if !present {
			if p.Required {
				missing = append(missing, p.Name)
				continue
			}
			if p.Default != nil {
				bound[p.Name] = p.Default
			}
			continue
		}

		coerced, err := coerce(s.Name, p, value)
		if err != nil {
			return nil, err
		}
		bound[p.Name] = coerced
	}
	if len(missing) > 0 {
		return nil, &core.MissingParameterError{Action: s.Name, Missing: missing}
	}

	return bound, nil
}

func sorted(names []string) []string {
	sort.Strings(names)
	return names
}

// coerce checks the value against the declared type. JSON numbers arrive
// as float64; integer parameters accept them when they carry no
// fractional part.
func coerce(action string, p Parameter, value any) (any, error) {
	mismatch := func() error {
		return &core.ParameterTypeError{
			Action:    action,
			Parameter: p.Name,
			Expected:  p.Type,
			Value:     value,
		}
	}

	switch p.Type {
	case "string":
		if _, ok := value.(string); !ok {
			return nil, mismatch()
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return nil, mismatch()
		}
	case "number":
		switch value.(type) {
		case float64, int, int64:
		default:
			return nil, mismatch()
		}
	case "integer":
		switch v := value.(type) {
		case int, int64:
		case float64:
			if v != math.Trunc(v) {
				return nil, mismatch()
			}
			return int(v), nil
		default:
			return nil, mismatch()
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return nil, mismatch()
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return nil, mismatch()
		}
	}
	return value, nil
}
