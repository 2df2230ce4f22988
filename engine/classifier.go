package engine

import (
	"context"

	"github.com/swarmgate/swarmgate/action"
)

// Classifier resolves a free-text intent to a registered action name
// with a confidence in [0, 1]. Implementations may be heuristic or
// model-backed; the engine only acts on matches at or above its
// confidence threshold.
type Classifier interface {
	Classify(ctx context.Context, intent string) (name string, confidence float64, err error)
}

// RegistryClassifier scores intents by token overlap against the action
// catalog. It is the default classifier.
type RegistryClassifier struct {
	registry *action.Registry
}

// NewRegistryClassifier creates a classifier over the given registry.
func NewRegistryClassifier(registry *action.Registry) *RegistryClassifier {
	return &RegistryClassifier{registry: registry}
}

// Classify implements Classifier.
func (c *RegistryClassifier) Classify(_ context.Context, intent string) (string, float64, error) {
	schema, confidence := c.registry.Match(intent)
	return schema.Name, confidence, nil
}
