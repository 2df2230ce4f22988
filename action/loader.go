package action

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of an action catalog.
type File struct {
	Actions []Schema `yaml:"actions"`
}

// LoadFile reads a YAML action catalog from disk and registers every
// schema it declares. The file is rejected as a whole on the first
// malformed or duplicate schema.
func LoadFile(r *Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read action catalog: %w", err)
	}
	if err := LoadYAML(r, data); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadYAML parses a YAML action catalog and registers every schema.
func LoadYAML(r *Registry, data []byte) error {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse action catalog: %w", err)
	}
	if len(file.Actions) == 0 {
		return fmt.Errorf("action catalog declares no actions")
	}

	for _, s := range file.Actions {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}
