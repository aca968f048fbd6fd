package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// TemplateFile is the declarative persona roster format loaded from
// config/personas.yaml. Personas are configuration, never code.
type TemplateFile struct {
	Personas []*Persona `yaml:"personas"`
}

// LoadFromFile reads a yaml roster and registers every persona into the store.
// Returns the number registered. A single invalid persona aborts the load so a
// bad roster never half-applies.
func LoadFromFile(s *Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read persona file: %w", err)
	}

	var file TemplateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to parse persona file %s: %w", path, err)
	}

	// Validate everything before registering anything.
	for _, p := range file.Personas {
		if err := p.Validate(); err != nil {
			return 0, fmt.Errorf("persona %q in %s: %w", p.ID, path, err)
		}
	}

	count := 0
	for _, p := range file.Personas {
		if _, err := s.Register(p); err != nil {
			return count, fmt.Errorf("failed to register persona %q: %w", p.ID, err)
		}
		count++
	}
	return count, nil
}
