package sample

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// manifestRecord mirrors the flat samples-manifest record shape from
// spec.md §6: {id, files: [...], <user attributes>}.
type manifestRecord struct {
	ID    string   `yaml:"id"`
	Files []string `yaml:"files"`
	Rest  map[string]any `yaml:",inline"`
}

// LoadManifest reads a YAML samples manifest once at startup and returns
// the initial (unsplit) collection, per spec.md §3 Lifecycles.
func LoadManifest(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sample: read manifest: %w", err)
	}

	var records []manifestRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("sample: parse manifest %s: %w", path, err)
	}

	c := NewCollection()
	for i, r := range records {
		s := New(r.ID, r.Files)
		if len(r.Rest) > 0 {
			s.Attributes = Attributes(r.Rest)
		}
		s.DispatchIndex = i
		c.Add(s)
	}
	return c, nil
}
