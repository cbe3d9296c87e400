// Package config implements the immutable, validated configuration
// mapping described in spec.md §3/§6: typed, dotted-path access over a
// mapping validated against a JSON schema at construction time. Parsing
// a config-file format or a CLI-flag library is out of scope (spec.md
// §1 non-goals); this package only covers the in-scope mapping type.
package config

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Config is an immutable, validated configuration mapping. Once
// constructed by Load, it is never mutated; every component that needs
// configuration receives a *Config (or is handed primitives extracted
// from one), never a mutable map.
type Config struct {
	data map[string]any
}

// Load parses mapping (YAML or JSON; goccy/go-yaml accepts both) and
// validates it against the JSON schema in schemaJSON, returning a frozen
// Config. Recognized top-level keys and their effects are documented in
// spec.md §6 (workdir, resultdir, logdir, tag, samples_file,
// executor.{name,cpus,memory}, log.{level,external}); this package does
// not special-case them, it only provides validated, typed access.
func Load(schemaJSON, mapping []byte) (*Config, error) {
	var data map[string]any
	if err := yaml.Unmarshal(mapping, &data); err != nil {
		return nil, fmt.Errorf("config: parse mapping: %w", err)
	}

	if len(schemaJSON) > 0 {
		if err := validate(schemaJSON, data); err != nil {
			return nil, fmt.Errorf("config: validation: %w", err)
		}
	}

	return &Config{data: data}, nil
}

func validate(schemaJSON []byte, data map[string]any) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	// jsonschema/v6 validates over JSON-decoded values (map[string]any
	// with float64 numbers); goccy/go-yaml already decodes YAML scalars
	// compatibly, so data can be validated directly.
	if err := schema.Validate(map[string]any(data)); err != nil {
		return err
	}
	return nil
}

// get walks a dotted path ("executor.cpus") through the mapping.
func (c *Config) get(path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = c.data
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[p]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// String returns the string at path, or "" if absent or not a string.
func (c *Config) String(path string) string {
	v, ok := c.get(path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// StringOr returns the string at path, or def if absent.
func (c *Config) StringOr(path, def string) string {
	if v, ok := c.get(path); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Int returns the integer at path, or 0 if absent or not numeric.
func (c *Config) Int(path string) int {
	return c.IntOr(path, 0)
}

// IntOr returns the integer at path, or def if absent or not numeric.
func (c *Config) IntOr(path string, def int) int {
	v, ok := c.get(path)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case uint64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return def
}

// Bool returns the boolean at path, or false if absent.
func (c *Config) Bool(path string) bool {
	v, ok := c.get(path)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Map returns the raw mapping at path as map[string]any, for components
// that need a whole sub-tree (e.g. executor options) rather than a
// single scalar.
func (c *Config) Map(path string) map[string]any {
	v, ok := c.get(path)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

// Raw returns the entire validated mapping. Callers must treat it as
// read-only; Config itself never mutates it after Load.
func (c *Config) Raw() map[string]any {
	return c.data
}
