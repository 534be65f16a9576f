// Package tool models the external tools sift runs: their validated
// configuration and the expansion of environment references in their
// commands.
package tool

import (
	"fmt"
	"log/slog"
	"strings"
)

// Spec is a validated external tool entry. Command may still contain
// $VAR references; they are resolved at execution time.
type Spec struct {
	Name    string `json:"name" yaml:"name"`
	Command string `json:"command" yaml:"command"`
}

// ExpandedCommand returns Command with environment references resolved.
func (s Spec) ExpandedCommand(logger *slog.Logger) string {
	return Expand(s.Command, logger)
}

// ConfigError reports an invalid external tool entry.
type ConfigError struct {
	Index int    // position in the configured list, -1 when the list itself is invalid
	Name  string // offending tool name, if known
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Index < 0 {
		return "external_tools: " + e.Msg
	}
	return fmt.Sprintf("external_tools[%d]: %s", e.Index, e.Msg)
}

// Validate checks a single raw configuration entry, as decoded from YAML,
// and returns it with whitespace trimmed from name and command.
func Validate(entry any, index int) (Spec, error) {
	m, ok := entry.(map[string]any)
	if !ok {
		return Spec{}, &ConfigError{Index: index, Msg: fmt.Sprintf("expected mapping, got %s", kindOf(entry))}
	}

	rawName, ok := m["name"]
	if !ok || rawName == nil {
		return Spec{}, &ConfigError{Index: index, Msg: "missing required field 'name'"}
	}
	name, ok := rawName.(string)
	if !ok {
		return Spec{}, &ConfigError{Index: index, Msg: fmt.Sprintf("field 'name' must be a string, got %s", kindOf(rawName))}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Spec{}, &ConfigError{Index: index, Msg: "field 'name' cannot be empty"}
	}

	rawCmd, ok := m["command"]
	if !ok || rawCmd == nil {
		return Spec{}, &ConfigError{Index: index, Name: name, Msg: fmt.Sprintf("missing required field 'command' for tool '%s'", name)}
	}
	command, ok := rawCmd.(string)
	if !ok {
		return Spec{}, &ConfigError{Index: index, Name: name, Msg: fmt.Sprintf("field 'command' must be a string for tool '%s', got %s", name, kindOf(rawCmd))}
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return Spec{}, &ConfigError{Index: index, Name: name, Msg: fmt.Sprintf("field 'command' cannot be empty for tool '%s'", name)}
	}

	return Spec{Name: name, Command: command}, nil
}

// ValidateList validates every entry in order and rejects duplicate names,
// compared case-insensitively. The first invalid entry aborts the whole list.
// A nil list is valid and yields no tools.
func ValidateList(entries []any) ([]Spec, error) {
	specs := make([]Spec, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, entry := range entries {
		spec, err := Validate(entry, i)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(spec.Name)
		if seen[key] {
			return nil, &ConfigError{Index: i, Name: spec.Name, Msg: fmt.Sprintf("duplicate tool name '%s'", spec.Name)}
		}
		seen[key] = true
		specs = append(specs, spec)
	}
	return specs, nil
}

// Names returns the names of specs in order.
func Names(specs []Spec) []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int64, uint64, float64:
		return "number"
	case []any:
		return "list"
	case map[string]any:
		return "mapping"
	default:
		return fmt.Sprintf("%T", v)
	}
}
