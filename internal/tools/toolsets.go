// ABOUTME: Named tool groupings that scope what a connected client may see and call
// ABOUTME: Decodes both YAML shapes: bare name lists and mappings with a description

package tools

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ToolsetConfig is the configuration for one toolset. The YAML form is
// either a sequence of tool names or a mapping with tools (or tool_names)
// and an optional description.
type ToolsetConfig struct {
	Tools       []string
	Description string
}

func (c *ToolsetConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		return node.Decode(&c.Tools)
	case yaml.MappingNode:
		var aux struct {
			Tools       []string `yaml:"tools"`
			ToolNames   []string `yaml:"tool_names"`
			Description string   `yaml:"description"`
		}
		if err := node.Decode(&aux); err != nil {
			return err
		}
		c.Tools = aux.Tools
		if len(c.Tools) == 0 {
			c.Tools = aux.ToolNames
		}
		c.Description = aux.Description
		return nil
	default:
		return fmt.Errorf("toolset must be a list of tool names or a mapping")
	}
}

// Toolset is a named, ordered subset of the tool registry. Like the
// registry, toolsets are assembled at startup and read-only afterwards.
type Toolset struct {
	name        string
	description string
	order       []string
	byName      map[string]Tool
}

// NewToolset builds a toolset over the given members, keeping their order.
func NewToolset(name, description string, members []Tool) *Toolset {
	s := &Toolset{
		name:        name,
		description: description,
		byName:      make(map[string]Tool, len(members)),
	}
	for _, tool := range members {
		if _, exists := s.byName[tool.Name()]; exists {
			continue
		}
		s.order = append(s.order, tool.Name())
		s.byName[tool.Name()] = tool
	}
	return s
}

func (s *Toolset) Name() string        { return s.name }
func (s *Toolset) Description() string { return s.description }

// Get returns the member tool with the given name.
func (s *Toolset) Get(name string) (Tool, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// Has reports whether the toolset contains the named tool.
func (s *Toolset) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// ToolNames returns the member names in declaration order.
func (s *Toolset) ToolNames() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Manifests returns the member manifests in declaration order.
func (s *Toolset) Manifests() []Manifest {
	out := make([]Manifest, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byName[name].Manifest())
	}
	return out
}

// BuildToolsets resolves configured toolsets against the registry. Every
// referenced tool must exist.
func BuildToolsets(configs map[string]ToolsetConfig, registry *Registry) (map[string]*Toolset, error) {
	toolsets := make(map[string]*Toolset, len(configs))
	for name, cfg := range configs {
		members := make([]Tool, 0, len(cfg.Tools))
		for _, toolName := range cfg.Tools {
			tool, ok := registry.Get(toolName)
			if !ok {
				return nil, fmt.Errorf("tool %q not found for toolset %q", toolName, name)
			}
			members = append(members, tool)
		}
		toolsets[name] = NewToolset(name, cfg.Description, members)
	}
	return toolsets, nil
}
