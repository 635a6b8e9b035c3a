// ABOUTME: Tools-file loading and parsing for the toolbox server
// ABOUTME: YAML with environment variable expansion; document order is preserved

package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/quarry/toolbox/internal/auth"
	"github.com/quarry/toolbox/internal/metadata"
	"github.com/quarry/toolbox/internal/sources"
	"github.com/quarry/toolbox/internal/tools"
)

// SourceEntry pairs a source name with its decoded configuration. Entries
// keep the order they appear in the document.
type SourceEntry struct {
	Name   string
	Config sources.Config
}

// ToolEntry pairs a tool name with its decoded configuration. Entries keep
// the order they appear in the document, which becomes the registry order
// clients see in tools/list.
type ToolEntry struct {
	Name   string
	Config tools.Config
}

// Config is a complete parsed tools file.
type Config struct {
	Sources        []SourceEntry
	Tools          []ToolEntry
	Toolsets       map[string]tools.ToolsetConfig
	AuthServices   map[string]auth.ServiceConfig
	MetadataSource *metadata.Config
}

// rawConfig is the top-level YAML shape before the kind-dispatched decoding
// of sources and tools. Those two sections stay as raw nodes so each entry
// can be decoded by its registered kind factory in document order.
type rawConfig struct {
	Sources        yaml.Node                      `yaml:"sources"`
	Tools          yaml.Node                      `yaml:"tools"`
	Toolsets       map[string]tools.ToolsetConfig `yaml:"toolsets"`
	AuthServices   map[string]auth.ServiceConfig  `yaml:"authServices"`
	MetadataSource *metadata.Config               `yaml:"metadata_source"`
}

// Load reads a tools file from the given path and returns the parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tools file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes tools-file YAML into a Config.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	cfg := &Config{
		Toolsets:       raw.Toolsets,
		AuthServices:   raw.AuthServices,
		MetadataSource: raw.MetadataSource,
	}

	var err error
	if cfg.Sources, err = decodeSources(&raw.Sources); err != nil {
		return nil, err
	}
	if cfg.Tools, err = decodeTools(&raw.Tools); err != nil {
		return nil, err
	}

	if cfg.MetadataSource != nil {
		if err := cfg.MetadataSource.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// decodeSources walks the sources mapping in document order, dispatching
// each entry to its kind's config factory.
func decodeSources(node *yaml.Node) ([]SourceEntry, error) {
	pairs, err := mappingPairs(node, "sources")
	if err != nil {
		return nil, err
	}

	var entries []SourceEntry
	seen := make(map[string]bool)
	for _, pair := range pairs {
		name := pair.key
		if seen[name] {
			return nil, fmt.Errorf("duplicate source %q", name)
		}
		seen[name] = true

		kind, err := kindOf(pair.value)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", name, err)
		}
		// Factories name the entry in their own errors.
		sourceCfg, err := sources.DecodeConfig(kind, name, pair.value)
		if err != nil {
			return nil, err
		}
		entries = append(entries, SourceEntry{Name: name, Config: sourceCfg})
	}
	return entries, nil
}

// decodeTools walks the tools mapping in document order, dispatching each
// entry to its kind's config factory.
func decodeTools(node *yaml.Node) ([]ToolEntry, error) {
	pairs, err := mappingPairs(node, "tools")
	if err != nil {
		return nil, err
	}

	var entries []ToolEntry
	seen := make(map[string]bool)
	for _, pair := range pairs {
		name := pair.key
		if seen[name] {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		seen[name] = true

		kind, err := kindOf(pair.value)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", name, err)
		}
		toolCfg, err := tools.DecodeConfig(kind, name, pair.value)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ToolEntry{Name: name, Config: toolCfg})
	}
	return entries, nil
}

type nodePair struct {
	key   string
	value *yaml.Node
}

// mappingPairs returns the key/value pairs of a mapping node in document
// order. An absent section yields no pairs.
func mappingPairs(node *yaml.Node, section string) ([]nodePair, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s must be a mapping", section)
	}
	pairs := make([]nodePair, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		pairs = append(pairs, nodePair{key: node.Content[i].Value, value: node.Content[i+1]})
	}
	return pairs, nil
}

// kindOf extracts the kind key from an entry's mapping node without
// decoding the rest of it.
func kindOf(node *yaml.Node) (string, error) {
	if node.Kind != yaml.MappingNode {
		return "", fmt.Errorf("entry must be a mapping")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "kind" {
			return node.Content[i+1].Value, nil
		}
	}
	return "", fmt.Errorf("kind is required")
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the environment value. Unset
// variables keep their literal ${VAR_NAME} text so a missing expansion
// surfaces in later validation instead of collapsing to an empty string.
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}
