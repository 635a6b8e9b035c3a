// ABOUTME: Tool interface, the kind-to-factory config registry, and the built-tool registry
// ABOUTME: Registries are populated during startup and never mutated afterwards

package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quarry/toolbox/internal/sources"
)

// ErrToolNotFound indicates a lookup for a tool name that was never configured.
var ErrToolNotFound = errors.New("tool not found")

// ErrToolsetNotFound indicates a lookup for a toolset name that was never configured.
var ErrToolsetNotFound = errors.New("toolset not found")

// Tool is one invokable operation exposed to clients. Implementations are
// safe for concurrent use once built.
type Tool interface {
	Name() string
	Kind() string
	Description() string

	// Manifest returns the client-facing description of the tool,
	// including its JSON Schema input contract.
	Manifest() Manifest

	// Invoke validates and coerces args, executes the operation, and
	// returns the result items.
	Invoke(ctx context.Context, args map[string]any) ([]any, error)

	// Authorized reports whether a caller with the given verified auth
	// service names may invoke this tool. Tools with no auth requirement
	// accept every caller.
	Authorized(verified []string) bool

	// PreHook names the registered invocation hook to run before this
	// tool executes, or "" for none.
	PreHook() string

	// DatasourceIDs lists the catalog datasource IDs whose column
	// descriptions annotate this tool's results.
	DatasourceIDs() []string
}

// Manifest is the wire form of a tool in list responses.
type Manifest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Config is a decoded, validated tool configuration that can build its
// runtime Tool once sources exist.
type Config interface {
	ToolName() string
	ToolKind() string
	Build(srcs map[string]sources.Source) (Tool, error)
}

// ConfigFactory decodes one tool's YAML node into a typed Config.
type ConfigFactory func(name string, node *yaml.Node) (Config, error)

var factories = map[string]ConfigFactory{}

// RegisterKind installs a config factory for a tool kind. It panics when a
// kind is registered twice.
func RegisterKind(kind string, factory ConfigFactory) {
	if _, dup := factories[kind]; dup {
		panic("tools: RegisterKind called twice for kind " + kind)
	}
	factories[kind] = factory
}

// DecodeConfig resolves the factory for kind and decodes the node through it.
func DecodeConfig(kind, name string, node *yaml.Node) (Config, error) {
	factory, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("unknown tool kind: %s", kind)
	}
	return factory(name, node)
}

// Registry holds every built tool in configuration order. It is assembled
// during startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	order  []string
	byName map[string]Tool
}

// NewRegistry returns an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Tool)}
}

// Add appends a tool, rejecting duplicate names.
func (r *Registry) Add(tool Tool) error {
	if _, exists := r.byName[tool.Name()]; exists {
		return fmt.Errorf("duplicate tool name %q", tool.Name())
	}
	r.order = append(r.order, tool.Name())
	r.byName[tool.Name()] = tool
	return nil
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Names returns every tool name in configuration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns every tool in configuration order.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Len reports the number of registered tools.
func (r *Registry) Len() int { return len(r.order) }

// commonConfig holds the YAML fields shared by every tool kind. Tool kind
// config structs embed it so yaml.v3 decodes the shared keys inline.
// DatasourceIDs is a comma-separated string for compatibility with existing
// catalog configs.
type commonConfig struct {
	Source        string            `yaml:"source"`
	Description   string            `yaml:"description"`
	Parameters    []ParameterConfig `yaml:"parameters"`
	AuthRequired  []string          `yaml:"authRequired"`
	PreHook       string            `yaml:"pre_hook"`
	DatasourceIDs string            `yaml:"datasource_ids"`
}

func (c commonConfig) newBase(name, kind string) base {
	return base{
		name:          name,
		kind:          kind,
		description:   c.Description,
		authRequired:  c.AuthRequired,
		preHook:       c.PreHook,
		datasourceIDs: splitDatasourceIDs(c.DatasourceIDs),
	}
}

func splitDatasourceIDs(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// base carries the fields every tool kind shares. Tool kinds embed it to
// pick up the common accessors.
type base struct {
	name          string
	kind          string
	description   string
	authRequired  []string
	preHook       string
	datasourceIDs []string
}

func (b *base) Name() string            { return b.name }
func (b *base) Kind() string            { return b.kind }
func (b *base) Description() string     { return b.description }
func (b *base) PreHook() string         { return b.preHook }
func (b *base) DatasourceIDs() []string { return b.datasourceIDs }

// Authorized reports whether any verified service name satisfies the tool's
// auth requirement. An empty requirement authorizes everyone.
func (b *base) Authorized(verified []string) bool {
	if len(b.authRequired) == 0 {
		return true
	}
	for _, required := range b.authRequired {
		for _, v := range verified {
			if required == v {
				return true
			}
		}
	}
	return false
}
