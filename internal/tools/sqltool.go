// ABOUTME: Generic parameterized SQL tool shared by the postgres/mysql/sqlite/mssql kinds
// ABOUTME: Binds declaration-ordered parameter values to the configured statement

package tools

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quarry/toolbox/internal/sources"
)

func init() {
	for _, kind := range []string{"postgres-sql", "mysql-sql", "sqlite-sql", "mssql-sql"} {
		RegisterKind(kind, func(name string, node *yaml.Node) (Config, error) {
			return newSQLToolConfig(kind, name, node)
		})
	}
}

// SQLToolConfig is the decoded configuration for the *-sql tool kinds. The
// statement uses the backend's native placeholder syntax; parameter values
// bind in declaration order.
type SQLToolConfig struct {
	commonConfig `yaml:",inline"`
	Statement    string `yaml:"statement"`

	name   string
	kind   string
	params *ParameterSet
}

func newSQLToolConfig(kind, name string, node *yaml.Node) (Config, error) {
	var cfg SQLToolConfig
	if err := node.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}
	cfg.name = name
	cfg.kind = kind
	if cfg.Source == "" {
		return nil, fmt.Errorf("tool %q: source is required", name)
	}
	if cfg.Statement == "" {
		return nil, fmt.Errorf("tool %q: statement is required", name)
	}
	params, err := NewParameterSet(cfg.Parameters)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}
	cfg.params = params
	return &cfg, nil
}

func (c *SQLToolConfig) ToolName() string { return c.name }
func (c *SQLToolConfig) ToolKind() string { return c.kind }

func (c *SQLToolConfig) Build(srcs map[string]sources.Source) (Tool, error) {
	src, ok := srcs[c.Source]
	if !ok {
		return nil, fmt.Errorf("source %q not found", c.Source)
	}
	wantKind := strings.TrimSuffix(c.kind, "-sql")
	sqlSrc, isSQL := src.(sources.SQLSource)
	if !isSQL || src.Kind() != wantKind {
		return nil, fmt.Errorf("source %q must be a %s source", c.Source, wantKind)
	}
	return &sqlTool{
		base:      c.newBase(c.name, c.kind),
		statement: c.Statement,
		params:    c.params,
		source:    sqlSrc,
	}, nil
}

type sqlTool struct {
	base
	statement string
	params    *ParameterSet
	source    sources.SQLSource
}

func (t *sqlTool) Manifest() Manifest {
	return Manifest{
		Name:        t.name,
		Description: t.description,
		InputSchema: t.params.Schema(),
	}
}

// Invoke validates the arguments, binds them in declaration order, and runs
// the statement. Rows come back wrapped in a single data item so every SQL
// kind shares one result shape.
func (t *sqlTool) Invoke(ctx context.Context, args map[string]any) ([]any, error) {
	validated, err := t.params.ValidateValues(args)
	if err != nil {
		return nil, err
	}

	params := t.params.Parameters()
	values := make([]any, 0, len(params))
	for _, p := range params {
		values = append(values, validated[p.Name()])
	}

	rows, err := t.source.ExecuteQuery(ctx, t.statement, values)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return []any{map[string]any{"data": rows}}, nil
}
