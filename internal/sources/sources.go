// ABOUTME: Backend source abstraction and the kind-to-factory config registry
// ABOUTME: Sources own live connections; tools bind to them by name at startup

package sources

import (
	"context"
	"database/sql"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Source is a live backend handle created from configuration at startup.
// Initialize dials the backend; Cleanup releases it. Both are called exactly
// once by the server lifecycle.
type Source interface {
	Name() string
	Kind() string
	Initialize(ctx context.Context) error
	Cleanup(ctx context.Context) error
}

// SQLSource executes a parameterized statement and returns one map per row,
// keyed by column name. Parameter placeholders use the backend's native
// syntax ($1 for postgres, ? for mysql/sqlite, @p1 for mssql).
type SQLSource interface {
	Source
	ExecuteQuery(ctx context.Context, statement string, params []any) ([]map[string]any, error)
}

// Config is a typed, validated source configuration that can produce its
// runtime Source.
type Config interface {
	SourceName() string
	SourceKind() string
	Create() (Source, error)
}

// ConfigFactory decodes one source's YAML node into a typed Config.
type ConfigFactory func(name string, node *yaml.Node) (Config, error)

var factories = map[string]ConfigFactory{}

// Register installs a config factory for a source kind. It panics when a
// kind is registered twice, mirroring database/sql driver registration.
func Register(kind string, factory ConfigFactory) {
	if _, dup := factories[kind]; dup {
		panic("sources: Register called twice for kind " + kind)
	}
	factories[kind] = factory
}

// DecodeConfig resolves the factory for kind and decodes the node through it.
func DecodeConfig(kind, name string, node *yaml.Node) (Config, error) {
	factory, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("unknown source kind: %s", kind)
	}
	return factory(name, node)
}

// queryRows runs a statement through database/sql and scans every row into a
// map. []byte cells are converted to string so results serialize as text
// rather than base64.
func queryRows(ctx context.Context, db *sql.DB, statement string, params []any) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, statement, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		scan := make([]any, len(columns))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
