// ABOUTME: Tests for the SQL tool kinds: config decoding, source binding, and invocation
// ABOUTME: Uses a fake SQL source to observe statements and bound parameter order

package tools

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/quarry/toolbox/internal/sources"
)

// fakeSQLSource records the last executed statement and parameters.
type fakeSQLSource struct {
	name      string
	kind      string
	rows      []map[string]any
	err       error
	statement string
	params    []any
}

func (f *fakeSQLSource) Name() string                         { return f.name }
func (f *fakeSQLSource) Kind() string                         { return f.kind }
func (f *fakeSQLSource) Initialize(ctx context.Context) error { return nil }
func (f *fakeSQLSource) Cleanup(ctx context.Context) error    { return nil }

func (f *fakeSQLSource) ExecuteQuery(ctx context.Context, statement string, params []any) ([]map[string]any, error) {
	f.statement = statement
	f.params = params
	return f.rows, f.err
}

const hotelToolYAML = `
source: my-pg
description: Search hotels by city
statement: SELECT * FROM hotels WHERE city = $1 LIMIT $2
parameters:
  - name: city
    type: string
  - name: limit
    type: integer
    required: false
    default: 10
`

func buildHotelTool(t *testing.T, src *fakeSQLSource) Tool {
	t.Helper()
	cfg, err := DecodeConfig("postgres-sql", "search-hotels", decodeNode(t, hotelToolYAML))
	if err != nil {
		t.Fatalf("DecodeConfig() error = %v", err)
	}
	tool, err := cfg.Build(map[string]sources.Source{"my-pg": src})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return tool
}

func TestSQLToolConfig_Decode(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing source",
			yaml:    "statement: SELECT 1\n",
			wantErr: "source is required",
		},
		{
			name:    "missing statement",
			yaml:    "source: db\n",
			wantErr: "statement is required",
		},
		{
			name:    "bad parameter type",
			yaml:    "source: db\nstatement: SELECT 1\nparameters:\n  - name: x\n    type: blob\n",
			wantErr: "unknown type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeConfig("postgres-sql", "broken", decodeNode(t, tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("DecodeConfig() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestSQLTool_Build(t *testing.T) {
	cfg, err := DecodeConfig("postgres-sql", "search-hotels", decodeNode(t, hotelToolYAML))
	if err != nil {
		t.Fatalf("DecodeConfig() error = %v", err)
	}

	t.Run("unknown source", func(t *testing.T) {
		_, err := cfg.Build(map[string]sources.Source{})
		if err == nil || err.Error() != `source "my-pg" not found` {
			t.Errorf("Build() error = %v", err)
		}
	})

	t.Run("source kind must match the tool kind", func(t *testing.T) {
		src := &fakeSQLSource{name: "my-pg", kind: "mysql"}
		_, err := cfg.Build(map[string]sources.Source{"my-pg": src})
		if err == nil || err.Error() != `source "my-pg" must be a postgres source` {
			t.Errorf("Build() error = %v", err)
		}
	})
}

func TestSQLTool_Invoke(t *testing.T) {
	t.Run("binds values in declaration order", func(t *testing.T) {
		src := &fakeSQLSource{
			name: "my-pg",
			kind: "postgres",
			rows: []map[string]any{{"name": "Hilton", "city": "Basel"}},
		}
		tool := buildHotelTool(t, src)

		// Argument order in the map must not matter; the limit string coerces.
		results, err := tool.Invoke(context.Background(), map[string]any{"limit": "5", "city": "Basel"})
		if err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}

		if src.statement != "SELECT * FROM hotels WHERE city = $1 LIMIT $2" {
			t.Errorf("statement = %q", src.statement)
		}
		if !reflect.DeepEqual(src.params, []any{"Basel", 5}) {
			t.Errorf("params = %v, want [Basel 5]", src.params)
		}

		want := []any{map[string]any{"data": []map[string]any{{"name": "Hilton", "city": "Basel"}}}}
		if !reflect.DeepEqual(results, want) {
			t.Errorf("Invoke() = %v, want %v", results, want)
		}
	})

	t.Run("applies parameter defaults", func(t *testing.T) {
		src := &fakeSQLSource{name: "my-pg", kind: "postgres"}
		tool := buildHotelTool(t, src)

		if _, err := tool.Invoke(context.Background(), map[string]any{"city": "Basel"}); err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
		if !reflect.DeepEqual(src.params, []any{"Basel", 10}) {
			t.Errorf("params = %v, want [Basel 10]", src.params)
		}
	})

	t.Run("empty result set stays a list", func(t *testing.T) {
		src := &fakeSQLSource{name: "my-pg", kind: "postgres", rows: nil}
		tool := buildHotelTool(t, src)

		results, err := tool.Invoke(context.Background(), map[string]any{"city": "Nowhere"})
		if err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
		data := results[0].(map[string]any)["data"].([]map[string]any)
		if data == nil || len(data) != 0 {
			t.Errorf("data = %#v, want empty non-nil slice", data)
		}
	})

	t.Run("validation failures stop execution", func(t *testing.T) {
		src := &fakeSQLSource{name: "my-pg", kind: "postgres"}
		tool := buildHotelTool(t, src)

		_, err := tool.Invoke(context.Background(), map[string]any{"city": "Basel", "limit": "many"})
		if err == nil || !strings.Contains(err.Error(), "must be an integer") {
			t.Errorf("Invoke() error = %v", err)
		}
		if src.statement != "" {
			t.Error("statement executed despite validation failure")
		}
	})

	t.Run("source errors propagate", func(t *testing.T) {
		src := &fakeSQLSource{name: "my-pg", kind: "postgres", err: errors.New("connection reset")}
		tool := buildHotelTool(t, src)

		_, err := tool.Invoke(context.Background(), map[string]any{"city": "Basel"})
		if err == nil || !strings.Contains(err.Error(), "connection reset") {
			t.Errorf("Invoke() error = %v", err)
		}
	})
}

func TestSQLTool_Manifest(t *testing.T) {
	src := &fakeSQLSource{name: "my-pg", kind: "postgres"}
	tool := buildHotelTool(t, src)

	m := tool.Manifest()
	if m.Name != "search-hotels" || m.Description != "Search hotels by city" {
		t.Errorf("Manifest = %+v", m)
	}
	if m.InputSchema["type"] != "object" {
		t.Errorf("InputSchema type = %v", m.InputSchema["type"])
	}
	required := m.InputSchema["required"].([]string)
	if !reflect.DeepEqual(required, []string{"city"}) {
		t.Errorf("required = %v, want [city]", required)
	}
}
