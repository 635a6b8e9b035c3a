// ABOUTME: Integration tests for server assembly against a real SQLite source
// ABOUTME: Covers New wiring errors, end-to-end invocation, and graceful shutdown

package server

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/quarry/toolbox/internal/config"
	"github.com/quarry/toolbox/internal/mcp"
)

const sqliteToolsFile = `
sources:
  local-db:
    kind: sqlite
    path: ":memory:"
tools:
  select-one:
    kind: sqlite-sql
    source: local-db
    description: Returns a single constant row.
    statement: SELECT 1 AS one
toolsets:
  smoke:
    - select-one
`

func TestNew_SQLiteEndToEnd(t *testing.T) {
	cfg, err := config.Parse([]byte(sqliteToolsFile))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	ctx := context.Background()
	s, err := New(ctx, Config{Tools: cfg, Version: "test", Logger: discardLogger()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Close(context.Background())

	list := s.engine.HandleMessage(ctx, "smoke", []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	var listResp struct {
		Result mcp.MCPListToolsResult `json:"result"`
		Error  *mcp.JSONRPCError      `json:"error"`
	}
	if err := json.Unmarshal(list, &listResp); err != nil {
		t.Fatalf("decoding list response: %v", err)
	}
	if listResp.Error != nil {
		t.Fatalf("tools/list error: %v", listResp.Error)
	}
	if len(listResp.Result.Tools) != 1 || listResp.Result.Tools[0].Name != "select-one" {
		t.Fatalf("unexpected tool listing: %+v", listResp.Result.Tools)
	}

	call := s.engine.HandleMessage(ctx, "", []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"select-one"}}`))
	var callResp struct {
		Result mcp.MCPCallToolResult `json:"result"`
		Error  *mcp.JSONRPCError     `json:"error"`
	}
	if err := json.Unmarshal(call, &callResp); err != nil {
		t.Fatalf("decoding call response: %v", err)
	}
	if callResp.Error != nil {
		t.Fatalf("tools/call error: %v", callResp.Error)
	}
	if callResp.Result.IsError {
		t.Fatalf("tool reported error: %+v", callResp.Result.Content)
	}
	if len(callResp.Result.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(callResp.Result.Content))
	}
	if text := callResp.Result.Content[0].Text; !strings.Contains(text, `"one":1`) {
		t.Errorf("expected query result in content, got %s", text)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "tool references missing source",
			yaml: `
tools:
  t1:
    kind: sqlite-sql
    source: ghost
    description: Broken.
    statement: SELECT 1
`,
			wantErr: `tool "t1": source "ghost" not found`,
		},
		{
			name: "toolset references missing tool",
			yaml: `
toolsets:
  travel:
    - nope
`,
			wantErr: `tool "nope" not found for toolset "travel"`,
		},
		{
			name: "unknown pre_hook",
			yaml: `
sources:
  local-db:
    kind: sqlite
    path: ":memory:"
tools:
  t1:
    kind: sqlite-sql
    source: local-db
    description: Hooked.
    statement: SELECT 1
    pre_hook: ghost
`,
			wantErr: `tool "t1": unknown pre_hook "ghost"`,
		},
		{
			name: "datasource annotations without metadata source",
			yaml: `
sources:
  local-db:
    kind: sqlite
    path: ":memory:"
tools:
  t1:
    kind: sqlite-sql
    source: local-db
    description: Annotated.
    statement: SELECT 1
    datasource_ids: ds-1
`,
			wantErr: `tool "t1": datasource_ids requires a metadata_source`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			_, err = New(context.Background(), Config{Tools: cfg, Logger: discardLogger()})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}

	t.Run("nil tools config", func(t *testing.T) {
		_, err := New(context.Background(), Config{Logger: discardLogger()})
		if err == nil || !strings.Contains(err.Error(), "tools configuration is required") {
			t.Errorf("expected missing config error, got %v", err)
		}
	})
}

func TestRun_GracefulShutdown(t *testing.T) {
	cfg, err := config.Parse(nil)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	s, err := New(context.Background(), Config{Tools: cfg, Host: "127.0.0.1", Port: 0, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
