// ABOUTME: Tests for tracer provider setup and the disabled path
// ABOUTME: No collector is contacted; the gRPC client connects lazily

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{}, discardLogger())
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected a shutdown function even when disabled")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown error: %v", err)
	}
}

func TestInit_Exporter(t *testing.T) {
	cfg := Config{
		Endpoint:       "localhost:4317",
		Insecure:       true,
		ServiceName:    "mcp-toolbox",
		ServiceVersion: "test",
	}
	shutdown, err := Init(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	// No spans were recorded, so shutdown has nothing to flush and must not
	// block on the unreachable collector.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Errorf("shutdown error: %v", err)
	}
}
