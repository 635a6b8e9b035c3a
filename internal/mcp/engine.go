// ABOUTME: Transport-independent MCP protocol engine dispatching JSON-RPC messages
// ABOUTME: Routes initialize, tools/list, and tools/call against toolset-scoped registries

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/quarry/toolbox/internal/auth"
	"github.com/quarry/toolbox/internal/tools"
)

// DefaultToolsetDescription describes the implicit empty-named toolset that
// exposes every registered tool.
const DefaultToolsetDescription = "Default toolset with all tools"

// Config holds the engine configuration.
type Config struct {
	Registry      *tools.Registry
	Toolsets      map[string]*tools.Toolset
	Logger        *slog.Logger
	ServerName    string
	ServerVersion string
}

// Engine processes MCP JSON-RPC messages. It is transport-independent: both
// the HTTP and stdio front ends feed raw message bytes through HandleMessage
// along with the toolset name the transport resolved from its own addressing.
type Engine struct {
	registry      *tools.Registry
	toolsets      map[string]*tools.Toolset
	logger        *slog.Logger
	tracer        trace.Tracer
	serverName    string
	serverVersion string

	// initialized records whether any client has completed the initialize
	// handshake. It gates nothing; it only informs logging.
	initialized atomic.Bool
}

// NewEngine creates a protocol engine over the given registry and toolsets.
// The empty-named toolset always exists: when the configuration does not
// define one, the engine adds a default containing every registered tool.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.ServerName
	if name == "" {
		name = "mcp-toolbox"
	}
	version := cfg.ServerVersion
	if version == "" {
		version = "dev"
	}

	toolsets := make(map[string]*tools.Toolset, len(cfg.Toolsets)+1)
	for tsName, ts := range cfg.Toolsets {
		toolsets[tsName] = ts
	}
	if _, ok := toolsets[""]; !ok {
		toolsets[""] = tools.NewToolset("", DefaultToolsetDescription, cfg.Registry.All())
	}

	return &Engine{
		registry:      cfg.Registry,
		toolsets:      toolsets,
		logger:        logger,
		tracer:        otel.Tracer("github.com/quarry/toolbox/internal/mcp"),
		serverName:    name,
		serverVersion: version,
	}, nil
}

// HasToolset reports whether a toolset with the given name exists.
func (e *Engine) HasToolset(name string) bool {
	_, ok := e.toolsets[name]
	return ok
}

// Initialized reports whether any client has completed the initialize
// handshake.
func (e *Engine) Initialized() bool {
	return e.initialized.Load()
}

// HandleMessage processes one raw JSON-RPC message scoped to the named
// toolset and returns the serialized response, or nil when the message is a
// notification that produces no response.
func (e *Engine) HandleMessage(ctx context.Context, toolset string, raw []byte) []byte {
	resp := e.handle(ctx, toolset, raw)
	if resp == nil {
		return nil
	}
	out, err := json.Marshal(resp)
	if err != nil {
		e.logger.Warn("Failed to marshal response", "error", err)
		out, _ = json.Marshal(NewErrorResponse(NullID, JSONRPCInternalError, err.Error(), nil))
	}
	return out
}

func (e *Engine) handle(ctx context.Context, toolset string, raw []byte) *JSONRPCResponse {
	var req JSONRPCRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		e.logger.Warn("Failed to parse message", "error", err)
		return NewErrorResponse(NullID, JSONRPCInternalError, err.Error(), nil)
	}
	// The jsonrpc member must be present; its value is not checked.
	if req.JSONRPC == "" {
		return NewErrorResponse(NullID, JSONRPCInternalError, "request has no jsonrpc version", nil)
	}
	if req.Method == "" {
		return NewErrorResponse(NullID, JSONRPCInternalError, "request has no method", nil)
	}

	// A missing id echoes back as null. The literal null id stays as-is.
	id := req.ID
	if len(id) == 0 {
		id = NullID
	}

	e.logger.Debug("MCP request", "method", req.Method, "toolset", toolset)

	switch req.Method {
	case "initialize":
		return e.handleInitialize(id)
	case "notifications/initialized":
		// A true notification gets no response at all. Clients that attach
		// an id to the notification get an empty result back.
		if len(req.ID) == 0 || string(req.ID) == "null" {
			return nil
		}
		return NewResultResponse(id, struct{}{})
	case "tools/list":
		return e.handleListTools(id, toolset)
	case "tools/call":
		return e.handleCallTool(ctx, id, toolset, req.Params)
	default:
		return NewErrorResponse(id, JSONRPCMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
	}
}

func (e *Engine) handleInitialize(id json.RawMessage) *JSONRPCResponse {
	e.initialized.Store(true)
	result := map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{
				"listChanged": false,
			},
		},
		"serverInfo": map[string]any{
			"name":    e.serverName,
			"version": e.serverVersion,
		},
	}
	return NewResultResponse(id, result)
}

func (e *Engine) handleListTools(id json.RawMessage, toolset string) *JSONRPCResponse {
	ts, ok := e.toolsets[toolset]
	if !ok {
		return NewErrorResponse(id, JSONRPCInvalidParams, fmt.Sprintf("Toolset not found: %s", toolset), nil)
	}
	result := MCPListToolsResult{Tools: ts.Manifests()}
	e.logger.Debug("Listed tools", "toolset", toolset, "count", len(result.Tools))
	return NewResultResponse(id, result)
}

func (e *Engine) handleCallTool(ctx context.Context, id json.RawMessage, toolset string, rawParams json.RawMessage) *JSONRPCResponse {
	var params MCPCallToolParams
	if len(rawParams) > 0 {
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return NewErrorResponse(id, JSONRPCInvalidParams, "invalid params", nil)
		}
	}

	ts, ok := e.toolsets[toolset]
	if !ok {
		return NewErrorResponse(id, JSONRPCInvalidParams, fmt.Sprintf("Toolset not found: %s", toolset), nil)
	}
	if params.Name == "" {
		return NewErrorResponse(id, JSONRPCInvalidParams, "tool name is required", nil)
	}
	tool, ok := ts.Get(params.Name)
	if !ok {
		return NewErrorResponse(id, JSONRPCInvalidParams, fmt.Sprintf("Tool not found in toolset: %s", params.Name), nil)
	}

	if !tool.Authorized(auth.Verified(ctx)) {
		e.logger.Warn("Unauthorized tool call", "tool", params.Name, "toolset", toolset)
		return e.toolError(id, fmt.Sprintf("Unauthorized to invoke tool %q", params.Name))
	}

	// A malformed arguments value fails like any other invocation problem:
	// the tool was resolved, so the failure rides the result envelope.
	args := map[string]any{}
	if len(params.Arguments) > 0 && string(params.Arguments) != "null" {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return e.toolError(id, "arguments must be an object")
		}
	}

	ctx, span := e.tracer.Start(ctx, "tools/call",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("mcp.tool", params.Name),
			attribute.String("mcp.toolset", toolset),
		))
	defer span.End()

	e.logger.Info("Invoking tool", "tool", params.Name, "toolset", toolset)
	results, err := tool.Invoke(ctx, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool invocation failed")
		e.logger.Warn("Tool invocation failed", "tool", params.Name, "error", err)
		return e.toolError(id, err.Error())
	}

	text, err := json.Marshal(results)
	if err != nil {
		return e.toolError(id, fmt.Sprintf("serialize tool results: %v", err))
	}
	return NewResultResponse(id, MCPCallToolResult{
		Content: []MCPContent{{Type: "text", Text: string(text)}},
	})
}

// toolError reports a tool-level failure. Unlike protocol errors these travel
// inside a successful JSON-RPC envelope with isError set, so clients can
// surface them as tool output rather than transport faults.
func (e *Engine) toolError(id json.RawMessage, message string) *JSONRPCResponse {
	return NewResultResponse(id, MCPCallToolResult{
		Content: []MCPContent{{Type: "text", Text: message}},
		IsError: true,
	})
}
