// Package mcp implements the Model Context Protocol engine for tool access.
//
// # Overview
//
// MCP (Model Context Protocol) is a standard for AI tool integration. This
// package provides the protocol core: a JSON-RPC 2.0 engine that exposes the
// configured tools to external AI clients (like Claude Desktop, other LLMs,
// or custom applications). The engine is transport-independent; the HTTP and
// stdio front ends in internal/server feed it raw messages.
//
// # Protocol
//
// The engine handles the standard MCP method set:
//
//   - initialize - protocol handshake, returns server info and capabilities
//   - notifications/initialized - client acknowledgment, no response
//   - tools/list - tool discovery with JSON Schema manifests
//   - tools/call - tool execution
//
// # Toolsets
//
// Every message is scoped to a toolset, named by the transport (the HTTP
// front end takes it from the URL path, stdio always uses the default). A
// toolset restricts both discovery and execution to its member tools. The
// empty-named toolset always exists and contains every registered tool
// unless the configuration overrides it.
//
// # Tool Discovery
//
// Clients call tools/list to discover available tools:
//
//	{
//	  "jsonrpc": "2.0",
//	  "method": "tools/list",
//	  "id": 1
//	}
//
// Response includes tool schemas in JSON Schema format.
//
// # Tool Execution
//
// Clients call tools/call to execute a tool:
//
//	{
//	  "jsonrpc": "2.0",
//	  "method": "tools/call",
//	  "params": {
//	    "name": "search-hotels-by-location",
//	    "arguments": {"location": "Basel"}
//	  },
//	  "id": 2
//	}
//
// Results arrive as a single text content item holding the JSON-encoded row
// list. Tool-level failures (validation, backend errors, authorization) come
// back inside a successful envelope with isError set, so clients can show
// them as tool output; protocol-level failures use JSON-RPC error objects.
//
// # Usage
//
// Create the engine over a built registry and toolsets:
//
//	engine, err := mcp.NewEngine(mcp.Config{
//		Registry: registry,
//		Toolsets: toolsets,
//		Logger:   logger,
//	})
//
// Then dispatch messages from any transport:
//
//	response := engine.HandleMessage(ctx, toolsetName, rawMessage)
//	if response != nil {
//		// write response bytes back to the client
//	}
package mcp
