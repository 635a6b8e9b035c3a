// Package server assembles and serves the toolbox over HTTP and stdio.
//
// # Assembly
//
// New builds the runtime from a parsed tools file in dependency order:
// sources are created and initialized, tools are built against them and
// wrapped with their invocation middleware, toolsets are resolved, and the
// protocol engine is constructed over the result. Assembly fails fast on
// the first configuration problem so a bad tools file never half-starts.
//
// # Transports
//
// The HTTP transport mounts:
//
//   - POST /mcp and POST /mcp/{toolset} - JSON-RPC requests
//   - GET /mcp/sse and GET /mcp/{toolset}/sse - SSE streams
//   - GET /health - liveness check
//
// An SSE client receives an endpoint event naming the POST URL for its
// session; responses to POSTs carrying that sessionId are mirrored onto
// the stream as message events. The stdio transport reads one JSON-RPC
// message per line and always serves the default toolset.
//
// # Invocation Middleware
//
// Tools configured with pre_hook run a named registered Hook before
// executing, and tools with datasource_ids get their tabular results
// annotated with column descriptions from the metadata store. Both
// concerns live in one wrapper applied at assembly time.
package server
