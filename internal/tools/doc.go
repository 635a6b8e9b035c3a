// ABOUTME: Package documentation for the tool layer
// ABOUTME: Explains tool kinds, typed parameters, and toolset scoping

// Package tools defines the operations a connected client can discover and
// invoke, the typed parameter model that guards their inputs, and the
// toolsets that scope which tools a client sees.
//
// # Overview
//
// A Tool wraps one operation on a backend source: a parameterized SQL
// statement or a templated HTTP request. Tools are built from configuration
// at startup in two phases. First each tool's YAML node is decoded through
// the factory registered for its kind:
//
//	cfg, err := tools.DecodeConfig("postgres-sql", "search-hotels", node)
//
// Then, once the sources exist, every config builds its runtime tool:
//
//	tool, err := cfg.Build(sourcesByName)
//
// Build is where a tool binds to its source and where kind mismatches
// (an http tool pointing at a postgres source) are rejected.
//
// # Parameters
//
// Every tool declares typed parameters. Invoke validates the caller's
// arguments against them in one pass: unknown names are rejected, missing
// required values are rejected, optional values fall back to their
// defaults, and every provided value is coerced to its declared type before
// constraint checks (enum membership, numeric bounds, length, pattern) run.
// The same parameter set emits the JSON Schema advertised in the tool's
// Manifest, so what clients see and what Invoke enforces cannot drift.
//
// # Toolsets
//
// A Toolset is a named subset of the registry. Clients connect against a
// toolset and can only list and call its members; the unnamed default
// toolset spans every configured tool.
package tools
