// ABOUTME: Package documentation for the backend source layer
// ABOUTME: Explains the source lifecycle and how kinds register their config factories

// Package sources defines the backends that tools execute against and the
// registry that maps configuration kinds to typed configs.
//
// # Overview
//
// A Source is a named, long-lived handle on one backend: a postgres pool, a
// mysql or mssql connection, a sqlite file, or an HTTP client bound to a
// base URL. Sources are created from configuration before the server starts
// serving, initialized once, shared by every tool that references them, and
// cleaned up on shutdown. The set of sources never changes while the server
// is running.
//
// Each kind registers a ConfigFactory in an init function, so decoding a
// config file only needs the kind string:
//
//	cfg, err := sources.DecodeConfig("postgres", "main-db", node)
//
// SQL-capable kinds implement SQLSource and return rows as column-keyed
// maps. The http kind implements HTTPSource, merging its default headers and
// query parameters under the request's own before dispatching.
package sources
