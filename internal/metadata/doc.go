// Package metadata resolves human-readable column descriptions for tool
// results from a Postgres catalog.
//
// The Store keeps a small dedicated pool (one to five connections) against
// the catalog database configured under metadata_source. Lookups probe the
// connection with SELECT 1 before querying, because idle pooled connections
// against managed Postgres are routinely recycled; a connection-level
// failure earns exactly one retry after a 150ms backoff, while SQL errors
// the server itself reports fail immediately.
//
// ResolveColumns pairs the fetched name-to-description mapping with the
// columns actually present in a result, producing the
// column_descriptions entries that invocation post-processing appends.
// An optional TTL cache (cache_ttl) skips repeat round-trips for the same
// datasource-id set.
package metadata
