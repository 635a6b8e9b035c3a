// ABOUTME: Postgres-backed column-description store used by result post-processing
// ABOUTME: Small fixed pool, per-lookup health check, and a single short-backoff retry

package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"
)

const (
	opTimeout    = 15 * time.Second
	retryBackoff = 150 * time.Millisecond

	cacheMaxEntries = 256
)

const columnQuery = `SELECT column_name, description FROM public."column" WHERE datasource_id = ANY($1::uuid[])`

// Config is the metadata_source section of the tools file. The catalog
// lives in a managed Postgres, so TLS is always on.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	CacheTTL string `yaml:"cache_ttl"`

	cacheTTL time.Duration
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	raw := rawConfig{Port: 5432}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*c = Config(raw)
	return nil
}

// Validate checks required fields and parses the cache TTL.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("metadata_source: host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("metadata_source: database is required")
	}
	if c.User == "" {
		return fmt.Errorf("metadata_source: user is required")
	}
	if c.CacheTTL != "" {
		ttl, err := time.ParseDuration(c.CacheTTL)
		if err != nil {
			return fmt.Errorf("metadata_source: invalid cache_ttl %q", c.CacheTTL)
		}
		c.cacheTTL = ttl
	}
	return nil
}

func (c *Config) dsn() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	q.Set("sslmode", "require")
	u.RawQuery = q.Encode()
	return u.String()
}

// Store looks up column descriptions for catalog datasources.
type Store struct {
	pool   *pgxpool.Pool
	cache  *Cache
	logger *slog.Logger
}

// NewStore validates the config, connects the pool, and verifies the
// connection. The pool stays small: descriptions are a side channel, not
// the query path.
func NewStore(ctx context.Context, cfg *Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("parse metadata config: %w", err)
	}
	poolCfg.MinConns = 1
	poolCfg.MaxConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect metadata source: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping metadata source: %w", err)
	}

	s := &Store{pool: pool, logger: logger}
	if cfg.cacheTTL > 0 {
		s.cache = NewCache(cfg.cacheTTL, cacheMaxEntries)
	}
	return s, nil
}

// Close releases the pool and stops the cache.
func (s *Store) Close() {
	s.pool.Close()
	if s.cache != nil {
		s.cache.Close()
	}
}

// ColumnDescriptions fetches the column-name to description mapping for
// the given datasource ids. A connection-level failure gets one retry
// after a short backoff; server-reported SQL errors do not.
func (s *Store) ColumnDescriptions(ctx context.Context, datasourceIDs []string) (map[string]string, error) {
	key := cacheKey(datasourceIDs)
	if s.cache != nil {
		if descs, ok := s.cache.Get(key); ok {
			return descs, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	descs, err := s.fetchOnce(ctx, datasourceIDs)
	if err != nil && retryable(err) {
		s.logger.Warn("metadata lookup failed, retrying once", "error", err)
		select {
		case <-time.After(retryBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		descs, err = s.fetchOnce(ctx, datasourceIDs)
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Put(key, descs)
	}
	return descs, nil
}

func (s *Store) fetchOnce(ctx context.Context, datasourceIDs []string) (map[string]string, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire metadata connection: %w", err)
	}
	defer conn.Release()

	// Recycled idle connections can be dead; probe before the real query.
	if _, err := conn.Exec(ctx, "SELECT 1"); err != nil {
		return nil, fmt.Errorf("metadata health check: %w", err)
	}

	rows, err := conn.Query(ctx, columnQuery, datasourceIDs)
	if err != nil {
		return nil, fmt.Errorf("query column descriptions: %w", err)
	}
	defer rows.Close()

	descs := make(map[string]string)
	for rows.Next() {
		var name string
		var description *string
		if err := rows.Scan(&name, &description); err != nil {
			return nil, fmt.Errorf("scan column description: %w", err)
		}
		if description != nil {
			descs[name] = *description
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read column descriptions: %w", err)
	}
	return descs, nil
}

// retryable reports whether an error looks connection-level. SQLSTATE
// class 08 covers the postgres connection exceptions; anything that is not
// a server-reported error at all (dial failures, resets, closed pools) is
// treated as connection-level too.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08")
	}
	return true
}

func cacheKey(datasourceIDs []string) string {
	ids := make([]string, len(datasourceIDs))
	copy(ids, datasourceIDs)
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

// ResolveColumns filters descriptions down to the given result columns,
// preserving column order. Columns without a description are omitted.
func ResolveColumns(columns []string, descriptions map[string]string) []map[string]any {
	resolved := make([]map[string]any, 0, len(columns))
	for _, col := range columns {
		if desc, ok := descriptions[col]; ok {
			resolved = append(resolved, map[string]any{
				"column_name": col,
				"description": desc,
			})
		}
	}
	return resolved
}
