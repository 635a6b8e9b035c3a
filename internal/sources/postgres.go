// ABOUTME: PostgreSQL source backed by a pgx connection pool
// ABOUTME: Decodes snake_case YAML config and executes $n-placeholder statements

package sources

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"
)

func init() {
	Register("postgres", newPostgresConfig)
}

// PostgresConfig holds the connection settings for a postgres source.
type PostgresConfig struct {
	Name     string `yaml:"-"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	PoolSize int    `yaml:"pool_size"`
}

func newPostgresConfig(name string, node *yaml.Node) (Config, error) {
	cfg := PostgresConfig{
		Name:     name,
		Port:     5432,
		SSLMode:  "prefer",
		PoolSize: 10,
	}
	if err := node.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("source %q: %w", name, err)
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("source %q: host is required", name)
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("source %q: database is required", name)
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("source %q: user is required", name)
	}
	return &cfg, nil
}

func (c *PostgresConfig) SourceName() string { return c.Name }
func (c *PostgresConfig) SourceKind() string { return "postgres" }

func (c *PostgresConfig) Create() (Source, error) {
	return &postgresSource{config: c}, nil
}

// dsn renders the config as a postgres connection URL.
func (c *PostgresConfig) dsn() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

type postgresSource struct {
	config *PostgresConfig
	pool   *pgxpool.Pool
}

func (s *postgresSource) Name() string { return s.config.Name }
func (s *postgresSource) Kind() string { return "postgres" }

func (s *postgresSource) Initialize(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(s.config.dsn())
	if err != nil {
		return fmt.Errorf("parse postgres config for %q: %w", s.config.Name, err)
	}
	poolCfg.MinConns = 1
	poolCfg.MaxConns = int32(s.config.PoolSize)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("create postgres pool for %q: %w", s.config.Name, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("connect to postgres source %q: %w", s.config.Name, err)
	}
	s.pool = pool
	return nil
}

func (s *postgresSource) Cleanup(ctx context.Context) error {
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}

func (s *postgresSource) ExecuteQuery(ctx context.Context, statement string, params []any) ([]map[string]any, error) {
	rows, err := s.pool.Query(ctx, statement, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var results []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, field := range fields {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[field.Name] = v
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
