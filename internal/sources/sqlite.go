// ABOUTME: SQLite source using the pure-Go modernc driver through database/sql
// ABOUTME: Config takes a file path; ? placeholders bind statement parameters

package sources

import (
	"context"
	"database/sql"
	"fmt"

	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"
)

func init() {
	Register("sqlite", newSQLiteConfig)
}

// SQLiteConfig holds the database file path for a sqlite source.
type SQLiteConfig struct {
	Name string `yaml:"-"`
	Path string `yaml:"path"`
}

func newSQLiteConfig(name string, node *yaml.Node) (Config, error) {
	cfg := SQLiteConfig{Name: name}
	if err := node.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("source %q: %w", name, err)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("source %q: path is required", name)
	}
	return &cfg, nil
}

func (c *SQLiteConfig) SourceName() string { return c.Name }
func (c *SQLiteConfig) SourceKind() string { return "sqlite" }

func (c *SQLiteConfig) Create() (Source, error) {
	return &sqliteSource{config: c}, nil
}

type sqliteSource struct {
	config *SQLiteConfig
	db     *sql.DB
}

func (s *sqliteSource) Name() string { return s.config.Name }
func (s *sqliteSource) Kind() string { return "sqlite" }

func (s *sqliteSource) Initialize(ctx context.Context) error {
	// busy_timeout keeps concurrent tool calls from failing on a locked file.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", s.config.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open sqlite source %q: %w", s.config.Name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("connect to sqlite source %q: %w", s.config.Name, err)
	}
	s.db = db
	return nil
}

func (s *sqliteSource) Cleanup(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *sqliteSource) ExecuteQuery(ctx context.Context, statement string, params []any) ([]map[string]any, error) {
	return queryRows(ctx, s.db, statement, params)
}
