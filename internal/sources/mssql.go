// ABOUTME: SQL Server source on the go-mssqldb driver via database/sql
// ABOUTME: Maps yes/no certificate and encryption flags onto sqlserver URL params

package sources

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"gopkg.in/yaml.v3"
)

func init() {
	Register("mssql", newMSSQLConfig)
}

// MSSQLConfig holds the connection settings for a mssql source. Encrypt and
// TrustServerCertificate accept yes/no for compatibility with existing
// configs and are translated to the driver's true/false form.
type MSSQLConfig struct {
	Name                   string `yaml:"-"`
	Server                 string `yaml:"server"`
	Database               string `yaml:"database"`
	User                   string `yaml:"user"`
	Password               string `yaml:"password"`
	Encrypt                string `yaml:"encrypt"`
	TrustServerCertificate string `yaml:"trust_server_certificate"`
}

func newMSSQLConfig(name string, node *yaml.Node) (Config, error) {
	cfg := MSSQLConfig{
		Name:                   name,
		Encrypt:                "yes",
		TrustServerCertificate: "yes",
	}
	if err := node.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("source %q: %w", name, err)
	}
	if cfg.Server == "" {
		return nil, fmt.Errorf("source %q: server is required", name)
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("source %q: database is required", name)
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("source %q: user is required", name)
	}
	return &cfg, nil
}

func (c *MSSQLConfig) SourceName() string { return c.Name }
func (c *MSSQLConfig) SourceKind() string { return "mssql" }

func (c *MSSQLConfig) Create() (Source, error) {
	return &mssqlSource{config: c}, nil
}

func (c *MSSQLConfig) dsn() string {
	q := url.Values{}
	q.Set("database", c.Database)
	q.Set("encrypt", yesNoToBool(c.Encrypt))
	q.Set("trustservercertificate", yesNoToBool(c.TrustServerCertificate))
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Server,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func yesNoToBool(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "true", "1":
		return "true"
	default:
		return "false"
	}
}

type mssqlSource struct {
	config *MSSQLConfig
	db     *sql.DB
}

func (s *mssqlSource) Name() string { return s.config.Name }
func (s *mssqlSource) Kind() string { return "mssql" }

func (s *mssqlSource) Initialize(ctx context.Context) error {
	db, err := sql.Open("sqlserver", s.config.dsn())
	if err != nil {
		return fmt.Errorf("open mssql source %q: %w", s.config.Name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("connect to mssql source %q: %w", s.config.Name, err)
	}
	s.db = db
	return nil
}

func (s *mssqlSource) Cleanup(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *mssqlSource) ExecuteQuery(ctx context.Context, statement string, params []any) ([]map[string]any, error) {
	return queryRows(ctx, s.db, statement, params)
}
