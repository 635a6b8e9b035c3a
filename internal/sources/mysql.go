// ABOUTME: MySQL source built on database/sql with the go-sql-driver connector
// ABOUTME: Statements use ? placeholders; rows come back as column-keyed maps

package sources

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

func init() {
	Register("mysql", newMySQLConfig)
}

// MySQLConfig holds the connection settings for a mysql source. Database is
// optional; statements may qualify table names instead.
type MySQLConfig struct {
	Name     string `yaml:"-"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

func newMySQLConfig(name string, node *yaml.Node) (Config, error) {
	cfg := MySQLConfig{
		Name: name,
		Host: "localhost",
		Port: 3306,
	}
	if err := node.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("source %q: %w", name, err)
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("source %q: user is required", name)
	}
	return &cfg, nil
}

func (c *MySQLConfig) SourceName() string { return c.Name }
func (c *MySQLConfig) SourceKind() string { return "mysql" }

func (c *MySQLConfig) Create() (Source, error) {
	return &mysqlSource{config: c}, nil
}

type mysqlSource struct {
	config *MySQLConfig
	db     *sql.DB
}

func (s *mysqlSource) Name() string { return s.config.Name }
func (s *mysqlSource) Kind() string { return "mysql" }

func (s *mysqlSource) Initialize(ctx context.Context) error {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	mc.User = s.config.User
	mc.Passwd = s.config.Password
	mc.DBName = s.config.Database
	mc.ParseTime = true

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return fmt.Errorf("configure mysql source %q: %w", s.config.Name, err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("connect to mysql source %q: %w", s.config.Name, err)
	}
	s.db = db
	return nil
}

func (s *mysqlSource) Cleanup(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *mysqlSource) ExecuteQuery(ctx context.Context, statement string, params []any) ([]map[string]any, error) {
	return queryRows(ctx, s.db, statement, params)
}
