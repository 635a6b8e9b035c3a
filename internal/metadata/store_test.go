// ABOUTME: Tests for metadata config validation, retry classification, and resolution
// ABOUTME: Pure-logic coverage; the pool itself needs a live catalog database

package metadata

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gopkg.in/yaml.v3"
)

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	src := "host: meta.example.com\ndatabase: catalog\nuser: reader\npassword: pw\n"
	if err := yaml.Unmarshal([]byte(src), &cfg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.Port != 5432 {
		t.Errorf("Port = %d, want 5432", cfg.Port)
	}

	dsn := cfg.dsn()
	if !strings.HasPrefix(dsn, "postgres://") {
		t.Errorf("dsn = %q, want postgres scheme", dsn)
	}
	if !strings.Contains(dsn, "sslmode=require") {
		t.Errorf("dsn = %q, want sslmode=require", dsn)
	}
	if !strings.Contains(dsn, "meta.example.com:5432") {
		t.Errorf("dsn = %q, want default port", dsn)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{Host: "h", Database: "d", User: "u"}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing host", mutate: func(c *Config) { c.Host = "" }, wantErr: "host is required"},
		{name: "missing database", mutate: func(c *Config) { c.Database = "" }, wantErr: "database is required"},
		{name: "missing user", mutate: func(c *Config) { c.User = "" }, wantErr: "user is required"},
		{name: "bad cache ttl", mutate: func(c *Config) { c.CacheTTL = "soon" }, wantErr: `invalid cache_ttl "soon"`},
		{name: "good cache ttl", mutate: func(c *Config) { c.CacheTTL = "90s" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "deadline exceeded", err: fmt.Errorf("lookup: %w", context.DeadlineExceeded), want: false},
		{name: "connection exception class", err: &pgconn.PgError{Code: "08006"}, want: true},
		{name: "wrapped connection exception", err: fmt.Errorf("health check: %w", &pgconn.PgError{Code: "08003"}), want: true},
		{name: "undefined table", err: &pgconn.PgError{Code: "42P01"}, want: false},
		{name: "permission denied", err: &pgconn.PgError{Code: "42501"}, want: false},
		{name: "network-level failure", err: errors.New("dial tcp: connection refused"), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryable(tt.err); got != tt.want {
				t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCacheKey(t *testing.T) {
	a := cacheKey([]string{"b", "a", "c"})
	b := cacheKey([]string{"c", "b", "a"})
	if a != b {
		t.Errorf("cacheKey order-sensitive: %q vs %q", a, b)
	}
	if a != "a,b,c" {
		t.Errorf("cacheKey = %q, want a,b,c", a)
	}
}

func TestResolveColumns(t *testing.T) {
	descs := map[string]string{
		"city":  "City the hotel is in",
		"name":  "Hotel display name",
		"price": "Nightly rate in CHF",
	}

	t.Run("preserves column order and skips unknowns", func(t *testing.T) {
		got := ResolveColumns([]string{"name", "stars", "city"}, descs)
		want := []map[string]any{
			{"column_name": "name", "description": "Hotel display name"},
			{"column_name": "city", "description": "City the hotel is in"},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("ResolveColumns() = %v, want %v", got, want)
		}
	})

	t.Run("no matches yields an empty list", func(t *testing.T) {
		got := ResolveColumns([]string{"x", "y"}, descs)
		if got == nil || len(got) != 0 {
			t.Errorf("ResolveColumns() = %#v, want empty non-nil", got)
		}
	})
}
