// ABOUTME: HTTP source holding a shared client plus base URL, header, and query defaults
// ABOUTME: Tools describe requests declaratively; Do merges defaults and decodes JSON bodies

package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

func init() {
	Register("http", newHTTPConfig)
}

// HTTPSource performs requests against a configured base URL. Source-level
// headers and query parameters are applied first; per-request values
// override them key by key.
type HTTPSource interface {
	Source
	Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}

// HTTPRequest describes one outbound request. Path is joined onto the
// source's base URL unless it is already absolute. A nil Body sends no
// request body.
type HTTPRequest struct {
	Method  string
	Path    string
	Headers map[string]string
	Query   url.Values
	Body    []byte
}

// HTTPResponse carries the status code and the decoded response body. Bodies
// that are not valid JSON are returned as the raw string.
type HTTPResponse struct {
	StatusCode int
	Data       any
}

// HTTPConfig holds the settings for an http source. Timeout accepts a Go
// duration ("30s") or a bare number of seconds.
type HTTPConfig struct {
	Name        string            `yaml:"-"`
	BaseURL     string            `yaml:"baseUrl"`
	Timeout     string            `yaml:"timeout"`
	Headers     map[string]string `yaml:"headers"`
	QueryParams map[string]string `yaml:"queryParams"`

	timeout time.Duration
}

func newHTTPConfig(name string, node *yaml.Node) (Config, error) {
	cfg := HTTPConfig{
		Name:    name,
		Timeout: "30s",
	}
	if err := node.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("source %q: %w", name, err)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("source %q: baseUrl is required", name)
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("source %q: baseUrl %q is not a valid absolute URL", name, cfg.BaseURL)
	}
	cfg.timeout, err = parseTimeout(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", name, err)
	}
	return &cfg, nil
}

// parseTimeout accepts a Go duration or a bare number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if v == "" {
		return 30 * time.Second, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	if secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return 0, fmt.Errorf("invalid timeout %q", v)
}

func (c *HTTPConfig) SourceName() string { return c.Name }
func (c *HTTPConfig) SourceKind() string { return "http" }

func (c *HTTPConfig) Create() (Source, error) {
	return &httpSource{config: c}, nil
}

type httpSource struct {
	config *HTTPConfig
	client *http.Client
}

func (s *httpSource) Name() string { return s.config.Name }
func (s *httpSource) Kind() string { return "http" }

func (s *httpSource) Initialize(ctx context.Context) error {
	s.client = &http.Client{Timeout: s.config.timeout}
	return nil
}

func (s *httpSource) Cleanup(ctx context.Context) error {
	if s.client != nil {
		s.client.CloseIdleConnections()
		s.client = nil
	}
	return nil
}

func (s *httpSource) Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	full := req.Path
	if !strings.HasPrefix(full, "http") {
		full = strings.TrimRight(s.config.BaseURL, "/") + "/" + strings.TrimLeft(req.Path, "/")
	}
	u, err := url.Parse(full)
	if err != nil {
		return nil, fmt.Errorf("build request URL: %w", err)
	}
	q := u.Query()
	for k, v := range s.config.QueryParams {
		q.Set(k, v)
	}
	for k, vs := range req.Query {
		q[k] = vs
	}
	u.RawQuery = q.Encode()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range s.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var data any = ""
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			data = string(raw)
		}
	}
	return &HTTPResponse{StatusCode: resp.StatusCode, Data: data}, nil
}
