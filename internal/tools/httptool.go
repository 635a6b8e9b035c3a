// ABOUTME: HTTP tool kind mapping typed parameters onto path, query, body, and header slots
// ABOUTME: Path and body templates use text/template actions resolved per invocation

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/quarry/toolbox/internal/sources"
)

func init() {
	RegisterKind("http", newHTTPToolConfig)
}

var validHTTPMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// HTTPToolConfig is the decoded configuration for the http tool kind.
// Parameters are declared in four slots that decide where each value lands
// on the outbound request; names must be unique across all four.
type HTTPToolConfig struct {
	commonConfig `yaml:",inline"`
	Path         string            `yaml:"path"`
	Method       string            `yaml:"method"`
	Headers      map[string]string `yaml:"headers"`
	RequestBody  string            `yaml:"requestBody"`
	PathParams   []ParameterConfig `yaml:"pathParams"`
	QueryParams  []ParameterConfig `yaml:"queryParams"`
	BodyParams   []ParameterConfig `yaml:"bodyParams"`
	HeaderParams []ParameterConfig `yaml:"headerParams"`

	name       string
	pathParams []*Parameter
	queryPs    []*Parameter
	bodyPs     []*Parameter
	headerPs   []*Parameter
	params     *ParameterSet
	pathTmpl   *template.Template
	bodyTmpl   *template.Template
}

func newHTTPToolConfig(name string, node *yaml.Node) (Config, error) {
	cfg := HTTPToolConfig{Method: "GET"}
	if err := node.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}
	cfg.name = name
	if cfg.Source == "" {
		return nil, fmt.Errorf("tool %q: source is required", name)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("tool %q: path is required", name)
	}
	cfg.Method = strings.ToUpper(cfg.Method)
	if !validHTTPMethods[cfg.Method] {
		return nil, fmt.Errorf("tool %q: %s is not a valid http method", name, cfg.Method)
	}

	var err error
	if cfg.pathParams, err = buildParameters(cfg.PathParams); err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}
	if cfg.queryPs, err = buildParameters(cfg.QueryParams); err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}
	if cfg.bodyPs, err = buildParameters(cfg.BodyParams); err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}
	if cfg.headerPs, err = buildParameters(cfg.HeaderParams); err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}

	all := make([]*Parameter, 0, len(cfg.pathParams)+len(cfg.queryPs)+len(cfg.bodyPs)+len(cfg.headerPs))
	all = append(all, cfg.pathParams...)
	all = append(all, cfg.queryPs...)
	all = append(all, cfg.bodyPs...)
	all = append(all, cfg.headerPs...)
	if dups := duplicateNames(all); len(dups) > 0 {
		return nil, fmt.Errorf("tool %q: parameter name must be unique across pathParams, queryParams, bodyParams, and headerParams; duplicate parameters: %s",
			name, strings.Join(dups, ", "))
	}
	if cfg.params, err = newParameterSet(all); err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}

	// missingkey=error surfaces template actions that reference names
	// outside the declared parameter slots.
	cfg.pathTmpl, err = template.New("path").Option("missingkey=error").Parse(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("tool %q: invalid path template: %w", name, err)
	}
	if cfg.RequestBody != "" {
		cfg.bodyTmpl, err = template.New("body").Option("missingkey=error").Parse(cfg.RequestBody)
		if err != nil {
			return nil, fmt.Errorf("tool %q: invalid requestBody template: %w", name, err)
		}
	}
	return &cfg, nil
}

func buildParameters(configs []ParameterConfig) ([]*Parameter, error) {
	params := make([]*Parameter, 0, len(configs))
	for _, cfg := range configs {
		p, err := buildParameter(cfg, "")
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

// duplicateNames returns names appearing more than once, in first-seen order.
func duplicateNames(params []*Parameter) []string {
	counts := make(map[string]int, len(params))
	for _, p := range params {
		counts[p.Name()]++
	}
	var dups []string
	seen := make(map[string]bool)
	for _, p := range params {
		if counts[p.Name()] > 1 && !seen[p.Name()] {
			seen[p.Name()] = true
			dups = append(dups, p.Name())
		}
	}
	return dups
}

func (c *HTTPToolConfig) ToolName() string { return c.name }
func (c *HTTPToolConfig) ToolKind() string { return "http" }

func (c *HTTPToolConfig) Build(srcs map[string]sources.Source) (Tool, error) {
	src, ok := srcs[c.Source]
	if !ok {
		return nil, fmt.Errorf("source %q not found", c.Source)
	}
	httpSrc, isHTTP := src.(sources.HTTPSource)
	if !isHTTP {
		return nil, fmt.Errorf("source %q must be an http source", c.Source)
	}
	return &httpTool{
		base:       c.newBase(c.name, "http"),
		source:     httpSrc,
		method:     c.Method,
		headers:    c.Headers,
		pathParams: c.pathParams,
		queryPs:    c.queryPs,
		bodyPs:     c.bodyPs,
		headerPs:   c.headerPs,
		params:     c.params,
		pathTmpl:   c.pathTmpl,
		bodyTmpl:   c.bodyTmpl,
	}, nil
}

type httpTool struct {
	base
	source     sources.HTTPSource
	method     string
	headers    map[string]string
	pathParams []*Parameter
	queryPs    []*Parameter
	bodyPs     []*Parameter
	headerPs   []*Parameter
	params     *ParameterSet
	pathTmpl   *template.Template
	bodyTmpl   *template.Template
}

func (t *httpTool) Manifest() Manifest {
	return Manifest{
		Name:        t.name,
		Description: t.description,
		InputSchema: t.params.Schema(),
	}
}

func (t *httpTool) Invoke(ctx context.Context, args map[string]any) ([]any, error) {
	validated, err := t.params.ValidateValues(args)
	if err != nil {
		return nil, err
	}

	path, err := t.renderPath(validated)
	if err != nil {
		return nil, err
	}
	headers := t.buildHeaders(validated)
	body, isJSON, err := t.buildBody(validated)
	if err != nil {
		return nil, err
	}
	if isJSON && !hasContentType(headers) {
		headers["Content-Type"] = "application/json"
	}

	resp, err := t.source.Do(ctx, &sources.HTTPRequest{
		Method:  t.method,
		Path:    path,
		Headers: headers,
		Query:   t.buildQuery(validated),
		Body:    body,
	})
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %v", resp.StatusCode, resp.Data)
	}

	if items, ok := resp.Data.([]any); ok {
		return items, nil
	}
	return []any{resp.Data}, nil
}

func (t *httpTool) renderPath(validated map[string]any) (string, error) {
	data := make(map[string]string, len(t.pathParams))
	for _, p := range t.pathParams {
		data[p.Name()] = stringify(validated[p.Name()])
	}
	var buf bytes.Buffer
	if err := t.pathTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render path template: %w", err)
	}
	return buf.String(), nil
}

func (t *httpTool) buildQuery(validated map[string]any) url.Values {
	query := url.Values{}
	for _, p := range t.queryPs {
		value := validated[p.Name()]
		if items, ok := value.([]any); ok {
			for _, item := range items {
				query.Add(p.Name(), stringify(item))
			}
			continue
		}
		query.Set(p.Name(), stringify(value))
	}
	return query
}

func (t *httpTool) buildHeaders(validated map[string]any) map[string]string {
	headers := make(map[string]string, len(t.headers)+len(t.headerPs))
	for k, v := range t.headers {
		headers[k] = v
	}
	for _, p := range t.headerPs {
		headers[p.Name()] = stringify(validated[p.Name()])
	}
	return headers
}

// buildBody returns the request payload. A configured body template is
// rendered and must produce valid JSON; body parameters without a template
// are sent as a flat JSON object. A template with no body parameters sends
// no payload at all.
func (t *httpTool) buildBody(validated map[string]any) ([]byte, bool, error) {
	switch {
	case t.bodyTmpl != nil && len(t.bodyPs) > 0:
		data := make(map[string]string, len(t.bodyPs))
		for _, p := range t.bodyPs {
			data[p.Name()] = templateValue(validated[p.Name()])
		}
		var buf bytes.Buffer
		if err := t.bodyTmpl.Execute(&buf, data); err != nil {
			return nil, false, fmt.Errorf("render requestBody template: %w", err)
		}
		var parsed any
		if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
			return nil, false, fmt.Errorf("requestBody template produced invalid JSON: %w", err)
		}
		body, err := json.Marshal(parsed)
		if err != nil {
			return nil, false, err
		}
		return body, true, nil

	case len(t.bodyPs) > 0:
		payload := make(map[string]any, len(t.bodyPs))
		for _, p := range t.bodyPs {
			payload[p.Name()] = validated[p.Name()]
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, false, err
		}
		return body, true, nil
	}
	return nil, false, nil
}

// templateValue renders a parameter value for template substitution.
// Composite values become JSON so templates can inline them.
func templateValue(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return stringify(v)
		}
		return string(b)
	default:
		return stringify(v)
	}
}

func hasContentType(headers map[string]string) bool {
	for k := range headers {
		if strings.EqualFold(k, "Content-Type") {
			return true
		}
	}
	return false
}
