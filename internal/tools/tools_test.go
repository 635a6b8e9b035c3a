// ABOUTME: Tests for the tool registries, shared config fields, and toolset resolution
// ABOUTME: Exercises both toolset YAML shapes and registry ordering guarantees

package tools

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// decodeNode parses a YAML snippet and returns its root mapping node.
func decodeNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if len(doc.Content) == 0 {
		t.Fatal("yaml document is empty")
	}
	return doc.Content[0]
}

// stubTool is a minimal Tool for registry and toolset tests.
type stubTool struct {
	base
}

func newStubTool(name string) *stubTool {
	return &stubTool{base: base{name: name, kind: "stub", description: "stub " + name}}
}

func (t *stubTool) Manifest() Manifest {
	return Manifest{Name: t.name, Description: t.description, InputSchema: map[string]any{"type": "object"}}
}

func (t *stubTool) Invoke(ctx context.Context, args map[string]any) ([]any, error) {
	return []any{t.name}, nil
}

func TestDecodeConfig_UnknownKind(t *testing.T) {
	node := decodeNode(t, "source: db\n")
	_, err := DecodeConfig("bogus", "mystery", node)
	if err == nil || err.Error() != "unknown tool kind: bogus" {
		t.Errorf("DecodeConfig() error = %v, want unknown tool kind: bogus", err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		if err := r.Add(newStubTool(name)); err != nil {
			t.Fatalf("Add(%s) error = %v", name, err)
		}
	}

	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}

	// Names keep configuration order, not sorted order.
	if got := r.Names(); !reflect.DeepEqual(got, []string{"charlie", "alpha", "bravo"}) {
		t.Errorf("Names() = %v", got)
	}

	if tool, ok := r.Get("alpha"); !ok || tool.Name() != "alpha" {
		t.Errorf("Get(alpha) = %v, %v", tool, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) = true, want false")
	}

	all := r.All()
	if len(all) != 3 || all[0].Name() != "charlie" || all[2].Name() != "bravo" {
		t.Errorf("All() order = %v", all)
	}

	err := r.Add(newStubTool("alpha"))
	if err == nil || !strings.Contains(err.Error(), `duplicate tool name "alpha"`) {
		t.Errorf("Add(duplicate) error = %v", err)
	}
}

func TestSplitDatasourceIDs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "a1", want: []string{"a1"}},
		{in: "a1,b2,c3", want: []string{"a1", "b2", "c3"}},
		{in: " a1 , b2 ", want: []string{"a1", "b2"}},
		{in: "a1,,b2,", want: []string{"a1", "b2"}},
	}
	for _, tt := range tests {
		if got := splitDatasourceIDs(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitDatasourceIDs(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAuthorized(t *testing.T) {
	tests := []struct {
		name     string
		required []string
		verified []string
		want     bool
	}{
		{name: "no requirement admits everyone", required: nil, verified: nil, want: true},
		{name: "no requirement ignores credentials", required: nil, verified: []string{"acme"}, want: true},
		{name: "matching service admits", required: []string{"acme"}, verified: []string{"acme"}, want: true},
		{name: "any overlap admits", required: []string{"acme", "globex"}, verified: []string{"globex"}, want: true},
		{name: "no overlap rejects", required: []string{"acme"}, verified: []string{"globex"}, want: false},
		{name: "unverified caller rejected", required: []string{"acme"}, verified: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := base{authRequired: tt.required}
			if got := b.Authorized(tt.verified); got != tt.want {
				t.Errorf("Authorized(%v) = %v, want %v", tt.verified, got, tt.want)
			}
		})
	}
}

func TestToolsetConfig_UnmarshalYAML(t *testing.T) {
	t.Run("bare list of names", func(t *testing.T) {
		var cfg ToolsetConfig
		if err := yaml.Unmarshal([]byte("[search, lookup]"), &cfg); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if !reflect.DeepEqual(cfg.Tools, []string{"search", "lookup"}) {
			t.Errorf("Tools = %v", cfg.Tools)
		}
		if cfg.Description != "" {
			t.Errorf("Description = %q, want empty", cfg.Description)
		}
	})

	t.Run("mapping with tools and description", func(t *testing.T) {
		var cfg ToolsetConfig
		src := "tools: [search]\ndescription: Search tools\n"
		if err := yaml.Unmarshal([]byte(src), &cfg); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if !reflect.DeepEqual(cfg.Tools, []string{"search"}) || cfg.Description != "Search tools" {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	t.Run("mapping with tool_names", func(t *testing.T) {
		var cfg ToolsetConfig
		if err := yaml.Unmarshal([]byte("tool_names: [search, lookup]\n"), &cfg); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if !reflect.DeepEqual(cfg.Tools, []string{"search", "lookup"}) {
			t.Errorf("Tools = %v", cfg.Tools)
		}
	})

	t.Run("tools wins over tool_names", func(t *testing.T) {
		var cfg ToolsetConfig
		if err := yaml.Unmarshal([]byte("tools: [a]\ntool_names: [b]\n"), &cfg); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if !reflect.DeepEqual(cfg.Tools, []string{"a"}) {
			t.Errorf("Tools = %v, want [a]", cfg.Tools)
		}
	})

	t.Run("scalar is rejected", func(t *testing.T) {
		var cfg ToolsetConfig
		err := yaml.Unmarshal([]byte("just-a-string"), &cfg)
		if err == nil || !strings.Contains(err.Error(), "toolset must be a list") {
			t.Errorf("Unmarshal() error = %v", err)
		}
	})
}

func TestToolset(t *testing.T) {
	search := newStubTool("search")
	lookup := newStubTool("lookup")
	s := NewToolset("hr", "HR tools", []Tool{search, lookup, search})

	if s.Name() != "hr" || s.Description() != "HR tools" {
		t.Errorf("Name/Description = %q/%q", s.Name(), s.Description())
	}

	// Duplicate members collapse; order follows first appearance.
	if got := s.ToolNames(); !reflect.DeepEqual(got, []string{"search", "lookup"}) {
		t.Errorf("ToolNames() = %v", got)
	}

	if !s.Has("search") || s.Has("other") {
		t.Errorf("Has() = %v/%v", s.Has("search"), s.Has("other"))
	}
	if tool, ok := s.Get("lookup"); !ok || tool.Name() != "lookup" {
		t.Errorf("Get(lookup) = %v, %v", tool, ok)
	}

	manifests := s.Manifests()
	if len(manifests) != 2 || manifests[0].Name != "search" || manifests[1].Name != "lookup" {
		t.Errorf("Manifests() = %v", manifests)
	}
}

func TestBuildToolsets(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Add(newStubTool("search")); err != nil {
		t.Fatal(err)
	}

	t.Run("resolves members from the registry", func(t *testing.T) {
		sets, err := BuildToolsets(map[string]ToolsetConfig{
			"hr": {Tools: []string{"search"}, Description: "HR tools"},
		}, registry)
		if err != nil {
			t.Fatalf("BuildToolsets() error = %v", err)
		}
		set, ok := sets["hr"]
		if !ok || !set.Has("search") || set.Description() != "HR tools" {
			t.Errorf("sets[hr] = %+v", set)
		}
	})

	t.Run("unknown member fails", func(t *testing.T) {
		_, err := BuildToolsets(map[string]ToolsetConfig{
			"hr": {Tools: []string{"ghost"}},
		}, registry)
		want := `tool "ghost" not found for toolset "hr"`
		if err == nil || err.Error() != want {
			t.Errorf("BuildToolsets() error = %v, want %v", err, want)
		}
	})
}
