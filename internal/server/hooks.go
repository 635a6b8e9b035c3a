// ABOUTME: Invocation middleware wrapping tools with pre-hooks and result annotation
// ABOUTME: Hooks are looked up by registered name; annotations come from the metadata store

package server

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/quarry/toolbox/internal/metadata"
	"github.com/quarry/toolbox/internal/tools"
)

// Hook is a named pre-invocation callback. Hooks observe the raw argument
// map before validation and can veto the invocation by returning an error.
type Hook func(ctx context.Context, tool string, args map[string]any) error

var hookRegistry = map[string]Hook{}

// RegisterHook installs a named hook for use in pre_hook tool configuration.
// It panics when a name is registered twice.
func RegisterHook(name string, hook Hook) {
	if _, dup := hookRegistry[name]; dup {
		panic("server: RegisterHook called twice for " + name)
	}
	hookRegistry[name] = hook
}

func init() {
	RegisterHook("log", func(_ context.Context, tool string, args map[string]any) error {
		slog.Info("Tool pre-hook", "tool", tool, "args", args)
		return nil
	})
}

// MetadataStore supplies column descriptions for datasource annotation.
// *metadata.Store satisfies it; tests substitute fakes.
type MetadataStore interface {
	ColumnDescriptions(ctx context.Context, datasourceIDs []string) (map[string]string, error)
}

// wrappedTool decorates a tool's Invoke with its configured pre-hook and
// column-description annotation. All other Tool methods pass through.
type wrappedTool struct {
	tools.Tool
	hookName string
	hook     Hook
	store    MetadataStore
	logger   *slog.Logger
}

// wrapTool applies the invocation middleware a tool's configuration asks
// for. Tools with neither a pre-hook nor datasource annotations pass
// through untouched, and an already-wrapped tool is never wrapped twice.
func wrapTool(tool tools.Tool, store MetadataStore, logger *slog.Logger) (tools.Tool, error) {
	if _, ok := tool.(*wrappedTool); ok {
		return tool, nil
	}

	hookName := tool.PreHook()
	datasourceIDs := tool.DatasourceIDs()
	if hookName == "" && len(datasourceIDs) == 0 {
		return tool, nil
	}

	var hook Hook
	if hookName != "" {
		h, ok := hookRegistry[hookName]
		if !ok {
			return nil, fmt.Errorf("tool %q: unknown pre_hook %q", tool.Name(), hookName)
		}
		hook = h
	}
	if len(datasourceIDs) > 0 && store == nil {
		return nil, fmt.Errorf("tool %q: datasource_ids requires a metadata_source", tool.Name())
	}

	return &wrappedTool{
		Tool:     tool,
		hookName: hookName,
		hook:     hook,
		store:    store,
		logger:   logger,
	}, nil
}

func (w *wrappedTool) Invoke(ctx context.Context, args map[string]any) ([]any, error) {
	if w.hook != nil {
		if err := w.hook(ctx, w.Name(), args); err != nil {
			return nil, fmt.Errorf("pre_hook %s: %w", w.hookName, err)
		}
	}

	results, err := w.Tool.Invoke(ctx, args)
	if err != nil {
		return nil, err
	}
	if len(w.DatasourceIDs()) == 0 {
		return results, nil
	}
	return w.annotate(ctx, results)
}

// annotate appends resolved column descriptions when the first result item
// carries non-empty tabular data. Columns are taken from the first row and
// sorted so the annotation order is stable.
func (w *wrappedTool) annotate(ctx context.Context, results []any) ([]any, error) {
	firstRow, ok := firstDataRow(results)
	if !ok {
		return results, nil
	}

	descriptions, err := w.store.ColumnDescriptions(ctx, w.DatasourceIDs())
	if err != nil {
		return nil, fmt.Errorf("fetch column descriptions: %w", err)
	}

	columns := make([]string, 0, len(firstRow))
	for name := range firstRow {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	resolved := metadata.ResolveColumns(columns, descriptions)
	w.logger.Debug("Annotated tool results",
		"tool", w.Name(),
		"columns", len(columns),
		"described", len(resolved))
	return append(results, map[string]any{"column_descriptions": resolved}), nil
}

// firstDataRow digs the first row out of a tabular result item, reporting
// false for empty or non-tabular shapes.
func firstDataRow(results []any) (map[string]any, bool) {
	if len(results) == 0 {
		return nil, false
	}
	item, ok := results[0].(map[string]any)
	if !ok {
		return nil, false
	}
	switch rows := item["data"].(type) {
	case []map[string]any:
		if len(rows) > 0 {
			return rows[0], true
		}
	case []any:
		if len(rows) > 0 {
			if row, ok := rows[0].(map[string]any); ok {
				return row, true
			}
		}
	}
	return nil, false
}
