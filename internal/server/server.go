// ABOUTME: Server assembly wiring sources, tools, hooks, toolsets, engine, and transports
// ABOUTME: Run serves HTTP until context cancellation, then shuts everything down

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/quarry/toolbox/internal/auth"
	"github.com/quarry/toolbox/internal/config"
	"github.com/quarry/toolbox/internal/mcp"
	"github.com/quarry/toolbox/internal/metadata"
	"github.com/quarry/toolbox/internal/sources"
	"github.com/quarry/toolbox/internal/tools"
)

// Config holds the server assembly inputs.
type Config struct {
	Tools   *config.Config
	Host    string
	Port    int
	Version string
	Logger  *slog.Logger
}

// Server owns the assembled toolbox: initialized sources, the wrapped tool
// registry, the protocol engine, and both transports.
type Server struct {
	config     Config
	sources    map[string]sources.Source
	registry   *tools.Registry
	engine     *mcp.Engine
	verifiers  *auth.Verifiers
	metadata   *metadata.Store
	sse        *SSERegistry
	httpServer *http.Server
	logger     *slog.Logger
}

// New assembles a server from a parsed tools file: sources are created and
// initialized, tools built and wrapped with their invocation middleware,
// toolsets resolved, and the protocol engine constructed. The context
// bounds the source and metadata connection attempts.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tools configuration is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	srcs, err := buildSources(ctx, cfg.Tools.Sources, logger)
	if err != nil {
		return nil, err
	}

	var metaStore *metadata.Store
	if cfg.Tools.MetadataSource != nil {
		metaStore, err = metadata.NewStore(ctx, cfg.Tools.MetadataSource, logger.With("component", "metadata"))
		if err != nil {
			cleanupSources(ctx, srcs, logger)
			return nil, fmt.Errorf("connecting to metadata source: %w", err)
		}
	}

	// Later assembly steps release what is already connected on failure.
	fail := func(err error) (*Server, error) {
		cleanupSources(ctx, srcs, logger)
		if metaStore != nil {
			metaStore.Close()
		}
		return nil, err
	}

	registry, err := buildRegistry(cfg.Tools.Tools, srcs, metaStore, logger)
	if err != nil {
		return fail(err)
	}

	toolsets, err := tools.BuildToolsets(cfg.Tools.Toolsets, registry)
	if err != nil {
		return fail(err)
	}

	verifiers, err := auth.NewVerifiers(cfg.Tools.AuthServices)
	if err != nil {
		return fail(err)
	}

	engine, err := mcp.NewEngine(mcp.Config{
		Registry:      registry,
		Toolsets:      toolsets,
		Logger:        logger.With("component", "mcp"),
		ServerVersion: cfg.Version,
	})
	if err != nil {
		return fail(err)
	}

	s := &Server{
		config:    cfg,
		sources:   srcs,
		registry:  registry,
		engine:    engine,
		verifiers: verifiers,
		metadata:  metaStore,
		sse:       NewSSERegistry(logger),
		logger:    logger.With("component", "server"),
	}
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server assembled",
		"sources", len(srcs),
		"tools", registry.Len(),
		"toolsets", len(toolsets))
	return s, nil
}

// buildSources creates and initializes every configured source in document
// order. Already-initialized sources are cleaned up when a later one fails.
func buildSources(ctx context.Context, entries []config.SourceEntry, logger *slog.Logger) (map[string]sources.Source, error) {
	built := make(map[string]sources.Source, len(entries))
	for _, entry := range entries {
		src, err := entry.Config.Create()
		if err != nil {
			cleanupSources(ctx, built, logger)
			return nil, err
		}
		if err := src.Initialize(ctx); err != nil {
			cleanupSources(ctx, built, logger)
			return nil, err
		}
		built[entry.Name] = src
		logger.Info("Source initialized", "source", entry.Name, "kind", src.Kind())
	}
	return built, nil
}

// buildRegistry builds every configured tool against the initialized
// sources, wrapping each with its invocation middleware.
func buildRegistry(entries []config.ToolEntry, srcs map[string]sources.Source, metaStore *metadata.Store, logger *slog.Logger) (*tools.Registry, error) {
	var meta MetadataStore
	if metaStore != nil {
		meta = metaStore
	}

	registry := tools.NewRegistry()
	for _, entry := range entries {
		tool, err := entry.Config.Build(srcs)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", entry.Name, err)
		}
		wrapped, err := wrapTool(tool, meta, logger)
		if err != nil {
			return nil, err
		}
		if err := registry.Add(wrapped); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func cleanupSources(ctx context.Context, srcs map[string]sources.Source, logger *slog.Logger) {
	for name, src := range srcs {
		if err := src.Cleanup(ctx); err != nil {
			logger.Warn("Source cleanup failed", "source", name, "error", err)
		}
	}
}

// Run starts the HTTP server and blocks until the context is canceled or
// the server fails, then performs a graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown shuts down with a fresh context since the run context
// is already canceled by the time it is called.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops the HTTP server and releases backend resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "close", s.Close(ctx))

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// Close releases sources and the metadata store. The stdio transport calls
// it directly since it has no HTTP server to shut down.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	for name, src := range s.sources {
		if err := src.Cleanup(ctx); err != nil {
			errs = appendCloseError(errs, "source "+name, err)
		}
	}
	if s.metadata != nil {
		s.metadata.Close()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}
