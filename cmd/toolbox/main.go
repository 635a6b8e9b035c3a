// ABOUTME: Entry point for the toolbox MCP server
// ABOUTME: Serves configured sources and tools over HTTP/SSE or stdio

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/quarry/toolbox/internal/config"
	"github.com/quarry/toolbox/internal/server"
	"github.com/quarry/toolbox/internal/telemetry"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _              _ _
 | |_ ___   ___ | | |__   _____  __
 | __/ _ \ / _ \| | '_ \ / _ \ \/ /
 | || (_) | (_) | | |_) | (_) >  <
  \__\___/ \___/|_|_.__/ \___/_/\_\
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: toolbox <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the MCP server")
		fmt.Println("  validate  Check a tools file without starting the server")
		fmt.Println("  health    Check a running server's health endpoint")
		fmt.Println("  version   Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:])
	case "health":
		err = runHealth(ctx, os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	toolsFile := fs.String("tools-file", "tools.yaml", "path to the tools configuration file")
	host := fs.String("host", "127.0.0.1", "address to bind the HTTP server to")
	port := fs.Int("port", 5000, "port for the HTTP server")
	stdio := fs.Bool("stdio", false, "serve over stdin/stdout instead of HTTP")
	logLevel := fs.String("log-level", "info", "log level (debug/info/warn/error)")
	logFormat := fs.String("log-format", "text", "log format (text/json)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := setupLogger(*logLevel, *logFormat, *stdio)

	if !*stdio {
		cyan := color.New(color.FgCyan)
		cyan.Print(banner)
		gray := color.New(color.FgHiBlack)
		gray.Printf("    version: %s\n\n", version)
	}

	cfg, err := config.Load(*toolsFile)
	if err != nil {
		return fmt.Errorf("loading tools file: %w", err)
	}

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure:       os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true",
		ServiceName:    "mcp-toolbox",
		ServiceVersion: version,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	srv, err := server.New(ctx, server.Config{
		Tools:   cfg,
		Host:    *host,
		Port:    *port,
		Version: version,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("assembling server: %w", err)
	}

	if *stdio {
		defer srv.Close(context.Background())
		return srv.ServeStdio(ctx, os.Stdin, os.Stdout)
	}

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Tools file: %s\n", *toolsFile)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:       %s\n", net.JoinHostPort(*host, strconv.Itoa(*port)))
	fmt.Println()

	logger.Info("starting toolbox",
		"tools_file", *toolsFile,
		"host", *host,
		"port", *port,
	)

	return srv.Run(ctx)
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	toolsFile := fs.String("tools-file", "tools.yaml", "path to the tools configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*toolsFile)
	if err != nil {
		return err
	}

	fmt.Printf("%s is valid: %d sources, %d tools, %d toolsets\n",
		*toolsFile, len(cfg.Sources), len(cfg.Tools), len(cfg.Toolsets))
	return nil
}

func runHealth(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	host := fs.String("host", "127.0.0.1", "server address")
	port := fs.Int("port", 5000, "server port")
	if err := fs.Parse(args); err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/health", net.JoinHostPort(*host, strconv.Itoa(*port)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func setupLogger(level, format string, stdio bool) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: lvl,
	}

	// Protocol messages own stdout in stdio mode; logs go to stderr.
	if stdio {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(&colorHandler{level: lvl})
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
