// ABOUTME: HTTP transport mounting the MCP endpoints, SSE streams, and health check
// ABOUTME: chi router with permissive CORS and structured access logging

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/quarry/toolbox/internal/mcp"
)

// routes assembles the HTTP surface. Toolset-scoped endpoints mirror the
// unscoped ones with the toolset name in the path.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))
	r.Use(s.traceRequests)
	r.Use(s.accessLog)
	r.Use(s.verifiers.Middleware)

	r.Get("/health", s.handleHealth)
	r.Post("/mcp", s.handleMCPPost)
	r.Get("/mcp/sse", s.handleSSE)
	r.Post("/mcp/{toolset}", s.handleMCPPost)
	r.Get("/mcp/{toolset}/sse", s.handleSSE)

	return r
}

func toolsetParam(r *http.Request) string {
	return chi.URLParam(r, "toolset")
}

// traceRequests opens a server span per request. With no exporter configured
// the global tracer is a no-op and this costs nothing.
func (s *Server) traceRequests(next http.Handler) http.Handler {
	tracer := otel.Tracer("github.com/quarry/toolbox/internal/server")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			))
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLog emits one structured line per request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "mcp-toolbox",
	}); err != nil {
		s.logger.Debug("Failed to write health response", "error", err)
	}
}

// handleMCPPost feeds one JSON-RPC message through the engine. When the
// request names an SSE session via the sessionId query parameter, the
// response is also mirrored onto that session as a message event before
// being returned in the POST body. Notifications yield 204 with no body.
func (s *Server) handleMCPPost(w http.ResponseWriter, r *http.Request) {
	toolset := toolsetParam(r)
	sessionID := r.URL.Query().Get("sessionId")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}

	response := s.engine.HandleMessage(r.Context(), toolset, body)
	if response == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if sessionID != "" {
		s.sse.Send(sessionID, "message", json.RawMessage(response))
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(response); err != nil {
		s.logger.Debug("Failed to write response", "error", err)
	}
}

// writeInternalError reports a transport-level failure as a 500 carrying a
// JSON-RPC internal error envelope.
func (s *Server) writeInternalError(w http.ResponseWriter, err error) {
	resp := mcp.NewErrorResponse(mcp.NullID, mcp.JSONRPCInternalError, "Internal error", err.Error())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
		s.logger.Warn("Failed to write error response", "error", encodeErr)
	}
}
