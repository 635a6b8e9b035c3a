// ABOUTME: SSE session registry and per-client event streaming for the HTTP transport
// ABOUTME: Sessions own buffered outbound queues so one slow client cannot stall another

package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// sessionBufferSize is the channel buffer for each session's outbound
	// queue. Matches the broadcaster pattern (64 events).
	sessionBufferSize = 64

	keepaliveInterval = 30 * time.Second
)

// sseEvent is one queued server-sent event. String data is written raw;
// anything else is JSON-encoded at write time.
type sseEvent struct {
	event string
	data  any
}

type sseSession struct {
	id      string
	toolset string
	events  chan sseEvent
}

// SSERegistry tracks connected SSE sessions by id. It is the one mutable
// shared structure in the server; everything else is frozen at startup.
// Channels are never closed: a deregistered session simply becomes
// unreachable and its drain loop exits on client disconnect.
type SSERegistry struct {
	mu       sync.RWMutex
	sessions map[string]*sseSession
	logger   *slog.Logger
}

// NewSSERegistry creates a session registry. Pass nil logger for default.
func NewSSERegistry(logger *slog.Logger) *SSERegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &SSERegistry{
		sessions: make(map[string]*sseSession),
		logger:   logger.With("component", "sse"),
	}
}

// register allocates a session bound to the given toolset.
func (r *SSERegistry) register(toolset string) *sseSession {
	session := &sseSession{
		id:      uuid.New().String(),
		toolset: toolset,
		events:  make(chan sseEvent, sessionBufferSize),
	}

	r.mu.Lock()
	r.sessions[session.id] = session
	r.mu.Unlock()

	r.logger.Debug("SSE session registered",
		"session_id", session.id,
		"toolset", session.toolset)
	return session
}

func (r *SSERegistry) unregister(id string) {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		r.logger.Debug("SSE session removed", "session_id", id)
	}
}

// Send queues an event for one session. Unknown session ids are ignored,
// and events are dropped with a warning when the session's queue is full.
func (r *SSERegistry) Send(sessionID, event string, data any) {
	r.mu.RLock()
	session, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case session.events <- sseEvent{event: event, data: data}:
	default:
		r.logger.Warn("Dropped SSE event for slow session",
			"session_id", sessionID,
			"event", event)
	}
}

// Count reports the number of connected sessions.
func (r *SSERegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// handleSSE serves one SSE stream: it registers a session, announces the
// POST endpoint for the session, then drains queued events until the client
// disconnects or a write fails.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	toolset := toolsetParam(r)
	session := s.sse.register(toolset)
	defer s.sse.unregister(session.id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if err := writeSSEEvent(w, "endpoint", endpointURL(r, toolset, session.id)); err != nil {
		return
	}
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-session.events:
			if err := writeSSEEvent(w, ev.event, ev.data); err != nil {
				s.logger.Debug("SSE write failed", "session_id", session.id, "error", err)
				return
			}
			flusher.Flush()
		case <-keepalive.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes one event frame. Strings go out as-is so the
// endpoint URL is not JSON-quoted; everything else is JSON-encoded.
func writeSSEEvent(w io.Writer, event string, data any) error {
	payload, ok := data.(string)
	if !ok {
		encoded, err := json.Marshal(data)
		if err != nil {
			return err
		}
		payload = string(encoded)
	}
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

// endpointURL builds the absolute POST URL a client must use for this
// session, honoring X-Forwarded-Proto when the server sits behind a proxy.
func endpointURL(r *http.Request, toolset, sessionID string) string {
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		proto = "http"
		if r.TLS != nil {
			proto = "https"
		}
	}
	path := "/mcp"
	if toolset != "" {
		path += "/" + toolset
	}
	return fmt.Sprintf("%s://%s%s?sessionId=%s", proto, r.Host, path, sessionID)
}
