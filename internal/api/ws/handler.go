// Package ws exposes replay sessions to rendering clients over websocket.
//
// Each connection gets its own engine bound to one lap trace. Commands
// flow in as JSON, state snapshots flow out after every mutation. Closing
// the connection tears down the session's frame loop, so no stale tick can
// touch a trace that has been swapped out.
package ws

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/lapsight/lapsight/internal/replay"
	"github.com/lapsight/lapsight/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// TraceLoader loads the telemetry channels for one lap.
type TraceLoader interface {
	GetTrace(ctx context.Context, lapID string) (*replay.Trace, error)
}

// Handler upgrades replay requests and runs one session per connection.
type Handler struct {
	loader   TraceLoader
	upgrader websocket.Upgrader
}

// NewHandler creates a replay websocket handler backed by the given loader.
func NewHandler(loader TraceLoader) *Handler {
	return &Handler{
		loader: loader,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Renderers are served from a separate origin in development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles GET /ws/replay/{lap_id}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lapID := r.PathValue("lap_id")
	ctx, span := otel.Tracer("lapsight/api/ws").Start(r.Context(), "replay.session")
	span.SetAttributes(attribute.String("lap.id", lapID))
	defer span.End()

	trace, err := h.loader.GetTrace(ctx, lapID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "lap not found", http.StatusNotFound)
			return
		}
		log.Printf("load trace %s: %v", lapID, err)
		http.Error(w, "failed to load lap", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade replay session for lap %s: %v", lapID, err)
		return
	}

	session := newSession(trace)
	span.SetAttributes(attribute.String("session.id", session.id))
	log.Printf("replay session %s started for lap %s", session.id, lapID)
	session.run(ctx, conn)
	log.Printf("replay session %s closed", session.id)
}
