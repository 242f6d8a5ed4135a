// Package server wires the replay service HTTP lifecycle.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lapsight/lapsight/internal/api/ws"
	"github.com/lapsight/lapsight/internal/platform/config"
	"github.com/lapsight/lapsight/internal/platform/timeouts"
	"github.com/lapsight/lapsight/internal/storage"
	"github.com/lapsight/lapsight/internal/storage/sqlite"
)

const (
	defaultListLapsPageSize = 20
	maxListLapsPageSize     = 100
)

type serverEnv struct {
	DBPath string `env:"LAPSIGHT_REPLAY_DB_PATH"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "lapsight.db")
	}
	return cfg
}

// Server hosts the replay HTTP API and storage lifecycle.
type Server struct {
	httpAddr   string
	httpServer *http.Server
	store      *sqlite.Store
}

// New creates a configured replay server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured replay server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	env := loadServerEnv()
	store, err := openTraceStore(env.DBPath)
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           newMux(store),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	return &Server{
		httpAddr:   addr,
		httpServer: httpServer,
		store:      store,
	}, nil
}

func newMux(store storage.TraceStore) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /api/laps", &lapListHandler{store: store})
	mux.Handle("GET /ws/replay/{lap_id}", ws.NewHandler(store))
	return mux
}

// Run creates and serves a replay server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	defer server.Close()
	return server.ListenAndServe(ctx)
}

// ListenAndServe runs the HTTP server until the context ends.
//
// On cancellation, it performs a bounded shutdown so in-flight requests
// are drained before hard close.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("replay server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("replay server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases replay server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close trace store: %v", err)
		}
	}
}

func openTraceStore(path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace sqlite store: %w", err)
	}
	return store, nil
}

type lapListHandler struct {
	store storage.TraceStore
}

type lapJSON struct {
	ID          string    `json:"id"`
	Track       string    `json:"track"`
	Driver      string    `json:"driver"`
	LapTimeS    float64   `json:"lap_time_s"`
	SampleCount int       `json:"sample_count"`
	RecordedAt  time.Time `json:"recorded_at"`
}

type lapListResponse struct {
	Laps          []lapJSON `json:"laps"`
	NextPageToken string    `json:"next_page_token,omitempty"`
}

func (h *lapListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pageSize := defaultListLapsPageSize
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "page_size must be a positive integer", http.StatusBadRequest)
			return
		}
		pageSize = parsed
	}
	if pageSize > maxListLapsPageSize {
		pageSize = maxListLapsPageSize
	}

	page, err := h.store.ListLaps(r.Context(), pageSize, r.URL.Query().Get("page_token"))
	if err != nil {
		log.Printf("list laps: %v", err)
		http.Error(w, "failed to list laps", http.StatusInternalServerError)
		return
	}

	response := lapListResponse{
		Laps:          make([]lapJSON, 0, len(page.Laps)),
		NextPageToken: page.NextPageToken,
	}
	for _, lap := range page.Laps {
		response.Laps = append(response.Laps, lapJSON{
			ID:          lap.ID,
			Track:       lap.Track,
			Driver:      lap.Driver,
			LapTimeS:    lap.LapTimeS,
			SampleCount: lap.SampleCount,
			RecordedAt:  lap.RecordedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("encode lap list: %v", err)
	}
}
