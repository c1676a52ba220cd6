// Package server exposes the guard's operational surface over HTTP:
//
//   - /status  — JSON snapshot of the guard state and pipelines
//   - /metrics — Prometheus scrape endpoint
//   - /events  — websocket feed of state transitions and alerts
//   - /healthz — liveness probe
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/roomguard/internal/identity"
)

// StatusProvider supplies the current status snapshot. Implemented by the
// guard agent.
type StatusProvider interface {
	Status() any
}

// Roster manages the enrolled-identity roster. Implemented by the guard
// agent, which keeps the identity and trust stores in step.
type Roster interface {
	EnrollIdentity(ctx context.Context, id identity.Identity, encodings [][]float32) error
	ListIdentities(ctx context.Context) ([]identity.Identity, error)
}

// Server is the HTTP status server.
type Server struct {
	addr     string
	status   StatusProvider
	hub      *Hub
	roster   Roster
	httpSrv  *http.Server
	shutdown time.Duration
}

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithRoster enables the /identities enrollment endpoints.
func WithRoster(r Roster) Option {
	return func(s *Server) { s.roster = r }
}

// New creates a Server listening on addr. Events published to hub are
// streamed to /events subscribers.
func New(addr string, status StatusProvider, hub *Hub, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		status:   status,
		hub:      hub,
		shutdown: 5 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /healthz", handleHealthz)
	if s.roster != nil {
		mux.HandleFunc("GET /identities", s.handleListIdentities)
		mux.HandleFunc("POST /identities", s.handleEnroll)
	}

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("status server listening", "addr", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Status())
}

// handleEvents upgrades to a websocket and streams hub events as JSON
// text messages until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "server closing")

	events, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	// Discard client messages but surface disconnects through ctx.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "client gone")
			return
		case data := <-events:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// enrollRequest is the POST /identities payload.
type enrollRequest struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	BaseTrust float64     `json:"base_trust"`
	Encodings [][]float32 `json:"encodings"`
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.ID == "" || len(req.Encodings) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id and encodings are required"})
		return
	}

	id := identity.Identity{ID: req.ID, Name: req.Name, BaseTrust: req.BaseTrust}
	if err := s.roster.EnrollIdentity(r.Context(), id, req.Encodings); err != nil {
		slog.Warn("enrollment failed", "identity", req.ID, "error", err)
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "enrolled", "id": req.ID})
}

func (s *Server) handleListIdentities(w http.ResponseWriter, r *http.Request) {
	ids, err := s.roster.ListIdentities(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
