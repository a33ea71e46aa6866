// Package status serves a small local HTTP surface over a running engine:
// health, sync state, the pending undo, a backup download and metrics.
package status

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/export"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/mutation"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/state"
)

// SyncReport is the body of GET /api/sync.
type SyncReport struct {
	Status     state.SyncStatus `json:"status"`
	DataLoaded bool             `json:"dataLoaded"`
	UserID     string           `json:"userId,omitempty"`
	Remote     bool             `json:"remote"`
	Warm       bool             `json:"warm"`
}

// Backend is what the handlers read from.
type Backend interface {
	Healthy() bool
	SyncReport() SyncReport
	Export(now time.Time) export.Document
	PendingUndo() (mutation.Undo, bool)
	Undo() bool
}

type handler struct {
	b   Backend
	log zerolog.Logger
	now func() time.Time
}

// NewRouter wires the status routes.
func NewRouter(b Backend, log zerolog.Logger) *mux.Router {
	h := &handler{b: b, log: log, now: time.Now}
	root := mux.NewRouter()
	root.Use(recoverer)

	root.HandleFunc("/api/health", h.health).Methods("GET")
	root.HandleFunc("/api/sync", h.sync).Methods("GET")
	root.HandleFunc("/api/export", h.export).Methods("GET")
	root.HandleFunc("/api/undo", h.pendingUndo).Methods("GET")
	root.HandleFunc("/api/undo", h.undo).Methods("POST")
	root.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return root
}

// health always returns 200; the body reports healthy or unhealthy.
func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	status := "unhealthy"
	if h.b.Healthy() {
		status = "healthy"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"timestamp": h.now().Format(time.RFC3339),
	})
}

func (h *handler) sync(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.b.SyncReport())
}

func (h *handler) export(w http.ResponseWriter, _ *http.Request) {
	now := h.now()
	doc := h.b.Export(now)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(now)))
	if err := export.Write(w, doc); err != nil {
		h.log.Error().Err(err).Msg("export write failed")
	}
}

type undoResponse struct {
	Pending bool           `json:"pending"`
	Undo    *mutation.Undo `json:"undo,omitempty"`
}

func (h *handler) pendingUndo(w http.ResponseWriter, _ *http.Request) {
	u, ok := h.b.PendingUndo()
	resp := undoResponse{Pending: ok}
	if ok {
		resp.Undo = &u
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) undo(w http.ResponseWriter, _ *http.Request) {
	if !h.b.Undo() {
		writeError(w, http.StatusConflict, "nothing to undo")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"undone": true})
}

// Serve runs an HTTP server for handler on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler, log zerolog.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("status server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Stack().Err(err).Msg("status server forced to shutdown")
			return err
		}
		log.Info().Msg("status server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("status server failed")
		return err
	}
}
