package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/vk/crosspipe/internal/ctxlog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// statusRouter builds the observability endpoints: a health check, a JSON
// snapshot of per-job status, and a websocket stream of job events.
func (a *App) statusRouter(ctx context.Context) http.Handler {
	logger := ctxlog.FromContext(ctx)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		logger.Debug("Health check endpoint hit.", "remote_addr", req.RemoteAddr)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	r.Get("/workflow", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(a.engine.Snapshot()); err != nil {
			logger.Error("Failed to encode workflow snapshot.", "error", err)
		}
	})

	r.Get("/workflow/logs", func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			logger.Error("Websocket upgrade failed.", "error", err)
			return
		}
		defer conn.Close()

		events, cancel := a.hub.Subscribe()
		defer cancel()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := conn.WriteJSON(ev); err != nil {
					logger.Debug("Websocket client gone.", "error", err)
					return
				}
			case <-req.Context().Done():
				return
			}
		}
	})

	return r
}

// startStatusServer serves the status router on the given port for the
// duration of the run.
func (a *App) startStatusServer(ctx context.Context, port int) {
	logger := ctxlog.FromContext(ctx)

	a.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: a.statusRouter(ctx),
	}

	go func() {
		logger.Info("🩺 Status server starting", "address", fmt.Sprintf("http://localhost%s", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server failed unexpectedly", "error", err)
		}
	}()
}

// closeStatusServer shuts the status server down gracefully.
func (a *App) closeStatusServer(ctx context.Context) {
	if a.httpServer == nil {
		return
	}
	logger := ctxlog.FromContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Status server shutdown failed", "error", err)
		return
	}
	logger.Debug("Status server shut down gracefully.")
}
