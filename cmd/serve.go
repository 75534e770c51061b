package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/beryl/internal/model"
	"github.com/sells-group/beryl/internal/pipeline"
	"github.com/sells-group/beryl/internal/session"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 30 * time.Second
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the comparison HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initEnv(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		reg := session.NewRegistry(env.newCoordinator,
			session.WithTTL(time.Duration(cfg.Session.TTLMinutes)*time.Minute))
		defer reg.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newServer(reg).routes(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		g.Go(func() error {
			sweepSessions(gctx, reg, sweepInterval)
			return nil
		})

		return g.Wait()
	},
}

// sweepSessions drops idle sessions every interval until ctx is done.
func sweepSessions(ctx context.Context, reg *session.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			reg.Sweep(now)
		}
	}
}

// server holds the HTTP handlers over a session registry.
type server struct {
	reg *session.Registry
}

func newServer(reg *session.Registry) *server {
	return &server{reg: reg}
}

func (s *server) routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/search", s.handleSearch)
	r.Post("/followup", s.handleFollowup)
	r.Delete("/session/{id}", s.handleDeleteSession)
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": s.reg.Len(),
	})
}

type searchRequest struct {
	Query     string           `json:"query"`
	Category  string           `json:"category"`
	Documents []model.Document `json:"documents"`
}

// handleSearch runs one comparison in a new session and streams it as
// server-sent events: one session event, progress events in stage order,
// then a single result or error event.
func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	events := make(chan sseEvent, 16)
	send := func(ev sseEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	id, coord := s.reg.Create(pipeline.ObserverFunc(func(ev pipeline.ProgressEvent) {
		send(sseEvent{name: "progress", data: ev})
	}))
	log := zap.L().With(zap.String("session_id", id))

	go func() {
		defer close(events)
		send(sseEvent{name: "session", data: map[string]string{"session_id": id}})

		outcome, err := coord.Run(ctx, req.Query, req.Category, req.Documents)
		if err != nil {
			log.Error("search failed", zap.Error(err))
			_ = s.reg.Delete(id)
			send(sseEvent{name: "error", data: map[string]string{"message": searchErrorMessage(err)}})
			return
		}
		send(sseEvent{name: "result", data: searchResult{SessionID: id, Outcome: outcome}})
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for ev := range events {
		if err := ev.write(w); err != nil {
			log.Warn("write event failed", zap.Error(err))
			continue
		}
		flusher.Flush()
	}
}

type searchResult struct {
	SessionID string `json:"session_id"`
	*pipeline.Outcome
}

func searchErrorMessage(err error) string {
	if errors.Is(err, pipeline.ErrIndexing) {
		return "failed to index documents"
	}
	return "search failed"
}

type followupRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

func (s *server) handleFollowup(w http.ResponseWriter, r *http.Request) {
	var req followupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || req.Query == "" {
		writeError(w, http.StatusBadRequest, "session_id and query are required")
		return
	}

	coord, err := s.reg.Get(req.SessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, coord.HandleFollowup(r.Context(), req.Query))
}

func (s *server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.reg.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sseEvent is one named server-sent event with a JSON payload.
type sseEvent struct {
	name string
	data any
}

func (e sseEvent) write(w http.ResponseWriter) error {
	payload, err := json.Marshal(e.data)
	if err != nil {
		return eris.Wrapf(err, "marshal %s event", e.name)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.name, payload)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP server port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
