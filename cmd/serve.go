package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pedidos-cli/internal/analytics"
	"github.com/sells-group/pedidos-cli/internal/render"
	"github.com/sells-group/pedidos-cli/internal/session"
	"github.com/sells-group/pedidos-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP question server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port

		env, err := initSessionEnv(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		sessions := newServer(env, cfg.Server.SessionTTL)
		go sessions.expireLoop(ctx, time.Minute)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           sessions.routes(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// server keeps one isolated session per client. A session idle for longer
// than ttl is dropped; ttl <= 0 keeps sessions until they are deleted.
type server struct {
	env *sessionEnv
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*liveSession
}

type liveSession struct {
	*session.Session
	lastUsed time.Time
}

func newServer(env *sessionEnv, ttl time.Duration) *server {
	return &server{
		env:      env,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*liveSession),
	}
}

// expire drops sessions idle for longer than the TTL and returns how many
// were removed.
func (s *server) expire() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, ls := range s.sessions {
		if ls.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *server) expireLoop(ctx context.Context, every time.Duration) {
	if s.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.expire(); n > 0 {
				zap.L().Info("idle sessions expired", zap.Int("count", n))
			}
		}
	}
}

func (s *server) routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/kpis", s.handleKPIs)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Delete("/{id}", s.handleDeleteSession)
		r.Post("/{id}/ask", s.handleAsk)
		r.Get("/{id}/history", s.handleHistory)
	})
	return r
}

func (s *server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.env.NewSession()
	s.mu.Lock()
	s.sessions[sess.ID] = &liveSession{Session: sess, lastUsed: s.now()}
	s.mu.Unlock()

	zap.L().Info("session created", zap.String("session_id", sess.ID))
	writeJSON(w, http.StatusCreated, map[string]string{"id": sess.ID})
}

func (s *server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	ls, ok := s.sessions[id]
	if ok {
		ls.lastUsed = s.now()
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "sessão não encontrada")
		return nil, false
	}
	return ls.Session, true
}

func (s *server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "sessão não encontrada")
		return
	}
	zap.L().Info("session deleted", zap.String("session_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req struct {
		Question string `json:"pergunta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	ans, err := sess.Ask(r.Context(), req.Question)
	switch {
	case errors.Is(err, session.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		zap.L().Error("ask failed", zap.String("session_id", sess.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, render.View(ans))
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	turns := sess.History()
	if turns == nil {
		turns = []store.Turn{}
	}
	writeJSON(w, http.StatusOK, turns)
}

func (s *server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	ds, err := loadDataset(r.Context(), s.env.cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	k, err := analytics.ComputeKPIs(ds)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, analytics.Fields{
		{Key: "total_pedidos", Value: k.TotalOrders},
		{Key: "ticket_medio", Value: k.TicketAverage},
		{Key: "frete_gratis_pct", Value: k.FreeShippingPct},
		{Key: "desconto_medio", Value: k.DiscountAverage},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
