// Package api serves the high-score list over HTTP: a small REST surface
// plus a websocket that pushes the document after every change.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tomz197/sshtargets/internal/leaderboard"
	"github.com/tomz197/sshtargets/internal/store"
)

// Options configures a Server.
type Options struct {
	Logger         *log.Logger
	Now            func() time.Time
	AllowedOrigins []string // CORS; empty allows any origin
	RequestTimeout time.Duration
	Index          http.Handler // Served at / when set
}

// Server handles HTTP requests for the score API.
type Server struct {
	store   store.Store
	logger  *log.Logger
	now     func() time.Time
	origins map[string]bool
	timeout time.Duration
	push    *pushHub
	index   http.Handler

	mu       sync.Mutex  // Serializes load-modify-save cycles
	watching atomic.Bool // Run relays store changes; handlers skip their own broadcast
}

// NewServer creates a server persisting through st.
func NewServer(st store.Store, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var origins map[string]bool
	if len(opts.AllowedOrigins) > 0 {
		origins = make(map[string]bool, len(opts.AllowedOrigins))
		for _, o := range opts.AllowedOrigins {
			origins[o] = true
		}
	}
	return &Server{
		store:   st,
		logger:  logger,
		now:     now,
		origins: origins,
		timeout: timeout,
		push:    newPushHub(logger),
		index:   opts.Index,
	}
}

// Routes sets up the HTTP routes with middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	if s.index != nil {
		r.Method(http.MethodGet, "/", s.index)
	}
	r.Route("/api", func(r chi.Router) {
		// The websocket outlives the request timeout.
		r.Get("/highscores/ws", s.handleWatch)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.timeout))
			r.Get("/", s.handleIndex)
			r.Get("/health", s.handleHealth)
			r.Get("/highscores", s.handleGetScores)
			r.Post("/highscores", s.handleAddScore)
			r.Put("/highscores", s.handleReplaceScores)
		})
	})
	return r
}

// Run forwards changes made through the store by other processes to the
// websocket clients. It blocks until ctx is done. Stores that cannot watch
// make it a no-op wait.
func (s *Server) Run(ctx context.Context) error {
	w, ok := s.store.(store.Watcher)
	if !ok {
		<-ctx.Done()
		return nil
	}
	s.watching.Store(true)
	defer s.watching.Store(false)
	for {
		err := w.Watch(ctx, func(list []leaderboard.Record) { s.push.broadcast(list) })
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("store watch ended, retrying", "err", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

// changed pushes list to websocket clients unless Run already relays the
// store's own notifications.
func (s *Server) changed(list []leaderboard.Record) {
	if !s.watching.Load() {
		s.push.broadcast(list)
	}
}

// Close disconnects websocket clients.
func (s *Server) Close() {
	s.push.close()
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "err", err)
	}
}

func (s *Server) writeDocument(w http.ResponseWriter, status int, list []leaderboard.Record) {
	if list == nil {
		list = []leaderboard.Record{}
	}
	s.writeJSON(w, status, store.Document{Scores: list})
}

// requestLogger logs one line per request through the server's logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
				"remote", r.RemoteAddr,
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) allowOrigin(origin string) bool {
	return s.origins == nil || s.origins[origin]
}

// cors answers preflight requests and sets the allow headers.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.allowOrigin(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-Id")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
