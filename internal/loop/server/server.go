// Package server is the leaderboard hub shared by every client of one
// process. Clients persist through it like any store; it merges their lists,
// writes through to the backing store and pushes each change to all clients.
package server

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tomz197/sshtargets/internal/leaderboard"
	"github.com/tomz197/sshtargets/internal/store"
)

// ScoreServer is the interface clients use to communicate with the hub.
// Decouples the Client from the concrete Server implementation.
type ScoreServer interface {
	store.Store
	RegisterClient(username string) *ClientHandle
	UnregisterClient(clientID int)
	GetSnapshot() *Snapshot
}

// Compile-time check that Server implements ScoreServer.
var _ ScoreServer = (*Server)(nil)

// Options configures a Server.
type Options struct {
	Logger  *log.Logger
	Timeout time.Duration // Per-call timeout for the backing store
}

// Server holds the shared high-score list.
type Server struct {
	backing store.Store
	logger  *log.Logger
	timeout time.Duration

	snapshot     atomic.Pointer[Snapshot]
	clients      map[int]*ClientHandle
	nextClientID int
	mu           sync.RWMutex // Guards clients and nextClientID

	scoresMu sync.Mutex // Serializes load-merge-save against the backing store
	scores   []leaderboard.Record
	loaded   bool
}

// NewServer creates a hub over backing.
func NewServer(backing store.Store, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		backing:      backing,
		logger:       logger,
		timeout:      opts.Timeout,
		clients:      make(map[int]*ClientHandle),
		nextClientID: 1,
	}
	s.snapshot.Store(&Snapshot{})
	return s
}

func (s *Server) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Run relays changes made to the backing store by other processes. It blocks
// until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	w, ok := s.backing.(store.Watcher)
	if !ok {
		<-ctx.Done()
		return
	}
	for {
		err := w.Watch(ctx, s.applyExternal)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("store watch ended, retrying", "err", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// applyExternal folds a list saved elsewhere into the shared list.
func (s *Server) applyExternal(list []leaderboard.Record) {
	s.scoresMu.Lock()
	merged := leaderboard.Merge(s.scores, list)
	changed := !sameIDs(merged, s.scores)
	s.scores = merged
	s.loaded = true
	s.scoresMu.Unlock()

	if changed {
		s.publish(merged)
	}
}

func sameIDs(a, b []leaderboard.Record) bool {
	return slices.EqualFunc(a, b, func(x, y leaderboard.Record) bool { return x.ID == y.ID })
}

// reload merges the backing list into the shared one. Other processes may
// write to the same store, so it is read again before every use. Must be
// called with scoresMu held.
func (s *Server) reload(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	list, err := s.backing.Load(ctx)
	if err != nil {
		return err
	}
	s.scores = leaderboard.Merge(list, s.scores)
	s.loaded = true
	return nil
}

// Load returns the shared list merged with the current backing list. When
// the backing store fails after an earlier successful load, the shared list
// is returned.
func (s *Server) Load(ctx context.Context) ([]leaderboard.Record, error) {
	s.scoresMu.Lock()
	defer s.scoresMu.Unlock()
	if err := s.reload(ctx); err != nil {
		if !s.loaded {
			return nil, err
		}
		s.logger.Warn("failed to reload high scores, serving shared list", "err", err)
	}
	return slices.Clone(s.scores), nil
}

// Save merges a client's list into the shared one by record ID, persists the
// result and notifies every client. The backing list is reloaded first so
// records saved by other processes survive. The shared list and the
// broadcast are updated even when persisting fails; the error is returned to
// the caller. Nothing is written while the backing list cannot be loaded, so
// a partial list never replaces it.
func (s *Server) Save(ctx context.Context, records []leaderboard.Record) error {
	s.scoresMu.Lock()
	err := s.reload(ctx)
	merged := leaderboard.Merge(s.scores, records)
	s.scores = merged
	if err == nil {
		saveCtx, cancel := s.withTimeout(ctx)
		err = s.backing.Save(saveCtx, merged)
		cancel()
	}
	s.scoresMu.Unlock()

	if err != nil {
		s.logger.Error("failed to persist high scores", "err", err)
	}
	s.publish(merged)
	return err
}

// publish sends the list to every client.
func (s *Server) publish(list []leaderboard.Record) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, handle := range s.clients {
		send(handle, ClientEvent{Type: EventScoresUpdated, Scores: slices.Clone(list)})
	}
}

// send delivers ev without blocking. When the client is behind, the oldest
// queued event is dropped.
func send(handle *ClientHandle, ev ClientEvent) {
	for range 2 {
		select {
		case handle.EventsCh <- ev:
			return
		default:
		}
		select {
		case <-handle.EventsCh:
		default:
		}
	}
}

// modifySnapshot replaces the snapshot with a modified copy.
func (s *Server) modifySnapshot(fn func(*Snapshot)) {
	for {
		old := s.snapshot.Load()
		next := *old
		fn(&next)
		if s.snapshot.CompareAndSwap(old, &next) {
			return
		}
	}
}

// GetSnapshot returns the current shared state.
func (s *Server) GetSnapshot() *Snapshot {
	return s.snapshot.Load()
}

// RegisterClient registers a new client with the given username and returns its handle.
func (s *Server) RegisterClient(username string) *ClientHandle {
	s.mu.Lock()
	handle := &ClientHandle{
		ID:       s.nextClientID,
		Username: username,
		EventsCh: make(chan ClientEvent, 16),
		JoinedAt: time.Now(),
	}
	s.nextClientID++
	s.clients[handle.ID] = handle
	players := len(s.clients)
	s.mu.Unlock()

	s.refreshPlayers()
	s.logger.Debug("client registered", "id", handle.ID, "user", username, "players", players)
	return handle
}

// UnregisterClient removes a client from the server.
func (s *Server) UnregisterClient(clientID int) {
	s.mu.Lock()
	handle, ok := s.clients[clientID]
	if ok {
		delete(s.clients, clientID)
		close(handle.EventsCh)
	}
	players := len(s.clients)
	s.mu.Unlock()

	if ok {
		s.refreshPlayers()
		s.logger.Debug("client unregistered", "id", clientID, "players", players,
			"connected", time.Since(handle.JoinedAt).Round(time.Second))
	}
}

func (s *Server) refreshPlayers() {
	s.modifySnapshot(func(snap *Snapshot) { snap.Players = s.ClientCount() })
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Shutdown gracefully shuts down the server by notifying all connected clients
// and waiting for them to disconnect (up to the given timeout).
// The caller should cancel the server context after Shutdown returns.
func (s *Server) Shutdown(timeout time.Duration) {
	s.mu.RLock()
	for _, handle := range s.clients {
		send(handle, ClientEvent{Type: EventServerShutdown})
	}
	s.mu.RUnlock()

	deadline := time.After(timeout)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return
		case <-ticker.C:
			if s.ClientCount() == 0 {
				return
			}
		}
	}
}
