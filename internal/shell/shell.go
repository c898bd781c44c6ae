// Package shell owns the leaderboard a client displays. It loads and saves
// through a store.Store in the background and hands every result back to the
// client's loop goroutine, so the game never waits on persistence.
package shell

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

// Status of the displayed list.
type Status int

const (
	StatusIdle    Status = iota // Load not requested yet
	StatusLoading               // Load in flight
	StatusReady                 // List loaded
	StatusFailed                // Last load failed; Retry is offered
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Poster runs fn on the owner's goroutine. sched.Loop implements it.
type Poster interface {
	Post(fn func())
}

// Options configures a Shell.
type Options struct {
	Store   store.Store
	Poster  Poster
	Logger  *log.Logger
	Timeout time.Duration    // Per-call store timeout; zero means none
	Now     func() time.Time // Record timestamps
	Go      func(fn func())  // Starts background work; defaults to a goroutine
}

// View is what the scoreboard panel renders.
type View struct {
	Status    Status
	LoadErr   error
	SaveErr   error
	Top       []leaderboard.Record
	Stats     leaderboard.Stats
	Latest    leaderboard.Record
	HasLatest bool
}

// Shell is confined to the poster's goroutine except for the background
// store calls it starts.
type Shell struct {
	store   store.Store
	poster  Poster
	logger  *log.Logger
	timeout time.Duration
	now     func() time.Time
	spawn   func(fn func())

	list    []leaderboard.Record
	status  Status
	loadErr error
	saveErr error
	loadGen int
	unsaved []leaderboard.Record // Submitted but not yet confirmed by a save

	saveSeq    int64
	latestSave atomic.Int64
	saveMu     sync.Mutex // Serializes store writes
}

// New creates a shell in StatusIdle with an empty list.
func New(opts Options) *Shell {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	spawn := opts.Go
	if spawn == nil {
		spawn = func(fn func()) { go fn() }
	}
	return &Shell{
		store:   opts.Store,
		poster:  opts.Poster,
		logger:  logger,
		timeout: opts.Timeout,
		now:     now,
		spawn:   spawn,
	}
}

func (s *Shell) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Load starts loading the list unless a load is already in flight.
func (s *Shell) Load(ctx context.Context) {
	if s.status == StatusLoading {
		return
	}
	s.status = StatusLoading
	s.loadErr = nil
	s.loadGen++
	gen := s.loadGen

	s.spawn(func() {
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()
		list, err := s.store.Load(ctx)
		s.poster.Post(func() { s.loaded(gen, list, err) })
	})
}

// Retry reloads after a failed load.
func (s *Shell) Retry(ctx context.Context) {
	if s.status == StatusFailed {
		s.Load(ctx)
	}
}

// Refresh reloads the list whatever its status.
func (s *Shell) Refresh(ctx context.Context) {
	s.Load(ctx)
}

func (s *Shell) loaded(gen int, list []leaderboard.Record, err error) {
	if gen != s.loadGen {
		return
	}
	if err != nil {
		s.status = StatusFailed
		s.loadErr = err
		s.logger.Warn("failed to load high scores", "err", err)
		return
	}
	s.apply(list)
}

// apply installs an authoritative list. Records not yet saved are merged
// back in and saved again when the list lacked them.
func (s *Shell) apply(list []leaderboard.Record) {
	s.status = StatusReady
	s.loadErr = nil
	base := leaderboard.Normalize(slices.Clone(list))
	s.list = leaderboard.Merge(base, s.unsaved)
	s.dropUnretained()

	for _, r := range s.unsaved {
		if !leaderboard.Contains(base, r.ID) {
			s.save(s.list)
			return
		}
	}
}

// dropUnretained forgets unsaved records that fell out of the list.
func (s *Shell) dropUnretained() {
	s.unsaved = slices.DeleteFunc(s.unsaved, func(r leaderboard.Record) bool {
		return !leaderboard.Contains(s.list, r.ID)
	})
}

// Replace applies a list pushed from elsewhere and supersedes any load in
// flight.
func (s *Shell) Replace(list []leaderboard.Record) {
	s.loadGen++
	s.apply(list)
}

// Submit records a finished round. The displayed list is updated at once;
// persisting happens in the background and a failure only sets SaveErr. The
// record is carried into every later list until a save succeeds.
func (s *Shell) Submit(ctx context.Context, name string, score int) leaderboard.Record {
	rec := leaderboard.NewRecord(name, score, s.now())
	s.list = leaderboard.Admit(s.list, rec)
	s.unsaved = append(s.unsaved, rec)
	s.dropUnretained()
	if s.status != StatusReady {
		// Saving now would overwrite the stored list with a partial one.
		return rec
	}
	s.saveWith(ctx, s.list)
	return rec
}

func (s *Shell) save(list []leaderboard.Record) {
	s.saveWith(context.Background(), list)
}

func (s *Shell) saveWith(ctx context.Context, list []leaderboard.Record) {
	s.saveSeq++
	seq := s.saveSeq
	s.latestSave.Store(seq)
	list = slices.Clone(list)
	var ids []int64
	for _, r := range s.unsaved {
		if leaderboard.Contains(list, r.ID) {
			ids = append(ids, r.ID)
		}
	}

	s.spawn(func() {
		s.saveMu.Lock()
		defer s.saveMu.Unlock()
		if seq < s.latestSave.Load() {
			// A newer list is queued behind us.
			return
		}
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()
		err := s.store.Save(ctx, list)
		s.poster.Post(func() { s.saved(seq, ids, err) })
	})
}

// saved records the outcome of a save that carried the unsaved records ids.
func (s *Shell) saved(seq int64, ids []int64, err error) {
	if err != nil {
		s.saveErr = err
		s.logger.Warn("failed to save high scores", "err", err)
		return
	}
	s.unsaved = slices.DeleteFunc(s.unsaved, func(r leaderboard.Record) bool {
		return slices.Contains(ids, r.ID)
	})
	if seq == s.saveSeq {
		s.saveErr = nil
	}
}

// List returns the full displayed list.
func (s *Shell) List() []leaderboard.Record {
	return slices.Clone(s.list)
}

// Status returns the load status.
func (s *Shell) Status() Status {
	return s.status
}

// View derives everything the scoreboard shows.
func (s *Shell) View() View {
	latest, ok := leaderboard.Latest(s.list)
	return View{
		Status:    s.status,
		LoadErr:   s.loadErr,
		SaveErr:   s.saveErr,
		Top:       leaderboard.Top(s.list, leaderboard.DisplayEntries),
		Stats:     leaderboard.Summarize(s.list),
		Latest:    latest,
		HasLatest: ok,
	}
}
