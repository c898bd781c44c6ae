package client

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/tomz197/sshtargets/internal/input"
	"github.com/tomz197/sshtargets/internal/leaderboard"
	"github.com/tomz197/sshtargets/internal/loop/config"
	"github.com/tomz197/sshtargets/internal/loop/server"
	"github.com/tomz197/sshtargets/internal/shell"
	"github.com/tomz197/sshtargets/internal/store"
)

type harness struct {
	t      *testing.T
	c      *Client
	hub    *server.Server
	store  store.Store
	out    *bytes.Buffer
	now    time.Time
	width  int
	height int
}

func newHarness(t *testing.T, backing store.Store) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		hub:    server.NewServer(backing, server.Options{Logger: log.New(io.Discard)}),
		store:  backing,
		out:    &bytes.Buffer{},
		now:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		width:  100,
		height: 44,
	}
	h.c = NewClient(h.hub, nil, h.out, ClientOptions{
		TermSizeFunc: func() (int, int, error) { return h.width, h.height, nil },
		Username:     "neo",
		Logger:       log.New(io.Discard),
		Renderer:     lipgloss.NewRenderer(io.Discard),
		Rand:         rand.New(rand.NewPCG(1, 2)),
		Now:          func() time.Time { return h.now },
	})
	t.Cleanup(h.c.close)
	return h
}

// key builds the input for typed text.
func key(s string) input.Input {
	in, _ := input.Parse([]byte(s))
	return in
}

func (h *harness) step(in input.Input) {
	h.t.Helper()
	h.now = h.now.Add(config.ClientTargetFrameTime)
	if err := h.c.frame(h.now, in); err != nil {
		h.t.Fatalf("frame: %v", err)
	}
}

// run steps empty frames for d of game time.
func (h *harness) run(d time.Duration) {
	h.t.Helper()
	for end := h.now.Add(d); h.now.Before(end); {
		h.step(input.Input{})
	}
}

// until steps frames until cond holds, giving background store calls time
// to finish.
func (h *harness) until(cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			h.t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
		h.step(input.Input{})
	}
}

func (h *harness) load() {
	h.c.scores.Load(context.Background())
	h.until(func() bool { return h.c.scores.Status() == shell.StatusReady })
}

// stored returns the records persisted in the backing store.
func (h *harness) stored() []leaderboard.Record {
	list, _ := h.store.Load(context.Background())
	return list
}

// clickTarget clicks the terminal cell whose center lies closest to the
// target.
func (h *harness) clickTarget() {
	h.t.Helper()
	st := h.c.board.State()
	best, bestCol, bestRow := math.Inf(1), 0, 0
	for row := 1; row <= h.height; row++ {
		for col := 1; col <= h.width; col++ {
			x, y, ok := h.c.canvas.TerminalToLogical(col, row)
			if !ok {
				continue
			}
			if d := math.Hypot(x-st.Position.X, y-st.Position.Y); d < best {
				best, bestCol, bestRow = d, col, row
			}
		}
	}
	h.step(input.Input{Clicks: []input.Click{{Col: bestCol, Row: bestRow}}, Pressed: []byte{0x1b}})
}

type failingStore struct{ err error }

func (f failingStore) Load(context.Context) ([]leaderboard.Record, error) { return nil, f.err }
func (f failingStore) Save(context.Context, []leaderboard.Record) error  { return f.err }

func TestClampTermSize(t *testing.T) {
	tests := []struct {
		name                   string
		width, height          int
		wantW, wantH, col, row int
	}{
		{"height bound", 100, 44, 80, 40, 10, 2},
		{"capped", 300, 100, 100, 50, 100, 25},
		{"width bound", 40, 30, 38, 19, 1, 5},
		{"tiny", 3, 3, 2, 1, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, col, row := clampTermSize(tt.width, tt.height)
			if w != tt.wantW || h != tt.wantH || col != tt.col || row != tt.row {
				t.Fatalf("clampTermSize(%d, %d) = %d, %d, %d, %d; want %d, %d, %d, %d",
					tt.width, tt.height, w, h, col, row, tt.wantW, tt.wantH, tt.col, tt.row)
			}
			if w != 2*h {
				t.Fatalf("play area %dx%d is not square", w, h)
			}
		})
	}
}

func TestRoundFlow(t *testing.T) {
	h := newHarness(t, store.NewMemory())
	h.load()

	h.step(key(" "))
	if h.c.state.GameState != GameStatePlaying {
		t.Fatalf("state = %v, want playing", h.c.state.GameState)
	}

	h.clickTarget()
	h.clickTarget()
	if got := h.c.board.State().Score; got != 2 {
		t.Fatalf("score after two hits = %d", got)
	}

	// A click far outside the play area is ignored.
	h.step(input.Input{Clicks: []input.Click{{Col: 1, Row: 1}}, Pressed: []byte{1}})
	if got := h.c.board.State().Score; got != 2 {
		t.Fatalf("score after stray click = %d", got)
	}

	h.step(input.Input{Escape: true, Pressed: []byte{0x1b}})
	if h.c.state.GameState != GameStateNameEntry || h.c.state.finalScore != 2 {
		t.Fatalf("after Esc: state %v, final score %d", h.c.state.GameState, h.c.state.finalScore)
	}

	h.step(key("Trinity"))
	h.step(input.Input{Backspace: true, Pressed: []byte{0x7f}})
	h.step(key("\r"))
	if h.c.state.GameState != GameStateStart {
		t.Fatalf("state after Enter = %v, want start", h.c.state.GameState)
	}
	if !h.c.state.hasLastScore || h.c.state.lastScore != 2 {
		t.Fatalf("last score = %d (%v)", h.c.state.lastScore, h.c.state.hasLastScore)
	}

	h.until(func() bool { return len(h.stored()) == 1 })
	got := h.stored()[0]
	if got.Name != "Trinit" || got.Score != 2 {
		t.Fatalf("stored record = %+v", got)
	}

	if id, ok := h.c.highlighted(h.now); !ok || id != got.ID {
		t.Fatalf("highlighted = %d, %v; want %d", id, ok, got.ID)
	}
	h.run(time.Duration(config.HighlightSeconds * float64(time.Second)))
	if _, ok := h.c.highlighted(h.now); ok {
		t.Fatal("highlight did not expire")
	}
}

func TestRoundTimesOut(t *testing.T) {
	h := newHarness(t, store.NewMemory())
	h.load()

	h.step(key("\r"))
	h.run(config.RoundSeconds*time.Second + time.Second)
	if h.c.state.GameState != GameStateNameEntry {
		t.Fatalf("state after round time = %v, want name entry", h.c.state.GameState)
	}

	h.step(input.Input{Escape: true, Pressed: []byte{0x1b}})
	h.until(func() bool { return len(h.stored()) == 1 })
	if got := h.stored()[0].Name; got != leaderboard.DefaultName {
		t.Fatalf("name after Esc = %q, want placeholder", got)
	}
}

func TestNameLengthLimited(t *testing.T) {
	h := newHarness(t, store.NewMemory())
	h.step(key(" "))
	h.step(input.Input{Escape: true, Pressed: []byte{0x1b}})

	h.step(key(strings.Repeat("x", 20)))
	if got := len(h.c.state.nameBuf); got != config.MaxUsernameLength {
		t.Fatalf("name length = %d, want %d", got, config.MaxUsernameLength)
	}
	// Keys that start a round on the title screen are text here.
	h.step(key("q "))
	if h.c.state.GameState != GameStateNameEntry || !h.c.state.Running {
		t.Fatalf("typing changed state to %v (running %v)", h.c.state.GameState, h.c.state.Running)
	}
}

func TestQuitKeys(t *testing.T) {
	h := newHarness(t, store.NewMemory())
	h.step(key("Q"))
	if h.c.state.Running {
		t.Fatal("Q did not quit from the title screen")
	}

	h = newHarness(t, store.NewMemory())
	h.step(key(" "))
	h.step(key("\x03"))
	if h.c.state.Running {
		t.Fatal("Ctrl-C did not quit during a round")
	}
}

func TestInactivity(t *testing.T) {
	h := newHarness(t, store.NewMemory())

	h.now = h.now.Add((config.InactivityWarnUser + 1) * time.Second)
	h.step(input.Input{})
	if !h.c.state.isInactive || !h.c.state.Running {
		t.Fatalf("inactive %v, running %v", h.c.state.isInactive, h.c.state.Running)
	}
	if !strings.Contains(h.out.String(), "INACTIVITY WARNING") {
		t.Fatal("warning not drawn")
	}

	h.step(key("x"))
	if h.c.state.isInactive {
		t.Fatal("key press did not clear the warning")
	}

	h.now = h.now.Add((config.InactivityDisconnectUser + 1) * time.Second)
	h.step(input.Input{})
	if h.c.state.Running {
		t.Fatal("inactive client not disconnected")
	}
}

func TestShutdownSavesRoundInProgress(t *testing.T) {
	h := newHarness(t, store.NewMemory())
	h.load()
	h.step(key(" "))
	h.clickTarget()

	h.c.handle.EventsCh <- server.ClientEvent{Type: server.EventServerShutdown}
	h.step(input.Input{})
	if h.c.state.GameState != GameStateShutdown {
		t.Fatalf("state = %v, want shutdown", h.c.state.GameState)
	}
	h.until(func() bool { return len(h.stored()) == 1 })
	if got := h.stored()[0]; got.Score != 1 || got.Name != leaderboard.DefaultName {
		t.Fatalf("saved record = %+v", got)
	}
	if !strings.Contains(h.out.String(), "SERVER SHUTTING DOWN") {
		t.Fatal("shutdown screen not drawn")
	}

	h.run(time.Duration(config.ShutdownDisplaySeconds*float64(time.Second)) + time.Second)
	if h.c.state.Running {
		t.Fatal("client still running after the shutdown countdown")
	}
}

func TestScoresUpdatedEventReplacesList(t *testing.T) {
	h := newHarness(t, store.NewMemory())
	list := []leaderboard.Record{
		{ID: 1, Name: "a", Score: 3, Date: h.now},
		{ID: 2, Name: "b", Score: 9, Date: h.now},
	}
	h.c.handle.EventsCh <- server.ClientEvent{Type: server.EventScoresUpdated, Scores: list}
	h.step(input.Input{})

	v := h.c.scores.View()
	if v.Status != shell.StatusReady || len(v.Top) != 2 || v.Top[0].ID != 2 {
		t.Fatalf("view = %+v", v)
	}
	out := h.out.String()
	if !strings.Contains(out, "HIGH SCORES") || !strings.Contains(out, "Highest  9") {
		t.Fatalf("scoreboard not drawn: %q", out)
	}
}

func TestLoadFailureAndRetry(t *testing.T) {
	h := newHarness(t, failingStore{err: errors.New("offline")})
	h.c.scores.Load(context.Background())
	h.until(func() bool { return h.c.scores.Status() == shell.StatusFailed })
	if !strings.Contains(h.out.String(), "Could not load scores.") {
		t.Fatal("load error not shown")
	}

	h.step(key("r"))
	if got := h.c.scores.Status(); got != shell.StatusLoading && got != shell.StatusFailed {
		t.Fatalf("status after R = %v", got)
	}
	h.until(func() bool { return h.c.scores.Status() == shell.StatusFailed })

	// Playing still works without a scoreboard.
	h.step(key(" "))
	if h.c.state.GameState != GameStatePlaying {
		t.Fatalf("state = %v, want playing", h.c.state.GameState)
	}
}

func TestResizeClearsScreen(t *testing.T) {
	h := newHarness(t, store.NewMemory())
	h.step(input.Input{})
	h.out.Reset()

	h.step(input.Input{})
	if strings.Contains(h.out.String(), "\033[2J") {
		t.Fatal("screen cleared without a change")
	}

	h.width, h.height = 200, 60
	h.step(input.Input{})
	if !strings.Contains(h.out.String(), "\033[2J") {
		t.Fatal("resize did not clear the screen")
	}
	if w := h.c.canvas.TerminalWidth(); w != 100 {
		t.Fatalf("canvas width = %d after resize, want 100", w)
	}
}

func TestRunTearsDown(t *testing.T) {
	hub := server.NewServer(store.NewMemory(), server.Options{Logger: log.New(io.Discard)})
	var out bytes.Buffer
	c := NewClient(hub, bufio.NewReader(strings.NewReader("")), &out, ClientOptions{
		TermSizeFunc: func() (int, int, error) { return 80, 24, nil },
		Logger:       log.New(io.Discard),
		Renderer:     lipgloss.NewRenderer(io.Discard),
	})
	if hub.ClientCount() != 1 {
		t.Fatalf("client count = %d", hub.ClientCount())
	}

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after input closed")
	}

	if hub.ClientCount() != 0 {
		t.Fatal("client still registered")
	}
	s := out.String()
	for _, seq := range []string{"\033[?25l", "\033[?1000h", "\033[?1000l", "\033[?25h"} {
		if !strings.Contains(s, seq) {
			t.Fatalf("output lacks %q", seq)
		}
	}
	if c.loop.Pending() != 0 {
		t.Fatalf("%d scheduled activities survived", c.loop.Pending())
	}
}

func TestScoreboardPanel(t *testing.T) {
	sb := newScoreboard(lipgloss.NewRenderer(io.Discard))
	now := time.Unix(100, 0)
	list := []leaderboard.Record{
		{ID: 1, Name: "alice", Score: 4, Date: now},
		{ID: 2, Name: "bob", Score: 7, Date: now},
	}

	ready := sb.Render(shell.View{
		Status: shell.StatusReady,
		Top:    list,
		Stats:  leaderboard.Summarize(list),
	}, 2, true)
	for _, want := range []string{"HIGH SCORES", "alice", "bob", "Highest  7", "Average  6", "Games    2"} {
		if !strings.Contains(ready, want) {
			t.Errorf("panel lacks %q:\n%s", want, ready)
		}
	}

	tests := []struct {
		name string
		view shell.View
		want string
	}{
		{"loading", shell.View{Status: shell.StatusLoading}, "Loading scores..."},
		{"empty", shell.View{Status: shell.StatusReady}, "No scores yet"},
		{"failed", shell.View{Status: shell.StatusFailed}, "Press R to retry."},
		{"save error", shell.View{Status: shell.StatusReady, SaveErr: errors.New("x")}, "not saved"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sb.Render(tt.view, 0, false); !strings.Contains(got, tt.want) {
				t.Fatalf("panel lacks %q:\n%s", tt.want, got)
			}
		})
	}
}
