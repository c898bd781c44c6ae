package client

import (
	"bufio"
	"context"
	"io"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/tomz197/sshtargets/internal/draw"
	"github.com/tomz197/sshtargets/internal/game"
	"github.com/tomz197/sshtargets/internal/input"
	"github.com/tomz197/sshtargets/internal/loop/config"
	"github.com/tomz197/sshtargets/internal/loop/server"
	"github.com/tomz197/sshtargets/internal/sched"
	"github.com/tomz197/sshtargets/internal/shell"
)

// Client handles rendering and input for a single connection.
type Client struct {
	server       server.ScoreServer
	handle       *server.ClientHandle
	state        *ClientState
	loop         *sched.Loop
	board        *game.Board
	scores       *shell.Shell
	panel        *scoreboard
	canvas       *draw.Canvas
	chunkWriter  *draw.ChunkWriter // Accumulates UI text for chunked output
	writer       io.Writer
	inputStream  *input.Stream
	lastInput    time.Time
	lastFrame    time.Time
	username     string
	termSizeFunc draw.TermSizeFunc
	termWidth    int
	termHeight   int
	logger       *log.Logger
	ctx          context.Context
}

// ClientOptions configures the client.
type ClientOptions struct {
	TermSizeFunc draw.TermSizeFunc
	Username     string
	Logger       *log.Logger
	Renderer     *lipgloss.Renderer // Styles the scoreboard; defaults to one for the writer
	StoreTimeout time.Duration
	Rand         *rand.Rand
	Now          func() time.Time
}

// NewClient creates a new client connected to the given server. A nil
// reader means input is fed by the caller.
func NewClient(gs server.ScoreServer, r *bufio.Reader, w io.Writer, opts ClientOptions) *Client {
	termSizeFunc := opts.TermSizeFunc
	if termSizeFunc == nil {
		termSizeFunc = draw.DefaultTermSizeFunc
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = lipgloss.NewRenderer(w)
	}

	handle := gs.RegisterClient(opts.Username)
	start := now()
	loop := sched.New(start)

	termWidth, termHeight, _ := termSizeFunc()
	renderWidth, renderHeight, offsetCol, offsetRow := clampTermSize(termWidth, termHeight)
	canvas := draw.NewScaledCanvas(renderWidth, renderHeight, config.PlaneSize, config.PlaneSize)
	canvas.SetOffset(offsetCol, offsetRow)

	c := &Client{
		server:       gs,
		handle:       handle,
		state:        NewClientState(),
		loop:         loop,
		panel:        newScoreboard(renderer),
		canvas:       canvas,
		chunkWriter:  draw.NewChunkWriter(w, 0, 0),
		writer:       w,
		lastInput:    start,
		lastFrame:    start,
		username:     opts.Username,
		termSizeFunc: termSizeFunc,
		termWidth:    termWidth,
		termHeight:   termHeight,
		logger:       logger.With("client", handle.ID),
		ctx:          context.Background(),
	}
	if r != nil {
		c.inputStream = input.StartStream(r)
	}
	c.scores = shell.New(shell.Options{
		Store:   gs,
		Poster:  loop,
		Logger:  c.logger,
		Timeout: opts.StoreTimeout,
		Now:     now,
	})
	c.board = game.NewBoard(loop, game.BoardOptions{
		Prompt:     game.PromptFunc(c.requestName),
		OnRoundEnd: c.roundEnded,
		Rand:       opts.Rand,
		Logger:     c.logger,
	})
	return c
}

// Run starts the client loop. Blocks until the client quits, ctx is done or
// the server stops.
func (c *Client) Run(ctx context.Context) error {
	c.ctx = ctx
	draw.HideCursor(c.writer)
	draw.EnableMouse(c.writer)
	defer draw.ResetTerminal(c.writer)
	defer c.close()

	c.scores.Load(ctx)

	for c.state.Running {
		frameStart := time.Now()

		var in input.Input
		if c.inputStream != nil {
			in = input.ReadInput(c.inputStream)
		}
		if err := c.frame(frameStart, in); err != nil {
			return err
		}
		if ctx.Err() != nil {
			break
		}

		// Frame timing
		elapsed := time.Since(frameStart)
		if elapsed < config.ClientTargetFrameTime {
			time.Sleep(config.ClientTargetFrameTime - elapsed)
		}
	}

	draw.ClearScreen(c.writer)
	return nil
}

// close tears down the board and leaves the server.
func (c *Client) close() {
	c.board.Close()
	c.state.submitName = nil
	c.server.UnregisterClient(c.handle.ID)
}

// frame runs one Input, Update, Draw cycle at time now.
func (c *Client) frame(now time.Time, in input.Input) error {
	c.state.delta = now.Sub(c.lastFrame)
	c.lastFrame = now

	c.processInput(now, in)
	c.processServerEvents()
	c.updateScreen()

	switch c.state.GameState {
	case GameStateStart:
		c.updateStartState()
	case GameStatePlaying:
		c.updatePlayingState()
	case GameStateNameEntry:
		c.updateNameEntryState()
	case GameStateShutdown:
		c.updateShutdownState()
	}

	// Timers, frames and finished store calls.
	c.loop.Advance(now)

	return c.drawFrame(now)
}

// processInput records the frame's input and tracks inactivity.
func (c *Client) processInput(now time.Time, in input.Input) {
	c.state.Input = in

	idle := now.Sub(c.lastInput).Seconds()
	if in.Any() {
		c.lastInput = now
		c.state.isInactive = false
	} else if idle > config.InactivityDisconnectUser {
		c.logger.Info("disconnecting inactive client")
		c.state.Running = false
	} else if idle > config.InactivityWarnUser {
		c.state.isInactive = true
	}

	if in.Interrupt || in.Closed {
		c.state.Running = false
	}
}

// processServerEvents handles events from the server.
func (c *Client) processServerEvents() {
	for {
		select {
		case event, ok := <-c.handle.EventsCh:
			if !ok {
				// Server closed the channel
				c.state.Running = false
				return
			}
			switch event.Type {
			case server.EventScoresUpdated:
				c.scores.Replace(event.Scores)
			case server.EventServerShutdown:
				c.beginShutdown()
			}
		default:
			return
		}
	}
}

// beginShutdown saves a round in progress under the name typed so far and
// shows the shutdown screen.
func (c *Client) beginShutdown() {
	if c.state.GameState == GameStateShutdown {
		return
	}
	c.board.Abort()
	if c.state.submitName != nil {
		c.submit(string(c.state.nameBuf))
	}
	c.state.GameState = GameStateShutdown
	c.state.shutdownTimer = config.ShutdownDisplaySeconds
}

// updateScreen handles terminal resize. On actual size changes, clears the
// terminal to remove residual pixels outside the new canvas area.
func (c *Client) updateScreen() {
	termWidth, termHeight, err := c.termSizeFunc()
	if err != nil {
		return
	}
	renderWidth, renderHeight, offsetCol, offsetRow := clampTermSize(termWidth, termHeight)

	if termWidth != c.termWidth || termHeight != c.termHeight {
		c.chunkWriter.WriteString("\033[H\033[2J")
		c.canvas.ForceRedraw()
		c.state.lastPanel = ""
		c.state.prevGameState = -1
	}
	c.termWidth, c.termHeight = termWidth, termHeight

	c.canvas.Resize(renderWidth, renderHeight)
	c.canvas.SetOffset(offsetCol, offsetRow)
}

// clampTermSize picks the largest play area with twice as many columns as
// rows, so the square plane keeps round targets. One row above and below is
// kept for the HUD and hints, plus room for the border.
func clampTermSize(termWidth, termHeight int) (renderWidth, renderHeight, offsetCol, offsetRow int) {
	renderHeight = min(termHeight-4, config.MaxTermHeight)
	renderWidth = min(termWidth-2, config.MaxTermWidth)
	if renderWidth < 2*renderHeight {
		renderHeight = renderWidth / 2
	}
	renderHeight = max(renderHeight, 1)
	renderWidth = 2 * renderHeight
	offsetCol = max((termWidth-renderWidth)/2, 0)
	offsetRow = 2 + max((termHeight-4-renderHeight)/2, 0)
	return
}

// updateStartState handles the start screen.
func (c *Client) updateStartState() {
	in := c.state.Input
	switch {
	case in.Space || in.Enter:
		c.startRound()
	case in.Key('r'):
		if c.scores.Status() == shell.StatusFailed {
			c.scores.Retry(c.ctx)
		} else {
			c.scores.Refresh(c.ctx)
		}
	case in.Key('q'):
		c.state.Running = false
	}
}

// startRound starts a new round on the board.
func (c *Client) startRound() {
	if err := c.board.StartRound(); err != nil {
		c.logger.Debug("cannot start round", "err", err)
		return
	}
	c.state.GameState = GameStatePlaying
}

// updatePlayingState turns clicks into hits. Esc ends the round early.
func (c *Client) updatePlayingState() {
	in := c.state.Input
	for _, click := range in.Clicks {
		x, y, ok := c.canvas.TerminalToLogical(click.Col, click.Row)
		if ok {
			c.board.HitAt(game.Vec{X: x, Y: y})
		}
	}
	if in.Escape {
		c.board.Abort()
	}
}

// requestName is the board's name prompt: it switches to the name entry
// screen and answers once the player confirms.
func (c *Client) requestName(score int, submit func(name string)) {
	c.state.finalScore = score
	c.state.submitName = submit
	c.state.nameBuf = c.state.nameBuf[:0]
	c.state.GameState = GameStateNameEntry
}

// updateNameEntryState edits the name. Enter submits it, Esc submits the
// placeholder.
func (c *Client) updateNameEntryState() {
	in := c.state.Input
	switch {
	case in.Escape:
		c.submit("")
		return
	case in.Enter:
		c.submit(string(c.state.nameBuf))
		return
	}
	if in.Backspace && len(c.state.nameBuf) > 0 {
		c.state.nameBuf = c.state.nameBuf[:len(c.state.nameBuf)-1]
	}
	for _, r := range in.Text {
		if len(c.state.nameBuf) >= config.MaxUsernameLength {
			break
		}
		c.state.nameBuf = append(c.state.nameBuf, r)
	}
}

func (c *Client) submit(name string) {
	submit := c.state.submitName
	c.state.submitName = nil
	if submit != nil {
		submit(name)
	}
}

// roundEnded records the finished round and returns to the start screen.
func (c *Client) roundEnded(name string, score int) {
	// The save outlives the session.
	rec := c.scores.Submit(context.WithoutCancel(c.ctx), name, score)
	c.state.lastScore = score
	c.state.hasLastScore = true
	c.state.highlightID = rec.ID
	c.state.highlightTill = c.loop.Now().Add(time.Duration(config.HighlightSeconds * float64(time.Second)))
	if c.state.GameState != GameStateShutdown {
		c.state.GameState = GameStateStart
	}
	c.logger.Info("round finished", "name", rec.Name, "score", score)
}

// highlighted returns the record to mark on the scoreboard, if any.
func (c *Client) highlighted(now time.Time) (int64, bool) {
	if c.state.highlightID == 0 || !now.Before(c.state.highlightTill) {
		return 0, false
	}
	return c.state.highlightID, true
}

// updateShutdownState handles the shutdown screen countdown.
func (c *Client) updateShutdownState() {
	c.state.shutdownTimer -= c.state.delta.Seconds()
	if c.state.shutdownTimer <= 0 || c.state.Input.Key('q') || c.state.Input.Enter {
		c.state.Running = false
	}
}
