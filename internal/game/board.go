// Package game implements the round lifecycle of the target game: the
// countdown, target motion, hit registration and the single round-end
// notification.
package game

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tomz197/sshtargets/internal/leaderboard"
	"github.com/tomz197/sshtargets/internal/loop/config"
	"github.com/tomz197/sshtargets/internal/physics"
)

// Phase is the round lifecycle phase.
type Phase int

const (
	PhaseIdle    Phase = iota // No round; waiting for start
	PhaseRunning              // Countdown and animation active
	PhaseEnded                // Round over, waiting for the player name
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

var (
	ErrRoundActive = errors.New("game: round already in progress")
	ErrBoardClosed = errors.New("game: board closed")
)

// Scheduler runs the board's periodic activities. It is implemented by
// sched.Loop; all callbacks run on the goroutine that owns the board.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (stop func())
	NextFrame(fn func()) (stop func())
}

// NamePrompt asks the player for a name once a round has ended. The answer
// is delivered later by calling submit on the board's goroutine.
type NamePrompt interface {
	RequestName(score int, submit func(name string))
}

// PromptFunc adapts a function to NamePrompt.
type PromptFunc func(score int, submit func(name string))

// RequestName calls f.
func (f PromptFunc) RequestName(score int, submit func(name string)) {
	f(score, submit)
}

// RoundState is a snapshot of the live round.
type RoundState struct {
	Phase         Phase
	Score         int
	TimeRemaining int
	Position      Vec
	Velocity      Vec
}

// BoardOptions configures a Board.
type BoardOptions struct {
	Prompt     NamePrompt                   // Nil submits the placeholder name immediately
	OnRoundEnd func(name string, score int) // Called exactly once per finished round
	Rand       *rand.Rand
	Logger     *log.Logger
}

// Board owns one RoundState and drives it through Idle, Running and Ended.
// It is not safe for concurrent use; every method and callback must run on
// the scheduler's goroutine.
type Board struct {
	sched  Scheduler
	prompt NamePrompt
	onEnd  func(name string, score int)
	rng    *rand.Rand
	logger *log.Logger

	state RoundState
	round int // Incremented per started round; stale name replies are ignored

	stopCountdown func()
	stopFrame     func()
	ending        bool // End sequence already ran for this round
	closed        bool
}

// NewBoard creates an idle board.
func NewBoard(s Scheduler, opts BoardOptions) *Board {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Board{
		sched:  s,
		prompt: opts.Prompt,
		onEnd:  opts.OnRoundEnd,
		rng:    rng,
		logger: logger,
		state: RoundState{
			Phase:         PhaseIdle,
			TimeRemaining: config.RoundSeconds,
			Position:      Vec{X: config.PlaneSize / 2, Y: config.PlaneSize / 2},
		},
	}
}

// State returns a snapshot of the current round.
func (b *Board) State() RoundState {
	return b.state
}

// StartRound begins a new round from Idle.
func (b *Board) StartRound() error {
	if b.closed {
		return ErrBoardClosed
	}
	if b.state.Phase != PhaseIdle {
		return ErrRoundActive
	}

	b.round++
	b.ending = false
	b.state = RoundState{
		Phase:         PhaseRunning,
		Score:         0,
		TimeRemaining: config.RoundSeconds,
	}
	b.retarget()

	b.stopCountdown = b.sched.Every(config.CountdownPeriod, b.tick)
	b.stopFrame = b.sched.NextFrame(b.advanceFrame)
	b.logger.Debug("round started", "round", b.round)
	return nil
}

// RegisterHit scores a hit on the target. It is a no-op unless a round is
// running.
func (b *Board) RegisterHit() bool {
	if b.state.Phase != PhaseRunning {
		return false
	}
	b.state.Score++
	b.retarget()
	return true
}

// HitAt registers a hit when p lies inside the target.
func (b *Board) HitAt(p Vec) bool {
	if b.state.Phase != PhaseRunning {
		return false
	}
	pos := b.state.Position
	if !physics.PointInCircle(p.X, p.Y, pos.X, pos.Y, TargetRadius(b.state.Score)) {
		return false
	}
	return b.RegisterHit()
}

// Abort ends the running round early. The round-end notification is still
// emitted once.
func (b *Board) Abort() {
	if b.state.Phase == PhaseRunning {
		b.end()
	}
}

// Close tears the board down. Scheduled activities are cancelled and no
// round-end notification is emitted for an unfinished round.
func (b *Board) Close() {
	if b.closed {
		return
	}
	b.closed = true
	b.cancelActivities()
	b.state.Phase = PhaseIdle
}

// retarget places the target at a random spot and gives it a random heading
// with the speed for the current score.
func (b *Board) retarget() {
	b.state.Position = Vec{
		X: float64(b.rng.IntN(config.SpawnRange)) + config.PlaneMin,
		Y: float64(b.rng.IntN(config.SpawnRange)) + config.PlaneMin,
	}
	angle := b.rng.Float64() * 2 * math.Pi
	vx, vy := physics.Polar(Speed(b.state.Score), angle)
	b.state.Velocity = Vec{X: vx, Y: vy}
}

// tick runs once per second while a round is running.
func (b *Board) tick() {
	if b.state.Phase != PhaseRunning {
		return
	}
	b.state.TimeRemaining--
	if b.state.TimeRemaining <= 0 {
		b.state.TimeRemaining = 0
		b.end()
	}
}

// advanceFrame moves the target one step and schedules the next frame.
func (b *Board) advanceFrame() {
	b.stopFrame = nil
	if b.state.Phase != PhaseRunning {
		return
	}
	s := &b.state
	s.Position.X, s.Velocity.X = physics.Bounce(s.Position.X, s.Velocity.X, config.PlaneMin, config.PlaneMax)
	s.Position.Y, s.Velocity.Y = physics.Bounce(s.Position.Y, s.Velocity.Y, config.PlaneMin, config.PlaneMax)
	b.stopFrame = b.sched.NextFrame(b.advanceFrame)
}

// end runs the round-end sequence at most once per round.
func (b *Board) end() {
	if b.ending {
		return
	}
	b.ending = true
	b.state.Phase = PhaseEnded
	b.cancelActivities()

	round, score := b.round, b.state.Score
	b.logger.Debug("round ended", "round", round, "score", score)

	submit := func(name string) { b.finish(round, name, score) }
	if b.prompt == nil {
		submit("")
		return
	}
	b.prompt.RequestName(score, submit)
}

// finish delivers the round-end notification for round.
func (b *Board) finish(round int, name string, score int) {
	if b.closed || round != b.round || b.state.Phase != PhaseEnded {
		return
	}
	b.state.Phase = PhaseIdle
	name = leaderboard.NormalizeName(name)
	if b.onEnd != nil {
		b.onEnd(name, score)
	}
}

func (b *Board) cancelActivities() {
	if b.stopCountdown != nil {
		b.stopCountdown()
		b.stopCountdown = nil
	}
	if b.stopFrame != nil {
		b.stopFrame()
		b.stopFrame = nil
	}
}
