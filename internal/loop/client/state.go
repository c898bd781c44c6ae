package client

import (
	"time"

	"github.com/tomz197/sshtargets/internal/input"
)

// GameState represents the current screen for a client.
type GameState int

const (
	GameStateStart     GameState = iota // Title screen with the scoreboard
	GameStatePlaying                    // Round in progress
	GameStateNameEntry                  // Round over, asking for a name
	GameStateShutdown                   // Server is shutting down
)

func (s GameState) String() string {
	switch s {
	case GameStateStart:
		return "start"
	case GameStatePlaying:
		return "playing"
	case GameStateNameEntry:
		return "name_entry"
	case GameStateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// ClientState holds per-connection UI state. Round state lives on the board
// and the score list on the shell.
type ClientState struct {
	Input     input.Input
	GameState GameState
	Running   bool
	delta     time.Duration // Frame delta time

	// Name entry
	nameBuf    []rune
	finalScore int
	submitName func(name string) // Answers the board's prompt; nil when not asked

	lastScore     int
	hasLastScore  bool
	highlightID   int64     // Record to highlight on the scoreboard
	highlightTill time.Time // Highlight ends at this time

	shutdownTimer float64 // Countdown before auto-disconnect on shutdown
	isInactive    bool    // Whether the client is in inactive warning state

	// Drawn on the previous frame; a change clears the terminal.
	prevGameState GameState
	wasInactive   bool
	lastPanel     string
}

// NewClientState creates a new initialized client state.
func NewClientState() *ClientState {
	return &ClientState{
		GameState:     GameStateStart,
		Running:       true,
		prevGameState: -1,
	}
}
