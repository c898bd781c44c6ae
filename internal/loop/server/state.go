package server

import (
	"time"

	"github.com/tomz197/sshtargets/internal/leaderboard"
)

// Snapshot is an immutable view of the shared state for rendering.
type Snapshot struct {
	Players int // Connected clients
}

// ClientHandle represents a client's connection to the server.
type ClientHandle struct {
	ID       int
	Username string           // Display name for this client
	EventsCh chan ClientEvent // Events sent to client
	JoinedAt time.Time
}

// ClientEvent represents an event sent from server to client.
type ClientEvent struct {
	Type   ClientEventType
	Scores []leaderboard.Record // For EventScoresUpdated
}

// ClientEventType identifies the type of client event.
type ClientEventType int

const (
	EventScoresUpdated ClientEventType = iota
	EventServerShutdown
)

func (t ClientEventType) String() string {
	switch t {
	case EventScoresUpdated:
		return "scores_updated"
	case EventServerShutdown:
		return "server_shutdown"
	default:
		return "unknown"
	}
}
