// Package config centralizes all tunable game parameters.
package config

import "time"

// Play field - the target moves on a normalized plane in logical units.
// Actual rendering scales to fit terminal size.
const (
	PlaneSize = 100.0 // Logical width and height of the plane
	PlaneMin  = 10.0  // Lowest coordinate the target center may reach
	PlaneMax  = 90.0  // Highest coordinate the target center may reach
)

// Round
const (
	RoundSeconds    = 30
	CountdownPeriod = time.Second
)

// Target
const (
	BaseSpeed        = 2.0  // Plane units per frame at score 0
	SpeedPerHit      = 0.2  // Added per point scored
	MaxSpeed         = 5.0  // Speed cap
	BaseTargetSize   = 48.0 // Pixels on the reference board at score 0
	TargetShrink     = 2.0  // Pixels lost per point scored
	MinTargetSize    = 20.0 // Size floor in pixels
	ReferencePixels  = 400.0
	SpawnRange       = 80 // Spawn positions are integers in [PlaneMin, PlaneMin+SpawnRange)
	TargetPolySides  = 20
	TargetBlinkHz    = 2.0
	HighlightSeconds = 2.0 // How long a fresh leaderboard entry stays highlighted
)

// Player
const (
	MaxUsernameLength = 16 // Maximum display length for player names
)

// Render limits - terminals larger than this are letterboxed.
const (
	MaxTermWidth  = 160
	MaxTermHeight = 50
)

// Shutdown
const (
	ShutdownDisplaySeconds = 10.0 // Seconds to show shutdown message before auto-disconnect
)

// Inactivity
const (
	InactivityWarnUser       = 90  // Seconds
	InactivityDisconnectUser = 120 // Seconds
)

// Client rendering
const (
	ClientTargetFPS       = 60
	ClientTargetFrameTime = time.Second / ClientTargetFPS
)
