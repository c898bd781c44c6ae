package game

import (
	"math"

	"github.com/tomz197/sshtargets/internal/loop/config"
)

// Vec is a point or velocity on the play plane.
type Vec struct {
	X, Y float64
}

// Speed returns the target speed in plane units per frame for a score.
// Targets get faster as the score increases, up to MaxSpeed.
func Speed(score int) float64 {
	return math.Min(config.BaseSpeed+float64(score)*config.SpeedPerHit, config.MaxSpeed)
}

// TargetSize returns the target diameter in reference-board pixels.
// Targets get smaller as the score increases, down to MinTargetSize.
func TargetSize(score int) float64 {
	return math.Max(config.BaseTargetSize-float64(score)*config.TargetShrink, config.MinTargetSize)
}

// TargetRadius returns the target radius in plane units.
func TargetRadius(score int) float64 {
	return TargetSize(score) / 2 * config.PlaneSize / config.ReferencePixels
}
