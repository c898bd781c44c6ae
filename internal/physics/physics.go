// Package physics provides the motion and hit-testing helpers for targets
// moving inside a bounded plane.
package physics

import "math"

// DistanceSquared calculates the squared distance between two points.
// Use this when comparing distances to avoid the sqrt cost.
func DistanceSquared(x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	return dx*dx + dy*dy
}

// PointInCircle checks if a point is within radius of a target position.
func PointInCircle(px, py, cx, cy, radius float64) bool {
	return DistanceSquared(px, py, cx, cy) <= radius*radius
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Bounce advances one axis by velocity inside [lo, hi]. When the new position
// touches or crosses a wall the velocity is reversed; the position is clamped
// to the range either way.
func Bounce(pos, vel, lo, hi float64) (newPos, newVel float64) {
	newPos = pos + vel
	newVel = vel
	if newPos <= lo || newPos >= hi {
		newVel = -vel
	}
	return Clamp(newPos, lo, hi), newVel
}

// Polar returns the vector with the given magnitude and angle in radians.
func Polar(magnitude, angle float64) (x, y float64) {
	return math.Cos(angle) * magnitude, math.Sin(angle) * magnitude
}
