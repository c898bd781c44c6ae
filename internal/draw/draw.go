// Package draw renders to ANSI terminals: a half-block canvas with logical
// coordinate scaling, chunked output for slow links and terminal control
// sequences.
package draw

import "math"

// Point represents a 2D coordinate.
type Point struct {
	X, Y float64
}

// Block characters for drawing.
const (
	BlockFull      = '█'
	BlockUpperHalf = '▀'
	BlockLowerHalf = '▄'
)

// CirclePoints fills dst with a regular polygon approximating a circle and
// returns it. dst is grown when it is shorter than sides.
func CirclePoints(dst []Point, cx, cy, radius float64, sides int) []Point {
	if sides < 3 {
		sides = 3
	}
	if cap(dst) < sides {
		dst = make([]Point, sides)
	}
	dst = dst[:sides]
	step := 2 * math.Pi / float64(sides)
	for i := range dst {
		angle := float64(i) * step
		dst[i] = Point{X: cx + math.Cos(angle)*radius, Y: cy + math.Sin(angle)*radius}
	}
	return dst
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
