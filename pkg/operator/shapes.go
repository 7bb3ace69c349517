package operator

import (
	"math"

	"github.com/ryandielhenn/convoy/pkg/motion"
)

// Circle returns n points evenly spaced on a circle, starting at angle 0 and
// going counter-clockwise, each axis rounded to 3 decimals.
func Circle(center motion.Coordinate, radius float64, n int) []motion.Coordinate {
	if n <= 0 {
		return nil
	}
	out := make([]motion.Coordinate, 0, n)
	for i := range n {
		angle := 2 * math.Pi * float64(i) / float64(n)
		out = append(out, motion.Coordinate{
			X: round3(center.X + radius*math.Cos(angle)),
			Y: round3(center.Y + radius*math.Sin(angle)),
		})
	}
	return out
}

func round3(v float64) float64 {
	v = math.Round(v*1000) / 1000
	if v == 0 {
		return 0 // no "-0" on the wire
	}
	return v
}
