// Package motion is the boundary between the coordination protocol and the
// physical robot. The protocol only ever polls DriveTo once per tick and
// calls Halt; everything about wheels, sensors and steering lives behind
// MotionController.
package motion

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrBadCoordinate = errors.New("motion: malformed coordinate")

// Coordinate is a point on the arena floor.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// String renders the wire form `x:y`.
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.X, 'f', -1, 64) + ":" + strconv.FormatFloat(c.Y, 'f', -1, 64)
}

// ParseCoordinate reads the wire form `x:y`.
func ParseCoordinate(s string) (Coordinate, error) {
	xs, ys, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrBadCoordinate, s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrBadCoordinate, s)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrBadCoordinate, s)
	}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrBadCoordinate, s)
	}
	return Coordinate{X: x, Y: y}, nil
}

// Near reports whether c and o differ by at most tol on both axes.
func (c Coordinate) Near(o Coordinate, tol float64) bool {
	return math.Abs(c.X-o.X) <= tol && math.Abs(c.Y-o.Y) <= tol
}

func (c Coordinate) Distance(o Coordinate) float64 {
	return math.Hypot(o.X-c.X, o.Y-c.Y)
}

type DriveState uint8

const (
	Traveling DriveState = iota
	Arrived
)

func (s DriveState) String() string {
	if s == Arrived {
		return "arrived"
	}
	return "traveling"
}

// MotionController drives one robot. DriveTo advances at most one control
// step toward target and must be safe to call repeatedly until it reports
// Arrived. Halt stops immediately and is idempotent.
type MotionController interface {
	DriveTo(target Coordinate) DriveState
	Halt()
}

// Locator is implemented by controllers that know where the robot is.
type Locator interface {
	Position() Coordinate
}
