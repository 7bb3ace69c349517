package motion

import "math"

// KinematicConfig tunes the simulated robot.
type KinematicConfig struct {
	Speed            float64 // max distance per tick
	TurnRate         float64 // max degrees per tick
	AngleTolerance   float64 // degrees; below this the robot drives
	ArrivalTolerance float64 // per-axis distance counted as arrived
}

func DefaultKinematicConfig() KinematicConfig {
	return KinematicConfig{
		Speed:            0.05,
		TurnRate:         6,
		AngleTolerance:   3,
		ArrivalTolerance: 0.01,
	}
}

// Kinematic is a simulated differential-drive robot. Each DriveTo call is
// one control step: turn toward the target until within AngleTolerance,
// then drive. It never loops internally.
type Kinematic struct {
	cfg     KinematicConfig
	pos     Coordinate
	heading float64 // degrees, [0, 360)
	halted  bool
	polls   int
}

var (
	_ MotionController = (*Kinematic)(nil)
	_ Locator          = (*Kinematic)(nil)
)

func NewKinematic(start Coordinate, cfg KinematicConfig) *Kinematic {
	d := DefaultKinematicConfig()
	if cfg.Speed <= 0 {
		cfg.Speed = d.Speed
	}
	if cfg.TurnRate <= 0 {
		cfg.TurnRate = d.TurnRate
	}
	if cfg.AngleTolerance <= 0 {
		cfg.AngleTolerance = d.AngleTolerance
	}
	if cfg.ArrivalTolerance <= 0 {
		cfg.ArrivalTolerance = d.ArrivalTolerance
	}
	return &Kinematic{cfg: cfg, pos: start}
}

func (k *Kinematic) DriveTo(target Coordinate) DriveState {
	k.polls++
	k.halted = false
	if k.pos.Near(target, k.cfg.ArrivalTolerance) {
		return Arrived
	}

	bearing := Bearing(k.pos, target)
	diff := AngleDiff(bearing, k.heading)
	if math.Abs(diff) >= k.cfg.AngleTolerance {
		step := math.Min(k.cfg.TurnRate, math.Abs(diff))
		k.heading = normalizeDegrees(k.heading + math.Copysign(step, diff))
		return Traveling
	}

	dist := k.pos.Distance(target)
	if dist <= k.cfg.Speed {
		k.pos = target
		return Arrived
	}
	rad := bearing * math.Pi / 180
	k.pos.X += k.cfg.Speed * math.Cos(rad)
	k.pos.Y += k.cfg.Speed * math.Sin(rad)
	if k.pos.Near(target, k.cfg.ArrivalTolerance) {
		return Arrived
	}
	return Traveling
}

func (k *Kinematic) Halt() { k.halted = true }

func (k *Kinematic) Halted() bool { return k.halted }

func (k *Kinematic) Position() Coordinate { return k.pos }

func (k *Kinematic) Heading() float64 { return k.heading }

// Polls counts DriveTo calls since creation.
func (k *Kinematic) Polls() int { return k.polls }

// Bearing returns the direction from one point to another in degrees, [0, 360).
func Bearing(from, to Coordinate) float64 {
	deg := math.Atan2(to.Y-from.Y, to.X-from.X) * 180 / math.Pi
	return normalizeDegrees(deg)
}

// AngleDiff returns target-current folded into [-180, 180).
func AngleDiff(target, current float64) float64 {
	d := target - current
	for d < -180 {
		d += 360
	}
	for d >= 180 {
		d -= 360
	}
	return d
}

func normalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}
