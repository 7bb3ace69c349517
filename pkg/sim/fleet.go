// Package sim runs a whole fleet in one process: every agent gets a
// kinematic robot and an endpoint on a shared radio medium, and the fleet is
// stepped in lockstep.
package sim

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ryandielhenn/convoy/pkg/agent"
	"github.com/ryandielhenn/convoy/pkg/gossip"
	"github.com/ryandielhenn/convoy/pkg/motion"
	"github.com/ryandielhenn/convoy/pkg/operator"
)

// Robot is a kinematic robot that remembers every target it reached.
type Robot struct {
	*motion.Kinematic
	visits []motion.Coordinate
}

func (r *Robot) DriveTo(target motion.Coordinate) motion.DriveState {
	st := r.Kinematic.DriveTo(target)
	if st == motion.Arrived {
		r.visits = append(r.visits, target)
	}
	return st
}

// Visits returns the targets reached so far, oldest first.
func (r *Robot) Visits() []motion.Coordinate {
	return append([]motion.Coordinate(nil), r.visits...)
}

// Visited reports whether the robot reached c within tol.
func (r *Robot) Visited(c motion.Coordinate, tol float64) bool {
	for _, v := range r.visits {
		if v.Near(c, tol) {
			return true
		}
	}
	return false
}

type member struct {
	engine   *agent.NetworkManager
	robot    *Robot
	endpoint *gossip.Endpoint
}

type Fleet struct {
	medium    *gossip.Medium
	params    agent.Params
	kinematic motion.KinematicConfig
	opCfg     operator.Config
	logger    *zap.Logger

	order     []string
	members   map[string]*member
	operators []*operator.Console
	ticks     int
}

type Option func(*Fleet)

func WithParams(p agent.Params) Option { return func(f *Fleet) { f.params = p } }

func WithKinematics(k motion.KinematicConfig) Option { return func(f *Fleet) { f.kinematic = k } }

func WithOperatorConfig(c operator.Config) Option { return func(f *Fleet) { f.opCfg = c } }

func WithMedium(opts ...gossip.MediumOption) Option {
	return func(f *Fleet) { f.medium = gossip.NewMedium(opts...) }
}

func WithLogger(l *zap.Logger) Option { return func(f *Fleet) { f.logger = l } }

func New(opts ...Option) *Fleet {
	f := &Fleet{
		params:    agent.DefaultParams(),
		kinematic: motion.DefaultKinematicConfig(),
		opCfg:     operator.DefaultConfig(),
		logger:    zap.NewNop(),
		members:   make(map[string]*member),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.medium == nil {
		f.medium = gossip.NewMedium()
	}
	return f
}

// AddAgent places a new agent at start. Ids must be unique.
func (f *Fleet) AddAgent(id string, start motion.Coordinate) *agent.NetworkManager {
	if _, dup := f.members[id]; dup {
		panic(fmt.Sprintf("sim: duplicate agent %q", id))
	}
	robot := &Robot{Kinematic: motion.NewKinematic(start, f.kinematic)}
	ep := f.medium.Join(id, func() (float64, float64) {
		p := robot.Position()
		return p.X, p.Y
	})
	engine := agent.NewNetworkManager(gossip.NodeID(id), ep, robot, f.params, f.logger)
	f.members[id] = &member{engine: engine, robot: robot, endpoint: ep}
	f.order = append(f.order, id)
	return engine
}

// AddOperator attaches a console that hears and is heard by everybody.
func (f *Fleet) AddOperator(id string) *operator.Console {
	c := operator.NewConsole(gossip.NodeID(id), f.medium.Join(id, nil), f.opCfg, f.logger)
	f.operators = append(f.operators, c)
	return c
}

// Step ticks every operator, then every agent in the order they were added.
func (f *Fleet) Step() {
	for _, c := range f.operators {
		c.Tick()
	}
	for _, id := range f.order {
		f.members[id].engine.Tick()
	}
	f.ticks++
}

func (f *Fleet) Run(n int) {
	for range n {
		f.Step()
	}
}

// RunUntil steps until done holds or limit steps elapse. It returns the
// steps taken and whether done was reached.
func (f *Fleet) RunUntil(limit int, done func(*Fleet) bool) (int, bool) {
	for i := range limit {
		if done(f) {
			return i, true
		}
		f.Step()
	}
	return limit, done(f)
}

func (f *Fleet) Agent(id string) (*agent.NetworkManager, bool) {
	m, ok := f.members[id]
	if !ok {
		return nil, false
	}
	return m.engine, true
}

func (f *Fleet) Robot(id string) (*Robot, bool) {
	m, ok := f.members[id]
	if !ok {
		return nil, false
	}
	return m.robot, true
}

// IDs returns agent ids sorted.
func (f *Fleet) IDs() []string {
	out := append([]string(nil), f.order...)
	sort.Strings(out)
	return out
}

func (f *Fleet) Snapshots() []agent.Snapshot {
	out := make([]agent.Snapshot, 0, len(f.order))
	for _, id := range f.IDs() {
		out = append(out, f.members[id].engine.Snapshot())
	}
	return out
}

func (f *Fleet) Ticks() int { return f.ticks }

func (f *Fleet) Medium() *gossip.Medium { return f.medium }

// Idle reports whether every agent is free with no queued work and no
// datagram waiting to be handled. A hand-off in flight is not idle.
func (f *Fleet) Idle() bool {
	for _, id := range f.order {
		m := f.members[id]
		if m.endpoint.QueueDepth() > 0 {
			return false
		}
		s := m.engine.Snapshot()
		if s.Status != gossip.StatusFree.String() || len(s.Pending) > 0 || s.Parked > 0 || s.InboxDepth > 0 {
			return false
		}
	}
	return true
}
