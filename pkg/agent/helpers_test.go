package agent

import (
	"strings"
	"testing"

	"github.com/ryandielhenn/convoy/internal/testutil/testlog"
	"github.com/ryandielhenn/convoy/pkg/gossip"
	"github.com/ryandielhenn/convoy/pkg/motion"
)

// scriptedDrive arrives after a fixed number of polls per target. steps <= 0
// never arrives.
type scriptedDrive struct {
	steps   int
	polls   int
	halts   int
	current *motion.Coordinate
	targets []motion.Coordinate
	pos     motion.Coordinate
}

func (d *scriptedDrive) DriveTo(target motion.Coordinate) motion.DriveState {
	if d.current == nil || *d.current != target {
		d.current = &target
		d.polls = 0
		d.targets = append(d.targets, target)
	}
	d.polls++
	if d.steps > 0 && d.polls >= d.steps {
		d.pos = target
		return motion.Arrived
	}
	return motion.Traveling
}

func (d *scriptedDrive) Halt() {
	d.halts++
	d.current = nil
}

func (d *scriptedDrive) Position() motion.Coordinate { return d.pos }

// quietParams disables heartbeats so tests see only protocol traffic.
func quietParams() Params {
	p := DefaultParams()
	p.HeartbeatTicks = 0
	return p
}

type harness struct {
	t      *testing.T
	medium *gossip.Medium
	tap    *gossip.Endpoint
}

func newHarness(t *testing.T, opts ...gossip.MediumOption) *harness {
	m := gossip.NewMedium(opts...)
	return &harness{t: t, medium: m, tap: m.Join("tap", nil)}
}

func (h *harness) agent(id string, d *scriptedDrive, p Params) *NetworkManager {
	return NewNetworkManager(gossip.NodeID(id), h.medium.Join(id, nil), d, p, testlog.New(h.t))
}

// raw joins a bare endpoint used to inject hand-written datagrams.
func (h *harness) raw(id string) *gossip.Endpoint { return h.medium.Join(id, nil) }

func inject(t *testing.T, from *gossip.Endpoint, lines ...string) {
	t.Helper()
	for _, l := range lines {
		if err := from.Send(l); err != nil {
			t.Fatalf("send %q: %v", l, err)
		}
	}
}

func drain(e *gossip.Endpoint) []string {
	var out []string
	for {
		raw, ok := e.TryReceive()
		if !ok {
			return out
		}
		out = append(out, raw)
	}
}

func countPrefix(lines []string, prefix string) int {
	n := 0
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

func contains(lines []string, want string) bool {
	for _, l := range lines {
		if l == want {
			return true
		}
	}
	return false
}

func tickAll(rounds int, agents ...*NetworkManager) {
	for range rounds {
		for _, a := range agents {
			a.Tick()
		}
	}
}
