package operator

import (
	"errors"
	"testing"

	"github.com/ryandielhenn/convoy/internal/testutil/testlog"
	"github.com/ryandielhenn/convoy/pkg/agent"
	"github.com/ryandielhenn/convoy/pkg/gossip"
	"github.com/ryandielhenn/convoy/pkg/motion"
)

type rig struct {
	t       *testing.T
	medium  *gossip.Medium
	tap     *gossip.Endpoint
	console *Console
}

func newRig(t *testing.T, cfg Config) *rig {
	m := gossip.NewMedium()
	tap := m.Join("tap", nil)
	c := NewConsole("remote", m.Join("remote", nil), cfg, testlog.New(t))
	return &rig{t: t, medium: m, tap: tap, console: c}
}

func (r *rig) inject(from string, lines ...string) {
	r.t.Helper()
	e := r.medium.Join(from, nil)
	for _, l := range lines {
		if err := e.Send(l); err != nil {
			r.t.Fatalf("send %q: %v", l, err)
		}
	}
	e.Close()
}

func (r *rig) sent() []string {
	var out []string
	for {
		raw, ok := r.tap.TryReceive()
		if !ok {
			return out
		}
		out = append(out, raw)
	}
}

func TestGoToQueuesUntilAgentFree(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.console.GoTo(motion.Coordinate{X: 1, Y: 1})
	if r.console.Queued() != 1 {
		t.Fatalf("queued = %d, want 1", r.console.Queued())
	}
	if got := r.sent(); len(got) != 0 {
		t.Fatalf("sent %q with no free agent", got)
	}

	r.inject("alphie", "alphie;STATUS_FREE;0;;")
	r.console.Tick()
	got := r.sent()
	if len(got) != 1 || got[0] != "remote;GO_TO_COORDINATES;0;1:1;alphie" {
		t.Fatalf("sent %q", got)
	}
	if r.console.Queued() != 0 {
		t.Fatalf("queue not flushed")
	}
}

func TestPathGoesToFirstFree(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.inject("x", "alphie;STATUS_MOVING;0;4:4;", "charlie;STATUS_FREE;0;;", "bravo;STATUS_FREE;0;;")
	r.console.Tick()
	if ff := r.console.FirstFree(); ff != "bravo" {
		t.Fatalf("first free = %q, want bravo", ff)
	}

	r.console.Path([]motion.Coordinate{{X: 1, Y: 0}, {X: 0, Y: 1}})
	want := []string{
		"remote;GO_TO_COORDINATES;0;1:0;bravo",
		"remote;GO_TO_COORDINATES;0;0:1;bravo",
	}
	got := r.sent()
	if len(got) != len(want) {
		t.Fatalf("sent %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sent[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCircle(t *testing.T) {
	pts := Circle(motion.Coordinate{}, 1.5, 10)
	if len(pts) != 10 {
		t.Fatalf("len = %d, want 10", len(pts))
	}
	cases := map[int]string{
		0: "1.5:0",
		1: "1.214:0.882",
		5: "-1.5:0",
	}
	for i, want := range cases {
		if got := pts[i].String(); got != want {
			t.Fatalf("pts[%d] = %s, want %s", i, got, want)
		}
	}
	if Circle(motion.Coordinate{}, 1, 0) != nil {
		t.Fatal("Circle with n=0 should be nil")
	}
}

func TestStopClearsQueue(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.console.GoTo(motion.Coordinate{X: 1, Y: 1})
	r.console.Stop()
	if r.console.Queued() != 0 {
		t.Fatal("queue survived STOP")
	}
	r.inject("alphie", "alphie;STATUS_FREE;0;;")
	r.console.Tick()
	got := r.sent()
	if len(got) != 1 || got[0] != "remote;STOP;0;;" {
		t.Fatalf("sent %q", got)
	}
}

func TestPublishSnapshot(t *testing.T) {
	r := newRig(t, DefaultConfig())
	if err := r.console.PublishSnapshot([]gossip.NodeID{"alphie", "bad:id"}); !errors.Is(err, ErrBadAgentID) {
		t.Fatalf("err = %v, want ErrBadAgentID", err)
	}
	if got := r.sent(); len(got) != 0 {
		t.Fatalf("sent %q after rejected snapshot", got)
	}
	if err := r.console.PublishSnapshot([]gossip.NodeID{"alphie", "bravo"}); err != nil {
		t.Fatalf("PublishSnapshot: %v", err)
	}
	got := r.sent()
	if len(got) != 1 || got[0] != "remote;STATUS_OUT_OF_RANGE;0;alphie:bravo;" {
		t.Fatalf("sent %q", got)
	}
}

func TestPositionAnswersCached(t *testing.T) {
	r := newRig(t, DefaultConfig())
	r.console.RequestPositions()
	if got := r.sent(); len(got) != 1 || got[0] != "remote;REPORT_POSITION;0;;" {
		t.Fatalf("sent %q", got)
	}
	r.inject("alphie", "alphie;REPORT_POSITION;0;1.5:2;remote", "bravo;REPORT_POSITION;0;oops;remote")
	r.console.Tick()

	fixes := r.console.Fixes()
	if len(fixes) != 1 || fixes[0].Agent != "alphie" || fixes[0].Position != (motion.Coordinate{X: 1.5, Y: 2}) {
		t.Fatalf("fixes = %+v", fixes)
	}
}

func TestSilentAgentLosesFirstFree(t *testing.T) {
	r := newRig(t, Config{LivenessTimeout: 2})
	r.inject("alphie", "alphie;STATUS_FREE;0;;")
	r.console.Tick()
	if r.console.FirstFree() != "alphie" {
		t.Fatalf("first free = %q", r.console.FirstFree())
	}
	for range 5 {
		r.console.Tick()
	}
	if ff := r.console.FirstFree(); ff != "" {
		t.Fatalf("first free = %q after silence", ff)
	}
}

func TestRollCallNeverRecordsOperator(t *testing.T) {
	r := newRig(t, DefaultConfig())
	p := agent.DefaultParams()
	p.HeartbeatTicks = 0
	alphie := agent.NewNetworkManager("alphie", r.medium.Join("alphie", nil), motion.NewKinematic(motion.Coordinate{}, motion.DefaultKinematicConfig()), p, testlog.New(t))

	r.console.BeginRollCall()
	alphie.Tick()
	r.console.Tick()

	if _, ok := alphie.State().Roster.Get("remote"); ok {
		t.Fatal("agent recorded the operator")
	}
	if r.console.FirstFree() != "alphie" {
		t.Fatalf("console first free = %q, want alphie", r.console.FirstFree())
	}
	lines := r.sent()
	found := false
	for _, l := range lines {
		if l == "alphie;ROLLCALL_BEGIN;1;FREE;" {
			found = true
		}
	}
	if !found || lines[0] != "remote;ROLLCALL_BEGIN;0;OPERATOR;" {
		t.Fatalf("sent %q", lines)
	}
}
