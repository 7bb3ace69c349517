package sim

import (
	"testing"

	"github.com/ryandielhenn/convoy/internal/testutil/testlog"
	"github.com/ryandielhenn/convoy/pkg/gossip"
	"github.com/ryandielhenn/convoy/pkg/motion"
)

func line(t *testing.T, opts ...Option) *Fleet {
	opts = append(opts, WithLogger(testlog.New(t)))
	f := New(opts...)
	f.AddAgent("alphie", motion.Coordinate{X: 0, Y: 0})
	f.AddAgent("bravo", motion.Coordinate{X: 0.8, Y: 0})
	f.AddAgent("charlie", motion.Coordinate{X: 1.6, Y: 0})
	return f
}

func TestOperatorRollCallThenTour(t *testing.T) {
	f := line(t)
	op := f.AddOperator("remote")

	f.Step()
	op.BeginRollCall()
	f.Run(30)

	for _, s := range f.Snapshots() {
		if !s.Initialized {
			t.Fatalf("%s not initialized", s.ID)
		}
		if len(s.Roster) != 3 {
			t.Fatalf("%s roster = %+v, want the three agents", s.ID, s.Roster)
		}
	}
	if ff := op.FirstFree(); ff != "alphie" {
		t.Fatalf("operator first free = %q, want alphie", ff)
	}

	goal := motion.Coordinate{X: 0.2, Y: 0.2}
	op.GoTo(goal)
	tol := 0.01
	steps, ok := f.RunUntil(2000, func(f *Fleet) bool {
		for _, id := range f.IDs() {
			if r, _ := f.Robot(id); !r.Visited(goal, tol) {
				return false
			}
		}
		return f.Idle()
	})
	if !ok {
		t.Fatalf("tour unfinished after %d steps: %+v", steps, f.Snapshots())
	}
	for _, id := range f.IDs() {
		if r, _ := f.Robot(id); len(r.Visits()) != 1 {
			t.Fatalf("%s visited %d times, want once: %v", id, len(r.Visits()), r.Visits())
		}
	}

	// once the hop bound is reached nobody picks the goal up again
	before := map[string]int{}
	for _, id := range f.IDs() {
		r, _ := f.Robot(id)
		before[id] = len(r.Visits())
	}
	f.Run(100)
	for _, s := range f.Snapshots() {
		r, _ := f.Robot(s.ID)
		if len(r.Visits()) != before[s.ID] || s.Status != gossip.StatusFree.String() {
			t.Fatalf("%s after the tour: %s, visits %d -> %d", s.ID, s.Status, before[s.ID], len(r.Visits()))
		}
	}
}

func TestOperatorStopHaltsFleet(t *testing.T) {
	f := line(t)
	op := f.AddOperator("remote")

	f.Step()
	op.BeginRollCall()
	f.Run(30)
	op.Path([]motion.Coordinate{{X: 3, Y: 3}, {X: -3, Y: 3}})
	f.Run(20)

	alphie, _ := f.Agent("alphie")
	if alphie.State().Status != gossip.StatusMoving {
		t.Fatalf("alphie = %s, want MOVING", alphie.State().Status)
	}

	op.Stop()
	f.Run(2)
	positions := map[string]motion.Coordinate{}
	for _, id := range f.IDs() {
		a, _ := f.Agent(id)
		r, _ := f.Robot(id)
		if a.State().Status != gossip.StatusStopped || !r.Halted() {
			t.Fatalf("%s = %s halted=%v after STOP", id, a.State().Status, r.Halted())
		}
		positions[id] = r.Position()
	}
	if len(alphie.State().Pending) != 0 {
		t.Fatal("pending waypoints survived STOP")
	}

	f.Run(10)
	for id, p := range positions {
		r, _ := f.Robot(id)
		if r.Position() != p {
			t.Fatalf("%s moved while stopped: %v -> %v", id, p, r.Position())
		}
	}
}

func TestRollCallCrossesRangeLimit(t *testing.T) {
	f := line(t, WithMedium(gossip.WithRange(1.0)))

	f.Step()
	alphie, _ := f.Agent("alphie")
	alphie.BeginRollCall()
	f.Run(30)

	charlie, _ := f.Agent("charlie")
	st := charlie.State()
	if !st.Initialized {
		t.Fatal("charlie never joined the round")
	}
	if m, ok := st.Roster.Get("bravo"); !ok || m.Status != gossip.StatusFree {
		t.Fatalf("charlie does not see bravo: %+v", m)
	}
	if _, ok := st.Roster.Get("alphie"); ok {
		t.Fatal("charlie heard alphie from out of range")
	}

	bravo, _ := f.Agent("bravo")
	if got := bravo.State().Roster.Count(gossip.StatusFree); got != 3 {
		t.Fatalf("bravo sees %d free rows, want 3", got)
	}
}
