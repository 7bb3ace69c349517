package gossip

import "testing"

func TestRosterSoftMembership(t *testing.T) {
	r := NewRoster("alphie", 3)
	r.Observe("bravo", StatusFree)

	// the tick in which bravo spoke does not count as silence
	for range 5 {
		r.Tick()
	}
	m, ok := r.Get("bravo")
	if !ok {
		t.Fatal("bravo removed from roster")
	}
	if m.Status != StatusOutOfRange {
		t.Fatalf("bravo status = %s, want OUT_OF_RANGE", m.Status)
	}
	if m.SilenceTicks != 4 {
		t.Fatalf("bravo silence = %d, want 4", m.SilenceTicks)
	}

	r.Observe("bravo", StatusMoving)
	m, _ = r.Get("bravo")
	if m.Status != StatusMoving || m.SilenceTicks != 0 {
		t.Fatalf("rejoin = %+v, want MOVING with silence 0", m)
	}
}

func TestRosterDemotesOnlyPastThreshold(t *testing.T) {
	r := NewRoster("alphie", 2)
	r.Observe("bravo", StatusFree)
	for i := 1; i <= 3; i++ {
		if demoted := r.Tick(); len(demoted) != 0 {
			t.Fatalf("tick %d demoted %v", i, demoted)
		}
	}
	demoted := r.Tick()
	if len(demoted) != 1 || demoted[0] != "bravo" {
		t.Fatalf("tick 4 demoted %v, want [bravo]", demoted)
	}
	if again := r.Tick(); len(again) != 0 {
		t.Fatalf("already demoted peer reported again: %v", again)
	}
}

func TestRosterObservedPeerNotAgedThatTick(t *testing.T) {
	r := NewRoster("alphie", 1)
	r.Observe("bravo", StatusFree)
	r.Observe("charlie", StatusFree)
	r.Tick()
	r.Observe("bravo", StatusFree)
	r.Tick()
	if m, _ := r.Get("bravo"); m.SilenceTicks != 0 {
		t.Fatalf("bravo silence = %d, want 0", m.SilenceTicks)
	}
	if m, _ := r.Get("charlie"); m.SilenceTicks != 2 || m.Status != StatusOutOfRange {
		t.Fatalf("charlie = %+v, want silence 2 and OUT_OF_RANGE", m)
	}
}

func TestRosterSelfNeverAged(t *testing.T) {
	r := NewRoster("alphie", 0)
	r.SetSelf(StatusFree)
	for range 10 {
		r.Tick()
	}
	if m, _ := r.Get("alphie"); m.Status != StatusFree {
		t.Fatalf("self status = %s, want FREE", m.Status)
	}
}

func TestRosterIgnoresOperator(t *testing.T) {
	r := NewRoster("alphie", 10)
	r.Observe("remote", StatusOperator)
	if _, ok := r.Get("remote"); ok {
		t.Fatal("operator became a roster entry")
	}
	r.Set("remote", StatusFree)
	r.Touch("remote")
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (self only)", r.Len())
	}
	if !r.IsOperator("remote") {
		t.Fatal("operator id not remembered")
	}
}

func TestRosterOperatorClaimKeepsKnownRow(t *testing.T) {
	r := NewRoster("alphie", 10)
	r.Observe("bravo", StatusMoving)
	r.Observe("bravo", StatusOperator)
	m, ok := r.Get("bravo")
	if !ok || m.Status != StatusMoving {
		t.Fatalf("bravo = %+v (present %v), want MOVING row kept", m, ok)
	}
	if r.IsOperator("bravo") {
		t.Fatal("known peer flagged as operator")
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
}

func TestRosterTouchNeverAdmits(t *testing.T) {
	r := NewRoster("alphie", 10)
	r.Touch("stranger")
	if _, ok := r.Get("stranger"); ok {
		t.Fatal("Touch admitted an unknown id")
	}
}

func TestRosterTouchRevivesSilentPeer(t *testing.T) {
	r := NewRoster("alphie", 0)
	r.Observe("bravo", StatusFree)
	r.Tick()
	r.Tick()
	if m, _ := r.Get("bravo"); m.Status != StatusOutOfRange {
		t.Fatalf("precondition: bravo = %s", m.Status)
	}
	r.Touch("bravo")
	if m, _ := r.Get("bravo"); m.Status != StatusUnknown || m.SilenceTicks != 0 {
		t.Fatalf("touched bravo = %+v, want UNKNOWN/0", m)
	}
	r.Observe("charlie", StatusMoving)
	r.Touch("charlie")
	if m, _ := r.Get("charlie"); m.Status != StatusMoving {
		t.Fatalf("Touch overwrote a live status: %+v", m)
	}
}

func TestRosterMarkAllOutOfRangeKeepsSelf(t *testing.T) {
	r := NewRoster("bravo", 10)
	r.SetSelf(StatusFree)
	r.Observe("alphie", StatusFree)
	r.Observe("charlie", StatusMoving)
	if n := r.MarkAllOutOfRange(); n != 2 {
		t.Fatalf("MarkAllOutOfRange = %d, want 2", n)
	}
	if got := r.Count(StatusOutOfRange); got != 2 {
		t.Fatalf("OUT_OF_RANGE count = %d, want 2", got)
	}
	if m, _ := r.Get("bravo"); m.Status != StatusFree {
		t.Fatalf("self demoted: %+v", m)
	}
	if r.LiveCount() != 1 {
		t.Fatalf("LiveCount = %d, want 1", r.LiveCount())
	}
}

func TestRosterAllSorted(t *testing.T) {
	r := NewRoster("m", 10)
	for _, id := range []NodeID{"z", "a", "k"} {
		r.Observe(id, StatusFree)
	}
	all := r.All()
	want := []NodeID{"a", "k", "m", "z"}
	if len(all) != len(want) {
		t.Fatalf("All() len = %d", len(all))
	}
	for i, id := range want {
		if all[i].ID != id {
			t.Fatalf("All()[%d] = %s, want %s", i, all[i].ID, id)
		}
	}
}
