package ring

import (
	"sort"

	"github.com/ryandielhenn/convoy/pkg/gossip"
)

// Topology is an agent's position in the ring. Empty ids mean "none".
type Topology struct {
	Prev      gossip.NodeID
	Next      gossip.NodeID
	FirstFree gossip.NodeID
	// Successor is Next, or the lowest routable peer when self is last.
	Successor gossip.NodeID
}

// Resolve orders the roster lexicographically and derives self's
// predecessor, successor and the first free peer. Out-of-range and operator
// rows are skipped for prev/next; first-free only considers rows that are
// StatusFree. Prev and Next do not wrap: the lowest id has no prev and the
// highest has no next. Successor wraps, so waypoint tours can go all the way
// round.
//
// Resolve is a pure function of its input and is meant to be re-run every
// tick rather than patched incrementally.
func Resolve(members []gossip.Member, self gossip.NodeID) Topology {
	sorted := make([]gossip.Member, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var top Topology
	// first index with id >= self; self need not be present
	pos := sort.Search(len(sorted), func(i int) bool { return sorted[i].ID >= self })

	for i := pos - 1; i >= 0; i-- {
		if sorted[i].Status.Routable() {
			top.Prev = sorted[i].ID
			break
		}
	}
	for i := pos; i < len(sorted); i++ {
		if sorted[i].ID == self {
			continue
		}
		if sorted[i].Status.Routable() {
			top.Next = sorted[i].ID
			break
		}
	}
	top.Successor = top.Next
	for i := 0; i < pos && top.Successor == ""; i++ {
		if sorted[i].Status.Routable() {
			top.Successor = sorted[i].ID
		}
	}
	for _, m := range sorted {
		if m.ID != self && m.Status == gossip.StatusFree {
			top.FirstFree = m.ID
			break
		}
	}
	return top
}

// LiveCount returns how many rows are routable.
func LiveCount(members []gossip.Member) int {
	n := 0
	for _, m := range members {
		if m.Status.Routable() {
			n++
		}
	}
	return n
}
