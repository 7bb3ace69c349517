package gossip

import "sort"

// Member is one roster row as seen by the owning agent.
type Member struct {
	ID           NodeID
	Status       PeerStatus
	SilenceTicks int
}

// Roster is an agent's soft-membership view of the fleet. Ids are never
// removed once seen; silent peers are demoted to StatusOutOfRange and come
// back as soon as they speak again. The owning agent keeps its own row and
// that row is never aged.
//
// Roster is owned by a single protocol engine and is not safe for concurrent use.
type Roster struct {
	self      NodeID
	status    map[NodeID]PeerStatus
	operators map[NodeID]struct{}
	tracker   *SilenceDetector
}

func NewRoster(self NodeID, livenessTimeout int) *Roster {
	r := &Roster{
		self:      self,
		status:    make(map[NodeID]PeerStatus),
		operators: make(map[NodeID]struct{}),
		tracker:   NewSilenceDetector(livenessTimeout),
	}
	if self != "" {
		r.status[self] = StatusUnknown
	}
	return r
}

func (r *Roster) Self() NodeID { return r.self }

// SetSelf records the owner's own status.
func (r *Roster) SetSelf(s PeerStatus) {
	if r.self != "" {
		r.status[r.self] = s
	}
}

// Observe records a message from id declaring status s. An unknown id
// declaring StatusOperator is remembered as a non-peer originator and never
// becomes a roster entry. Rows are never removed, so a known peer making the
// same claim keeps its row.
func (r *Roster) Observe(id NodeID, s PeerStatus) {
	if id == "" || id == r.self {
		return
	}
	if s == StatusOperator {
		if _, known := r.status[id]; !known {
			r.operators[id] = struct{}{}
		}
		return
	}
	if r.IsOperator(id) {
		return
	}
	r.status[id] = s
	r.tracker.Observe(id)
}

// Touch records that a known peer spoke without declaring a status. Unknown
// ids are ignored: only status-bearing messages admit new members. A peer
// previously demoted for silence is revived as StatusUnknown.
func (r *Roster) Touch(id NodeID) {
	cur, ok := r.status[id]
	if !ok || id == r.self {
		return
	}
	if cur == StatusOutOfRange {
		r.status[id] = StatusUnknown
	}
	r.tracker.Observe(id)
}

func (r *Roster) IsOperator(id NodeID) bool {
	_, ok := r.operators[id]
	return ok
}

// Set overwrites the status of id without counting it as heard.
func (r *Roster) Set(id NodeID, s PeerStatus) {
	if id == "" || s == StatusOperator || r.IsOperator(id) {
		return
	}
	if id == r.self {
		r.status[id] = s
		return
	}
	r.status[id] = s
	r.tracker.Track(id)
}

// MarkAllOutOfRange demotes every peer (not the owner) and returns how many
// rows were touched.
func (r *Roster) MarkAllOutOfRange() int {
	n := 0
	for id := range r.status {
		if id == r.self {
			continue
		}
		r.status[id] = StatusOutOfRange
		n++
	}
	return n
}

// Tick ages every peer not heard since the previous Tick and demotes the ones
// that crossed the liveness timeout. It returns the newly demoted ids.
func (r *Roster) Tick() []NodeID {
	r.tracker.Tick()
	var demoted []NodeID
	for id, s := range r.status {
		if id == r.self || s == StatusOutOfRange {
			continue
		}
		if r.tracker.Silent(id) {
			r.status[id] = StatusOutOfRange
			demoted = append(demoted, id)
		}
	}
	sort.Slice(demoted, func(i, j int) bool { return demoted[i] < demoted[j] })
	return demoted
}

func (r *Roster) Get(id NodeID) (Member, bool) {
	s, ok := r.status[id]
	if !ok {
		return Member{}, false
	}
	return Member{ID: id, Status: s, SilenceTicks: r.tracker.Ticks(id)}, true
}

// All returns a copy of every row sorted by id.
func (r *Roster) All() []Member {
	out := make([]Member, 0, len(r.status))
	for id, s := range r.status {
		out = append(out, Member{ID: id, Status: s, SilenceTicks: r.tracker.Ticks(id)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Roster) IDs() []NodeID {
	out := make([]NodeID, 0, len(r.status))
	for id := range r.status {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Roster) Len() int { return len(r.status) }

// Count returns how many rows currently hold status s.
func (r *Roster) Count(s PeerStatus) int {
	n := 0
	for _, cur := range r.status {
		if cur == s {
			n++
		}
	}
	return n
}

// LiveCount is the number of routable rows, owner included.
func (r *Roster) LiveCount() int {
	n := 0
	for _, s := range r.status {
		if s.Routable() {
			n++
		}
	}
	return n
}
