package agent

import (
	"github.com/ryandielhenn/convoy/pkg/gossip"
	"github.com/ryandielhenn/convoy/pkg/motion"
	"github.com/ryandielhenn/convoy/pkg/ring"
)

// Params are the protocol knobs. Zero values are replaced by DefaultParams
// in NewNetworkManager, except HandoffHopBound where zero means "live fleet
// size".
type Params struct {
	LivenessTimeout     int     // silent ticks before a peer is OUT_OF_RANGE
	RollCallHopBound    int     // roll-call relays stop at this hop count
	StopHopBound        int     // STOP relays stop at this hop count
	HandoffHopBound     int     // visits per waypoint; 0 = live fleet size
	HeartbeatTicks      int     // announce own status after this many quiet ticks
	StopHoldTicks       int     // ticks spent STOPPED before going FREE again
	RollCallSettleTicks int     // quiet ticks after a round before initialized
	TargetTolerance     float64 // per-axis distance for "same target"
}

func DefaultParams() Params {
	return Params{
		LivenessTimeout:     75,
		RollCallHopBound:    4,
		StopHopBound:        4,
		HandoffHopBound:     0,
		HeartbeatTicks:      25,
		StopHoldTicks:       50,
		RollCallSettleTicks: 10,
		TargetTolerance:     0.01,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.LivenessTimeout <= 0 {
		p.LivenessTimeout = d.LivenessTimeout
	}
	if p.RollCallHopBound <= 0 {
		p.RollCallHopBound = d.RollCallHopBound
	}
	if p.StopHopBound <= 0 {
		p.StopHopBound = d.StopHopBound
	}
	if p.HandoffHopBound < 0 {
		p.HandoffHopBound = 0
	}
	if p.HeartbeatTicks < 0 {
		p.HeartbeatTicks = 0
	}
	if p.StopHoldTicks <= 0 {
		p.StopHoldTicks = d.StopHoldTicks
	}
	if p.RollCallSettleTicks <= 0 {
		p.RollCallSettleTicks = d.RollCallSettleTicks
	}
	if p.TargetTolerance <= 0 {
		p.TargetTolerance = d.TargetTolerance
	}
	return p
}

// Waypoint is a goal plus the number of agents that already visited it.
type Waypoint struct {
	Target motion.Coordinate
	Hop    int
}

// AgentState is everything one agent knows. It is owned by its
// NetworkManager.
type AgentState struct {
	SelfID      gossip.NodeID
	Status      gossip.PeerStatus
	Roster      *gossip.Roster
	Topology    ring.Topology
	Pending     []Waypoint
	Target      *motion.Coordinate
	TargetHop   int
	Initialized bool
	RollCalling bool // relayed the current roll-call round already

	parked    []Waypoint // hand-offs waiting for a free successor
	accepted  acceptedGoal
	inRound   bool
	roundFrom gossip.NodeID
	settle    int
	stopHold  int
	haltedBy  string // source of the current STOPPED state
	sinceSend int
	lastPoll  uint64
	tick      uint64
}

// acceptedGoal identifies the last hand-off or command taken on.
type acceptedGoal struct {
	from   gossip.NodeID
	kind   gossip.MsgType
	hop    int
	target motion.Coordinate
	tick   uint64
}

func newAgentState(id gossip.NodeID, livenessTimeout int) *AgentState {
	return &AgentState{
		SelfID: id,
		Status: gossip.StatusUnknown,
		Roster: gossip.NewRoster(id, livenessTimeout),
	}
}

// RosterRow is the JSON form of a roster entry.
type RosterRow struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	SilenceTicks int    `json:"silence_ticks"`
}

// Snapshot is a read-only copy of AgentState taken at the end of a tick.
type Snapshot struct {
	Tick        uint64              `json:"tick"`
	ID          string              `json:"id"`
	Status      string              `json:"status"`
	Prev        string              `json:"prev,omitempty"`
	Next        string              `json:"next,omitempty"`
	FirstFree   string              `json:"first_free,omitempty"`
	Target      *motion.Coordinate  `json:"target,omitempty"`
	TargetHop   int                 `json:"target_hop"`
	Pending     []motion.Coordinate `json:"pending"`
	Parked      int                 `json:"parked_handoffs"`
	Initialized bool                `json:"initialized"`
	RollCalling bool                `json:"rollcalling"`
	InboxDepth  int                 `json:"inbox_depth"`
	Roster      []RosterRow         `json:"roster"`
}

func (s *AgentState) snapshot(inbox int) Snapshot {
	out := Snapshot{
		Tick:        s.tick,
		ID:          string(s.SelfID),
		Status:      s.Status.String(),
		Prev:        string(s.Topology.Prev),
		Next:        string(s.Topology.Next),
		FirstFree:   string(s.Topology.FirstFree),
		TargetHop:   s.TargetHop,
		Pending:     make([]motion.Coordinate, 0, len(s.Pending)),
		Parked:      len(s.parked),
		Initialized: s.Initialized,
		RollCalling: s.RollCalling,
		InboxDepth:  inbox,
	}
	if s.Target != nil {
		c := *s.Target
		out.Target = &c
	}
	for _, wp := range s.Pending {
		out.Pending = append(out.Pending, wp.Target)
	}
	for _, m := range s.Roster.All() {
		out.Roster = append(out.Roster, RosterRow{
			ID:           string(m.ID),
			Status:       m.Status.String(),
			SilenceTicks: m.SilenceTicks,
		})
	}
	return out
}
