package agent

import (
	"strings"

	"go.uber.org/zap"

	"github.com/ryandielhenn/convoy/pkg/gossip"
	"github.com/ryandielhenn/convoy/pkg/motion"
)

// handoffPrefix marks a STATUS_FREE payload that carries a waypoint.
const handoffPrefix = "GO_TO_COORDINATES:"

func encodeHandoff(c motion.Coordinate) string { return handoffPrefix + c.String() }

func decodeHandoff(payload string) (motion.Coordinate, bool) {
	rest, ok := strings.CutPrefix(payload, handoffPrefix)
	if !ok {
		return motion.Coordinate{}, false
	}
	c, err := motion.ParseCoordinate(rest)
	if err != nil {
		return motion.Coordinate{}, false
	}
	return c, true
}

// GoTo gives the agent a fresh goal, as an operator command would.
func (n *NetworkManager) GoTo(c motion.Coordinate) {
	n.goTo(Waypoint{Target: c}, true)
}

// goTo starts, queues or (for an explicit command) resumes.
func (n *NetworkManager) goTo(wp Waypoint, explicit bool) {
	s := n.state
	switch s.Status {
	case gossip.StatusMoving:
		s.Pending = append(s.Pending, wp)
		n.logger.Debug("waypoint queued", zap.Stringer("target", wp.Target), zap.Int("pending", len(s.Pending)))
		return
	case gossip.StatusStopped:
		if !explicit {
			n.metrics.Handoff("rejected_stopped")
			n.logger.Info("stopped, ignoring handed-off waypoint", zap.Stringer("target", wp.Target))
			return
		}
		s.stopHold = 0
		n.logger.Info("resuming after stop", zap.Stringer("target", wp.Target))
	}
	n.start(wp)
}

func (n *NetworkManager) start(wp Waypoint) {
	s := n.state
	target := wp.Target
	s.Target = &target
	s.TargetHop = wp.Hop
	n.setStatus(gossip.StatusMoving)
	n.send(gossip.MsgStatusMoving, 0, target.String(), "")
	n.logger.Info("moving", zap.Stringer("target", target), zap.Int("hop", wp.Hop))
	n.pollMotion()
}

// pollMotion calls DriveTo at most once per tick.
func (n *NetworkManager) pollMotion() {
	s := n.state
	if s.Status != gossip.StatusMoving || s.Target == nil || s.lastPoll == s.tick {
		return
	}
	s.lastPoll = s.tick
	if n.motion.DriveTo(*s.Target) == motion.Arrived {
		n.arrive()
	}
}

func (n *NetworkManager) halt() {
	n.motion.Halt()
	n.state.Target = nil
}

// arrive completes the current goal and passes it on while the tour is not
// over. The tour walks the ring in successor order, so every live agent
// visits once before anybody visits twice.
func (n *NetworkManager) arrive() {
	s := n.state
	reached := *s.Target
	visits := s.TargetHop + 1
	s.Target = nil
	s.TargetHop = 0
	n.setStatus(gossip.StatusFree)
	n.resolve()
	n.logger.Info("arrived", zap.Stringer("target", reached), zap.Int("visits", visits))

	if visits >= n.handoffBound() {
		n.metrics.Handoff("complete")
		n.send(gossip.MsgStatusFree, 0, "", "")
		return
	}
	wp := Waypoint{Target: reached, Hop: visits}
	to, ok := n.handoffPeer()
	if !ok {
		s.parked = append(s.parked, wp)
		n.metrics.Handoff("deferred")
		n.logger.Info("successor busy, hand-off parked", zap.Stringer("target", reached), zap.String("successor", string(s.Topology.Successor)))
		n.send(gossip.MsgStatusFree, 0, "", "")
		return
	}
	n.handoff(wp, to)
}

func (n *NetworkManager) handoffBound() int {
	if n.params.HandoffHopBound > 0 {
		return n.params.HandoffHopBound
	}
	return n.state.Roster.LiveCount()
}

// handoffPeer is the ring successor, provided it is free to take a goal.
func (n *NetworkManager) handoffPeer() (gossip.NodeID, bool) {
	to := n.state.Topology.Successor
	if to == "" {
		return "", false
	}
	m, ok := n.state.Roster.Get(to)
	return to, ok && m.Status == gossip.StatusFree
}

func (n *NetworkManager) handoff(wp Waypoint, to gossip.NodeID) {
	n.send(gossip.MsgStatusFree, wp.Hop, encodeHandoff(wp.Target), to)
	n.metrics.Handoff("sent")
	n.logger.Info("handed off", zap.Stringer("target", wp.Target), zap.String("to", string(to)), zap.Int("hop", wp.Hop))
}

// retryHandoff re-sends the oldest parked hand-off once the successor is free.
func (n *NetworkManager) retryHandoff() {
	s := n.state
	if len(s.parked) == 0 || s.Status == gossip.StatusStopped {
		return
	}
	to, ok := n.handoffPeer()
	if !ok {
		return
	}
	wp := s.parked[0]
	s.parked = s.parked[1:]
	n.handoff(wp, to)
}

func (n *NetworkManager) drainPending() {
	s := n.state
	if s.Status != gossip.StatusFree || len(s.Pending) == 0 {
		return
	}
	wp := s.Pending[0]
	s.Pending = s.Pending[1:]
	n.start(wp)
}

func (n *NetworkManager) onStatusFree(m gossip.Message) {
	s := n.state
	s.Roster.Observe(m.Sender, gossip.StatusFree)
	target, ok := decodeHandoff(m.Payload)
	if !ok {
		return
	}
	if !m.AddressedTo(s.SelfID) {
		if s.Target != nil && s.Target.Near(target, n.params.TargetTolerance) {
			n.logger.Warn("peer released our target, halting",
				zap.String("peer", string(m.Sender)), zap.Stringer("target", target))
			n.applyStop("collision")
		}
		return
	}
	if n.replayed(m, target) {
		n.metrics.Handoff("duplicate")
		n.logger.Debug("dropping repeated hand-off", zap.String("from", string(m.Sender)), zap.Stringer("target", target))
		return
	}
	n.metrics.Handoff("received")
	n.goTo(Waypoint{Target: target, Hop: m.Hop}, false)
}

// onGoTo acts on a command addressed to this agent, or on an unaddressed one
// when this agent heads the ring.
func (n *NetworkManager) onGoTo(m gossip.Message) {
	s := n.state
	s.Roster.Touch(m.Sender)
	target, err := motion.ParseCoordinate(m.Payload)
	if err != nil {
		n.metrics.Dropped("bad_coordinate", 1)
		n.logger.Warn("ignoring GO_TO_COORDINATES", zap.String("payload", m.Payload), zap.Error(err))
		return
	}
	if !m.AddressedTo(s.SelfID) && !(m.Broadcast() && s.Topology.Prev == "") {
		return
	}
	if n.replayed(m, target) {
		n.metrics.Dropped("duplicate", 1)
		return
	}
	n.goTo(Waypoint{Target: target, Hop: m.Hop}, true)
}

// replayWindow is how many ticks an accepted goal is remembered for
// duplicate suppression.
const replayWindow = 20

// replayed reports whether m repeats the last goal this agent accepted, and
// remembers m otherwise. The medium may deliver a datagram twice.
func (n *NetworkManager) replayed(m gossip.Message, target motion.Coordinate) bool {
	s := n.state
	g := acceptedGoal{from: m.Sender, kind: m.Type, hop: m.Hop, target: target, tick: s.tick}
	last := s.accepted
	if last.from == g.from && last.kind == g.kind && last.hop == g.hop && last.target == g.target &&
		last.tick != 0 && g.tick-last.tick <= replayWindow {
		return true
	}
	s.accepted = g
	return false
}
