package agent

import (
	"strings"

	"go.uber.org/zap"

	"github.com/ryandielhenn/convoy/pkg/gossip"
)

// BeginRollCall starts a fresh round from this agent: every known peer is
// presumed out of range until it answers.
func (n *NetworkManager) BeginRollCall() {
	s := n.state
	s.Roster.MarkAllOutOfRange()
	s.RollCalling = true
	n.joinRound(s.SelfID)
	n.send(gossip.MsgRollCallBegin, 0, s.Status.String(), "")
	n.logger.Info("roll-call started")
}

// EndRollCall broadcasts ROLLCALL_END and marks this agent initialized.
func (n *NetworkManager) EndRollCall() {
	n.send(gossip.MsgRollCallEnd, 0, "", "")
	n.finishRound()
}

func (n *NetworkManager) joinRound(from gossip.NodeID) {
	s := n.state
	s.inRound = true
	s.roundFrom = from
	s.settle = 0
	n.metrics.RollCall()
}

func (n *NetworkManager) finishRound() {
	s := n.state
	s.inRound = false
	s.RollCalling = false
	if !s.Initialized {
		n.logger.Info("roster initialized", zap.Int("peers", s.Roster.Len()-1))
	}
	s.Initialized = true
}

func (n *NetworkManager) onRollCallBegin(m gossip.Message) {
	s := n.state
	declared, ok := gossip.ParseStatus(m.Payload)
	if !ok {
		declared = gossip.StatusUnknown
	}

	if m.Hop == 0 {
		replay := s.inRound && s.roundFrom == m.Sender
		if !replay {
			s.Roster.MarkAllOutOfRange()
			s.RollCalling = false
			n.joinRound(m.Sender)
		}
	} else if s.inRound {
		s.settle = 0
	} else {
		// missed the origin; a relay is the first we hear of this round
		n.joinRound(m.Sender)
	}
	s.Roster.Observe(m.Sender, declared)

	if !s.RollCalling && m.Hop < n.params.RollCallHopBound {
		n.send(gossip.MsgRollCallBegin, m.Hop+1, s.Status.String(), "")
		s.RollCalling = true
	}
}

func (n *NetworkManager) onRollCallEnd(m gossip.Message) {
	n.state.Roster.Touch(m.Sender)
	n.finishRound()
}

// stepRollCall closes the local round after enough quiet ticks.
func (n *NetworkManager) stepRollCall() {
	s := n.state
	if !s.inRound {
		return
	}
	s.settle++
	if s.settle >= n.params.RollCallSettleTicks {
		n.finishRound()
	}
}

// onOutOfRange handles STATUS_OUT_OF_RANGE. An empty payload means the
// sender left; otherwise the payload is a snapshot of ids to mark out of
// range.
func (n *NetworkManager) onOutOfRange(m gossip.Message) {
	s := n.state
	if m.Payload == "" {
		s.Roster.Observe(m.Sender, gossip.StatusOutOfRange)
		return
	}
	s.Roster.Touch(m.Sender)
	for _, id := range strings.Split(m.Payload, ":") {
		id = strings.TrimSpace(id)
		if id == "" || gossip.NodeID(id) == s.SelfID {
			continue
		}
		s.Roster.Set(gossip.NodeID(id), gossip.StatusOutOfRange)
	}
	if !s.Initialized {
		n.logger.Info("roster initialized from snapshot", zap.String("from", string(m.Sender)))
	}
	s.Initialized = true
}
