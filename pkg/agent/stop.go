package agent

import (
	"go.uber.org/zap"

	"github.com/ryandielhenn/convoy/pkg/gossip"
)

// onStop halts and relays once. A collision halt is not a fleet STOP, so a
// STOP arriving during one is still relayed.
func (n *NetworkManager) onStop(m gossip.Message) {
	s := n.state
	s.Roster.Touch(m.Sender)
	if n.stoppedByFlood() {
		return
	}
	n.applyStop("message")
	if next := s.Topology.Next; next != "" && m.Hop < n.params.StopHopBound {
		n.send(gossip.MsgStop, m.Hop+1, "", next)
	}
}

// Stop halts this agent and starts a STOP flood from it.
func (n *NetworkManager) Stop() {
	if !n.stoppedByFlood() {
		n.applyStop("local")
	}
	n.send(gossip.MsgStop, 0, "", "")
}

// applyStop halts motion, forgets queued work and discards every waiting
// message that is less urgent than STOP.
func (n *NetworkManager) applyStop(source string) {
	s := n.state
	n.halt()
	s.Pending = nil
	s.parked = nil
	s.TargetHop = 0
	dropped := n.inbox.DropBelow(gossip.MsgStop.Priority())
	n.metrics.Dropped("preempted", dropped)
	n.metrics.Stop(source)
	n.setStatus(gossip.StatusStopped)
	s.stopHold = n.params.StopHoldTicks
	s.haltedBy = source
	n.logger.Warn("stopped", zap.String("source", source), zap.Int("preempted", dropped))
}

func (n *NetworkManager) stoppedByFlood() bool {
	return n.state.Status == gossip.StatusStopped && n.state.haltedBy != "collision"
}

// stepStopHold releases a stopped agent once the hold runs out.
func (n *NetworkManager) stepStopHold() {
	s := n.state
	if s.Status != gossip.StatusStopped {
		return
	}
	s.stopHold--
	if s.stopHold > 0 {
		return
	}
	n.setStatus(gossip.StatusFree)
	n.send(gossip.MsgStatusFree, 0, "", "")
	n.logger.Info("stop hold expired")
}
