package agent

import (
	"github.com/ryandielhenn/convoy/pkg/gossip"
	"github.com/ryandielhenn/convoy/pkg/motion"
)

// onReportStatus answers a request (empty payload) or records an answer.
func (n *NetworkManager) onReportStatus(m gossip.Message) {
	s := n.state
	if m.Payload != "" {
		if st, ok := gossip.ParseStatus(m.Payload); ok {
			s.Roster.Observe(m.Sender, st)
		} else {
			s.Roster.Touch(m.Sender)
		}
		return
	}
	s.Roster.Touch(m.Sender)
	if m.Broadcast() || m.AddressedTo(s.SelfID) {
		n.send(gossip.MsgReportStatus, 0, s.Status.String(), m.Sender)
	}
}

// onReportPosition answers with the controller's position when it has one.
func (n *NetworkManager) onReportPosition(m gossip.Message) {
	s := n.state
	s.Roster.Touch(m.Sender)
	if m.Payload != "" {
		return
	}
	if !m.Broadcast() && !m.AddressedTo(s.SelfID) {
		return
	}
	loc, ok := n.motion.(motion.Locator)
	if !ok {
		return
	}
	n.send(gossip.MsgReportPosition, 0, loc.Position().String(), m.Sender)
}
