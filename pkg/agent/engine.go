package agent

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/convoy/internal/telemetry"
	"github.com/ryandielhenn/convoy/pkg/gossip"
	"github.com/ryandielhenn/convoy/pkg/motion"
	"github.com/ryandielhenn/convoy/pkg/ring"
)

// NetworkManager is the protocol engine of one agent.
type NetworkManager struct {
	state     *AgentState
	params    Params
	inbox     *gossip.Inbox
	transport gossip.Transport
	motion    motion.MotionController
	logger    *zap.Logger
	metrics   *telemetry.Agent
}

// NewNetworkManager wires an engine for agent id. logger may be nil.
func NewNetworkManager(id gossip.NodeID, tr gossip.Transport, mc motion.MotionController, p Params, logger *zap.Logger) *NetworkManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	p = p.withDefaults()
	return &NetworkManager{
		state:     newAgentState(id, p.LivenessTimeout),
		params:    p,
		inbox:     gossip.NewInbox(),
		transport: tr,
		motion:    mc,
		logger:    logger.With(zap.String("agent", string(id))),
		metrics:   telemetry.ForAgent(string(id)),
	}
}

func (n *NetworkManager) ID() gossip.NodeID { return n.state.SelfID }

// State exposes the live state. Callers must not hold on to it across ticks.
func (n *NetworkManager) State() *AgentState { return n.state }

func (n *NetworkManager) Params() Params { return n.params }

func (n *NetworkManager) Snapshot() Snapshot { return n.state.snapshot(n.inbox.Len()) }

// Tick advances the agent by one step. The order is fixed: ingest, handle one
// message, age the roster, settle roll-call, resolve the ring, poll motion,
// retry parked hand-offs, drain pending waypoints, count down a stop hold,
// heartbeat. The ring is resolved again after motion since an arrival
// changes this agent's status.
func (n *NetworkManager) Tick() {
	start := time.Now()
	s := n.state
	s.tick++
	if s.Status == gossip.StatusUnknown {
		n.setStatus(gossip.StatusFree)
	}

	n.ingest()
	if m, ok := n.inbox.Dequeue(); ok {
		n.metrics.Received(m.Type.String())
		n.handle(m)
	}

	if s.Initialized {
		if demoted := s.Roster.Tick(); len(demoted) > 0 {
			n.logger.Info("peers out of range", zap.Any("ids", demoted))
		}
	}
	n.stepRollCall()

	n.resolve()
	n.pollMotion()
	n.resolve()
	n.retryHandoff()
	n.drainPending()
	n.stepStopHold()
	n.heartbeat()

	n.metrics.Tick(time.Since(start), n.inbox.Len(), n.rosterCounts())
}

// ingest moves everything the transport holds right now into the inbox.
func (n *NetworkManager) ingest() {
	for depth := n.transport.QueueDepth(); depth > 0; depth-- {
		raw, ok := n.transport.TryReceive()
		if !ok {
			return
		}
		m, err := gossip.Decode(raw)
		if err != nil {
			n.metrics.Dropped(decodeReason(err), 1)
			n.logger.Warn("dropping malformed datagram", zap.String("raw", raw), zap.Error(err))
			continue
		}
		if m.Sender == n.state.SelfID {
			continue
		}
		n.inbox.Enqueue(m)
	}
}

func decodeReason(err error) string {
	switch {
	case errors.Is(err, gossip.ErrFieldCount):
		return "field_count"
	case errors.Is(err, gossip.ErrUnknownType):
		return "unknown_type"
	case errors.Is(err, gossip.ErrBadHopCount):
		return "bad_hop"
	default:
		return "malformed"
	}
}

func (n *NetworkManager) handle(m gossip.Message) {
	n.logger.Debug("handle", zap.Stringer("msg", m))
	switch m.Type {
	case gossip.MsgStop:
		n.onStop(m)
	case gossip.MsgRollCallBegin:
		n.onRollCallBegin(m)
	case gossip.MsgRollCallEnd:
		n.onRollCallEnd(m)
	case gossip.MsgStatusOutOfRange:
		n.onOutOfRange(m)
	case gossip.MsgStatusFree:
		n.onStatusFree(m)
	case gossip.MsgStatusMoving:
		n.state.Roster.Observe(m.Sender, gossip.StatusMoving)
	case gossip.MsgGoToCoordinates:
		n.onGoTo(m)
	case gossip.MsgReportStatus:
		n.onReportStatus(m)
	case gossip.MsgReportPosition:
		n.onReportPosition(m)
	}
}

func (n *NetworkManager) resolve() {
	n.state.Topology = ring.Resolve(n.state.Roster.All(), n.state.SelfID)
}

func (n *NetworkManager) setStatus(st gossip.PeerStatus) {
	n.state.Status = st
	n.state.Roster.SetSelf(st)
}

func (n *NetworkManager) send(t gossip.MsgType, hop int, payload string, to gossip.NodeID) {
	m := gossip.NewMessage(n.state.SelfID, t, hop, payload, to)
	raw, err := gossip.Encode(m)
	if err != nil {
		n.metrics.Dropped("encode", 1)
		n.logger.Warn("cannot encode outgoing message", zap.Stringer("msg", m), zap.Error(err))
		return
	}
	if err := n.transport.Send(raw); err != nil {
		n.metrics.Dropped("send", 1)
		n.logger.Warn("send failed", zap.Stringer("msg", m), zap.Error(err))
		return
	}
	n.metrics.Sent(t.String())
	n.state.sinceSend = 0
}

// announce broadcasts the agent's own status.
func (n *NetworkManager) announce() {
	s := n.state
	switch s.Status {
	case gossip.StatusFree:
		n.send(gossip.MsgStatusFree, 0, "", "")
	case gossip.StatusMoving:
		payload := ""
		if s.Target != nil {
			payload = s.Target.String()
		}
		n.send(gossip.MsgStatusMoving, 0, payload, "")
	case gossip.StatusStopped:
		n.send(gossip.MsgReportStatus, 0, s.Status.String(), "")
	}
}

func (n *NetworkManager) heartbeat() {
	if n.params.HeartbeatTicks == 0 {
		return
	}
	n.state.sinceSend++
	if n.state.sinceSend >= n.params.HeartbeatTicks {
		n.announce()
	}
}

func (n *NetworkManager) rosterCounts() map[string]int {
	counts := make(map[string]int, 6)
	for _, st := range []gossip.PeerStatus{
		gossip.StatusUnknown, gossip.StatusFree, gossip.StatusMoving,
		gossip.StatusOutOfRange, gossip.StatusStopped,
	} {
		counts[st.String()] = n.state.Roster.Count(st)
	}
	return counts
}
