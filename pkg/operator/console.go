// Package operator is the remote console: it keeps a roster of the fleet and
// injects commands (goals, paths, STOP, roll-call, roster snapshots, report
// requests). It never appears in any agent's roster.
package operator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/convoy/internal/telemetry"
	"github.com/ryandielhenn/convoy/pkg/fixstore"
	"github.com/ryandielhenn/convoy/pkg/gossip"
	"github.com/ryandielhenn/convoy/pkg/motion"
	"github.com/ryandielhenn/convoy/pkg/ring"
)

var ErrBadAgentID = errors.New("operator: agent id contains a reserved character")

type Config struct {
	LivenessTimeout int           // silent ticks before a peer is out of range
	FixCapacity     int           // position fixes kept; 0 = unbounded
	FixTTL          time.Duration // 0 = fixes never expire
}

func DefaultConfig() Config {
	return Config{LivenessTimeout: 75, FixCapacity: 256, FixTTL: time.Minute}
}

// Console is single-threaded like an agent engine.
type Console struct {
	id        gossip.NodeID
	transport gossip.Transport
	roster    *gossip.Roster
	topology  ring.Topology
	queued    []motion.Coordinate
	fixes     *fixstore.Store
	logger    *zap.Logger
	metrics   *telemetry.Agent
}

func NewConsole(id gossip.NodeID, tr gossip.Transport, cfg Config, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LivenessTimeout <= 0 {
		cfg.LivenessTimeout = DefaultConfig().LivenessTimeout
	}
	// the console is not a fleet member, so its roster has no self row
	return &Console{
		id:        id,
		transport: tr,
		roster:    gossip.NewRoster("", cfg.LivenessTimeout),
		fixes:     fixstore.NewStore(cfg.FixCapacity, cfg.FixTTL),
		logger:    logger.With(zap.String("operator", string(id))),
		metrics:   telemetry.ForAgent(string(id)),
	}
}

// Tick handles everything received since the last call, ages the roster and
// flushes queued goals once a free agent is known.
func (c *Console) Tick() {
	for depth := c.transport.QueueDepth(); depth > 0; depth-- {
		raw, ok := c.transport.TryReceive()
		if !ok {
			break
		}
		m, err := gossip.Decode(raw)
		if err != nil {
			c.metrics.Dropped("malformed", 1)
			c.logger.Debug("dropping malformed datagram", zap.String("raw", raw), zap.Error(err))
			continue
		}
		if m.Sender == c.id {
			continue
		}
		c.metrics.Received(m.Type.String())
		c.handle(m)
	}
	if demoted := c.roster.Tick(); len(demoted) > 0 {
		c.logger.Info("agents out of range", zap.Any("ids", demoted))
	}
	c.topology = ring.Resolve(c.roster.All(), "")
	c.flush()
}

func (c *Console) handle(m gossip.Message) {
	switch m.Type {
	case gossip.MsgStatusFree:
		c.roster.Observe(m.Sender, gossip.StatusFree)
	case gossip.MsgStatusMoving:
		c.roster.Observe(m.Sender, gossip.StatusMoving)
	case gossip.MsgRollCallBegin:
		if st, ok := gossip.ParseStatus(m.Payload); ok {
			c.roster.Observe(m.Sender, st)
		} else {
			c.roster.Observe(m.Sender, gossip.StatusUnknown)
		}
	case gossip.MsgStatusOutOfRange:
		if m.Payload == "" {
			c.roster.Observe(m.Sender, gossip.StatusOutOfRange)
		}
	case gossip.MsgReportStatus:
		if st, ok := gossip.ParseStatus(m.Payload); ok {
			c.roster.Observe(m.Sender, st)
		}
	case gossip.MsgReportPosition:
		c.roster.Touch(m.Sender)
		if m.Payload == "" {
			return
		}
		pos, err := motion.ParseCoordinate(m.Payload)
		if err != nil {
			c.logger.Warn("bad position report", zap.String("from", string(m.Sender)), zap.Error(err))
			return
		}
		c.fixes.Put(m.Sender, pos)
	case gossip.MsgStop:
		c.roster.Touch(m.Sender)
		c.roster.Set(m.Sender, gossip.StatusStopped)
	default:
		c.roster.Touch(m.Sender)
	}
}

// GoTo sends coord to the first free agent, or queues it until one appears.
func (c *Console) GoTo(coord motion.Coordinate) {
	c.Path([]motion.Coordinate{coord})
}

// Path sends every coordinate to the same first free agent, which tours them
// in order and hands each on to the rest of the fleet.
func (c *Console) Path(coords []motion.Coordinate) {
	c.queued = append(c.queued, coords...)
	c.flush()
}

func (c *Console) flush() {
	to := c.topology.FirstFree
	if len(c.queued) == 0 || to == "" {
		return
	}
	for _, coord := range c.queued {
		c.send(gossip.MsgGoToCoordinates, 0, coord.String(), to)
	}
	c.logger.Info("goals dispatched", zap.String("to", string(to)), zap.Int("count", len(c.queued)))
	c.queued = nil
}

// Stop floods STOP and forgets queued goals.
func (c *Console) Stop() {
	c.queued = nil
	c.send(gossip.MsgStop, 0, "", "")
	c.metrics.Stop("operator")
}

// BeginRollCall starts a round on behalf of the fleet. The console
// identifies itself as OPERATOR so agents never record it.
func (c *Console) BeginRollCall() {
	c.roster.MarkAllOutOfRange()
	c.send(gossip.MsgRollCallBegin, 0, gossip.StatusOperator.String(), "")
	c.metrics.RollCall()
}

func (c *Console) EndRollCall() {
	c.send(gossip.MsgRollCallEnd, 0, "", "")
}

// PublishSnapshot broadcasts the full fleet membership; receivers mark every
// listed agent out of range until it speaks and count themselves initialized.
func (c *Console) PublishSnapshot(ids []gossip.NodeID) error {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || strings.ContainsAny(string(id), ":;") {
			return fmt.Errorf("%w: %q", ErrBadAgentID, id)
		}
		parts = append(parts, string(id))
		c.roster.Set(id, gossip.StatusOutOfRange)
	}
	if len(parts) == 0 {
		return nil
	}
	c.send(gossip.MsgStatusOutOfRange, 0, strings.Join(parts, ":"), "")
	return nil
}

// RequestPositions asks every agent in range for its position. Answers land
// in Fixes.
func (c *Console) RequestPositions() {
	c.send(gossip.MsgReportPosition, 0, "", "")
}

// RequestStatus asks one agent (or everybody, with an empty id) for its status.
func (c *Console) RequestStatus(id gossip.NodeID) {
	c.send(gossip.MsgReportStatus, 0, "", id)
}

func (c *Console) Roster() []gossip.Member { return c.roster.All() }

func (c *Console) FirstFree() gossip.NodeID { return c.topology.FirstFree }

func (c *Console) Queued() int { return len(c.queued) }

func (c *Console) Fixes() []fixstore.Fix { return c.fixes.All() }

func (c *Console) send(t gossip.MsgType, hop int, payload string, to gossip.NodeID) {
	raw, err := gossip.Encode(gossip.NewMessage(c.id, t, hop, payload, to))
	if err != nil {
		c.logger.Warn("cannot encode command", zap.Stringer("type", t), zap.Error(err))
		return
	}
	if err := c.transport.Send(raw); err != nil {
		c.logger.Warn("send failed", zap.Stringer("type", t), zap.Error(err))
		return
	}
	c.metrics.Sent(t.String())
}
