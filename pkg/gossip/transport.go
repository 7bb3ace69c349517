package gossip

import (
	"math"
	"math/rand/v2"
	"sync"
)

// Transport is the range-limited broadcast channel the protocol engine talks
// to. Sends are fire-and-forget; receives never block. Implementations must
// tolerate being polled from a single goroutine once per tick.
type Transport interface {
	Send(raw string) error
	// TryReceive returns at most one buffered datagram.
	TryReceive() (string, bool)
	QueueDepth() int
	Close() error
}

// Positioner reports where an endpoint currently is. Endpoints without one
// hear and are heard by everybody.
type Positioner func() (x, y float64)

// Medium is an in-process broadcast channel. It models the physical radio:
// delivery only within Range of the sender, independent loss and duplication
// per receiver, and bounded receive buffers that drop on overflow.
type Medium struct {
	mu        sync.Mutex
	rng       *rand.Rand
	rangeLim  float64
	loss      float64
	duplicate float64
	buffer    int
	endpoints []*Endpoint
	sent      uint64
	delivered uint64
	lost      uint64
}

type MediumOption func(*Medium)

// WithRange limits delivery to receivers within r of the sender. Zero means unlimited.
func WithRange(r float64) MediumOption { return func(m *Medium) { m.rangeLim = r } }

// WithLoss drops each delivery independently with probability p.
func WithLoss(p float64) MediumOption { return func(m *Medium) { m.loss = p } }

// WithDuplicate delivers each datagram twice with probability p.
func WithDuplicate(p float64) MediumOption { return func(m *Medium) { m.duplicate = p } }

func WithSeed(seed int64) MediumOption {
	return func(m *Medium) { m.rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed))) }
}

// WithBuffer caps every endpoint's receive buffer.
func WithBuffer(n int) MediumOption { return func(m *Medium) { m.buffer = n } }

func NewMedium(opts ...MediumOption) *Medium {
	m := &Medium{
		rng:    rand.New(rand.NewPCG(1, 1)),
		buffer: 1024,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Join attaches a new endpoint. pos may be nil.
func (m *Medium) Join(id string, pos Positioner) *Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &Endpoint{id: id, pos: pos, medium: m}
	m.endpoints = append(m.endpoints, e)
	return e
}

// Stats returns datagrams sent, delivered and lost since creation.
func (m *Medium) Stats() (sent, delivered, lost uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent, m.delivered, m.lost
}

func (m *Medium) broadcast(from *Endpoint, raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
	for _, to := range m.endpoints {
		if to == from || to.closed {
			continue
		}
		if !m.inRange(from, to) {
			continue
		}
		if m.loss > 0 && m.rng.Float64() < m.loss {
			m.lost++
			continue
		}
		copies := 1
		if m.duplicate > 0 && m.rng.Float64() < m.duplicate {
			copies = 2
		}
		for range copies {
			if to.push(raw, m.buffer) {
				m.delivered++
			} else {
				m.lost++
			}
		}
	}
}

func (m *Medium) inRange(a, b *Endpoint) bool {
	if m.rangeLim <= 0 || a.pos == nil || b.pos == nil {
		return true
	}
	ax, ay := a.pos()
	bx, by := b.pos()
	return math.Hypot(ax-bx, ay-by) <= m.rangeLim
}

// Endpoint is one participant's attachment to a Medium.
type Endpoint struct {
	id     string
	pos    Positioner
	medium *Medium

	// guarded by medium.mu
	queue   []string
	closed  bool
	dropped uint64
}

var _ Transport = (*Endpoint)(nil)

func (e *Endpoint) ID() string { return e.id }

func (e *Endpoint) Send(raw string) error {
	e.medium.mu.Lock()
	closed := e.closed
	e.medium.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}
	e.medium.broadcast(e, raw)
	return nil
}

func (e *Endpoint) TryReceive() (string, bool) {
	e.medium.mu.Lock()
	defer e.medium.mu.Unlock()
	if len(e.queue) == 0 {
		return "", false
	}
	raw := e.queue[0]
	e.queue = e.queue[1:]
	return raw, true
}

func (e *Endpoint) QueueDepth() int {
	e.medium.mu.Lock()
	defer e.medium.mu.Unlock()
	return len(e.queue)
}

// Dropped counts datagrams lost to a full receive buffer.
func (e *Endpoint) Dropped() uint64 {
	e.medium.mu.Lock()
	defer e.medium.mu.Unlock()
	return e.dropped
}

func (e *Endpoint) Close() error {
	e.medium.mu.Lock()
	defer e.medium.mu.Unlock()
	e.closed = true
	e.queue = nil
	return nil
}

// push must be called with medium.mu held.
func (e *Endpoint) push(raw string, limit int) bool {
	if limit > 0 && len(e.queue) >= limit {
		e.dropped++
		return false
	}
	e.queue = append(e.queue, raw)
	return true
}
