package fixstore

import (
	"container/list"
	"sort"
	"sync"
	"time"

	"github.com/ryandielhenn/convoy/pkg/gossip"
	"github.com/ryandielhenn/convoy/pkg/motion"
)

// Fix is the last reported position of one agent.
type Fix struct {
	Agent    gossip.NodeID     `json:"agent"`
	Position motion.Coordinate `json:"position"`
	At       time.Time         `json:"at"`
}

type entry struct {
	fix      Fix
	expireAt time.Time
}

// Store caches position fixes with a TTL and evicts the least recently
// updated or read agent once capacity is reached.
type Store struct {
	mu   sync.Mutex
	data map[gossip.NodeID]*list.Element
	ll   *list.List
	cap  int
	ttl  time.Duration
	now  func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// NewStore keeps at most capacity fixes (<= 0 means unbounded). ttl <= 0
// disables expiry.
func NewStore(capacity int, ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		data: make(map[gossip.NodeID]*list.Element),
		ll:   list.New(),
		cap:  capacity,
		ttl:  ttl,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Put(agent gossip.NodeID, pos motion.Coordinate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var exp time.Time
	if s.ttl > 0 {
		exp = now.Add(s.ttl)
	}
	fix := Fix{Agent: agent, Position: pos, At: now}

	if el, ok := s.data[agent]; ok {
		e := el.Value.(*entry)
		e.fix = fix
		e.expireAt = exp
		s.ll.MoveToFront(el)
	} else {
		el := s.ll.PushFront(&entry{fix: fix, expireAt: exp})
		s.data[agent] = el
	}
	s.evictIfNeeded()
}

func (s *Store) Get(agent gossip.NodeID) (Fix, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.data[agent]
	if !ok {
		return Fix{}, false
	}
	e := el.Value.(*entry)
	if s.expired(e) {
		s.removeElement(el)
		return Fix{}, false
	}
	s.ll.MoveToFront(el)
	return e.fix, true
}

func (s *Store) Delete(agent gossip.NodeID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.data[agent]
	if ok {
		s.removeElement(el)
	}
	return ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// All returns every unexpired fix sorted by agent id. Expired fixes are
// purged; recency is left alone.
func (s *Store) All() []Fix {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Fix, 0, len(s.data))
	for _, el := range s.data {
		e := el.Value.(*entry)
		if s.expired(e) {
			s.removeElement(el)
			continue
		}
		out = append(out, e.fix)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agent < out[j].Agent })
	return out
}

func (s *Store) expired(e *entry) bool {
	return !e.expireAt.IsZero() && s.now().After(e.expireAt)
}

func (s *Store) evictIfNeeded() {
	for s.cap > 0 && s.ll.Len() > s.cap {
		s.removeElement(s.ll.Back())
	}
}

func (s *Store) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	delete(s.data, e.fix.Agent)
	s.ll.Remove(el)
}
