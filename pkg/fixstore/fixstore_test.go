package fixstore

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ryandielhenn/convoy/pkg/gossip"
	"github.com/ryandielhenn/convoy/pkg/motion"
)

// fakeClock is advanced by hand.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func pt(x, y float64) motion.Coordinate { return motion.Coordinate{X: x, Y: y} }

func TestPutGetDelete_NoTTL(t *testing.T) {
	s := NewStore(0, 0)

	data := map[gossip.NodeID]motion.Coordinate{
		"alphie":  pt(0, 0),
		"bravo":   pt(1, 2),
		"charlie": pt(-3, 0.5),
	}
	for id, p := range data {
		s.Put(id, p)
	}
	if got := s.Len(); got != len(data) {
		t.Fatalf("Len = %d, want %d", got, len(data))
	}
	for id, p := range data {
		fix, ok := s.Get(id)
		if !ok {
			t.Fatalf("Get(%q) !ok", id)
		}
		if fix.Position != p || fix.Agent != id {
			t.Fatalf("Get(%q) = %+v, want %v", id, fix, p)
		}
	}

	if ok := s.Delete("bravo"); !ok {
		t.Fatalf("Delete(bravo) = false, want true")
	}
	if ok := s.Delete("bravo"); ok {
		t.Fatalf("second Delete(bravo) = true")
	}
	if _, ok := s.Get("bravo"); ok {
		t.Fatalf("Get(bravo) ok after delete")
	}
}

func TestOverwriteKeepsLen(t *testing.T) {
	clk := newClock()
	s := NewStore(0, 0, WithClock(clk.Now))
	s.Put("alphie", pt(1, 1))
	clk.Advance(time.Second)
	s.Put("alphie", pt(2, 2))
	if got := s.Len(); got != 1 {
		t.Fatalf("Len after overwrite = %d, want 1", got)
	}
	fix, ok := s.Get("alphie")
	if !ok || fix.Position != pt(2, 2) || !fix.At.Equal(clk.Now()) {
		t.Fatalf("Get(alphie) = %+v,%v", fix, ok)
	}
}

func TestTTLExpiry(t *testing.T) {
	clk := newClock()
	s := NewStore(0, 5*time.Second, WithClock(clk.Now))

	s.Put("alphie", pt(1, 1))
	clk.Advance(4 * time.Second)
	if _, ok := s.Get("alphie"); !ok {
		t.Fatalf("fresh fix should be readable")
	}
	clk.Advance(2 * time.Second)
	if _, ok := s.Get("alphie"); ok {
		t.Fatalf("expected fix to expire")
	}
	if s.Len() != 0 {
		t.Fatalf("expired fix not purged")
	}
}

func TestAllSkipsExpiredAndSorts(t *testing.T) {
	clk := newClock()
	s := NewStore(0, 10*time.Second, WithClock(clk.Now))

	s.Put("charlie", pt(3, 3))
	clk.Advance(8 * time.Second)
	s.Put("bravo", pt(2, 2))
	s.Put("alphie", pt(1, 1))
	clk.Advance(5 * time.Second)

	all := s.All()
	if len(all) != 2 || all[0].Agent != "alphie" || all[1].Agent != "bravo" {
		t.Fatalf("All = %+v", all)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d after All purge, want 2", s.Len())
	}
}

func TestLRU_GetUpdatesRecency(t *testing.T) {
	s := NewStore(2, 0)

	s.Put("alphie", pt(1, 1))
	s.Put("bravo", pt(2, 2))
	if _, ok := s.Get("alphie"); !ok { // alphie is now most recent
		t.Fatalf("precondition: alphie missing")
	}
	s.Put("charlie", pt(3, 3))

	if _, ok := s.Get("alphie"); !ok {
		t.Fatalf("expected alphie to remain after eviction")
	}
	if _, ok := s.Get("charlie"); !ok {
		t.Fatalf("expected charlie present")
	}
	if _, ok := s.Get("bravo"); ok {
		t.Fatalf("expected bravo to be evicted (LRU victim)")
	}
}

func TestConcurrentAccess_NoRaces(t *testing.T) {
	s := NewStore(0, 0)

	var wg sync.WaitGroup
	const G = 16
	const N = 500

	errCh := make(chan error, G)
	var stop atomic.Bool

	for gid := range G {
		wg.Add(1)
		go func(gid int) {
			defer wg.Done()
			for i := range N {
				if stop.Load() {
					return
				}
				id := gossip.NodeID(fmt.Sprintf("agent-%d-%d", gid, i))
				p := pt(float64(gid), float64(i))

				s.Put(id, p)
				fix, ok := s.Get(id)
				if !ok || fix.Position != p {
					errCh <- fmt.Errorf("lost fix for %s", id)
					stop.Store(true)
					return
				}
				if i%7 == 0 {
					s.Delete(id)
				}
			}
		}(gid)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrency test failed: %v", err)
	}
}
