package node

import (
	"net"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/ryandielhenn/convoy/internal/telemetry"
	"github.com/ryandielhenn/convoy/pkg/agent"
)

// Node is the HTTP face of one agent. The protocol engine publishes a
// snapshot after every tick; handlers only ever read published snapshots.
type Node struct {
	id         string
	addr       string
	snap       atomic.Pointer[agent.Snapshot]
	registered atomic.Pointer[[]string]
}

func NewNode(id, addr string) *Node {
	return &Node{id: id, addr: addr}
}

func (n *Node) ID() string { return n.id }

func (n *Node) Addr() string { return n.addr }

// Publish replaces the current snapshot. Safe to call from the engine
// goroutine while handlers run.
func (n *Node) Publish(s agent.Snapshot) {
	n.snap.Store(&s)
}

func (n *Node) Snapshot() (agent.Snapshot, bool) {
	p := n.snap.Load()
	if p == nil {
		return agent.Snapshot{}, false
	}
	return *p, true
}

// SetRegistered records the agent ids currently registered in etcd.
func (n *Node) SetRegistered(ids []string) {
	cp := append([]string(nil), ids...)
	sort.Strings(cp)
	n.registered.Store(&cp)
}

func (n *Node) Registered() []string {
	p := n.registered.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Routes mounts every endpoint on mux, instrumented per route.
func (n *Node) Routes(mux *http.ServeMux) {
	mux.Handle("/healthz", telemetry.Instrument("healthz", http.HandlerFunc(n.Healthz)))
	mux.Handle("/info", telemetry.Instrument("info", http.HandlerFunc(n.Info)))
	mux.Handle("/roster", telemetry.Instrument("roster", http.HandlerFunc(n.Roster)))
	mux.Handle("/metrics", telemetry.MetricsHandler())
}

// AdvertiseAddr turns a listen address into one peers can dial: any URL
// scheme is cut, an empty host becomes host, and a missing port becomes
// defPort.
func AdvertiseAddr(listen, host, defPort string) string {
	if i := strings.Index(listen, "://"); i >= 0 {
		listen = listen[i+3:]
	}
	h, port, err := net.SplitHostPort(listen)
	if err != nil {
		h, port = listen, defPort
	}
	if h == "" {
		h = host
	}
	return net.JoinHostPort(h, port)
}
