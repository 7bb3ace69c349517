package node

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/ryandielhenn/convoy/pkg/agent"
)

// Healthz returns 200 OK to indicate the process is alive.
func (n *Node) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Info writes the latest engine snapshot plus process details.
func (n *Node) Info(w http.ResponseWriter, _ *http.Request) {
	snap, ok := n.Snapshot()
	if !ok {
		http.Error(w, "engine has not ticked yet", http.StatusServiceUnavailable)
		return
	}
	type resp struct {
		PID        int            `json:"pid"`
		Now        time.Time      `json:"now"`
		Addr       string         `json:"addr"`
		Registered []string       `json:"registered,omitempty"`
		Agent      agent.Snapshot `json:"agent"`
	}
	writeJSON(w, resp{PID: os.Getpid(), Now: time.Now(), Addr: n.addr, Registered: n.Registered(), Agent: snap})
}

// Roster writes the roster rows of the latest snapshot.
func (n *Node) Roster(w http.ResponseWriter, _ *http.Request) {
	snap, ok := n.Snapshot()
	if !ok {
		http.Error(w, "engine has not ticked yet", http.StatusServiceUnavailable)
		return
	}
	rows := snap.Roster
	if rows == nil {
		rows = []agent.RosterRow{}
	}
	writeJSON(w, rows)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
