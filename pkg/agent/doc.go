// Package agent is the per-robot protocol engine.
//
// A NetworkManager owns one agent's AgentState and advances it one Tick at a
// time: it drains the transport into a priority inbox, handles at most one
// message, ages the roster, polls the motion controller, recomputes the ring
// and emits whatever the protocol requires (roll-call relays, waypoint
// hand-offs, STOP relays, status replies and heartbeats).
//
// The engine is single-threaded. Nothing in this package is safe for
// concurrent use except Snapshot values, which are copies.
package agent
