// Package gossip implements the wire layer and membership bookkeeping shared
// by every convoy participant. It defines the closed message taxonomy with
// its fixed priorities, the `;`-delimited datagram codec, the priority inbox
// that feeds the protocol engine one message per tick, and the roster with
// its tick-based silence detector.
//
// Transports are pluggable. An in-process Medium simulates a range-limited,
// lossy broadcast channel for tests and simulation; UDPTransport speaks IPv4
// multicast for real deployments.
//
// Typical usage:
//
//	m := gossip.NewMessage("alphie", gossip.MsgStop, 0, "", "")
//	raw, _ := gossip.Encode(m)
//	_ = tr.Send(raw)
//
// Nothing in this package blocks: receivers poll with TryReceive.
package gossip
