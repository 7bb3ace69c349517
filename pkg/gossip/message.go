package gossip

import (
	"fmt"
	"strconv"
)

// Definitions of the wire protocol: message types, their priorities and the
// status tokens peers declare. Encoding lives in codec.go.

type NodeID string

// PeerStatus is what an agent knows about a peer (or itself).
type PeerStatus uint8

const (
	StatusUnknown PeerStatus = iota
	StatusFree
	StatusMoving
	StatusOutOfRange
	StatusStopped
	// StatusOperator marks a non-peer originator (operator, initializer).
	// Such ids are never routable roster entries.
	StatusOperator
)

var statusTokens = [...]string{
	StatusUnknown:    "UNKNOWN",
	StatusFree:       "FREE",
	StatusMoving:     "MOVING",
	StatusOutOfRange: "OUT_OF_RANGE",
	StatusStopped:    "STOPPED",
	StatusOperator:   "OPERATOR",
}

func (s PeerStatus) String() string {
	if int(s) < len(statusTokens) {
		return statusTokens[s]
	}
	return "PeerStatus(" + strconv.Itoa(int(s)) + ")"
}

// ParseStatus maps a wire token back to a status.
func ParseStatus(tok string) (PeerStatus, bool) {
	for s, t := range statusTokens {
		if t == tok {
			return PeerStatus(s), true
		}
	}
	return StatusUnknown, false
}

// Routable reports whether a peer with this status may be chosen as a ring
// neighbour or hand-off target.
func (s PeerStatus) Routable() bool {
	return s != StatusOutOfRange && s != StatusOperator
}

type MsgType uint8

const (
	MsgReportStatus MsgType = iota + 1
	MsgReportPosition
	MsgRollCallBegin
	MsgRollCallEnd
	MsgStatusOutOfRange
	MsgStatusFree
	MsgStatusMoving
	MsgGoToCoordinates
	MsgStop
)

// LowestPriority is used for any type missing from the table.
const LowestPriority = 1

type msgSpec struct {
	tag      string
	priority int
}

// msgTable is the single source of truth for tag <-> type <-> priority.
var msgTable = map[MsgType]msgSpec{
	MsgReportStatus:     {"REPORT_STATUS", 1},
	MsgReportPosition:   {"REPORT_POSITION", 1},
	MsgRollCallBegin:    {"ROLLCALL_BEGIN", 8},
	MsgRollCallEnd:      {"ROLLCALL_END", 8},
	MsgStatusOutOfRange: {"STATUS_OUT_OF_RANGE", 8},
	MsgStatusFree:       {"STATUS_FREE", 7},
	MsgStatusMoving:     {"STATUS_MOVING", 6},
	MsgGoToCoordinates:  {"GO_TO_COORDINATES", 6},
	MsgStop:             {"STOP", 10},
}

var tagIndex = func() map[string]MsgType {
	idx := make(map[string]MsgType, len(msgTable))
	for t, s := range msgTable {
		if _, dup := idx[s.tag]; dup {
			panic("gossip: duplicate wire tag " + s.tag)
		}
		idx[s.tag] = t
	}
	return idx
}()

// MsgTypes returns every known type in declaration order.
func MsgTypes() []MsgType {
	return []MsgType{
		MsgReportStatus, MsgReportPosition, MsgRollCallBegin, MsgRollCallEnd,
		MsgStatusOutOfRange, MsgStatusFree, MsgStatusMoving, MsgGoToCoordinates, MsgStop,
	}
}

func (t MsgType) Priority() int {
	if s, ok := msgTable[t]; ok {
		return s.priority
	}
	return LowestPriority
}

func (t MsgType) String() string {
	if s, ok := msgTable[t]; ok {
		return s.tag
	}
	return "MsgType(" + strconv.Itoa(int(t)) + ")"
}

// ParseMsgType resolves a wire tag.
func ParseMsgType(tag string) (MsgType, error) {
	if t, ok := tagIndex[tag]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, tag)
}

// Message is one datagram. It is a value type: copies never alias.
type Message struct {
	Sender    NodeID
	Type      MsgType
	Hop       int
	Payload   string
	Recipient NodeID // empty for broadcast
}

func NewMessage(sender NodeID, t MsgType, hop int, payload string, recipient NodeID) Message {
	return Message{Sender: sender, Type: t, Hop: hop, Payload: payload, Recipient: recipient}
}

func (m Message) Priority() int { return m.Type.Priority() }

func (m Message) Broadcast() bool { return m.Recipient == "" }

// AddressedTo reports whether id is the explicit recipient.
func (m Message) AddressedTo(id NodeID) bool { return m.Recipient != "" && m.Recipient == id }

func (m Message) String() string {
	return fmt.Sprintf("%s from=%s hop=%d to=%q payload=%q", m.Type, m.Sender, m.Hop, m.Recipient, m.Payload)
}
