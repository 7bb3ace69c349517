package gossip

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	fieldSep   = ";"
	wireFields = 5
)

// Encode renders m as `sender;TYPE;hop;payload;recipient`.
func Encode(m Message) (string, error) {
	if m.Sender == "" {
		return "", ErrEmptySender
	}
	if _, ok := msgTable[m.Type]; !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownType, m.Type)
	}
	if m.Hop < 0 {
		return "", fmt.Errorf("%w: %d", ErrBadHopCount, m.Hop)
	}
	for _, f := range []string{string(m.Sender), m.Payload, string(m.Recipient)} {
		if strings.Contains(f, fieldSep) {
			return "", fmt.Errorf("%w: %q", ErrReservedChar, f)
		}
	}
	var b strings.Builder
	b.Grow(len(m.Sender) + len(m.Payload) + len(m.Recipient) + 32)
	b.WriteString(string(m.Sender))
	b.WriteString(fieldSep)
	b.WriteString(m.Type.String())
	b.WriteString(fieldSep)
	b.WriteString(strconv.Itoa(m.Hop))
	b.WriteString(fieldSep)
	b.WriteString(m.Payload)
	b.WriteString(fieldSep)
	b.WriteString(string(m.Recipient))
	return b.String(), nil
}

// Decode parses one datagram. Any error means the datagram must be dropped.
func Decode(raw string) (Message, error) {
	raw = strings.TrimRight(raw, "\x00 \t\r\n")
	parts := strings.Split(raw, fieldSep)
	if len(parts) != wireFields {
		return Message{}, fmt.Errorf("%w: got %d", ErrFieldCount, len(parts))
	}
	sender := strings.TrimSpace(parts[0])
	if sender == "" {
		return Message{}, ErrEmptySender
	}
	t, err := ParseMsgType(strings.TrimSpace(parts[1]))
	if err != nil {
		return Message{}, err
	}
	hop, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil || hop < 0 {
		return Message{}, fmt.Errorf("%w: %q", ErrBadHopCount, parts[2])
	}
	return Message{
		Sender:    NodeID(sender),
		Type:      t,
		Hop:       hop,
		Payload:   parts[3],
		Recipient: NodeID(strings.TrimSpace(parts[4])),
	}, nil
}
