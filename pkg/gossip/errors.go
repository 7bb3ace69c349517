package gossip

import "errors"

var (
	ErrFieldCount      = errors.New("gossip: wrong field count")
	ErrUnknownType     = errors.New("gossip: unknown message type")
	ErrBadHopCount     = errors.New("gossip: invalid hop count")
	ErrEmptySender     = errors.New("gossip: empty sender")
	ErrReservedChar    = errors.New("gossip: field contains reserved separator")
	ErrTransportClosed = errors.New("gossip: transport closed")
)
