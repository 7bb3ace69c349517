package gossip

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"sync/atomic"

	"go.uber.org/zap"
)

const keyLen = 8

// UDPConfig configures a multicast transport.
type UDPConfig struct {
	Group       string // IPv4 multicast group, e.g. 239.0.0.7
	Port        int
	MaxDatagram int
	Buffer      int
}

// UDPTransport broadcasts datagrams to an IPv4 multicast group. Every
// instance prefixes its datagrams with a random key so it can discard its
// own loopback copies. Inbound datagrams are buffered in a bounded channel;
// when the protocol engine falls behind, new datagrams are dropped.
type UDPTransport struct {
	conn     *net.UDPConn
	sendConn *net.UDPConn
	key      string
	inbox    chan string
	maxSize  int
	logger   *zap.Logger

	dropped atomic.Uint64
	closed  atomic.Bool
}

var _ Transport = (*UDPTransport)(nil)

func ListenUDP(cfg UDPConfig, logger *zap.Logger) (*UDPTransport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxDatagram <= 0 {
		cfg.MaxDatagram = 1024
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	addr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", cfg.Group, cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("resolve multicast group: %w", err)
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("join multicast group %s: %w", addr, err)
	}
	sendConn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("dial multicast group %s: %w", addr, err)
	}
	t := &UDPTransport{
		conn:     conn,
		sendConn: sendConn,
		key:      fmt.Sprintf("%08x", rand.Uint32()),
		inbox:    make(chan string, cfg.Buffer),
		maxSize:  cfg.MaxDatagram,
		logger:   logger.With(zap.String("group", addr.String())),
	}
	go t.listen()
	return t, nil
}

func (t *UDPTransport) listen() {
	buf := make([]byte, t.maxSize+keyLen)
	for {
		n, _, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || t.closed.Load() {
				return
			}
			t.logger.Warn("multicast read failed", zap.Error(err))
			continue
		}
		if n < keyLen {
			continue
		}
		if string(buf[:keyLen]) == t.key {
			continue
		}
		select {
		case t.inbox <- string(buf[keyLen:n]):
		default:
			t.dropped.Add(1)
		}
	}
}

func (t *UDPTransport) Send(raw string) error {
	if t.closed.Load() {
		return ErrTransportClosed
	}
	if len(raw) > t.maxSize {
		return fmt.Errorf("gossip: datagram of %d bytes exceeds %d", len(raw), t.maxSize)
	}
	_, err := t.sendConn.Write([]byte(t.key + raw))
	return err
}

func (t *UDPTransport) TryReceive() (string, bool) {
	select {
	case raw := <-t.inbox:
		return raw, true
	default:
		return "", false
	}
}

func (t *UDPTransport) QueueDepth() int { return len(t.inbox) }

// Dropped counts datagrams discarded because the buffer was full.
func (t *UDPTransport) Dropped() uint64 { return t.dropped.Load() }

func (t *UDPTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return errors.Join(t.conn.Close(), t.sendConn.Close())
}
