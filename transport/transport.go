// Package transport is a thin shim over a UDP socket: fire-and-forget
// send, non-blocking drain-all receive, an MTU cap enforced on send, and
// an optional artificial one-way delay used to exercise prediction and
// reconciliation under controlled latency in tests.
package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"netcode/logging"
)

// MTU is the maximum payload size accepted by Send. Sending anything
// larger is a programming bug, not a runtime condition
// callers are expected to recover from.
const MTU = 1200

// Packet is one received datagram and the address it came from.
type Packet struct {
	Addr *net.UDPAddr
	Data []byte
}

// Shim wraps a UDP socket. A single Shim serializes all sends; Recv
// drains everything queued since the previous call.
type Shim struct {
	conn *net.UDPConn

	delayMu sync.Mutex
	delay   time.Duration
	inbox   []delayedRecv

	recvCh chan Packet
	done   chan struct{}
	once   sync.Once
}

type delayedRecv struct {
	at time.Time
	pk Packet
}

// Listen binds a UDP socket for server-side use.
func Listen(addr string) (*Shim, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %q: %w", addr, err)
	}
	return newShim(conn), nil
}

// Dial connects a UDP socket for client-side use; peer is implicit in
// subsequent sends/receives via the connected socket's remote address.
func Dial(addr string) (*Shim, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %q: %w", addr, err)
	}
	return newShim(conn), nil
}

func newShim(conn *net.UDPConn) *Shim {
	s := &Shim{
		conn:   conn,
		recvCh: make(chan Packet, 1024),
		done:   make(chan struct{}),
	}
	go s.receiveLoop()
	return s
}

// SetFakeDelay configures a symmetric artificial one-way delay applied to
// every subsequent Send and delivered-Recv. Zero disables it.
func (s *Shim) SetFakeDelay(d time.Duration) {
	s.delayMu.Lock()
	s.delay = d
	s.delayMu.Unlock()
}

// LocalAddr returns the socket's local address.
func (s *Shim) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Close releases the underlying socket.
func (s *Shim) Close() error {
	s.once.Do(func() { close(s.done) })
	return s.conn.Close()
}

// Send transmits data to peer. If peer is nil the shim's connected
// socket default remote is used (client mode). Oversize payloads panic:
// this is a programming bug, not a recoverable runtime condition.
func (s *Shim) Send(peer *net.UDPAddr, data []byte) {
	if len(data) > MTU {
		panic(fmt.Sprintf("transport: payload of %d bytes exceeds MTU %d", len(data), MTU))
	}

	s.delayMu.Lock()
	delay := s.delay
	s.delayMu.Unlock()

	if delay <= 0 {
		s.writeNow(peer, data)
		return
	}

	go func() {
		time.Sleep(delay)
		s.writeNow(peer, data)
	}()
}

func (s *Shim) writeNow(peer *net.UDPAddr, data []byte) {
	var err error
	if peer != nil {
		_, err = s.conn.WriteToUDP(data, peer)
	} else {
		_, err = s.conn.Write(data)
	}
	if err != nil {
		// UDP send errors are swallowed: the transport is lossy by design.
		logging.L().Debug("transport_send_error", "error", err)
	}
}

// Recv returns all datagrams queued since the previous call, honoring
// any configured fake delay on the inbound side. It never blocks.
func (s *Shim) Recv() []Packet {
	var out []Packet
	for {
		select {
		case pk := <-s.recvCh:
			out = append(out, pk)
		default:
			return s.applyInboundDelay(out)
		}
	}
}

func (s *Shim) applyInboundDelay(fresh []Packet) []Packet {
	s.delayMu.Lock()
	delay := s.delay
	s.delayMu.Unlock()

	if delay <= 0 {
		return fresh
	}

	now := time.Now()
	for _, pk := range fresh {
		s.inbox = append(s.inbox, delayedRecv{at: now.Add(delay), pk: pk})
	}

	var ready []Packet
	var pending []delayedRecv
	for _, d := range s.inbox {
		if !now.Before(d.at) {
			ready = append(ready, d.pk)
		} else {
			pending = append(pending, d)
		}
	}
	s.inbox = pending
	return ready
}

func (s *Shim) receiveLoop() {
	buf := make([]byte, MTU+1)
	for {
		select {
		case <-s.done:
			return
		default:
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case s.recvCh <- Packet{Addr: addr, Data: data}:
		default:
			logging.L().Debug("transport_recv_queue_full")
		}
	}
}
