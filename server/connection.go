package server

import (
	"net"
	"time"

	"golang.org/x/time/rate"

	"netcode/metrics"
	"netcode/physics"
	"netcode/protocol"
)

// inputBufferCap bounds each client's unprocessed-input FIFO. Overflow drops the oldest entry.
const inputBufferCap = 64

// Connection is the server's per-client bookkeeping: remote address,
// liveness, and the sequence-sorted input buffer that feeds tick
// selection. The tick loop is its sole owner; nothing outside it ever
// touches a Connection concurrently.
type Connection struct {
	ClientID     uint32
	Addr         *net.UDPAddr
	LastRecvTime time.Time

	buffer           []protocol.Input
	lastProcessedSeq uint32
	lastApplied      physics.Input

	lastSentSnapshotTick uint32
	limiter              *rate.Limiter
}

// newConnection creates a Connection with a fresh rate limiter enforcing
// maxInputsPerSec within any 1s window, approximated as a token bucket
// with burst equal to the per-second rate (see DESIGN.md).
func newConnection(clientID uint32, addr *net.UDPAddr, now time.Time, maxInputsPerSec int) *Connection {
	return &Connection{
		ClientID:     clientID,
		Addr:         addr,
		LastRecvTime: now,
		limiter:      rate.NewLimiter(rate.Limit(maxInputsPerSec), maxInputsPerSec),
	}
}

// AcceptInput validates and buffers an input sample, applying the
// rate limit, the sequence-monotonicity invariant, and the capacity cap
// in that order. It reports why a sample was rejected, if it was.
func (c *Connection) AcceptInput(in protocol.Input) (accepted bool, reason string) {
	if !c.limiter.Allow() {
		return false, metrics.ReasonRateLimited
	}
	if in.Sequence <= c.lastProcessedSeq {
		return false, metrics.ReasonDuplicate
	}
	if len(c.buffer) > 0 && in.Sequence <= c.buffer[len(c.buffer)-1].Sequence {
		return false, metrics.ReasonDuplicate
	}

	c.buffer = append(c.buffer, in)
	if len(c.buffer) > inputBufferCap {
		c.buffer = c.buffer[1:] // drop the oldest to make room
		metrics.InputsDropped.WithLabelValues(metrics.ReasonBufferFull).Inc()
	}
	return true, ""
}

// SelectTickInput returns the input to simulate this tick: the newest buffered sample, or the last applied input
// (neutral if none yet) when the buffer is empty. Selecting drains the
// buffer and advances last_processed to the selected sequence.
func (c *Connection) SelectTickInput() physics.Input {
	if len(c.buffer) == 0 {
		return c.lastApplied
	}

	newest := c.buffer[len(c.buffer)-1]
	c.lastProcessedSeq = newest.Sequence
	c.lastApplied = physics.Input{Left: newest.Left, Right: newest.Right, Jump: newest.Jump}
	c.buffer = c.buffer[:0]
	return c.lastApplied
}

// LastProcessedSeq returns the sequence folded into the most recent
// simulated tick, or 0 if none yet.
func (c *Connection) LastProcessedSeq() uint32 { return c.lastProcessedSeq }
