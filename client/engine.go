package client

import (
	"time"

	"netcode/logging"
	"netcode/mathutil"
	"netcode/metrics"
	"netcode/physics"
	"netcode/protocol"
	"netcode/transport"
)

// pendingInput is one sent-but-unacknowledged input, timestamped locally
// so a later ack can yield a round-trip ping estimate.
type pendingInput struct {
	in     protocol.Input
	sentAt time.Time
}

// Engine is the client-side netcode driver. It exclusively owns the
// predicted world, the pending-input queue, and the two newest
// snapshots; a renderer only ever reads View's result.
type Engine struct {
	tr  *transport.Shim
	cfg Config

	state   ConnState
	myID    uint32
	nextSeq uint32

	connectRetries int
	resendDeadline time.Time

	pending []pendingInput

	predictedLocal *physics.Player
	lastSnapshot   *protocol.GameState
	prevSnapshot   *protocol.GameState
	lastSnapshotAt time.Time

	pingMs float64
}

// NewEngine wires an Engine to an already-dialed transport shim.
func NewEngine(tr *transport.Shim, cfg Config) *Engine {
	return &Engine{tr: tr, cfg: cfg.withDefaults(), nextSeq: 1}
}

// Connect begins the connect handshake from Disconnected.
func (e *Engine) Connect(now time.Time) {
	if e.state != Disconnected {
		return
	}
	e.state = Connecting
	e.connectRetries = 0
	e.sendConnect(now)
}

func (e *Engine) sendConnect(now time.Time) {
	e.tr.Send(nil, protocol.Encode(protocol.Connect{ClientVersion: 1}))
	e.resendDeadline = now.Add(e.cfg.ConnectResendInterval)
}

// Disconnect tears down a live session: notify the server, then reset
// to a fresh Disconnected state.
func (e *Engine) Disconnect() {
	if e.state == Connected {
		e.tr.Send(nil, protocol.Encode(protocol.Disconnect{}))
	}
	e.reset()
}

func (e *Engine) reset() {
	e.state = Disconnected
	e.myID = 0
	e.nextSeq = 1
	e.pending = nil
	e.predictedLocal = nil
	e.lastSnapshot = nil
	e.prevSnapshot = nil
	e.connectRetries = 0
}

// State returns the current connect/reconnect state.
func (e *Engine) State() ConnState { return e.state }

// Update runs one frame: drains inbound snapshots, advances the connect
// state machine, and (if connected) samples intent into a new Input,
// sends it, and predicts locally. frameDt is the render frame's delta
// in seconds.
func (e *Engine) Update(now time.Time, frameDt float32, intent InputIntent) {
	e.drainInbound(now)

	switch e.state {
	case Connecting:
		if now.After(e.resendDeadline) {
			e.connectRetries++
			if e.connectRetries >= e.cfg.MaxConnectRetries {
				e.reset()
				return
			}
			e.sendConnect(now)
		}

	case Connected:
		if now.Sub(e.lastSnapshotAt) > e.cfg.SnapshotTimeout {
			logging.L().Info("client_snapshot_timeout")
			e.reset()
			return
		}
		e.sendInput(now, frameDt, intent)
	}
}

func (e *Engine) sendInput(now time.Time, frameDt float32, intent InputIntent) {
	in := protocol.Input{
		Sequence:          e.nextSeq,
		ClientTimestampMs: uint64(now.UnixMilli()),
		Left:              intent.Left,
		Right:             intent.Right,
		Jump:              intent.Jump,
	}
	e.nextSeq++

	e.tr.Send(nil, protocol.Encode(in))
	e.pending = append(e.pending, pendingInput{in: in, sentAt: now})

	if e.cfg.PredictionOn && e.predictedLocal != nil {
		w := &physics.World{Players: []*physics.Player{e.predictedLocal}}
		physics.Step(w, map[uint32]physics.Input{
			e.predictedLocal.ClientID: {Left: in.Left, Right: in.Right, Jump: in.Jump},
		}, frameDt)
	}
}

func (e *Engine) drainInbound(now time.Time) {
	for _, pk := range e.tr.Recv() {
		msg, err := protocol.Decode(pk.Data)
		if err != nil {
			continue
		}
		e.handleMessage(msg, now)
	}
}

func (e *Engine) handleMessage(msg protocol.Message, now time.Time) {
	switch m := msg.(type) {
	case protocol.Connected:
		if e.state == Connecting {
			e.myID = m.ClientID
			e.state = Connected
			e.lastSnapshotAt = now
		}
	case protocol.Disconnected:
		e.reset()
	case protocol.GameState:
		if e.state == Connected {
			e.onSnapshot(m, now)
		}
	}
}

// onSnapshot folds a newly received GameState in: rejects stale/old
// ticks, prunes acknowledged pending inputs, and reconciles the
// predicted local player.
func (e *Engine) onSnapshot(gs protocol.GameState, now time.Time) {
	if e.lastSnapshot != nil && gs.Tick <= e.lastSnapshot.Tick {
		return
	}

	e.prevSnapshot = e.lastSnapshot
	snapshot := gs
	e.lastSnapshot = &snapshot
	e.lastSnapshotAt = now

	e.pruneAcked(gs, now)
	e.reconcileLocal(gs)
}

func (e *Engine) pruneAcked(gs protocol.GameState, now time.Time) {
	var ack *protocol.Ack
	for i := range gs.LastProcessed {
		if gs.LastProcessed[i].ClientID == e.myID {
			ack = &gs.LastProcessed[i]
			break
		}
	}
	if ack == nil {
		return
	}

	kept := e.pending[:0]
	for _, pi := range e.pending {
		if pi.in.Sequence > ack.Sequence {
			kept = append(kept, pi)
		} else {
			e.pingMs = float64(now.Sub(pi.sentAt).Milliseconds())
		}
	}
	e.pending = kept
}

func (e *Engine) reconcileLocal(gs protocol.GameState) {
	var mine *protocol.PlayerState
	for i := range gs.Players {
		if gs.Players[i].ClientID == e.myID {
			mine = &gs.Players[i]
			break
		}
	}
	if mine == nil {
		e.predictedLocal = nil
		return
	}

	if e.predictedLocal == nil {
		e.predictedLocal = &physics.Player{ClientID: e.myID}
	}
	e.predictedLocal.Pos = mathutil.Vec2{X: mine.X, Y: mine.Y}
	e.predictedLocal.Vel = mathutil.Vec2{X: mine.VX, Y: mine.VY}

	if !e.cfg.ReconciliationOn || len(e.pending) == 0 {
		return
	}

	// Replay only the local player's kinematics; remote players are not
	// part of this world, so replay never re-triggers a collision the
	// server already resolved.
	dt := 1.0 / float32(e.cfg.TickHz)
	w := &physics.World{Players: []*physics.Player{e.predictedLocal}}
	for _, pi := range e.pending {
		physics.Step(w, map[uint32]physics.Input{
			e.myID: {Left: pi.in.Left, Right: pi.in.Right, Jump: pi.in.Jump},
		}, dt)
	}
	metrics.Reconciliations.Inc()
}

// PingMs returns the most recent round-trip estimate derived from an
// acknowledged input, or 0 before the first ack.
func (e *Engine) PingMs() float64 { return e.pingMs }

// PendingCount reports the current pending-input queue length.
func (e *Engine) PendingCount() int { return len(e.pending) }

// MyID returns the assigned client_id, valid once Connected.
func (e *Engine) MyID() uint32 { return e.myID }
