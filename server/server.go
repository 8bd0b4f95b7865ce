// Package server implements the authoritative tick loop: accept/
// disconnect handling, per-client input intake, fixed-timestep physics,
// and snapshot broadcast. The world and every Connection record are
// owned exclusively by the tick loop goroutine; the transport's own
// receiver goroutine only ever hands packets across a channel, never
// touches server state directly.
package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"netcode/logging"
	"netcode/mathutil"
	"netcode/metrics"
	"netcode/physics"
	"netcode/protocol"
	"netcode/transport"
)

// spawnSlots is the fixed, deterministic set of spawn positions new
// players rotate through.
var spawnSlots = []mathutil.Vec2{
	{X: 100, Y: 100},
	{X: 300, Y: 100},
	{X: 500, Y: 100},
	{X: 700, Y: 100},
	{X: 900, Y: 100},
	{X: 1100, Y: 100},
	{X: 1300, Y: 100},
	{X: 1500, Y: 100},
}

// Server runs the authoritative simulation and UDP front end.
type Server struct {
	world  *physics.World
	conns  map[uint32]*Connection
	byAddr map[string]*Connection

	cfg          Config
	dt           float32
	spawnCounter int
	tick         uint32

	tr *transport.Shim
}

func newServer(tr *transport.Shim, cfg Config) *Server {
	return &Server{
		world:  physics.NewWorld(),
		conns:  make(map[uint32]*Connection),
		byAddr: make(map[string]*Connection),
		cfg:    cfg,
		dt:     1.0 / float32(cfg.TickHz),
		tr:     tr,
	}
}

// Run binds bind_address and blocks simulating at tick_hz until ctx is
// cancelled, at which point it finishes the in-flight tick and returns.
// It never returns an error for transient network faults; only a bind
// failure or invalid configuration is fatal.
func Run(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}

	tr, err := transport.Listen(cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBindFailure, err)
	}
	defer tr.Close()

	s := newServer(tr, cfg)

	var metricsSrv interface{ Shutdown(context.Context) error }
	if cfg.MetricsAddr != "" {
		metricsSrv = metrics.StartHTTP(cfg.MetricsAddr)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.runTickLoop(gctx)
		return nil
	})

	waitErr := g.Wait()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}
	return waitErr
}

// runTickLoop drives the simulation at a fixed cadence using a monotonic
// deadline schedule: if a tick overran, the next sleep is skipped to
// catch up rather than rewinding or queuing extra ticks.
func (s *Server) runTickLoop(ctx context.Context) {
	period := time.Duration(float64(time.Second) / float64(s.cfg.TickHz))
	next := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.doTick(time.Now())

		next = next.Add(period)
		if sleep := time.Until(next); sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		} else {
			next = time.Now() // overran: catch up, never sleep negative
		}
	}
}

func (s *Server) doTick(now time.Time) {
	s.drainIngress(now)

	inputs := make(map[uint32]physics.Input, len(s.conns))
	for cid, conn := range s.conns {
		inputs[cid] = conn.SelectTickInput()
	}
	physics.Step(s.world, inputs, s.dt)

	s.sweepTimeouts(now)
	s.broadcastSnapshot(now)

	s.tick++
	metrics.TicksProcessed.Inc()
}

func (s *Server) drainIngress(now time.Time) {
	for _, pk := range s.tr.Recv() {
		s.handlePacket(pk, now)
	}
}

func (s *Server) handlePacket(pk transport.Packet, now time.Time) {
	msg, err := protocol.Decode(pk.Data)
	if err != nil {
		metrics.MalformedPackets.Inc()
		logging.L().Debug("malformed_packet", "addr", pk.Addr.String(), "error", err)
		return
	}

	switch m := msg.(type) {
	case protocol.Connect:
		if err := s.handleConnect(pk.Addr, m, now); err != nil {
			logging.L().Info("connect_rejected", "addr", pk.Addr.String(), "error", err)
		}
	case protocol.Input:
		if err := s.handleInput(pk.Addr, m, now); err != nil {
			logging.L().Debug("input_dropped", "addr", pk.Addr.String(), "error", err)
		}
	case protocol.Disconnect:
		s.handleDisconnect(pk.Addr)
	default:
		logging.L().Debug("unexpected_message_from_client", "addr", pk.Addr.String())
	}
}

func (s *Server) handleConnect(addr *net.UDPAddr, m protocol.Connect, now time.Time) error {
	if conn, ok := s.byAddr[addr.String()]; ok {
		conn.LastRecvTime = now
		s.sendTo(conn.Addr, protocol.Connected{ClientID: conn.ClientID})
		return nil
	}

	if len(s.conns) >= s.cfg.MaxClients {
		metrics.ClientsRejectedFull.Inc()
		s.sendTo(addr, protocol.Disconnected{Reason: "full"})
		return ErrServerFull
	}

	id := s.nextClientID()
	slot := spawnSlots[s.spawnCounter%len(spawnSlots)]
	s.spawnCounter++

	s.world.AddPlayer(&physics.Player{ClientID: id, Pos: slot})

	conn := newConnection(id, addr, now, s.cfg.MaxInputsPerSec)
	s.conns[id] = conn
	s.byAddr[addr.String()] = conn
	metrics.ClientsConnected.Set(float64(len(s.conns)))

	s.sendTo(addr, protocol.Connected{ClientID: id})
	logging.L().Info("client_connected", "client_id", id, "addr", addr.String(), "client_version", m.ClientVersion)
	return nil
}

func (s *Server) handleInput(addr *net.UDPAddr, m protocol.Input, now time.Time) error {
	conn, ok := s.byAddr[addr.String()]
	if !ok {
		metrics.InputsDropped.WithLabelValues(metrics.ReasonUnknownPeer).Inc()
		return ErrUnknownPeer
	}

	conn.LastRecvTime = now
	accepted, reason := conn.AcceptInput(m)
	if accepted {
		metrics.InputsAccepted.Inc()
	} else {
		metrics.InputsDropped.WithLabelValues(reason).Inc()
	}
	return nil
}

func (s *Server) handleDisconnect(addr *net.UDPAddr) {
	conn, ok := s.byAddr[addr.String()]
	if !ok {
		return
	}
	logging.L().Info("client_disconnected", "client_id", conn.ClientID, "addr", addr.String())
	s.removeConnection(conn)
}

func (s *Server) removeConnection(conn *Connection) {
	delete(s.conns, conn.ClientID)
	delete(s.byAddr, conn.Addr.String())
	s.world.RemovePlayer(conn.ClientID)
	metrics.ClientsConnected.Set(float64(len(s.conns)))
}

func (s *Server) sweepTimeouts(now time.Time) {
	var timedOut []*Connection
	for _, conn := range s.conns {
		if now.Sub(conn.LastRecvTime) > s.cfg.ConnectionTimeout {
			timedOut = append(timedOut, conn)
		}
	}
	for _, conn := range timedOut {
		metrics.ClientTimeouts.Inc()
		logging.L().Info("client_timeout", "client_id", conn.ClientID, "addr", conn.Addr.String())
		s.removeConnection(conn)
	}
}

func (s *Server) broadcastSnapshot(now time.Time) {
	acks := make([]protocol.Ack, 0, len(s.conns))
	for cid, conn := range s.conns {
		acks = append(acks, protocol.Ack{ClientID: cid, Sequence: conn.LastProcessedSeq()})
	}

	players := make([]protocol.PlayerState, 0, len(s.world.Players))
	for _, p := range s.world.Players {
		players = append(players, protocol.PlayerState{ClientID: p.ClientID, X: p.Pos.X, Y: p.Pos.Y, VX: p.Vel.X, VY: p.Vel.Y})
	}

	gs := protocol.GameState{
		Tick:          s.tick,
		ServerTimeMs:  uint64(now.UnixMilli()),
		LastProcessed: acks,
		Players:       players,
	}
	data := protocol.Encode(gs)

	for _, conn := range s.conns {
		s.tr.Send(conn.Addr, data)
		conn.lastSentSnapshotTick = s.tick
	}

	if n := len(s.conns); n > 0 {
		metrics.SnapshotsSent.Add(float64(n))
		metrics.SnapshotBytesSent.Add(float64(len(data) * n))
	}
}

func (s *Server) sendTo(addr *net.UDPAddr, m protocol.Message) {
	s.tr.Send(addr, protocol.Encode(m))
}

func (s *Server) nextClientID() uint32 {
	for id := uint32(1); ; id++ {
		if _, ok := s.conns[id]; !ok {
			return id
		}
	}
}
