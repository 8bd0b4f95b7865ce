package client

import (
	"time"

	"netcode/mathutil"
	"netcode/protocol"
)

// LocalPlayerView is the local player's renderable state.
type LocalPlayerView struct {
	Pos mathutil.Vec2
	Vel mathutil.Vec2
}

// RemotePlayerView is one remote player's renderable position, already
// resolved to render time (interpolated or held, never extrapolated).
type RemotePlayerView struct {
	ClientID uint32
	Pos      mathutil.Vec2
}

// FrameView is the immutable per-frame snapshot the renderer reads.
type FrameView struct {
	MyID    uint32
	Local   LocalPlayerView
	Remote  []RemotePlayerView
	PingMs  float64
	State   ConnState
	Toggles Config
}

// View builds this frame's renderable state. Renderer code must treat
// the result as read-only; the engine never hands out internal pointers.
func (e *Engine) View(now time.Time) FrameView {
	v := FrameView{
		MyID:    e.myID,
		PingMs:  e.pingMs,
		State:   e.state,
		Toggles: e.cfg,
	}
	if e.predictedLocal != nil {
		v.Local = LocalPlayerView{Pos: e.predictedLocal.Pos, Vel: e.predictedLocal.Vel}
	}
	v.Remote = e.remoteViews(now)
	return v
}

// remoteViews computes each remote player's render position: linear blend between prev and
// last snapshot at render_time = now - INTERP_DELAY when render_time
// falls between them; otherwise clamp to the nearer snapshot. A player
// missing from prev_snapshot is held at its only known position; a
// player missing from last_snapshot is simply absent (removed).
func (e *Engine) remoteViews(now time.Time) []RemotePlayerView {
	if e.lastSnapshot == nil {
		return nil
	}
	if !e.cfg.InterpolationOn || e.prevSnapshot == nil {
		return e.remoteViewsUninterpolated()
	}

	t := e.interpFactor(now)

	prevByID := make(map[uint32]protocol.PlayerState, len(e.prevSnapshot.Players))
	for _, p := range e.prevSnapshot.Players {
		prevByID[p.ClientID] = p
	}

	out := make([]RemotePlayerView, 0, len(e.lastSnapshot.Players))
	for _, p := range e.lastSnapshot.Players {
		if p.ClientID == e.myID {
			continue
		}
		last := mathutil.Vec2{X: p.X, Y: p.Y}
		if prev, ok := prevByID[p.ClientID]; ok {
			pos := mathutil.Lerp(mathutil.Vec2{X: prev.X, Y: prev.Y}, last, t)
			out = append(out, RemotePlayerView{ClientID: p.ClientID, Pos: pos})
		} else {
			out = append(out, RemotePlayerView{ClientID: p.ClientID, Pos: last})
		}
	}
	return out
}

func (e *Engine) remoteViewsUninterpolated() []RemotePlayerView {
	out := make([]RemotePlayerView, 0, len(e.lastSnapshot.Players))
	for _, p := range e.lastSnapshot.Players {
		if p.ClientID == e.myID {
			continue
		}
		out = append(out, RemotePlayerView{ClientID: p.ClientID, Pos: mathutil.Vec2{X: p.X, Y: p.Y}})
	}
	return out
}

// interpFactor returns the blend factor in [0,1] between prevSnapshot
// and lastSnapshot for render_time = now - INTERP_DELAY, clamped at
// the endpoints rather than extrapolating.
func (e *Engine) interpFactor(now time.Time) float32 {
	renderTime := now.Add(-e.cfg.InterpDelay)
	prevT := time.UnixMilli(int64(e.prevSnapshot.ServerTimeMs))
	lastT := time.UnixMilli(int64(e.lastSnapshot.ServerTimeMs))

	switch {
	case !renderTime.After(prevT):
		return 0
	case !renderTime.Before(lastT):
		return 1
	}

	total := lastT.Sub(prevT)
	if total <= 0 {
		return 1
	}
	return float32(renderTime.Sub(prevT)) / float32(total)
}
