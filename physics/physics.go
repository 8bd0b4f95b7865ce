// Package physics implements the deterministic fixed-timestep 2D
// simulation shared by the authoritative server and the client's local
// predictor. Step is a pure function: identical inputs, Δt, and initial
// state always produce bit-identical output.
package physics

import "netcode/mathutil"

// Tunable constants. Typed float32 so callers can
// use them directly in float32 arithmetic without conversion.
const (
	MoveSpeed    float32 = 300  // px/s
	JumpImpulse  float32 = 500  // px/s
	Gravity      float32 = 1500 // px/s^2
	TerminalVY   float32 = 1200 // px/s
	WorldW       float32 = 1600
	WorldH       float32 = 1200
	PlayerW      float32 = 32
	PlayerH      float32 = 32
	epsilon      float32 = 1e-3 // max allowed AABB overlap after resolution
)

// Input is one client's input sample for a single tick. Only the boolean
// triad matters to the physics step; sequence/timestamp live in the
// protocol/server layers.
type Input struct {
	Left  bool
	Right bool
	Jump  bool
}

// Player is one entity's simulated kinematic state. Position is the
// top-left corner of its PlayerW x PlayerH AABB.
type Player struct {
	ClientID uint32
	Pos      mathutil.Vec2
	Vel      mathutil.Vec2
	Grounded bool
}

// AABB returns the player's current axis-aligned bounding box.
func (p *Player) AABB() (min, max mathutil.Vec2) {
	return p.Pos, mathutil.Vec2{X: p.Pos.X + PlayerW, Y: p.Pos.Y + PlayerH}
}

// World holds every live player, keyed and iterated in ascending
// client_id order to keep collision resolution deterministic.
type World struct {
	Players []*Player
}

// NewWorld returns an empty world.
func NewWorld() *World {
	return &World{}
}

// Player returns the player with the given client_id, or nil.
func (w *World) Player(clientID uint32) *Player {
	for _, p := range w.Players {
		if p.ClientID == clientID {
			return p
		}
	}
	return nil
}

// AddPlayer inserts a player, keeping Players sorted by ClientID.
func (w *World) AddPlayer(p *Player) {
	i := 0
	for i < len(w.Players) && w.Players[i].ClientID < p.ClientID {
		i++
	}
	w.Players = append(w.Players, nil)
	copy(w.Players[i+1:], w.Players[i:])
	w.Players[i] = p
}

// RemovePlayer deletes the player with the given client_id, if present.
func (w *World) RemovePlayer(clientID uint32) {
	for i, p := range w.Players {
		if p.ClientID == clientID {
			w.Players = append(w.Players[:i], w.Players[i+1:]...)
			return
		}
	}
}

// Clone deep-copies the world so a caller holding the copy never
// observes later in-place mutation of the original.
func (w *World) Clone() *World {
	out := &World{Players: make([]*Player, len(w.Players))}
	for i, p := range w.Players {
		cp := *p
		out.Players[i] = &cp
	}
	return out
}

// Step advances world by dt given the per-client inputs selected for this
// tick. inputs maps client_id to the Input applied this step; a player
// with no entry uses the neutral input (matches a momentarily-empty
// per-client buffer; the caller, not Step, decides whether to instead
// reuse the last applied input).
//
// Step operates on w's Player values in place and returns w, since the
// server already owns w exclusively for the duration of a tick; a caller
// holding one of those *Player pointers sees the updated state.
func Step(w *World, inputs map[uint32]Input, dt float32) *World {
	for _, p := range w.Players {
		in := inputs[p.ClientID]
		applyInput(p, in)
		p.Vel.Y += Gravity * dt
		p.Vel.Y = clampAbs(p.Vel.Y, TerminalVY)
		p.Pos = p.Pos.Add(p.Vel.Mul(dt))
	}

	resolveWorldBounds(w)
	resolvePlayerCollisions(w)

	return w
}

func applyInput(p *Player, in Input) {
	switch {
	case in.Left && !in.Right:
		p.Vel.X = -MoveSpeed
	case in.Right && !in.Left:
		p.Vel.X = MoveSpeed
	default:
		p.Vel.X = 0
	}

	if in.Jump && p.Grounded {
		p.Vel.Y = -JumpImpulse
	}
}

func clampAbs(v, limit float32) float32 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

// resolveWorldBounds clamps every player to the world rectangle and
// updates the grounded flag on floor contact.
func resolveWorldBounds(w *World) {
	for _, p := range w.Players {
		clamped := mathutil.Clamp(p.Pos, mathutil.Vec2{}, mathutil.Vec2{X: WorldW - PlayerW, Y: WorldH - PlayerH})
		p.Pos = clamped

		if p.Pos.Y >= WorldH-PlayerH {
			p.Vel.Y = 0
			p.Grounded = true
		} else {
			p.Grounded = false
		}
	}
}

// resolvePlayerCollisions resolves pairwise AABB overlaps in ascending
// client_id order, splitting displacement equally
// along the smaller-overlap axis and zeroing the colliding velocity
// component on both players. Equal X/Y overlap ties resolve on X.
func resolvePlayerCollisions(w *World) {
	for i := 0; i < len(w.Players); i++ {
		for j := i + 1; j < len(w.Players); j++ {
			a, b := w.Players[i], w.Players[j]
			resolvePair(a, b)
		}
	}
}

func resolvePair(a, b *Player) {
	aMin, aMax := a.AABB()
	bMin, bMax := b.AABB()

	overlapX := minF(aMax.X, bMax.X) - maxF(aMin.X, bMin.X)
	overlapY := minF(aMax.Y, bMax.Y) - maxF(aMin.Y, bMin.Y)

	if overlapX <= 0 || overlapY <= 0 {
		return
	}

	if overlapX <= overlapY {
		half := overlapX / 2
		if a.Pos.X < b.Pos.X {
			a.Pos.X -= half
			b.Pos.X += half
		} else {
			a.Pos.X += half
			b.Pos.X -= half
		}
		a.Vel.X = 0
		b.Vel.X = 0
	} else {
		half := overlapY / 2
		if a.Pos.Y < b.Pos.Y {
			a.Pos.Y -= half
			b.Pos.Y += half
		} else {
			a.Pos.Y += half
			b.Pos.Y -= half
		}
		a.Vel.Y = 0
		b.Vel.Y = 0
	}
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// Epsilon is the tolerated AABB overlap after resolution.
func Epsilon() float32 { return epsilon }
