package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netcode/mathutil"
)

func newTestWorld() *World {
	w := NewWorld()
	w.AddPlayer(&Player{ClientID: 1, Pos: mathutil.Vec2{X: 100, Y: 100}})
	w.AddPlayer(&Player{ClientID: 2, Pos: mathutil.Vec2{X: 300, Y: 100}})
	return w
}

// TestDeterminism checks that identical inputs, dt, and initial state
// produce bit-identical output across repeated runs.
func TestDeterminism(t *testing.T) {
	inputs := map[uint32]Input{1: {Right: true}, 2: {Left: true, Jump: true}}

	run := func() *World {
		w := newTestWorld()
		for i := 0; i < 120; i++ {
			Step(w, inputs, 1.0/60)
		}
		return w
	}

	a, b := run(), run()
	require.Equal(t, len(a.Players), len(b.Players))
	for i := range a.Players {
		assert.Equal(t, *a.Players[i], *b.Players[i])
	}
}

func TestMoveSpeedAppliedInstantly(t *testing.T) {
	w := NewWorld()
	w.AddPlayer(&Player{ClientID: 1, Pos: mathutil.Vec2{X: 500, Y: 500}})

	Step(w, map[uint32]Input{1: {Right: true}}, 1.0/60)
	p := w.Player(1)
	assert.Equal(t, MoveSpeed, p.Vel.X)

	// Releasing all horizontal input stops instantly (no inertia).
	Step(w, map[uint32]Input{1: {}}, 1.0/60)
	assert.Equal(t, float32(0), w.Player(1).Vel.X)
}

func TestJumpRequiresGrounded(t *testing.T) {
	w := NewWorld()
	w.AddPlayer(&Player{ClientID: 1, Pos: mathutil.Vec2{X: 0, Y: WorldH - PlayerH}, Grounded: true})

	dt := float32(1.0 / 60)
	Step(w, map[uint32]Input{1: {Jump: true}}, dt)
	p := w.Player(1)
	// The jump impulse is applied first, then one step of gravity.
	assert.Equal(t, -JumpImpulse+Gravity*dt, p.Vel.Y)
	assert.False(t, p.Grounded)

	// Jumping again mid-air has no effect: not grounded.
	velBefore := p.Vel.Y
	Step(w, map[uint32]Input{1: {Jump: true}}, 1.0/60)
	assert.NotEqual(t, -JumpImpulse, p.Vel.Y)
	_ = velBefore
}

func TestTerminalVelocityClamped(t *testing.T) {
	w := NewWorld()
	w.AddPlayer(&Player{ClientID: 1, Pos: mathutil.Vec2{X: 0, Y: 0}})

	for i := 0; i < 1000; i++ {
		Step(w, map[uint32]Input{}, 1.0/60)
	}
	p := w.Player(1)
	assert.LessOrEqual(t, p.Vel.Y, TerminalVY+1e-3)
}

func TestWorldBoundsFloorContact(t *testing.T) {
	w := NewWorld()
	w.AddPlayer(&Player{ClientID: 1, Pos: mathutil.Vec2{X: 0, Y: WorldH - PlayerH - 1}, Vel: mathutil.Vec2{Y: 500}})

	Step(w, map[uint32]Input{}, 1.0/60)
	p := w.Player(1)
	assert.Equal(t, WorldH-PlayerH, p.Pos.Y)
	assert.True(t, p.Grounded)
	assert.Equal(t, float32(0), p.Vel.Y)
}

// TestCollisionResolutionScenarioD checks that two players overlapping
// 16px in X are split equally, with velocities zeroed on both.
func TestCollisionResolutionScenarioD(t *testing.T) {
	floorY := WorldH - PlayerH
	w := NewWorld()
	w.AddPlayer(&Player{ClientID: 1, Pos: mathutil.Vec2{X: 200, Y: floorY}, Vel: mathutil.Vec2{X: 10}})
	w.AddPlayer(&Player{ClientID: 2, Pos: mathutil.Vec2{X: 216, Y: floorY}, Vel: mathutil.Vec2{X: -10}})

	Step(w, map[uint32]Input{}, 0)

	p1, p2 := w.Player(1), w.Player(2)
	assert.InDelta(t, 192, p1.Pos.X, 1e-3)
	assert.InDelta(t, 224, p2.Pos.X, 1e-3)
	assert.Equal(t, float32(0), p1.Vel.X)
	assert.Equal(t, float32(0), p2.Vel.X)
}

// TestNoInterpenetration checks that no two player AABBs overlap by
// more than Epsilon after a tick.
func TestNoInterpenetration(t *testing.T) {
	w := NewWorld()
	w.AddPlayer(&Player{ClientID: 1, Pos: mathutil.Vec2{X: 100, Y: 100}})
	w.AddPlayer(&Player{ClientID: 2, Pos: mathutil.Vec2{X: 110, Y: 100}})
	w.AddPlayer(&Player{ClientID: 3, Pos: mathutil.Vec2{X: 120, Y: 100}})

	for i := 0; i < 300; i++ {
		Step(w, map[uint32]Input{}, 1.0/60)
	}

	for i := 0; i < len(w.Players); i++ {
		for j := i + 1; j < len(w.Players); j++ {
			aMin, aMax := w.Players[i].AABB()
			bMin, bMax := w.Players[j].AABB()
			overlapX := minF(aMax.X, bMax.X) - maxF(aMin.X, bMin.X)
			overlapY := minF(aMax.Y, bMax.Y) - maxF(aMin.Y, bMin.Y)
			if overlapX > 0 && overlapY > 0 {
				assert.LessOrEqual(t, overlapX, Epsilon())
			}
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	w := newTestWorld()
	clone := w.Clone()
	clone.Player(1).Pos.X = 999

	assert.NotEqual(t, w.Player(1).Pos.X, clone.Player(1).Pos.X)
}

func TestAddPlayerKeepsAscendingOrder(t *testing.T) {
	w := NewWorld()
	w.AddPlayer(&Player{ClientID: 5})
	w.AddPlayer(&Player{ClientID: 1})
	w.AddPlayer(&Player{ClientID: 3})

	require.Len(t, w.Players, 3)
	assert.Equal(t, uint32(1), w.Players[0].ClientID)
	assert.Equal(t, uint32(3), w.Players[1].ClientID)
	assert.Equal(t, uint32(5), w.Players[2].ClientID)
}

func TestRemovePlayer(t *testing.T) {
	w := newTestWorld()
	w.RemovePlayer(1)
	require.Len(t, w.Players, 1)
	assert.Equal(t, uint32(2), w.Players[0].ClientID)
}
