package mathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec2Arithmetic(t *testing.T) {
	a := Vec2{X: 1, Y: 2}
	b := Vec2{X: 3, Y: -1}

	assert.Equal(t, Vec2{X: 4, Y: 1}, a.Add(b))
	assert.Equal(t, Vec2{X: -2, Y: 3}, a.Sub(b))
	assert.Equal(t, Vec2{X: 2, Y: 4}, a.Mul(2))
	assert.Equal(t, float32(1), a.Dot(b))
}

func TestVec2Normalize(t *testing.T) {
	v := Vec2{X: 3, Y: 4}
	n := v.Normalize()
	assert.InDelta(t, 1.0, float64(n.Magnitude()), 1e-6)

	assert.Equal(t, Vec2{}, Vec2{}.Normalize())
}

func TestLerp(t *testing.T) {
	a := Vec2{X: 0, Y: 0}
	b := Vec2{X: 10, Y: 20}

	assert.Equal(t, a, Lerp(a, b, 0))
	assert.Equal(t, b, Lerp(a, b, 1))
	assert.Equal(t, Vec2{X: 5, Y: 10}, Lerp(a, b, 0.5))
}

func TestClamp(t *testing.T) {
	min := Vec2{X: 0, Y: 0}
	max := Vec2{X: 100, Y: 100}

	assert.Equal(t, Vec2{X: 0, Y: 0}, Clamp(Vec2{X: -5, Y: -5}, min, max))
	assert.Equal(t, Vec2{X: 100, Y: 100}, Clamp(Vec2{X: 500, Y: 500}, min, max))
	assert.Equal(t, Vec2{X: 50, Y: 50}, Clamp(Vec2{X: 50, Y: 50}, min, max))
}
