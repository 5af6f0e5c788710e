package mechanics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStress(t *testing.T) {
	assert.InDelta(t, 50.0, Stress(100, 2), 1e-9)
	assert.Zero(t, Stress(100, 0))
	assert.Zero(t, Stress(100, -1))
	// Sign passes through: compression is negative.
	assert.InDelta(t, -25.0, Stress(-50, 2), 1e-9)
}

func TestDisplacement(t *testing.T) {
	// 1000 N over a 2 m bar, 0.01 m^2 section, 200 GPa modulus.
	got := Displacement(1000, 2, 0.01, 200e9)
	assert.InDelta(t, 1e-6, got, 1e-12)

	assert.Zero(t, Displacement(1000, 2, 0, 200e9))
	assert.Zero(t, Displacement(1000, 2, 0.01, 0))
	assert.Zero(t, Displacement(1000, 2, -0.01, -200e9))
}
