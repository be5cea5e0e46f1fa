package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineLRStartsAtBaseRate(t *testing.T) {
	assert.InDelta(t, 0.1, cosineLR(0.1, 0, 10), 1e-9)
}

func TestCosineLRDecaysToFloor(t *testing.T) {
	lr := cosineLR(0.1, 10, 10)
	assert.InDelta(t, 0.001, lr, 1e-9)
}

func TestCosineLRIsMonotonicDecreasing(t *testing.T) {
	prev := cosineLR(0.1, 0, 10)
	for round := uint32(1); round <= 10; round++ {
		lr := cosineLR(0.1, round, 10)
		assert.LessOrEqual(t, lr, prev)
		prev = lr
	}
}

func TestCosineLRHandlesZeroRounds(t *testing.T) {
	assert.Equal(t, 0.1, cosineLR(0.1, 0, 0))
}
