package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloat16RoundTripCommonValues(t *testing.T) {
	values := []float32{0, 1, -1, 0.5, -0.5, 2, 100, -100, 3.14, 0.001, 65504, -65504}

	for _, v := range values {
		h := float32ToFloat16(v)
		got := float16ToFloat32(h)
		assert.InDeltaf(t, float64(v), float64(got), 0.01*float64(abs32(v))+1e-3, "round trip for %v", v)
	}
}

func TestFloat16ZeroIsExact(t *testing.T) {
	assert.Equal(t, float32(0), float16ToFloat32(float32ToFloat16(0)))
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
