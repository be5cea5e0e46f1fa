package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetArchitectureKnown(t *testing.T) {
	arch, err := GetArchitecture("mnist")
	require.NoError(t, err)
	assert.Equal(t, 10, arch.NumClasses)
	assert.Equal(t, []int{128, 784}, arch.LayerShapes["hidden_weight"])
}

func TestGetArchitectureUnknown(t *testing.T) {
	_, err := GetArchitecture("resnet50")
	assert.Error(t, err)
}

func TestListArchitecturesStableOrder(t *testing.T) {
	list := ListArchitectures()
	require.Len(t, list, 2)
	assert.Equal(t, "cifar10", list[0].Key)
	assert.Equal(t, "mnist", list[1].Key)
}

func TestValidateDeltaAcceptsMatchingShapes(t *testing.T) {
	arch, err := GetArchitecture("mnist")
	require.NoError(t, err)

	delta := WeightDelta{Layers: []Layer{
		{Name: "hidden_bias", Values: make([]float32, 128)},
	}}
	assert.NoError(t, arch.ValidateDelta(delta))
}

func TestValidateDeltaRejectsWrongElementCount(t *testing.T) {
	arch, err := GetArchitecture("mnist")
	require.NoError(t, err)

	delta := WeightDelta{Layers: []Layer{
		{Name: "hidden_bias", Values: make([]float32, 64)},
	}}
	assert.Error(t, arch.ValidateDelta(delta))
}

func TestValidateDeltaRejectsUnknownLayer(t *testing.T) {
	arch, err := GetArchitecture("mnist")
	require.NoError(t, err)

	delta := WeightDelta{Layers: []Layer{{Name: "nonexistent", Values: []float32{1}}}}
	assert.Error(t, arch.ValidateDelta(delta))
}
