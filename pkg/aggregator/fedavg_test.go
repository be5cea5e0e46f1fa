package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFedAvgWeightsBySampleCount(t *testing.T) {
	submissions := []Submission{
		{
			DeviceID:   "device-b",
			NumSamples: 30,
			Delta:      WeightDelta{Layers: []Layer{{Name: "w", Values: []float32{3}}}},
			Metrics:    map[string]float64{"loss": 0.6, "accuracy": 0.9},
		},
		{
			DeviceID:   "device-a",
			NumSamples: 10,
			Delta:      WeightDelta{Layers: []Layer{{Name: "w", Values: []float32{1}}}},
			Metrics:    map[string]float64{"loss": 1.0, "accuracy": 0.5},
		},
	}

	result, err := FedAvg(submissions)
	require.NoError(t, err)
	require.Len(t, result.Delta.Layers, 1)

	// (10*1 + 30*3) / 40 = 2.5
	assert.InDelta(t, 2.5, result.Delta.Layers[0].Values[0], 1e-6)
	// (10*1.0 + 30*0.6) / 40 = 0.7
	assert.InDelta(t, 0.7, result.AvgLoss, 1e-6)
	// (10*0.5 + 30*0.9) / 40 = 0.8
	assert.InDelta(t, 0.8, result.AvgAccuracy, 1e-6)
	assert.InDelta(t, 2.5, result.DeltaNorm, 1e-6)
}

func TestFedAvgIsOrderIndependent(t *testing.T) {
	a := Submission{DeviceID: "aaa", NumSamples: 5, Delta: WeightDelta{Layers: []Layer{{Name: "w", Values: []float32{10}}}}}
	b := Submission{DeviceID: "bbb", NumSamples: 15, Delta: WeightDelta{Layers: []Layer{{Name: "w", Values: []float32{20}}}}}

	r1, err := FedAvg([]Submission{a, b})
	require.NoError(t, err)
	r2, err := FedAvg([]Submission{b, a})
	require.NoError(t, err)

	assert.Equal(t, r1.Delta.Layers[0].Values[0], r2.Delta.Layers[0].Values[0])
}

func TestFedAvgRejectsEmptySubmissions(t *testing.T) {
	_, err := FedAvg(nil)
	assert.Error(t, err)
}

func TestFedAvgRejectsShapeMismatch(t *testing.T) {
	submissions := []Submission{
		{DeviceID: "a", NumSamples: 1, Delta: WeightDelta{Layers: []Layer{{Name: "w", Values: []float32{1, 2}}}}},
		{DeviceID: "b", NumSamples: 1, Delta: WeightDelta{Layers: []Layer{{Name: "w", Values: []float32{1}}}}},
	}
	_, err := FedAvg(submissions)
	assert.Error(t, err)
}

func TestApplyDeltaAddsToBaseWeights(t *testing.T) {
	base := WeightDelta{Layers: []Layer{
		{Name: "w", Values: []float32{1, 2, 3}},
		{Name: "unchanged", Values: []float32{9}},
	}}
	delta := WeightDelta{Layers: []Layer{
		{Name: "w", Values: []float32{0.5, -0.5, 1}},
	}}

	result, err := ApplyDelta(base, delta)
	require.NoError(t, err)

	assert.Equal(t, []float32{1.5, 1.5, 4}, result.Layers[0].Values)
	assert.Equal(t, []float32{9}, result.Layers[1].Values)
}
