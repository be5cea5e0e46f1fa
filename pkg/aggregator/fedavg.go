package aggregator

import (
	"fmt"
	"math"
	"sort"

	"github.com/edgeorchestra/orchestrator/pkg/utils"
)

// Submission is one device's decoded gradient contribution to a round.
type Submission struct {
	DeviceID   string
	NumSamples int64
	Delta      WeightDelta

	// Metrics is the device's self-reported training metrics for the
	// round, keyed "loss"/"accuracy" (spec.md §4.6 step 4). Missing keys
	// contribute zero to the sample-weighted mean.
	Metrics map[string]float64
}

// AggregateResult is FedAvg's full output: the averaged delta plus the
// summary metrics spec.md §4.6 step 4 requires the aggregator return
// alongside `aggregate_model_id`.
type AggregateResult struct {
	Delta WeightDelta

	// AvgLoss and AvgAccuracy are sample-weighted means of the
	// submissions' self-reported "loss"/"accuracy" metrics.
	AvgLoss     float64
	AvgAccuracy float64

	// DeltaNorm is the L2 norm of the averaged delta, concatenated
	// across every layer.
	DeltaNorm float64
}

// FedAvg computes the sample-weighted average of per-device weight
// deltas: Δ̄_l = Σ(n_i·Δ_i,l) / Σn_i, grounded on fed_avg.py's
// aggregate_gradients. Accumulation happens in float64 regardless of
// the float32/float16 wire precision, to keep the running sum stable
// across many devices; the result is narrowed back to float32.
//
// Submissions are summed in lexicographic device_id order rather than
// arrival order, so that a re-run of the same submission set is
// bit-for-bit reproducible no matter which device's gradients arrived
// first over the network.
func FedAvg(submissions []Submission) (AggregateResult, error) {
	if len(submissions) == 0 {
		return AggregateResult{}, fmt.Errorf("%w: no submissions to aggregate", utils.ErrPrecondition)
	}

	ordered := make([]Submission, len(submissions))
	copy(ordered, submissions)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].DeviceID < ordered[j].DeviceID })

	var totalSamples int64
	for _, s := range ordered {
		totalSamples += s.NumSamples
	}
	if totalSamples == 0 {
		return AggregateResult{}, fmt.Errorf("%w: total sample count is zero", utils.ErrPrecondition)
	}

	order := make([]string, 0)
	accum := make(map[string][]float64)
	var avgLoss, avgAccuracy float64

	for _, s := range ordered {
		weight := float64(s.NumSamples) / float64(totalSamples)

		avgLoss += s.Metrics["loss"] * weight
		avgAccuracy += s.Metrics["accuracy"] * weight

		for _, layer := range s.Delta.Layers {
			acc, ok := accum[layer.Name]
			if !ok {
				acc = make([]float64, len(layer.Values))
				accum[layer.Name] = acc
				order = append(order, layer.Name)
			}
			if len(acc) != len(layer.Values) {
				return AggregateResult{}, fmt.Errorf("%w: layer %q shape mismatch: %d vs %d", utils.ErrPrecondition, layer.Name, len(acc), len(layer.Values))
			}
			for i, v := range layer.Values {
				acc[i] += float64(v) * weight
			}
		}
	}

	delta := WeightDelta{Layers: make([]Layer, 0, len(order))}
	var sumSquares float64
	for _, name := range order {
		acc := accum[name]
		values := make([]float32, len(acc))
		for i, v := range acc {
			values[i] = float32(v)
			sumSquares += v * v
		}
		delta.Layers = append(delta.Layers, Layer{Name: name, Values: values})
	}

	return AggregateResult{
		Delta:       delta,
		AvgLoss:     avgLoss,
		AvgAccuracy: avgAccuracy,
		DeltaNorm:   math.Sqrt(sumSquares),
	}, nil
}

// ApplyDelta applies an averaged weight delta to a base set of weights:
// new_weight = old_weight + averaged_delta, per fed_avg.py's
// apply_gradients. Layers the delta doesn't mention pass through
// unchanged.
func ApplyDelta(weights WeightDelta, delta WeightDelta) (WeightDelta, error) {
	deltaByName := make(map[string]Layer, len(delta.Layers))
	for _, l := range delta.Layers {
		deltaByName[l.Name] = l
	}

	result := WeightDelta{Layers: make([]Layer, len(weights.Layers))}
	for i, w := range weights.Layers {
		d, ok := deltaByName[w.Name]
		if !ok {
			result.Layers[i] = w
			continue
		}
		if len(d.Values) != len(w.Values) {
			return WeightDelta{}, fmt.Errorf("%w: layer %q shape mismatch: %d vs %d", utils.ErrPrecondition, w.Name, len(w.Values), len(d.Values))
		}

		values := make([]float32, len(w.Values))
		for j, v := range w.Values {
			values[j] = v + d.Values[j]
		}
		result.Layers[i] = Layer{Name: w.Name, Values: values}
	}

	return result, nil
}
