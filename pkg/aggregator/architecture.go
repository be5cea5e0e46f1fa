package aggregator

import (
	"fmt"
	"sort"

	"github.com/edgeorchestra/orchestrator/pkg/utils"
)

// Architecture describes one supported on-device model, grounded on
// original_source/orchestrator/services/model_registry.py's
// ARCHITECTURES table. spec.md treats the model architecture as opaque
// bytes; this registry is the supplemented detail needed to validate
// an incoming gradient submission's layer shapes against the job's
// declared architecture.
type Architecture struct {
	Key         string
	Name        string
	InputShape  []int
	NumClasses  int
	LayerNames  []string
	LayerShapes map[string][]int
}

var architectures = map[string]Architecture{
	"mnist": {
		Key:        "mnist",
		Name:       "MNIST Classifier (784→128→10)",
		InputShape: []int{1, 28, 28},
		NumClasses: 10,
		LayerNames: []string{"hidden_weight", "hidden_bias", "output_weight", "output_bias"},
		LayerShapes: map[string][]int{
			"hidden_weight": {128, 784},
			"hidden_bias":   {128},
			"output_weight": {10, 128},
			"output_bias":   {10},
		},
	},
	"cifar10": {
		Key:        "cifar10",
		Name:       "CIFAR-10 Classifier (3072→256→128→10)",
		InputShape: []int{3, 32, 32},
		NumClasses: 10,
		LayerNames: []string{
			"hidden1_weight", "hidden1_bias",
			"hidden2_weight", "hidden2_bias",
			"output_weight", "output_bias",
		},
		LayerShapes: map[string][]int{
			"hidden1_weight": {256, 3072},
			"hidden1_bias":   {256},
			"hidden2_weight": {128, 256},
			"hidden2_bias":   {128},
			"output_weight":  {10, 128},
			"output_bias":    {10},
		},
	},
}

// GetArchitecture looks up a registered architecture by key.
func GetArchitecture(key string) (Architecture, error) {
	arch, ok := architectures[key]
	if !ok {
		return Architecture{}, fmt.Errorf("%w: unknown architecture %q", utils.ErrNotFound, key)
	}
	return arch, nil
}

// ListArchitectures returns every registered architecture, ordered by
// key for stable output.
func ListArchitectures() []Architecture {
	keys := make([]string, 0, len(architectures))
	for k := range architectures {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]Architecture, 0, len(keys))
	for _, k := range keys {
		result = append(result, architectures[k])
	}
	return result
}

// shapeElementCount multiplies a layer's dimensions into a flat element
// count, for validating a decoded layer's Values length.
func shapeElementCount(shape []int) int {
	count := 1
	for _, d := range shape {
		count *= d
	}
	return count
}

// ValidateDelta checks that a decoded weight delta's layers match the
// architecture's expected names and flattened sizes.
func (a Architecture) ValidateDelta(delta WeightDelta) error {
	for _, layer := range delta.Layers {
		shape, ok := a.LayerShapes[layer.Name]
		if !ok {
			return fmt.Errorf("%w: architecture %q has no layer %q", utils.ErrPrecondition, a.Key, layer.Name)
		}
		if want := shapeElementCount(shape); want != len(layer.Values) {
			return fmt.Errorf("%w: layer %q expects %d elements, got %d", utils.ErrPrecondition, layer.Name, want, len(layer.Values))
		}
	}
	return nil
}
