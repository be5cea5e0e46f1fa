package coordinator

import (
	"context"

	"github.com/edgeorchestra/orchestrator/pkg/aggregator"
)

// Evaluator optionally scores a freshly aggregated global model against
// a held-out test set, grounded on server_evaluator.py's
// ServerEvaluator.evaluate (a pure-numpy forward pass over a cached
// MNIST/CIFAR-10 test split). Not configured by default: the test-set
// fetch/cache it depends on has no Go-native equivalent anywhere in the
// examples pack, and cmd/orchestrator does not wire one in; SetEvaluator
// is how a caller that has one installs it. A nil Evaluator is a no-op — aggregateRound just skips
// the server-side eval fields on RoundMetric.
type Evaluator interface {
	Evaluate(ctx context.Context, architecture string, weights aggregator.WeightDelta) (loss, accuracy float64, err error)
}

// SetEvaluator wires an optional server-side evaluator into the round
// state machine. Must be called before StartJob/ResumeAll to affect
// already-running jobs.
func (c *Coordinator) SetEvaluator(e Evaluator) {
	c.evaluator = e
}
