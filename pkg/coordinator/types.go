// Package coordinator is the training job coordinator (spec.md §4.7):
// the round state machine that selects participants, drives a round
// from forming through aggregation, and advances or retries a job.
// Grounded on task.go's status-transition rules (generalized from
// build tasks to training rounds) and
// original_source/orchestrator/services/training_coordinator.py for
// the crash-recovery resume, cosine-decay learning-rate schedule, and
// round/job retry policy the distilled spec left implicit.
package coordinator

import "time"

// JobStatus mirrors a job's lifecycle (spec.md §4.7 + supplemented
// cancellation from training_coordinator.py's stop_job).
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// RoundStatus is one round's state machine position (spec.md §4.7).
type RoundStatus string

const (
	RoundForming     RoundStatus = "forming"
	RoundOpen        RoundStatus = "open"
	RoundAggregating RoundStatus = "aggregating"
	RoundClosed      RoundStatus = "closed"
	RoundAborted     RoundStatus = "aborted"
)

// IsTerminal reports whether a round has left the active state
// machine, adapted from protocol's RoundStatus.IsTerminal pattern
// (itself adapted from the teacher's task.go status predicates).
func (s RoundStatus) IsTerminal() bool {
	return s == RoundClosed || s == RoundAborted
}

// Spec is a job's immutable configuration, set at StartJob time.
type Spec struct {
	JobID          string
	Architecture   string
	TargetRounds   uint32
	Quorum         int
	PartitionTotal uint32

	// RequiredFrameworks is the eligibility predicate's
	// capabilities.supported_frameworks ⊇ {required} clause (spec.md
	// §4.7).
	RequiredFrameworks []string

	// LearningRate is the base rate the cosine-decay schedule anchors
	// to (training_coordinator.py's `learning_rate`).
	LearningRate float64
}

// Config holds the tunables spec.md §6 lists under "Configuration".
// Zero values are replaced by DefaultConfig's defaults.
type Config struct {
	RoundTimeout         time.Duration
	RoundGrace           time.Duration
	SelectionBackoff     time.Duration
	SelectionMaxAttempts int
	RoundMaxRetries      int
	EligibilityConfig    EligibilityConfig
}

// DefaultConfig returns spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		RoundTimeout:         300 * time.Second,
		RoundGrace:           60 * time.Second,
		SelectionBackoff:     15 * time.Second,
		SelectionMaxAttempts: 8,
		RoundMaxRetries:      3,
		EligibilityConfig: EligibilityConfig{
			BatteryFloor:   0.30,
			ThermalCeiling: 0.70,
		},
	}
}

// Round is one federated-averaging round's mutable state.
type Round struct {
	JobID            string
	RoundNum         uint32
	Status           RoundStatus
	Participants     []string
	Submissions      map[string]Submission
	GlobalModelID    string
	AggregateModelID string
	Deadline         time.Time
	HardDeadline     time.Time
	Attempt          int
}

// Submission is one device's accepted gradient upload for a round.
type Submission struct {
	DeviceID   string
	NumSamples uint32
	Gradients  []byte
	Metrics    map[string]float64
	ReceivedAt time.Time
}

// Job is a training job's full state, persisted across rounds and
// (via pkg/store) across process restarts for crash recovery.
type Job struct {
	Spec          Spec
	Status        JobStatus
	CurrentRound  uint32
	GlobalModelID string
	RoundMetrics  []RoundMetric
}

// RoundMetric records one completed round's outcome, mirroring
// training_coordinator.py's round_metrics accumulation, used to
// resume a job's history after a crash.
type RoundMetric struct {
	RoundNum         uint32
	NumSubmissions   int
	LearningRate     float64
	AggregateModelID string

	// AvgLoss, AvgAccuracy, and DeltaNorm are the aggregator's
	// sample-weighted-mean and L2-norm summary metrics (spec.md §4.6
	// step 4).
	AvgLoss     float64
	AvgAccuracy float64
	DeltaNorm   float64

	// ServerEvalLoss and ServerEvalAccuracy are only populated when a
	// coordinator.Evaluator is configured; zero otherwise.
	ServerEvalLoss     float64
	ServerEvalAccuracy float64
}
