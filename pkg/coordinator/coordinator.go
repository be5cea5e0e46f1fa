package coordinator

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/edgeorchestra/orchestrator/pkg/aggregator"
	"github.com/edgeorchestra/orchestrator/pkg/clock"
	"github.com/edgeorchestra/orchestrator/pkg/liveness"
	"github.com/edgeorchestra/orchestrator/pkg/log"
	"github.com/edgeorchestra/orchestrator/pkg/modelstore"
	"github.com/edgeorchestra/orchestrator/pkg/protocol"
	"github.com/edgeorchestra/orchestrator/pkg/registry"
	"github.com/edgeorchestra/orchestrator/pkg/utils"
)

// Coordinator runs one round state machine goroutine per active job
// (spec.md §5: "one task per active job"), single-writer on that job's
// rows. It implements both heartbeat.Telemetry and
// modelstore.GradientSubmitter so cmd/orchestrator can wire it directly
// into those services without either depending on this package.
type Coordinator struct {
	store    Store
	registry *registry.Registry
	tracker  *liveness.Tracker
	models   *modelstore.Store
	clock    clock.Clock
	config   Config

	mu      sync.Mutex
	running map[string]context.CancelFunc

	// evaluator is the optional server-side evaluation seam (spec.md
	// §4.7 "Server-side evaluation"). Nil unless SetEvaluator is called.
	evaluator Evaluator

	lastAggMu sync.RWMutex
	lastAgg   map[string]lastAggregate // job_id -> last aggregate outcome

	modelRoundsMu sync.RWMutex
	modelRounds   map[string]roundKey // global_model_id distributed this round -> (job_id, round_num)

	assignedMu sync.Mutex
	assigned   map[string]bool // device_id currently participating in an open round, any job
}

func New(store Store, reg *registry.Registry, tracker *liveness.Tracker, models *modelstore.Store, clk clock.Clock, cfg Config) *Coordinator {
	return &Coordinator{
		store:       store,
		registry:    reg,
		tracker:     tracker,
		models:      models,
		clock:       clk,
		config:      cfg,
		running:     make(map[string]context.CancelFunc),
		lastAgg:     make(map[string]lastAggregate),
		modelRounds: make(map[string]roundKey),
		assigned:    make(map[string]bool),
	}
}

func (c *Coordinator) assignedSnapshot() map[string]bool {
	c.assignedMu.Lock()
	defer c.assignedMu.Unlock()
	out := make(map[string]bool, len(c.assigned))
	for k := range c.assigned {
		out[k] = true
	}
	return out
}

func (c *Coordinator) markAssigned(ids []string) {
	c.assignedMu.Lock()
	defer c.assignedMu.Unlock()
	for _, id := range ids {
		c.assigned[id] = true
	}
}

func (c *Coordinator) clearAssigned(ids []string) {
	c.assignedMu.Lock()
	defer c.assignedMu.Unlock()
	for _, id := range ids {
		delete(c.assigned, id)
	}
}

// markTraining transitions a round's participants to StatusTraining
// (spec.md §3's device status model) once a round opens.
func (c *Coordinator) markTraining(ctx context.Context, ids []string) {
	for _, id := range ids {
		if err := c.registry.SetStatus(ctx, id, registry.StatusTraining); err != nil {
			log.Warn("coordinator: mark training failed", id, err)
		}
	}
}

// settleParticipantStatus ends a round's participants' training
// status: devices that submitted return to StatusOnline, stragglers
// that never submitted move to StatusError.
func (c *Coordinator) settleParticipantStatus(ctx context.Context, round *Round) {
	for _, id := range round.Participants {
		status := registry.StatusError
		if _, submitted := round.Submissions[id]; submitted {
			status = registry.StatusOnline
		}
		if err := c.registry.SetStatus(ctx, id, status); err != nil {
			log.Warn("coordinator: settle participant status failed", id, err)
		}
	}
}

// HandleDeviceOffline reacts to the stale-device sweeper's
// device_offline event (spec.md §4.4, §4.7's straggler handling):
// frees the device from this coordinator's assigned-device bookkeeping
// immediately, rather than leaving it reserved until its current
// round's deadline or hard deadline naturally elapses, so other jobs
// can select it right away.
func (c *Coordinator) HandleDeviceOffline(deviceID string) {
	c.assignedMu.Lock()
	delete(c.assigned, deviceID)
	c.assignedMu.Unlock()
}

// StartJob creates a new job in round 0 and spawns its round state
// machine task. initialModelID is the seed global model, already
// present in the model store.
func (c *Coordinator) StartJob(ctx context.Context, spec Spec, initialModelID string) error {
	job := Job{
		Spec:          spec,
		Status:        JobStatusRunning,
		CurrentRound:  0,
		GlobalModelID: initialModelID,
	}
	if err := c.store.InsertJob(ctx, job); err != nil {
		return fmt.Errorf("%w: start job: %v", utils.ErrInternal, err)
	}
	c.spawn(job.Spec.JobID)
	return nil
}

// ResumeAll restarts the round state machine for every job persisted
// as still running, per training_coordinator.py's `run` crash-recovery
// path (spec.md §9's global-mutable-state redesign note: state lives
// in the store, not in process memory, so a restart just re-attaches).
func (c *Coordinator) ResumeAll(ctx context.Context) error {
	jobs, err := c.store.ListRunningJobs(ctx)
	if err != nil {
		return fmt.Errorf("%w: resume jobs: %v", utils.ErrInternal, err)
	}
	for _, j := range jobs {
		log.Info("resuming job", j.Spec.JobID, "at round", j.CurrentRound)
		c.spawn(j.Spec.JobID)
	}
	return nil
}

// CancelJob tears down a job's round state machine at its next
// suspension point and marks it cancelled (spec.md §5).
func (c *Coordinator) CancelJob(ctx context.Context, jobID string) error {
	c.mu.Lock()
	cancel, ok := c.running[jobID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: job %s", utils.ErrNotFound, jobID)
	}
	cancel()

	job, found, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("%w: cancel job: %v", utils.ErrInternal, err)
	}
	if !found {
		return fmt.Errorf("%w: job %s", utils.ErrNotFound, jobID)
	}
	job.Status = JobStatusCancelled
	return c.store.UpdateJob(ctx, job)
}

func (c *Coordinator) spawn(jobID string) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.running[jobID] = cancel
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.running, jobID)
			c.mu.Unlock()
		}()
		c.runJob(ctx, jobID)
	}()
}

// lastAggregate is one job's most recently produced aggregate outcome:
// the new model id plus the aggregator's spec.md §4.6 step 4 summary
// metrics (avg_loss, avg_accuracy, delta_norm).
type lastAggregate struct {
	modelID     string
	avgLoss     float64
	avgAccuracy float64
	deltaNorm   float64
}

// LastAggregateMetadata implements heartbeat.Telemetry: a snapshot of
// every job's most recently produced aggregate model id and summary
// metrics, echoed to devices on every heartbeat response per spec.md
// §9's always-echo resolution.
func (c *Coordinator) LastAggregateMetadata() map[string]string {
	c.lastAggMu.RLock()
	defer c.lastAggMu.RUnlock()

	if len(c.lastAgg) == 0 {
		return nil
	}
	out := make(map[string]string, len(c.lastAgg)*4)
	for jobID, agg := range c.lastAgg {
		out[jobID] = agg.modelID
		out[jobID+".avg_loss"] = fmt.Sprintf("%g", agg.avgLoss)
		out[jobID+".avg_accuracy"] = fmt.Sprintf("%g", agg.avgAccuracy)
		out[jobID+".delta_norm"] = fmt.Sprintf("%g", agg.deltaNorm)
	}
	return out
}

// RunningJobCount reports how many job round-state-machine tasks are
// currently active, for pkg/httpapi's /metrics surface.
func (c *Coordinator) RunningJobCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.running)
}

func (c *Coordinator) setLastAggregate(jobID, modelID string, avgLoss, avgAccuracy, deltaNorm float64) {
	c.lastAggMu.Lock()
	defer c.lastAggMu.Unlock()
	c.lastAgg[jobID] = lastAggregate{modelID: modelID, avgLoss: avgLoss, avgAccuracy: avgAccuracy, deltaNorm: deltaNorm}
}

// runJob drives one job's round state machine until it reaches a
// terminal job status or ctx is cancelled.
func (c *Coordinator) runJob(ctx context.Context, jobID string) {
	for {
		job, ok, err := c.store.GetJob(ctx, jobID)
		if err != nil || !ok {
			log.Error("coordinator: job vanished", jobID, err)
			return
		}
		if job.Status != JobStatusRunning {
			return
		}
		if job.CurrentRound >= job.Spec.TargetRounds {
			job.Status = JobStatusCompleted
			c.store.UpdateJob(ctx, job)
			return
		}

		status := c.runRound(ctx, &job)
		if err := ctx.Err(); err != nil {
			return
		}

		switch status {
		case RoundClosed:
			c.store.UpdateJob(ctx, job)
			continue
		case RoundAborted:
			job.Status = JobStatusFailed
			c.store.UpdateJob(ctx, job)
			return
		default:
			job.Status = JobStatusFailed
			c.store.UpdateJob(ctx, job)
			return
		}
	}
}

// runRound executes one round to completion (forming through
// closed/aborted), mutating job in place on success and returning the
// round's terminal status.
func (c *Coordinator) runRound(ctx context.Context, job *Job) RoundStatus {
	roundNum := job.CurrentRound
	lr := cosineLR(job.Spec.LearningRate, roundNum, job.Spec.TargetRounds)

	for attempt := 0; attempt <= c.config.RoundMaxRetries; attempt++ {
		round, err := c.formRound(ctx, job, roundNum, lr)
		if err != nil {
			log.Warn("coordinator: round forming failed", job.Spec.JobID, roundNum, err)
			return RoundAborted
		}
		if round == nil {
			// selection_max_attempts exhausted without quorum.
			return RoundAborted
		}

		status := c.driveOpenRound(ctx, job, round)
		if status == RoundClosed {
			return RoundClosed
		}

		log.Warn("coordinator: round aborted, retrying", job.Spec.JobID, roundNum, "attempt", attempt, "lr", lr)
		if ctx.Err() != nil {
			return RoundAborted
		}
	}
	return RoundAborted
}

// formRound selects participants for a round, retrying every
// selection_backoff up to selection_max_attempts (spec.md §4.7's
// `forming` state). Returns a nil round (not an error) once attempts
// are exhausted without reaching quorum.
func (c *Coordinator) formRound(ctx context.Context, job *Job, roundNum uint32, lr float64) (*Round, error) {
	if _, err := aggregator.GetArchitecture(job.Spec.Architecture); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < c.config.SelectionMaxAttempts; attempt++ {
		candidates, err := c.registry.List(ctx, registry.Filter{Status: []registry.Status{registry.StatusOnline}})
		if err != nil {
			return nil, err
		}

		selected := selectParticipants(candidates, c.tracker, c.config.EligibilityConfig, job.Spec.RequiredFrameworks, c.assignedSnapshot(), job.Spec.Quorum*2)
		if len(selected) >= job.Spec.Quorum {
			now := c.clock.Now()
			round := &Round{
				JobID:         job.Spec.JobID,
				RoundNum:      roundNum,
				Status:        RoundOpen,
				Participants:  deviceIDs(selected),
				Submissions:   make(map[string]Submission),
				GlobalModelID: job.GlobalModelID,
				Deadline:      now.Add(c.config.RoundTimeout),
				HardDeadline:  now.Add(c.config.RoundTimeout + c.config.RoundGrace),
				Attempt:       attempt,
			}
			if err := c.store.InsertRound(ctx, *round); err != nil {
				return nil, err
			}
			c.markAssigned(round.Participants)
			c.markTraining(ctx, round.Participants)
			c.modelRoundsMu.Lock()
			c.modelRounds[job.GlobalModelID] = roundKey{jobID: job.Spec.JobID, roundNum: roundNum}
			c.modelRoundsMu.Unlock()
			for i, id := range round.Participants {
				c.tracker.PushCommand(id, protocol.Command{
					Type: protocol.CommandStartTraining,
					Parameters: map[string]string{
						"job_id":          job.Spec.JobID,
						"model_id":        job.GlobalModelID,
						"round":           fmt.Sprintf("%d", roundNum),
						"partition_index": fmt.Sprintf("%d", i),
						"partition_total": fmt.Sprintf("%d", job.Spec.PartitionTotal),
						"architecture":    job.Spec.Architecture,
						"learning_rate":   fmt.Sprintf("%g", lr),
					},
				})
			}
			return round, nil
		}

		if attempt+1 >= c.config.SelectionMaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.clock.After(c.config.SelectionBackoff):
		}
	}

	return nil, nil
}

// driveOpenRound waits for submissions against round's deadline/hard
// deadline (spec.md §4.7's `open → aggregating` transition), then
// aggregates. On success it mutates job's CurrentRound/GlobalModelID
// and returns RoundClosed; otherwise RoundAborted.
func (c *Coordinator) driveOpenRound(ctx context.Context, job *Job, round *Round) RoundStatus {
	pollInterval := c.config.RoundTimeout / 20
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	for {
		live, ok, err := c.store.GetRound(ctx, round.JobID, round.RoundNum)
		if err == nil && ok {
			*round = live
		}

		now := c.clock.Now()
		allSubmitted := len(round.Submissions) >= len(round.Participants)
		quorumMet := len(round.Submissions) >= job.Spec.Quorum

		switch {
		case allSubmitted:
			return c.aggregateRound(ctx, job, round)
		case quorumMet && !now.Before(round.Deadline):
			return c.aggregateRound(ctx, job, round)
		case !now.Before(round.HardDeadline):
			if quorumMet {
				return c.aggregateRound(ctx, job, round)
			}
			c.clearAssigned(round.Participants)
			c.settleParticipantStatus(ctx, round)
			round.Status = RoundAborted
			c.store.UpdateRound(ctx, *round)
			return RoundAborted
		}

		select {
		case <-ctx.Done():
			c.clearAssigned(round.Participants)
			c.settleParticipantStatus(ctx, round)
			return RoundAborted
		case <-c.clock.After(pollInterval):
		}
	}
}

func (c *Coordinator) aggregateRound(ctx context.Context, job *Job, round *Round) RoundStatus {
	defer c.clearAssigned(round.Participants)
	defer c.settleParticipantStatus(ctx, round)

	round.Status = RoundAggregating
	c.store.UpdateRound(ctx, *round)

	arch, err := aggregator.GetArchitecture(job.Spec.Architecture)
	if err != nil {
		log.Error("coordinator: unknown architecture", job.Spec.Architecture, err)
		round.Status = RoundAborted
		c.store.UpdateRound(ctx, *round)
		return RoundAborted
	}

	submissions := make([]aggregator.Submission, 0, len(round.Submissions))
	for _, s := range round.Submissions {
		delta, err := aggregator.DecodeGradients(s.Gradients)
		if err != nil {
			log.Warn("coordinator: dropping corrupt submission", s.DeviceID, err)
			continue
		}
		if err := arch.ValidateDelta(delta); err != nil {
			log.Warn("coordinator: dropping submission with mismatched layers", s.DeviceID, err)
			continue
		}
		submissions = append(submissions, aggregator.Submission{
			DeviceID:   s.DeviceID,
			NumSamples: int64(s.NumSamples),
			Delta:      delta,
			Metrics:    s.Metrics,
		})
	}

	if len(submissions) < job.Spec.Quorum {
		round.Status = RoundAborted
		c.store.UpdateRound(ctx, *round)
		return RoundAborted
	}

	agg, err := aggregator.FedAvg(submissions)
	if err != nil {
		log.Error("coordinator: fedavg failed", job.Spec.JobID, round.RoundNum, err)
		round.Status = RoundAborted
		c.store.UpdateRound(ctx, *round)
		return RoundAborted
	}
	avgDelta := agg.Delta

	prevReader, err := c.models.Open(round.GlobalModelID)
	if err != nil {
		round.Status = RoundAborted
		c.store.UpdateRound(ctx, *round)
		return RoundAborted
	}
	prevBytes, err := io.ReadAll(prevReader)
	prevReader.Close()
	if err != nil {
		round.Status = RoundAborted
		c.store.UpdateRound(ctx, *round)
		return RoundAborted
	}
	prev, err := aggregator.DecodeGradients(prevBytes)
	if err != nil {
		round.Status = RoundAborted
		c.store.UpdateRound(ctx, *round)
		return RoundAborted
	}

	newGlobal, err := aggregator.ApplyDelta(prev, avgDelta)
	if err != nil {
		round.Status = RoundAborted
		c.store.UpdateRound(ctx, *round)
		return RoundAborted
	}

	modelID, err := c.models.Put(aggregator.EncodeGradients(newGlobal))
	if err != nil {
		round.Status = RoundAborted
		c.store.UpdateRound(ctx, *round)
		return RoundAborted
	}
	c.models.Pin(modelID, job.Spec.JobID)
	if round.GlobalModelID != "" {
		c.models.Unpin(round.GlobalModelID, job.Spec.JobID)
	}

	var serverEvalLoss, serverEvalAccuracy float64
	if c.evaluator != nil {
		serverEvalLoss, serverEvalAccuracy, err = c.evaluator.Evaluate(ctx, job.Spec.Architecture, newGlobal)
		if err != nil {
			log.Warn("coordinator: server-side evaluation failed", job.Spec.JobID, round.RoundNum, err)
			serverEvalLoss, serverEvalAccuracy = 0, 0
		}
	}

	for _, p := range round.Participants {
		if _, submitted := round.Submissions[p]; submitted {
			c.tracker.PushCommand(p, protocol.Command{Type: protocol.CommandStopTraining})
		}
	}

	round.AggregateModelID = modelID
	round.Status = RoundClosed
	c.store.UpdateRound(ctx, *round)

	job.GlobalModelID = modelID
	job.CurrentRound = round.RoundNum + 1
	job.RoundMetrics = append(job.RoundMetrics, RoundMetric{
		RoundNum:         round.RoundNum,
		NumSubmissions:   len(submissions),
		LearningRate:     cosineLR(job.Spec.LearningRate, round.RoundNum, job.Spec.TargetRounds),
		AggregateModelID: modelID,
		AvgLoss:          agg.AvgLoss,
		AvgAccuracy:      agg.AvgAccuracy,
		DeltaNorm:        agg.DeltaNorm,
		ServerEvalLoss:     serverEvalLoss,
		ServerEvalAccuracy: serverEvalAccuracy,
	})
	c.setLastAggregate(job.Spec.JobID, modelID, agg.AvgLoss, agg.AvgAccuracy, agg.DeltaNorm)

	return RoundClosed
}

// SubmitGradients implements modelstore.GradientSubmitter: validates
// and records one device's submission for the job's current open
// round (spec.md §4.7's idempotence rule: duplicate submissions for
// the same (job_id, round) are rejected with already_submitted).
func (c *Coordinator) SubmitGradients(ctx context.Context, req *protocol.SubmitGradientsRequest) (*protocol.SubmitGradientsResponse, error) {
	c.modelRoundsMu.RLock()
	key, known := c.modelRounds[req.ModelId]
	c.modelRoundsMu.RUnlock()
	if !known || key.roundNum != req.TrainingRound {
		return &protocol.SubmitGradientsResponse{Accepted: false, Reason: "no open round for model"}, nil
	}

	round, ok, err := c.store.GetRound(ctx, key.jobID, key.roundNum)
	if err != nil {
		return nil, fmt.Errorf("%w: submit gradients: %v", utils.ErrInternal, err)
	}
	if !ok || round.Status != RoundOpen {
		return &protocol.SubmitGradientsResponse{Accepted: false, Reason: "no open round"}, nil
	}
	if _, dup := round.Submissions[req.DeviceId]; dup {
		return nil, fmt.Errorf("%w: device %s round %d", utils.ErrAlreadySubmitted, req.DeviceId, req.TrainingRound)
	}
	if !containsDevice(round.Participants, req.DeviceId) {
		return &protocol.SubmitGradientsResponse{Accepted: false, Reason: "not a participant"}, nil
	}

	round.Submissions[req.DeviceId] = Submission{
		DeviceID:   req.DeviceId,
		NumSamples: req.NumSamples,
		Gradients:  req.Gradients,
		Metrics:    req.Metrics,
		ReceivedAt: c.clock.Now(),
	}
	if err := c.store.UpdateRound(ctx, round); err != nil {
		return nil, fmt.Errorf("%w: submit gradients: %v", utils.ErrInternal, err)
	}

	return &protocol.SubmitGradientsResponse{Accepted: true}, nil
}

func deviceIDs(devices []registry.Device) []string {
	ids := make([]string, len(devices))
	for i, d := range devices {
		ids[i] = d.DeviceID
	}
	sort.Strings(ids)
	return ids
}

func containsDevice(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

