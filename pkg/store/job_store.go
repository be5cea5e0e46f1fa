package store

import (
	"context"
	"encoding/json"

	"github.com/edgeorchestra/orchestrator/pkg/coordinator"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobStore implements coordinator.Store over the jobs/rounds/
// submissions tables.
type JobStore struct{ db *gorm.DB }

func NewJobStore(db *gorm.DB) *JobStore { return &JobStore{db: db} }

func (s *JobStore) InsertJob(ctx context.Context, j coordinator.Job) error {
	row, err := toJobRow(j)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *JobStore) UpdateJob(ctx context.Context, j coordinator.Job) error {
	row, err := toJobRow(j)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Where("job_id = ?", j.Spec.JobID).
		Select("status", "current_round", "global_model_id", "round_metrics").
		Updates(&row).Error
}

func (s *JobStore) GetJob(ctx context.Context, jobID string) (coordinator.Job, bool, error) {
	var row jobRow
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return coordinator.Job{}, false, nil
	}
	if err != nil {
		return coordinator.Job{}, false, err
	}
	j, err := fromJobRow(row)
	return j, true, err
}

func (s *JobStore) ListRunningJobs(ctx context.Context) ([]coordinator.Job, error) {
	var rows []jobRow
	if err := s.db.WithContext(ctx).Where("status = ?", string(coordinator.JobStatusRunning)).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]coordinator.Job, 0, len(rows))
	for _, row := range rows {
		j, err := fromJobRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

func (s *JobStore) InsertRound(ctx context.Context, r coordinator.Round) error {
	row, err := toRoundRow(r)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}, {Name: "round_num"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "participants", "global_model_id", "aggregate_model_id", "deadline", "hard_deadline", "attempt"}),
	}).Create(&row).Error; err != nil {
		return err
	}
	return s.replaceSubmissions(ctx, r)
}

func (s *JobStore) UpdateRound(ctx context.Context, r coordinator.Round) error {
	row, err := toRoundRow(r)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Where("job_id = ? AND round_num = ?", r.JobID, r.RoundNum).
		Select("status", "participants", "global_model_id", "aggregate_model_id", "deadline", "hard_deadline", "attempt").
		Updates(&row).Error; err != nil {
		return err
	}
	return s.replaceSubmissions(ctx, r)
}

// replaceSubmissions inserts every in-memory submission that has no row
// yet; a submission whose (job_id, round_num, device_id) row already
// exists is left untouched -- the DB mirror of submit_training's
// idempotence rule.
func (s *JobStore) replaceSubmissions(ctx context.Context, r coordinator.Round) error {
	if len(r.Submissions) == 0 {
		return nil
	}
	rows := make([]submissionRow, 0, len(r.Submissions))
	for deviceID, sub := range r.Submissions {
		metrics, err := json.Marshal(sub.Metrics)
		if err != nil {
			return err
		}
		rows = append(rows, submissionRow{
			JobID:      r.JobID,
			RoundNum:   r.RoundNum,
			DeviceID:   deviceID,
			NumSamples: sub.NumSamples,
			Gradients:  sub.Gradients,
			Metrics:    metrics,
			ReceivedAt: sub.ReceivedAt,
		})
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}, {Name: "round_num"}, {Name: "device_id"}},
		DoNothing: true,
	}).Create(&rows).Error
}

func (s *JobStore) GetRound(ctx context.Context, jobID string, roundNum uint32) (coordinator.Round, bool, error) {
	var row roundRow
	err := s.db.WithContext(ctx).Where("job_id = ? AND round_num = ?", jobID, roundNum).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return coordinator.Round{}, false, nil
	}
	if err != nil {
		return coordinator.Round{}, false, err
	}

	var subRows []submissionRow
	if err := s.db.WithContext(ctx).Where("job_id = ? AND round_num = ?", jobID, roundNum).Find(&subRows).Error; err != nil {
		return coordinator.Round{}, false, err
	}

	r, err := fromRoundRow(row, subRows)
	return r, true, err
}

func toJobRow(j coordinator.Job) (jobRow, error) {
	frameworks, err := json.Marshal(j.Spec.RequiredFrameworks)
	if err != nil {
		return jobRow{}, err
	}
	metrics, err := json.Marshal(j.RoundMetrics)
	if err != nil {
		return jobRow{}, err
	}
	return jobRow{
		JobID:              j.Spec.JobID,
		Architecture:       j.Spec.Architecture,
		TargetRounds:       j.Spec.TargetRounds,
		Quorum:             j.Spec.Quorum,
		PartitionTotal:     j.Spec.PartitionTotal,
		RequiredFrameworks: frameworks,
		LearningRate:       j.Spec.LearningRate,
		Status:             string(j.Status),
		CurrentRound:       j.CurrentRound,
		GlobalModelID:      j.GlobalModelID,
		RoundMetrics:       metrics,
	}, nil
}

func fromJobRow(row jobRow) (coordinator.Job, error) {
	j := coordinator.Job{
		Spec: coordinator.Spec{
			JobID:          row.JobID,
			Architecture:   row.Architecture,
			TargetRounds:   row.TargetRounds,
			Quorum:         row.Quorum,
			PartitionTotal: row.PartitionTotal,
			LearningRate:   row.LearningRate,
		},
		Status:        coordinator.JobStatus(row.Status),
		CurrentRound:  row.CurrentRound,
		GlobalModelID: row.GlobalModelID,
	}
	if len(row.RequiredFrameworks) > 0 {
		if err := json.Unmarshal(row.RequiredFrameworks, &j.Spec.RequiredFrameworks); err != nil {
			return coordinator.Job{}, err
		}
	}
	if len(row.RoundMetrics) > 0 {
		if err := json.Unmarshal(row.RoundMetrics, &j.RoundMetrics); err != nil {
			return coordinator.Job{}, err
		}
	}
	return j, nil
}

func toRoundRow(r coordinator.Round) (roundRow, error) {
	participants, err := json.Marshal(r.Participants)
	if err != nil {
		return roundRow{}, err
	}
	return roundRow{
		JobID:            r.JobID,
		RoundNum:         r.RoundNum,
		Status:           string(r.Status),
		Participants:     participants,
		GlobalModelID:    r.GlobalModelID,
		AggregateModelID: r.AggregateModelID,
		Deadline:         r.Deadline,
		HardDeadline:     r.HardDeadline,
		Attempt:          r.Attempt,
	}, nil
}

func fromRoundRow(row roundRow, subRows []submissionRow) (coordinator.Round, error) {
	r := coordinator.Round{
		JobID:            row.JobID,
		RoundNum:         row.RoundNum,
		Status:           coordinator.RoundStatus(row.Status),
		GlobalModelID:    row.GlobalModelID,
		AggregateModelID: row.AggregateModelID,
		Deadline:         row.Deadline,
		HardDeadline:     row.HardDeadline,
		Attempt:          row.Attempt,
		Submissions:      make(map[string]coordinator.Submission, len(subRows)),
	}
	if len(row.Participants) > 0 {
		if err := json.Unmarshal(row.Participants, &r.Participants); err != nil {
			return coordinator.Round{}, err
		}
	}
	for _, sr := range subRows {
		sub := coordinator.Submission{
			DeviceID:   sr.DeviceID,
			NumSamples: sr.NumSamples,
			Gradients:  sr.Gradients,
			ReceivedAt: sr.ReceivedAt,
		}
		if len(sr.Metrics) > 0 {
			if err := json.Unmarshal(sr.Metrics, &sub.Metrics); err != nil {
				return coordinator.Round{}, err
			}
		}
		r.Submissions[sr.DeviceID] = sub
	}
	return r, nil
}
