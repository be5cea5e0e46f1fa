// Package store is the gorm/postgres persistence layer backing
// pkg/registry.Store and pkg/coordinator.Store (spec.md §6's persisted
// state: devices/jobs/rounds/submissions). Grounded on
// grewanderer-trash2's internal/models + internal/repo packages, the
// only SQL-backed example in the retrieved corpus.
package store

import (
	"time"

	"gorm.io/datatypes"
)

// deviceRow is the devices table (spec.md §3's registry row, widened
// with gorm bookkeeping columns the teacher's models.Device also
// carries).
type deviceRow struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	DeviceID     string         `gorm:"uniqueIndex;size:128;not null"`
	Name         string         `gorm:"size:255"`
	DeviceModel  string         `gorm:"size:255"`
	OsVersion    string         `gorm:"size:64"`
	Status       string         `gorm:"size:32;index"`
	Capabilities datatypes.JSON `gorm:"type:jsonb"`
	LastMetrics  datatypes.JSON `gorm:"type:jsonb"`
	RegisteredAt time.Time
	LastSeenAt   time.Time
}

func (deviceRow) TableName() string { return "devices" }

// jobRow is the jobs table (spec.md §4.7's job lifecycle).
type jobRow struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	JobID              string         `gorm:"uniqueIndex;size:128;not null"`
	Architecture       string         `gorm:"size:128"`
	TargetRounds       uint32
	Quorum             int
	PartitionTotal     uint32
	RequiredFrameworks datatypes.JSON `gorm:"type:jsonb"`
	LearningRate       float64
	Status             string         `gorm:"size:32;index"`
	CurrentRound       uint32
	GlobalModelID      string         `gorm:"size:128"`
	RoundMetrics       datatypes.JSON `gorm:"type:jsonb"`
}

func (jobRow) TableName() string { return "jobs" }

// roundRow is the rounds table. Submissions are kept in a separate
// table (submissionRow) rather than inlined as JSON: spec.md's
// idempotence rule keys submit_training on (job_id, round, device), which a
// unique DB constraint on the submissions table enforces directly
// instead of a read-modify-write over a JSON blob.
type roundRow struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	JobID            string         `gorm:"uniqueIndex:round_scope;size:128;not null"`
	RoundNum         uint32         `gorm:"uniqueIndex:round_scope"`
	Status           string         `gorm:"size:32;index"`
	Participants     datatypes.JSON `gorm:"type:jsonb"`
	GlobalModelID    string         `gorm:"size:128"`
	AggregateModelID string         `gorm:"size:128"`
	Deadline         time.Time
	HardDeadline     time.Time
	Attempt          int
}

func (roundRow) TableName() string { return "rounds" }

// submissionRow is the submissions table, one row per accepted
// gradient upload. The unique index on (job_id, round_num, device_id)
// is the DB-level backstop for spec.md's already_submitted rule;
// coordinator.Coordinator also rejects duplicates in memory. The index
// does conflict on every JobStore.UpdateRound after the first, which
// writes all of a round's submissions again; those conflicting inserts
// are skipped.
type submissionRow struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time

	JobID      string `gorm:"uniqueIndex:submission_scope;size:128;not null"`
	RoundNum   uint32 `gorm:"uniqueIndex:submission_scope"`
	DeviceID   string `gorm:"uniqueIndex:submission_scope;size:128;not null"`
	NumSamples uint32
	Gradients  []byte
	Metrics    datatypes.JSON `gorm:"type:jsonb"`
	ReceivedAt time.Time
}

func (submissionRow) TableName() string { return "submissions" }
