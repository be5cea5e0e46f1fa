package main

import (
	"github.com/edgeorchestra/orchestrator/pkg/log"
	"github.com/edgeorchestra/orchestrator/pkg/utils"
)

// Config is the orchestrator's top-level configuration, grounded on
// cmd/scheduler/config.go's flat mapstructure-tagged struct.
type Config struct {
	utils.GRPCOptions `mapstructure:"grpc"`

	// ListenGrpc are addresses to listen on for gRPC ("tcp://:9090").
	ListenGrpc []string `mapstructure:"listen_grpc"`
	// ListenHttp are addresses to listen on for the ambient HTTP surface.
	ListenHttp []string `mapstructure:"listen_http"`

	// Postgres DSN. Empty runs the coordinator/registry against
	// in-memory stores instead (single-process, no crash recovery).
	DatabaseDSN string `mapstructure:"database_dsn"`

	HeartbeatIntervalS float64 `mapstructure:"heartbeat_interval_s"`
	MissThreshold      int     `mapstructure:"miss_threshold"`
	SweepPeriodS       float64 `mapstructure:"sweep_period_s"`

	RoundTimeoutS        float64 `mapstructure:"round_timeout_s"`
	RoundGraceS          float64 `mapstructure:"round_grace_s"`
	SelectionBackoffS    float64 `mapstructure:"selection_backoff_s"`
	SelectionMaxAttempts int     `mapstructure:"selection_max_attempts"`
	RoundMaxRetries      int     `mapstructure:"round_max_retries"`
	BatteryFloor         float64 `mapstructure:"battery_floor"`
	ThermalCeiling       float64 `mapstructure:"thermal_ceiling"`

	ChunkSizeBytes int     `mapstructure:"chunk_size_bytes"`
	BlobRetentionS float64 `mapstructure:"blob_retention_s"`
	ModelStoreDir  string  `mapstructure:"model_store_dir"`

	Jobs []JobSpec `mapstructure:"jobs"`
}

// JobSpec is a training job to start at orchestrator startup, read from
// config since spec.md defines no RPC or REST surface for job creation
// and SPEC_FULL.md's Non-goals exclude a REST/dashboard admin surface.
// Analogous to cmd/scheduler/main.go reading its task/workspace config
// at startup rather than exposing a task-creation endpoint.
type JobSpec struct {
	JobID              string   `mapstructure:"job_id"`
	Architecture       string   `mapstructure:"architecture"`
	InitialModelID     string   `mapstructure:"initial_model_id"`
	TargetRounds       uint32   `mapstructure:"target_rounds"`
	Quorum             int      `mapstructure:"quorum"`
	PartitionTotal     uint32   `mapstructure:"partition_total"`
	RequiredFrameworks []string `mapstructure:"required_frameworks"`
	LearningRate       float64  `mapstructure:"learning_rate"`
}

func (c *Config) Log() {
	log.Info("Orchestrator configuration:")
	log.Infof("  gRPC listen addresses: %v", c.ListenGrpc)
	log.Infof("  HTTP listen addresses: %v", c.ListenHttp)
	if c.DatabaseDSN != "" {
		log.Info("  persistence: postgres")
	} else {
		log.Info("  persistence: in-memory")
	}
	c.GRPCOptions.Log()
}
