package protocol

import "time"

// BatteryState mirrors spec.md §3's battery_state enumeration.
type BatteryState string

const (
	BatteryStateCharging    BatteryState = "charging"
	BatteryStateFull        BatteryState = "full"
	BatteryStateDischarging BatteryState = "discharging"
	BatteryStateNotCharging BatteryState = "not_charging"
	BatteryStateUnspecified BatteryState = "unspecified"
)

// DeviceStatus mirrors spec.md §3's device status enumeration.
type DeviceStatus string

const (
	DeviceStatusOnline   DeviceStatus = "online"
	DeviceStatusOffline  DeviceStatus = "offline"
	DeviceStatusTraining DeviceStatus = "training"
	DeviceStatusError    DeviceStatus = "error"
)

// Capabilities is a device's static hardware/software description.
type Capabilities struct {
	Chip                string   `json:"chip"`
	RamBytes            int64    `json:"ram_bytes"`
	CpuCores            int32    `json:"cpu_cores"`
	GpuCores            int32    `json:"gpu_cores"`
	NeuralEngineCores   int32    `json:"neural_engine_cores"`
	SupportedFrameworks []string `json:"supported_frameworks"`
}

// Metrics is a device's live telemetry snapshot.
type Metrics struct {
	CpuUsage     float64      `json:"cpu_usage"`
	MemUsage     float64      `json:"mem_usage"`
	Thermal      float64      `json:"thermal"`
	BatteryLevel float64      `json:"battery_level"`
	BatteryState BatteryState `json:"battery_state"`
	LowPower     bool         `json:"low_power"`
}

// Device is the wire representation of a registry row.
type Device struct {
	DeviceId     string       `json:"device_id"`
	Name         string       `json:"name"`
	DeviceModel  string       `json:"device_model"`
	OsVersion    string       `json:"os_version"`
	Capabilities Capabilities `json:"capabilities"`
	Status       DeviceStatus `json:"status"`
	LastMetrics  Metrics      `json:"last_metrics"`
	RegisteredAt time.Time    `json:"registered_at"`
	LastSeenAt   time.Time    `json:"last_seen_at"`
}

// --- DeviceRegistry service messages ---

type RegisterRequest struct {
	Name           string       `json:"name"`
	DeviceModel    string       `json:"device_model"`
	OsVersion      string       `json:"os_version"`
	Capabilities   Capabilities `json:"capabilities"`
	InitialMetrics Metrics      `json:"initial_metrics"`
}

type RegisterResponse struct {
	DeviceId string `json:"device_id"`
}

type UnregisterRequest struct {
	DeviceId string `json:"device_id"`
}

type Ack struct{}

type ListDevicesFilter struct {
	Status []DeviceStatus `json:"status,omitempty"`
}

// --- HeartbeatService messages ---

// CommandType enumerates spec.md §3's command types, plus "unspecified"
// as the wire zero value (no command to deliver).
type CommandType string

const (
	CommandUnspecified   CommandType = "unspecified"
	CommandAck           CommandType = "ack"
	CommandUpdateInterval CommandType = "update_interval"
	CommandStartTraining CommandType = "start_training"
	CommandStopTraining  CommandType = "stop_training"
	CommandShutdown      CommandType = "shutdown"
)

// Command is the server-to-device instruction envelope (spec.md §3).
type Command struct {
	Type       CommandType       `json:"type"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type HeartbeatRequest struct {
	DeviceId string  `json:"device_id"`
	Metrics  Metrics `json:"metrics"`
	Sequence uint64  `json:"sequence"`
}

type HeartbeatResponse struct {
	Command    CommandType       `json:"command"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	// AckSequence echoes the Sequence of the heartbeat request whose
	// response delivers a queued command. Zero on a plain ack.
	AckSequence uint64 `json:"ack_sequence"`
}

// --- ModelService messages ---

type DownloadModelRequest struct {
	ModelId  string `json:"model_id"`
	DeviceId string `json:"device_id"`
}

type ModelChunkMetadata struct {
	ModelId     string `json:"model_id"`
	Size        int64  `json:"size"`
	TotalChunks int64  `json:"total_chunks"`
	ChunkSize   int64  `json:"chunk_size"`
	Sha256      string `json:"sha256"`
}

type ModelChunkData struct {
	ChunkIndex int64  `json:"chunk_index"`
	Bytes      []byte `json:"bytes"`
}

// ModelChunk is a oneof-shaped frame of the chunked transport contract
// (spec.md §4.5): exactly one of Metadata or Chunk is set, metadata
// always first.
type ModelChunk struct {
	Metadata *ModelChunkMetadata `json:"metadata,omitempty"`
	Chunk    *ModelChunkData     `json:"chunk,omitempty"`
}

type SubmitGradientsRequest struct {
	DeviceId      string             `json:"device_id"`
	ModelId       string             `json:"model_id"`
	TrainingRound uint32             `json:"training_round"`
	Gradients     []byte             `json:"gradients"`
	NumSamples    uint32             `json:"num_samples"`
	Metrics       map[string]float64 `json:"metrics,omitempty"`
}

type SubmitGradientsResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// UploadModelResponse completes the admin-only inverse-streamed upload.
type UploadModelResponse struct {
	ModelId string `json:"model_id"`
}
