package coordinator

import (
	"math"

	"github.com/edgeorchestra/orchestrator/pkg/liveness"
	"github.com/edgeorchestra/orchestrator/pkg/protocol"
	"github.com/edgeorchestra/orchestrator/pkg/registry"
	"github.com/edgeorchestra/orchestrator/pkg/utils"
)

// Composite tie-break weights, device_scheduler.py's _DEFAULT_WEIGHTS.
// Only used to order devices that are already exactly tied on spec.md
// §4.7's battery/thermal/cpu_usage fields.
const (
	compositeWeightBattery  = 0.35
	compositeWeightThermal  = 0.25
	compositeWeightCpuLoad  = 0.20
	compositeWeightMemory   = 0.10
	compositeWeightHardware = 0.10
)

// EligibilityConfig carries the thresholds spec.md §4.7's eligibility
// predicate checks: battery_floor and thermal_ceiling.
type EligibilityConfig struct {
	BatteryFloor   float64
	ThermalCeiling float64
}

// chargingStates are the battery.state values the eligibility
// predicate permits (spec.md §4.7): "charging", "full" and
// "not_charging". "discharging" and an unreported state are refused.
var chargingStates = map[protocol.BatteryState]bool{
	protocol.BatteryStateCharging:    true,
	protocol.BatteryStateFull:        true,
	protocol.BatteryStateNotCharging: true,
}

// eligible reports whether device is a candidate for selection into a
// round requiring the given frameworks, per spec.md §4.7's predicate.
// is_live and "not already assigned to another open round" are checked
// by the caller, which has the tracker and the coordinator's own
// in-flight participant bookkeeping.
func eligible(d registry.Device, cfg EligibilityConfig, requiredFrameworks []string) bool {
	if d.Status != registry.StatusOnline {
		return false
	}
	m := d.LastMetrics
	if m.BatteryLevel < cfg.BatteryFloor {
		return false
	}
	if !chargingStates[m.BatteryState] {
		return false
	}
	if m.Thermal > cfg.ThermalCeiling {
		return false
	}
	return supportsAll(d.Capabilities.SupportedFrameworks, requiredFrameworks)
}

func supportsAll(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, f := range have {
		set[f] = true
	}
	for _, f := range want {
		if !set[f] {
			return false
		}
	}
	return true
}

// selectParticipants picks up to want eligible, live, unassigned
// devices from candidates, ordered by spec.md §4.7's tie-break: higher
// battery level, then lower thermal, then lower cpu_usage; a residual
// tie on all three is broken by the composite score before falling
// back to device_id lexicographically.
func selectParticipants(candidates []registry.Device, tracker *liveness.Tracker, cfg EligibilityConfig, requiredFrameworks []string, assigned map[string]bool, want int) []registry.Device {
	pool := make([]registry.Device, 0, len(candidates))
	for _, d := range candidates {
		if assigned[d.DeviceID] {
			continue
		}
		if !tracker.IsLive(d.DeviceID) {
			continue
		}
		if !eligible(d, cfg, requiredFrameworks) {
			continue
		}
		pool = append(pool, d)
	}

	var poolMaxNeuralCores int32
	var poolMaxRAM int64
	for _, d := range pool {
		if d.Capabilities.NeuralEngineCores > poolMaxNeuralCores {
			poolMaxNeuralCores = d.Capabilities.NeuralEngineCores
		}
		if d.Capabilities.RamBytes > poolMaxRAM {
			poolMaxRAM = d.Capabilities.RamBytes
		}
	}

	queue := utils.NewPriorityQueue[registry.Device](
		func(a, b any) int {
			return compareCandidates(a.(registry.Device), b.(registry.Device), poolMaxNeuralCores, poolMaxRAM)
		},
		func(a, b any) bool { return a.(registry.Device).DeviceID == b.(registry.Device).DeviceID },
	)
	for _, d := range pool {
		queue.Push(d)
	}

	selected := make([]registry.Device, 0, want)
	for queue.Len() > 0 && len(selected) < want {
		selected = append(selected, queue.Pop())
	}
	return selected
}

func compareCandidates(a, b registry.Device, poolMaxNeuralCores int32, poolMaxRAM int64) int {
	if a.LastMetrics.BatteryLevel != b.LastMetrics.BatteryLevel {
		if a.LastMetrics.BatteryLevel > b.LastMetrics.BatteryLevel {
			return -1
		}
		return 1
	}
	if a.LastMetrics.Thermal != b.LastMetrics.Thermal {
		if a.LastMetrics.Thermal < b.LastMetrics.Thermal {
			return -1
		}
		return 1
	}
	if a.LastMetrics.CpuUsage != b.LastMetrics.CpuUsage {
		if a.LastMetrics.CpuUsage < b.LastMetrics.CpuUsage {
			return -1
		}
		return 1
	}

	as := compositeScore(a, poolMaxNeuralCores, poolMaxRAM)
	bs := compositeScore(b, poolMaxNeuralCores, poolMaxRAM)
	if as != bs {
		if as > bs {
			return -1
		}
		return 1
	}

	if a.DeviceID < b.DeviceID {
		return -1
	}
	if a.DeviceID > b.DeviceID {
		return 1
	}
	return 0
}

// compositeScore is device_scheduler.py's _score_device: a weighted
// blend of battery/thermal/cpu/memory sub-scores plus a hardware
// sub-score normalized against the eligible pool's neural-engine-core
// and RAM maximums. Only consulted as a tie-break once spec.md §4.7's
// own battery/thermal/cpu_usage ordering is exhausted.
func compositeScore(d registry.Device, poolMaxNeuralCores int32, poolMaxRAM int64) float64 {
	batteryBonus := 0.0
	if d.LastMetrics.BatteryState == protocol.BatteryStateCharging || d.LastMetrics.BatteryState == protocol.BatteryStateFull {
		batteryBonus = 0.15
	}
	batteryScore := math.Min(d.LastMetrics.BatteryLevel+batteryBonus, 1.0)
	thermalScore := 1.0 - d.LastMetrics.Thermal
	cpuScore := 1.0 - d.LastMetrics.CpuUsage
	memScore := 1.0 - d.LastMetrics.MemUsage

	neNorm := 0.5
	if poolMaxNeuralCores > 0 {
		neNorm = float64(d.Capabilities.NeuralEngineCores) / float64(poolMaxNeuralCores)
	}
	ramNorm := 0.5
	if poolMaxRAM > 0 {
		ramNorm = float64(d.Capabilities.RamBytes) / float64(poolMaxRAM)
	}
	hardwareScore := (neNorm + ramNorm) / 2

	return compositeWeightBattery*batteryScore +
		compositeWeightThermal*thermalScore +
		compositeWeightCpuLoad*cpuScore +
		compositeWeightMemory*memScore +
		compositeWeightHardware*hardwareScore
}
