package coordinator

import (
	"testing"
	"time"

	"github.com/edgeorchestra/orchestrator/pkg/clock"
	"github.com/edgeorchestra/orchestrator/pkg/liveness"
	"github.com/edgeorchestra/orchestrator/pkg/protocol"
	"github.com/edgeorchestra/orchestrator/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() EligibilityConfig {
	return EligibilityConfig{BatteryFloor: 0.30, ThermalCeiling: 0.70}
}

func healthyDevice(id string) registry.Device {
	return registry.Device{
		DeviceID: id,
		Status:   registry.StatusOnline,
		Capabilities: protocol.Capabilities{
			SupportedFrameworks: []string{"tflite"},
		},
		LastMetrics: protocol.Metrics{
			BatteryLevel: 1.0,
			BatteryState: protocol.BatteryStateCharging,
			Thermal:      0.1,
			CpuUsage:     0.2,
		},
	}
}

func TestEligibleRejectsLowBattery(t *testing.T) {
	d := healthyDevice("a")
	d.LastMetrics.BatteryLevel = 0.20
	assert.False(t, eligible(d, testConfig(), nil))
}

func TestEligibleRejectsDischarging(t *testing.T) {
	d := healthyDevice("a")
	d.LastMetrics.BatteryState = protocol.BatteryStateDischarging
	assert.False(t, eligible(d, testConfig(), nil))
}

func TestEligibleRejectsHighThermal(t *testing.T) {
	d := healthyDevice("a")
	d.LastMetrics.Thermal = 0.9
	assert.False(t, eligible(d, testConfig(), nil))
}

func TestEligibleRejectsMissingFramework(t *testing.T) {
	d := healthyDevice("a")
	assert.False(t, eligible(d, testConfig(), []string{"pytorch_mobile"}))
}

func TestEligibleRejectsOfflineStatus(t *testing.T) {
	d := healthyDevice("a")
	d.Status = registry.StatusOffline
	assert.False(t, eligible(d, testConfig(), nil))
}

func TestEligibleAcceptsHealthyDevice(t *testing.T) {
	d := healthyDevice("a")
	assert.True(t, eligible(d, testConfig(), []string{"tflite"}))
}

func TestSelectParticipantsOrdersByTieBreak(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tracker := liveness.New(fc, time.Second)

	a := healthyDevice("bbb")
	a.LastMetrics.BatteryLevel = 0.9
	b := healthyDevice("aaa")
	b.LastMetrics.BatteryLevel = 0.9
	c := healthyDevice("ccc")
	c.LastMetrics.BatteryLevel = 1.0

	for _, d := range []registry.Device{a, b, c} {
		tracker.Ingest(d.DeviceID, 1, d.LastMetrics)
	}

	selected := selectParticipants([]registry.Device{a, b, c}, tracker, testConfig(), nil, map[string]bool{}, 2)

	require.Len(t, selected, 2)
	assert.Equal(t, "ccc", selected[0].DeviceID) // highest battery first
	assert.Equal(t, "aaa", selected[1].DeviceID) // tie on battery broken by device_id lex
}

func TestSelectParticipantsBreaksResidualTieByCompositeScore(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tracker := liveness.New(fc, time.Second)

	// Identical battery/thermal/cpu_usage: the hard tie-break can't
	// distinguish them, so the composite score's hardware sub-score
	// (more RAM, more neural engine cores) decides. Device ids are
	// picked so plain lexicographic order would pick the other device,
	// proving the composite score is consulted before the lex fallback.
	a := healthyDevice("aaa-weak")
	strong := healthyDevice("zzz-strong")
	strong.Capabilities.RamBytes = 8 << 30
	strong.Capabilities.NeuralEngineCores = 16

	for _, d := range []registry.Device{a, strong} {
		tracker.Ingest(d.DeviceID, 1, d.LastMetrics)
	}

	selected := selectParticipants([]registry.Device{a, strong}, tracker, testConfig(), nil, map[string]bool{}, 1)

	require.Len(t, selected, 1)
	assert.Equal(t, "zzz-strong", selected[0].DeviceID)
}

func TestSelectParticipantsSkipsNonLiveDevices(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tracker := liveness.New(fc, time.Second)

	a := healthyDevice("a")
	tracker.Ingest(a.DeviceID, 1, a.LastMetrics)
	b := healthyDevice("b") // never ingested, not live

	selected := selectParticipants([]registry.Device{a, b}, tracker, testConfig(), nil, map[string]bool{}, 2)
	require.Len(t, selected, 1)
	assert.Equal(t, "a", selected[0].DeviceID)
}

func TestSelectParticipantsSkipsAlreadyAssigned(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tracker := liveness.New(fc, time.Second)

	a := healthyDevice("a")
	b := healthyDevice("b")
	tracker.Ingest(a.DeviceID, 1, a.LastMetrics)
	tracker.Ingest(b.DeviceID, 1, b.LastMetrics)

	selected := selectParticipants([]registry.Device{a, b}, tracker, testConfig(), nil, map[string]bool{"a": true}, 2)
	require.Len(t, selected, 1)
	assert.Equal(t, "b", selected[0].DeviceID)
}
