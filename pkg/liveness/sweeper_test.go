package liveness

import (
	"context"
	"testing"
	"time"

	"github.com/edgeorchestra/orchestrator/pkg/clock"
	"github.com/edgeorchestra/orchestrator/pkg/protocol"
	"github.com/edgeorchestra/orchestrator/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSweeper(fc *clock.Fake) (*Sweeper, *registry.Registry, *Tracker) {
	reg := registry.New(registry.NewMemStore(), fc)
	tracker := New(fc, time.Second)
	sweeper := NewSweeper(reg, tracker, fc, time.Second, time.Second, 3)
	return sweeper, reg, tracker
}

func TestSweepOnceLeavesFreshDevicesOnline(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	sweeper, reg, tracker := newTestSweeper(fc)
	ctx := context.Background()

	id, err := reg.Register(ctx, "phone", "Pixel", "Android", protocol.Capabilities{}, protocol.Metrics{})
	require.NoError(t, err)
	tracker.Ingest(id, 1, protocol.Metrics{})

	require.NoError(t, sweeper.SweepOnce(ctx))

	device, err := reg.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusOnline, device.Status)
}

func TestSweepOnceDowngradesStaleDevices(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	sweeper, reg, tracker := newTestSweeper(fc)
	ctx := context.Background()

	id, err := reg.Register(ctx, "phone", "Pixel", "Android", protocol.Capabilities{}, protocol.Metrics{})
	require.NoError(t, err)
	tracker.Ingest(id, 1, protocol.Metrics{})

	var offlined []string
	sweeper.OnOffline = func(deviceID string) { offlined = append(offlined, deviceID) }

	fc.Advance(10 * time.Second)

	require.NoError(t, sweeper.SweepOnce(ctx))

	device, err := reg.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusOffline, device.Status)
	assert.Equal(t, []string{id}, offlined)
	assert.False(t, tracker.IsLive(id))
}

func TestSweepOnceIsIdempotent(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	sweeper, reg, tracker := newTestSweeper(fc)
	ctx := context.Background()

	id, err := reg.Register(ctx, "phone", "Pixel", "Android", protocol.Capabilities{}, protocol.Metrics{})
	require.NoError(t, err)
	tracker.Ingest(id, 1, protocol.Metrics{})

	fc.Advance(10 * time.Second)

	require.NoError(t, sweeper.SweepOnce(ctx))
	require.NoError(t, sweeper.SweepOnce(ctx))

	device, err := reg.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusOffline, device.Status)
}
