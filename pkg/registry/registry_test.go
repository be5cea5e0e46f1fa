package registry

import (
	"context"
	"testing"
	"time"

	"github.com/edgeorchestra/orchestrator/pkg/clock"
	"github.com/edgeorchestra/orchestrator/pkg/protocol"
	"github.com/edgeorchestra/orchestrator/pkg/utils"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return New(NewMemStore(), clock.NewFake(time.Unix(0, 0)))
}

func TestRegisterAssignsFreshID(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	id1, err := r.Register(ctx, "phone-1", "Pixel 8", "Android 15", protocol.Capabilities{}, protocol.Metrics{})
	require.NoError(t, err)

	id2, err := r.Register(ctx, "phone-1", "Pixel 8", "Android 15", protocol.Capabilities{}, protocol.Metrics{})
	require.NoError(t, err)

	require.NotEqual(t, id1, id2, "duplicate registration with identical name must produce distinct device ids")

	devices, err := r.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, devices, 2)
}

func TestRegisterSetsOnlineStatus(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	id, err := r.Register(ctx, "phone", "Pixel", "Android", protocol.Capabilities{}, protocol.Metrics{})
	require.NoError(t, err)

	device, err := r.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusOnline, device.Status)
}

func TestUnregisterPreservesHistory(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	id, err := r.Register(ctx, "phone", "Pixel", "Android", protocol.Capabilities{}, protocol.Metrics{})
	require.NoError(t, err)

	require.NoError(t, r.Unregister(ctx, id))

	device, err := r.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusOffline, device.Status)
}

func TestGetUnknownDeviceReturnsNotFound(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Get(context.Background(), "missing")
	require.ErrorIs(t, err, utils.ErrNotFound)
}
