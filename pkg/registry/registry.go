package registry

import (
	"context"
	"fmt"

	"github.com/edgeorchestra/orchestrator/pkg/clock"
	"github.com/edgeorchestra/orchestrator/pkg/protocol"
	"github.com/edgeorchestra/orchestrator/pkg/utils"
	"github.com/google/uuid"
)

// Registry implements spec.md §4.1's operations: register, unregister,
// get, list, touch.
type Registry struct {
	store Store
	clock clock.Clock
}

func New(store Store, clk clock.Clock) *Registry {
	return &Registry{store: store, clock: clk}
}

// Register persists a new device row with status=online and returns its
// freshly-assigned id. Concurrent registrations with identical names are
// permitted to produce distinct ids — name is not a key (spec.md §4.1).
func (r *Registry) Register(ctx context.Context, name, deviceModel, osVersion string, capabilities protocol.Capabilities, initialMetrics protocol.Metrics) (string, error) {
	now := r.clock.Now()
	device := Device{
		DeviceID:     uuid.NewString(),
		Name:         name,
		DeviceModel:  deviceModel,
		OsVersion:    osVersion,
		Capabilities: capabilities,
		Status:       StatusOnline,
		LastMetrics:  initialMetrics,
		RegisteredAt: now,
		LastSeenAt:   now,
	}

	if err := r.store.Insert(ctx, device); err != nil {
		return "", fmt.Errorf("%w: register device: %v", utils.ErrInternal, err)
	}

	return device.DeviceID, nil
}

// Unregister transitions a device to offline, preserving its history
// rather than deleting the row (spec.md §4.1).
func (r *Registry) Unregister(ctx context.Context, deviceID string) error {
	device, ok, err := r.store.Get(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("%w: unregister device: %v", utils.ErrInternal, err)
	}
	if !ok {
		return fmt.Errorf("%w: device %s", utils.ErrNotFound, deviceID)
	}

	device.Status = StatusOffline
	if err := r.store.Update(ctx, device); err != nil {
		return fmt.Errorf("%w: unregister device: %v", utils.ErrInternal, err)
	}
	return nil
}

func (r *Registry) Get(ctx context.Context, deviceID string) (Device, error) {
	device, ok, err := r.store.Get(ctx, deviceID)
	if err != nil {
		return Device{}, fmt.Errorf("%w: get device: %v", utils.ErrInternal, err)
	}
	if !ok {
		return Device{}, fmt.Errorf("%w: device %s", utils.ErrNotFound, deviceID)
	}
	return device, nil
}

func (r *Registry) List(ctx context.Context, filter Filter) ([]Device, error) {
	devices, err := r.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: list devices: %v", utils.ErrInternal, err)
	}
	return devices, nil
}

// Touch records freshly-observed metrics and status for a device
// (spec.md §4.1, invoked by the heartbeat session manager on every
// request per spec.md §4.3).
func (r *Registry) Touch(ctx context.Context, deviceID string, metrics protocol.Metrics, status Status) error {
	device, ok, err := r.store.Get(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("%w: touch device: %v", utils.ErrInternal, err)
	}
	if !ok {
		return fmt.Errorf("%w: device %s", utils.ErrNotFound, deviceID)
	}

	device.LastMetrics = metrics
	// A device mid-round keeps reporting heartbeats with the liveness
	// layer's default "online" status; only the training coordinator
	// (via SetStatus) or an explicit offline/error observation ends the
	// training status (spec.md §3's device status model).
	if device.Status != StatusTraining || status == StatusOffline || status == StatusError {
		device.Status = status
	}
	device.LastSeenAt = r.clock.Now()

	if err := r.store.Update(ctx, device); err != nil {
		return fmt.Errorf("%w: touch device: %v", utils.ErrInternal, err)
	}
	return nil
}

// SetStatus transitions a device's status without touching its last
// observed metrics or liveness timestamp. Used by the training
// coordinator to move participants into and out of "training"
// (spec.md §3, §4.7) around a round's lifecycle.
func (r *Registry) SetStatus(ctx context.Context, deviceID string, status Status) error {
	device, ok, err := r.store.Get(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("%w: set status: %v", utils.ErrInternal, err)
	}
	if !ok {
		return fmt.Errorf("%w: device %s", utils.ErrNotFound, deviceID)
	}

	device.Status = status
	if err := r.store.Update(ctx, device); err != nil {
		return fmt.Errorf("%w: set status: %v", utils.ErrInternal, err)
	}
	return nil
}
