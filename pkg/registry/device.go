// Package registry is the device registry (spec.md §4.1): the
// authoritative, transactionally-persisted record of every known
// worker device and its last observed capability/liveness snapshot.
package registry

import (
	"time"

	"github.com/edgeorchestra/orchestrator/pkg/protocol"
)

type Status = protocol.DeviceStatus

const (
	StatusOnline   = protocol.DeviceStatusOnline
	StatusOffline  = protocol.DeviceStatusOffline
	StatusTraining = protocol.DeviceStatusTraining
	StatusError    = protocol.DeviceStatusError
)

// Device is the registry's row shape (spec.md §3). Capabilities and
// Metrics are the wire types directly: the registry has no reason to
// keep its own parallel copies of fields it only stores and returns.
type Device struct {
	DeviceID     string
	Name         string
	DeviceModel  string
	OsVersion    string
	Capabilities protocol.Capabilities
	Status       Status
	LastMetrics  protocol.Metrics
	RegisteredAt time.Time
	LastSeenAt   time.Time
}

// Filter narrows ListDevices results. A nil Status matches every status.
type Filter struct {
	Status []Status
}

func (f Filter) matches(d Device) bool {
	if len(f.Status) == 0 {
		return true
	}
	for _, s := range f.Status {
		if d.Status == s {
			return true
		}
	}
	return false
}
