package registry

import "context"

// Store is the transactional persistence seam the registry writes
// through. Production wiring is pkg/store (gorm/postgres); tests use an
// in-memory implementation (see memstore.go).
type Store interface {
	Insert(ctx context.Context, d Device) error
	Update(ctx context.Context, d Device) error
	Get(ctx context.Context, deviceID string) (Device, bool, error)
	List(ctx context.Context, filter Filter) ([]Device, error)
}
