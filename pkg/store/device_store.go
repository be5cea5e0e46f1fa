package store

import (
	"context"
	"encoding/json"

	"github.com/edgeorchestra/orchestrator/pkg/registry"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceStore implements registry.Store over the devices table.
// Grounded on grewanderer-trash2/internal/repo.DeviceStore's
// db-wrapped-in-a-struct shape.
type DeviceStore struct{ db *gorm.DB }

func NewDeviceStore(db *gorm.DB) *DeviceStore { return &DeviceStore{db: db} }

func (s *DeviceStore) Insert(ctx context.Context, d registry.Device) error {
	row, err := toDeviceRow(d)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "device_model", "os_version", "status", "capabilities", "last_metrics", "registered_at", "last_seen_at"}),
	}).Create(&row).Error
}

func (s *DeviceStore) Update(ctx context.Context, d registry.Device) error {
	row, err := toDeviceRow(d)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Where("device_id = ?", d.DeviceID).
		Select("name", "device_model", "os_version", "status", "capabilities", "last_metrics", "registered_at", "last_seen_at").
		Updates(&row).Error
}

func (s *DeviceStore) Get(ctx context.Context, deviceID string) (registry.Device, bool, error) {
	var row deviceRow
	err := s.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return registry.Device{}, false, nil
	}
	if err != nil {
		return registry.Device{}, false, err
	}
	d, err := fromDeviceRow(row)
	return d, true, err
}

func (s *DeviceStore) List(ctx context.Context, filter registry.Filter) ([]registry.Device, error) {
	q := s.db.WithContext(ctx)
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, st := range filter.Status {
			statuses[i] = string(st)
		}
		q = q.Where("status IN ?", statuses)
	}

	var rows []deviceRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]registry.Device, 0, len(rows))
	for _, row := range rows {
		d, err := fromDeviceRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func toDeviceRow(d registry.Device) (deviceRow, error) {
	caps, err := json.Marshal(d.Capabilities)
	if err != nil {
		return deviceRow{}, err
	}
	metrics, err := json.Marshal(d.LastMetrics)
	if err != nil {
		return deviceRow{}, err
	}
	return deviceRow{
		DeviceID:     d.DeviceID,
		Name:         d.Name,
		DeviceModel:  d.DeviceModel,
		OsVersion:    d.OsVersion,
		Status:       string(d.Status),
		Capabilities: caps,
		LastMetrics:  metrics,
		RegisteredAt: d.RegisteredAt,
		LastSeenAt:   d.LastSeenAt,
	}, nil
}

func fromDeviceRow(row deviceRow) (registry.Device, error) {
	d := registry.Device{
		DeviceID:     row.DeviceID,
		Name:         row.Name,
		DeviceModel:  row.DeviceModel,
		OsVersion:    row.OsVersion,
		Status:       registry.Status(row.Status),
		RegisteredAt: row.RegisteredAt,
		LastSeenAt:   row.LastSeenAt,
	}
	if len(row.Capabilities) > 0 {
		if err := json.Unmarshal(row.Capabilities, &d.Capabilities); err != nil {
			return registry.Device{}, err
		}
	}
	if len(row.LastMetrics) > 0 {
		if err := json.Unmarshal(row.LastMetrics, &d.LastMetrics); err != nil {
			return registry.Device{}, err
		}
	}
	return d, nil
}
