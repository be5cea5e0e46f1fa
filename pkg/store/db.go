package store

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to dsn and runs the schema migration, grounded on
// grewanderer-trash2/internal/db.Open's driver-switch shape (narrowed
// to postgres, the only driver this module's go.mod pulls in).
func Open(dsn string, gormLogger gormlogger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(&deviceRow{}, &jobRow{}, &roundRow{}, &submissionRow{})
}
