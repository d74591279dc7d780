package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// cacheRecord is the row layout of the persisted cache.
type cacheRecord struct {
	Key       string `gorm:"column:cache_key;primaryKey"`
	Value     string `gorm:"column:value;not null"`
	UpdatedAt time.Time
}

// TableName specifies the table name for cacheRecord.
func (cacheRecord) TableName() string {
	return "cache_records"
}

// SQLiteBackend persists cache records in a SQLite database through gorm.
// The quota is measured as the summed length of keys and values.
type SQLiteBackend struct {
	db       *gorm.DB
	maxBytes int64 // 0 = unlimited
}

// OpenSQLite opens (or creates) the database file at path and migrates the schema.
// glebarez/sqlite is a pure Go driver, so no CGO is required.
func OpenSQLite(path string, maxBytes int64) (*SQLiteBackend, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open cache database %q: %w", path, err)
	}
	return NewSQLiteBackend(db, maxBytes)
}

// NewSQLiteBackend wraps an existing gorm connection and migrates the schema.
func NewSQLiteBackend(db *gorm.DB, maxBytes int64) (*SQLiteBackend, error) {
	if err := db.AutoMigrate(&cacheRecord{}); err != nil {
		return nil, fmt.Errorf("migrate cache schema: %w", err)
	}
	return &SQLiteBackend{db: db, maxBytes: maxBytes}, nil
}

// Get returns the record stored under key.
func (b *SQLiteBackend) Get(ctx context.Context, key string) (string, error) {
	var rec cacheRecord
	err := b.db.WithContext(ctx).Where("cache_key = ?", key).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return rec.Value, nil
}

// Set upserts a record, rejecting it with ErrQuotaExceeded when it would not fit.
func (b *SQLiteBackend) Set(ctx context.Context, key, value string) error {
	db := b.db.WithContext(ctx)

	if b.maxBytes > 0 {
		var used int64
		err := db.Model(&cacheRecord{}).
			Where("cache_key <> ?", key).
			Select("COALESCE(SUM(LENGTH(cache_key) + LENGTH(value)), 0)").
			Scan(&used).Error
		if err != nil {
			return fmt.Errorf("measure cache usage: %w", err)
		}
		if used+int64(len(key)+len(value)) > b.maxBytes {
			return ErrQuotaExceeded
		}
	}

	rec := cacheRecord{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
}

// Delete removes key if present.
func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	return b.db.WithContext(ctx).Where("cache_key = ?", key).Delete(&cacheRecord{}).Error
}

// Keys lists every stored key.
func (b *SQLiteBackend) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := b.db.WithContext(ctx).Model(&cacheRecord{}).Pluck("cache_key", &keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

// Close releases the underlying database handle.
func (b *SQLiteBackend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
