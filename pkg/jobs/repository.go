package jobs

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("query record not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Record{})
}

// Save stores rec once; a redelivered event with the same id is ignored.
func (r *Repository) Save(ctx context.Context, rec *Record) error {
	rec.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(rec).Error
}

// Latest returns the most recent record for an upstream request id.
func (r *Repository) Latest(ctx context.Context, requestID string) (*Record, error) {
	var rec Record
	result := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("occurred_at desc").
		First(&rec)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &rec, nil
}

func (r *Repository) List(ctx context.Context, limit int) ([]Record, error) {
	var records []Record
	if err := r.db.WithContext(ctx).Order("occurred_at desc").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// CleanupExpired deletes records older than ttl and reports how many went.
func (r *Repository) CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-ttl)
	result := r.db.WithContext(ctx).Where("occurred_at < ?", cutoff).Delete(&Record{})
	return result.RowsAffected, result.Error
}
