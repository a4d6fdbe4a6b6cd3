package repositories

import (
	"context"
	"errors"
	"fmt"
	"gorm.io/gorm"
	"rtb-engine/internal/models"
	"rtb-engine/internal/ranging"
)

// ResultRepository persists the last ranging result per peer and origin.
type ResultRepository struct {
	db *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func (r *ResultRepository) Put(ctx context.Context, peer models.PeerAddress, origin models.Origin, result models.RangingResult) error {
	return r.CreateOrUpdate(ctx, models.NewRangingResultRecord(peer, origin, result))
}

func (r *ResultRepository) CreateOrUpdate(ctx context.Context, record *models.RangingResultRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.RangingResultRecord
		result := tx.Unscoped().
			Where("peer = ? AND origin = ?", record.Peer, record.Origin).
			First(&existing)

		if result.Error == nil {

			// the whole row is replaced, including the antenna list
			existing.Distance = record.Distance
			existing.Quality = record.Quality
			existing.Method = record.Method
			existing.Strategy = record.Strategy
			existing.SampleCount = record.SampleCount
			existing.Antennas = record.Antennas
			existing.MeasuredAt = record.MeasuredAt
			existing.DeletedAt = gorm.DeletedAt{}

			return tx.Unscoped().Save(&existing).Error

		} else if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return tx.Create(record).Error

		} else {
			return result.Error
		}
	})
}

func (r *ResultRepository) Get(ctx context.Context, peer models.PeerAddress, origin models.Origin) (models.RangingResult, bool, error) {
	var record models.RangingResultRecord
	err := r.db.WithContext(ctx).
		Where("peer = ? AND origin = ?", peer.String(), origin).
		First(&record).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RangingResult{}, false, nil
	}
	if err != nil {
		return models.RangingResult{}, false, fmt.Errorf("failed to load result for %s: %w", peer, err)
	}

	_, result, err := record.ToModel()
	if err != nil {
		return models.RangingResult{}, false, err
	}
	return result, true, nil
}

func (r *ResultRepository) GetAll(ctx context.Context) ([]*models.RangingResultRecord, error) {
	var records []*models.RangingResultRecord
	err := r.db.WithContext(ctx).Order("peer, origin").Find(&records).Error
	return records, err
}

var _ ranging.ResultStore = (*ResultRepository)(nil)
