package data

import (
	"context"
	"fmt"

	"CoverLane/internal/model"
	dberrors "CoverLane/pkg/errors"
	pkglog "CoverLane/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// GenerationHistoryRepo stores finished generation runs in MySQL.
// A nil db turns Save into a no-op.
type GenerationHistoryRepo struct {
	db     *gorm.DB
	logger *pkglog.LogHelper
}

// NewGenerationHistoryRepo creates a new history repository.
func NewGenerationHistoryRepo(db *gorm.DB, logger log.Logger) *GenerationHistoryRepo {
	return &GenerationHistoryRepo{
		db:     db,
		logger: pkglog.NewLogHelper(logger),
	}
}

// Save inserts one record.
func (r *GenerationHistoryRepo) Save(ctx context.Context, rec *model.GenerationRecord) error {
	if r.db == nil {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return r.classify("save", err)
	}
	r.logger.Database("generation recorded", "id", rec.ID, "status", rec.Status, "request_id", rec.RequestID)
	return nil
}

// ListRecent returns at most limit records, newest first. It returns an
// empty list when history is disabled.
func (r *GenerationHistoryRepo) ListRecent(ctx context.Context, limit int) ([]*model.GenerationRecord, error) {
	if r.db == nil {
		return []*model.GenerationRecord{}, nil
	}

	var records []*model.GenerationRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, r.classify("list", err)
	}
	return records, nil
}

func (r *GenerationHistoryRepo) classify(op string, err error) error {
	dbErr := dberrors.ClassifyDBError(err)
	if dbErr.Transient() {
		r.logger.Degraded("generation history unavailable", "op", op, "error", err)
	} else {
		r.logger.Errorw("msg", "generation history query failed", "op", op, "type", dbErr.Type.String(), "error", err)
	}
	return fmt.Errorf("generation history %s: %w", op, dbErr)
}
