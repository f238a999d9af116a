package repository

import (
	"context"

	"github.com/Khaledxab/mygym-backend/internal/model"

	"gorm.io/gorm"
)

// AccessEventRepository persists the scan audit trail. Insert only.
type AccessEventRepository interface {
	Create(ctx context.Context, e *model.AccessEvent) error
}

type accessEventRepo struct{ db *gorm.DB }

func NewAccessEventRepository(db *gorm.DB) AccessEventRepository {
	return &accessEventRepo{db: db}
}

func (r *accessEventRepo) Create(ctx context.Context, e *model.AccessEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}
