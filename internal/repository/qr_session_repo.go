package repository

import (
	"context"

	"github.com/Khaledxab/mygym-backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QRSessionRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, s *model.QRSession) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.QRSession, error)
	FindByIDTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.QRSession, error)
}

type qrSessionRepo struct{ db *gorm.DB }

func NewQRSessionRepository(db *gorm.DB) QRSessionRepository { return &qrSessionRepo{db: db} }

func (r *qrSessionRepo) CreateTx(ctx context.Context, tx *gorm.DB, s *model.QRSession) error {
	return tx.WithContext(ctx).Create(s).Error
}

func (r *qrSessionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.QRSession, error) {
	return r.FindByIDTx(ctx, r.db, id)
}

func (r *qrSessionRepo) FindByIDTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.QRSession, error) {
	var s model.QRSession
	err := tx.WithContext(ctx).Where("id = ?", id).First(&s).Error
	return &s, err
}
