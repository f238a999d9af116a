package repository

import (
	"context"

	"github.com/Khaledxab/mygym-backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionFilter narrows a log query. Zero values match everything.
type TransactionFilter struct {
	AccountID *uuid.UUID
	GymID     *uuid.UUID
	Direction model.Direction
	Offset    int
	Limit     int
}

// TransactionRepository is append-only: records are inserted PENDING and
// flipped once to a terminal status inside the same unit of work. There is no
// general Update.
type TransactionRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, t *model.Transaction) error
	CompleteTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, balanceAfter int64) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	List(ctx context.Context, f TransactionFilter) ([]model.Transaction, int64, error)
}

type transactionRepo struct{ db *gorm.DB }

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db: db}
}

func (r *transactionRepo) CreateTx(ctx context.Context, tx *gorm.DB, t *model.Transaction) error {
	return tx.WithContext(ctx).Create(t).Error
}

// CompleteTx moves a PENDING record to COMPLETED. A record that is already
// terminal is left untouched and reported as not found.
func (r *transactionRepo) CompleteTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, balanceAfter int64) error {
	res := tx.WithContext(ctx).Model(&model.Transaction{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(map[string]any{
			"status":        model.StatusCompleted,
			"balance_after": balanceAfter,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *transactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var t model.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	return &t, err
}

func (r *transactionRepo) List(ctx context.Context, f TransactionFilter) ([]model.Transaction, int64, error) {
	var txs []model.Transaction
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Transaction{})
	if f.AccountID != nil {
		q = q.Where("account_id = ?", *f.AccountID)
	}
	if f.GymID != nil {
		q = q.Where("gym_id = ?", *f.GymID)
	}
	if f.Direction != "" {
		q = q.Where("direction = ?", f.Direction)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	err := q.Order("created_at DESC").Order("id").
		Offset(f.Offset).Limit(limit).
		Find(&txs).Error
	return txs, total, err
}
