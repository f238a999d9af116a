package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Khaledxab/mygym-backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrVersionConflict is returned by UpdateBalanceTx when the account row was
// modified since it was read.
var ErrVersionConflict = errors.New("account version conflict")

type AccountRepository interface {
	Create(ctx context.Context, a *model.Account) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	FindByIDTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Account, error)
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
	List(ctx context.Context) ([]model.Account, error)
	ListAll(ctx context.Context) ([]model.Account, error)
	UpdateProfile(ctx context.Context, a *model.Account) error
	UpdateProfileTx(ctx context.Context, tx *gorm.DB, a *model.Account) error
	UpdateBalanceTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectedVersion, newBalance int64) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Reactivate(ctx context.Context, id uuid.UUID) error
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type accountRepo struct{ db *gorm.DB }

func NewAccountRepository(db *gorm.DB) AccountRepository { return &accountRepo{db: db} }

func (r *accountRepo) DB() *gorm.DB { return r.db }

func (r *accountRepo) Create(ctx context.Context, a *model.Account) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *accountRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	return r.FindByIDTx(ctx, r.db, id)
}

func (r *accountRepo) FindByIDTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Account, error) {
	var a model.Account
	err := tx.WithContext(ctx).Where("id = ?", id).First(&a).Error
	return &a, err
}

func (r *accountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	var a model.Account
	err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&a).Error
	return &a, err
}

func (r *accountRepo) List(ctx context.Context) ([]model.Account, error) {
	var accounts []model.Account
	err := r.db.WithContext(ctx).Where("active = ?", true).Order("created_at").Find(&accounts).Error
	return accounts, err
}

func (r *accountRepo) ListAll(ctx context.Context) ([]model.Account, error) {
	var accounts []model.Account
	err := r.db.WithContext(ctx).Order("created_at").Find(&accounts).Error
	return accounts, err
}

// UpdateProfile writes profile columns only; balance and version are owned by
// the ledger.
func (r *accountRepo) UpdateProfile(ctx context.Context, a *model.Account) error {
	return r.UpdateProfileTx(ctx, r.db, a)
}

func (r *accountRepo) UpdateProfileTx(ctx context.Context, tx *gorm.DB, a *model.Account) error {
	return tx.WithContext(ctx).Model(a).
		Select("name", "email", "role", "password_hash", "updated_at").
		Updates(a).Error
}

// UpdateBalanceTx is a compare-and-swap on the account version.
func (r *accountRepo) UpdateBalanceTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectedVersion, newBalance int64) error {
	res := tx.WithContext(ctx).Model(&model.Account{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]any{
			"balance":    newBalance,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *accountRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.setActive(ctx, id, false)
}

func (r *accountRepo) Reactivate(ctx context.Context, id uuid.UUID) error {
	return r.setActive(ctx, id, true)
}

func (r *accountRepo) setActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := r.db.WithContext(ctx).Model(&model.Account{}).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
