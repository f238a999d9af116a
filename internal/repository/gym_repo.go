package repository

import (
	"context"

	"github.com/Khaledxab/mygym-backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GymRepository interface {
	Create(ctx context.Context, g *model.Gym) error
	CreateTx(ctx context.Context, tx *gorm.DB, g *model.Gym) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Gym, error)
	FindByIDTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Gym, error)
	List(ctx context.Context, includeInactive bool) ([]model.Gym, error)
	Update(ctx context.Context, g *model.Gym) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SetCurrentSessionTx(ctx context.Context, tx *gorm.DB, gymID, sessionID uuid.UUID) error

	AddAdmin(ctx context.Context, gymID, accountID uuid.UUID) error
	AddAdminTx(ctx context.Context, tx *gorm.DB, gymID, accountID uuid.UUID) error
	RemoveAdmin(ctx context.Context, gymID, accountID uuid.UUID) error
	RemoveAccountAdminLinksTx(ctx context.Context, tx *gorm.DB, accountID uuid.UUID) error
	IsAdmin(ctx context.Context, gymID, accountID uuid.UUID) (bool, error)
	ListAdminIDs(ctx context.Context, gymID uuid.UUID) ([]uuid.UUID, error)
	ListGymIDsForAccount(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error)

	DB() *gorm.DB
}

type gymRepo struct{ db *gorm.DB }

func NewGymRepository(db *gorm.DB) GymRepository { return &gymRepo{db: db} }

func (r *gymRepo) DB() *gorm.DB { return r.db }

func (r *gymRepo) Create(ctx context.Context, g *model.Gym) error {
	return r.CreateTx(ctx, r.db, g)
}

func (r *gymRepo) CreateTx(ctx context.Context, tx *gorm.DB, g *model.Gym) error {
	return tx.WithContext(ctx).Create(g).Error
}

func (r *gymRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Gym, error) {
	return r.FindByIDTx(ctx, r.db, id)
}

func (r *gymRepo) FindByIDTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Gym, error) {
	var g model.Gym
	err := tx.WithContext(ctx).Where("id = ?", id).First(&g).Error
	return &g, err
}

func (r *gymRepo) List(ctx context.Context, includeInactive bool) ([]model.Gym, error) {
	var gyms []model.Gym
	q := r.db.WithContext(ctx).Order("name")
	if !includeInactive {
		q = q.Where("active = ?", true)
	}
	err := q.Find(&gyms).Error
	return gyms, err
}

// Update writes the editable columns. current_session_id is left alone so a
// concurrent issuance is never clobbered by a settings edit.
func (r *gymRepo) Update(ctx context.Context, g *model.Gym) error {
	return r.db.WithContext(ctx).Model(g).
		Select("name", "address", "points_required", "updated_at").
		Updates(g).Error
}

func (r *gymRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := r.db.WithContext(ctx).Model(&model.Gym{}).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gymRepo) SetCurrentSessionTx(ctx context.Context, tx *gorm.DB, gymID, sessionID uuid.UUID) error {
	res := tx.WithContext(ctx).Model(&model.Gym{}).Where("id = ?", gymID).
		Update("current_session_id", sessionID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ── Administrators ────────────────────────────────────────────────────────────

func (r *gymRepo) AddAdmin(ctx context.Context, gymID, accountID uuid.UUID) error {
	return r.AddAdminTx(ctx, r.db, gymID, accountID)
}

func (r *gymRepo) AddAdminTx(ctx context.Context, tx *gorm.DB, gymID, accountID uuid.UUID) error {
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.GymAdmin{GymID: gymID, AccountID: accountID}).Error
}

func (r *gymRepo) RemoveAdmin(ctx context.Context, gymID, accountID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("gym_id = ? AND account_id = ?", gymID, accountID).
		Delete(&model.GymAdmin{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RemoveAccountAdminLinksTx drops every gym the account administers. Having
// none to drop is not an error.
func (r *gymRepo) RemoveAccountAdminLinksTx(ctx context.Context, tx *gorm.DB, accountID uuid.UUID) error {
	return tx.WithContext(ctx).Where("account_id = ?", accountID).Delete(&model.GymAdmin{}).Error
}

func (r *gymRepo) IsAdmin(ctx context.Context, gymID, accountID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.GymAdmin{}).
		Where("gym_id = ? AND account_id = ?", gymID, accountID).
		Count(&n).Error
	return n > 0, err
}

func (r *gymRepo) ListAdminIDs(ctx context.Context, gymID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.GymAdmin{}).
		Where("gym_id = ?", gymID).Order("created_at").
		Pluck("account_id", &ids).Error
	return ids, err
}

func (r *gymRepo) ListGymIDsForAccount(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.GymAdmin{}).
		Where("account_id = ?", accountID).Order("created_at").
		Pluck("gym_id", &ids).Error
	return ids, err
}
