package service

import (
	"context"

	"github.com/Khaledxab/mygym-backend/internal/apierror"
	"github.com/Khaledxab/mygym-backend/internal/dto"
	"github.com/Khaledxab/mygym-backend/internal/model"
	"github.com/Khaledxab/mygym-backend/internal/permission"
	"github.com/Khaledxab/mygym-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type GymService interface {
	Create(ctx context.Context, caller model.Identity, req dto.CreateGymRequest) (*dto.GymResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.GymResponse, error)
	List(ctx context.Context, includeInactive bool) ([]dto.GymResponse, error)
	Update(ctx context.Context, caller model.Identity, id uuid.UUID, req dto.UpdateGymRequest) (*dto.GymResponse, error)
	Deactivate(ctx context.Context, caller model.Identity, id uuid.UUID) error
	AddAdmin(ctx context.Context, caller model.Identity, gymID uuid.UUID, req dto.AddGymAdminRequest) (*dto.GymResponse, error)
	RemoveAdmin(ctx context.Context, caller model.Identity, gymID, accountID uuid.UUID) error
}

type gymService struct {
	gyms     repository.GymRepository
	accounts repository.AccountRepository
}

func NewGymService(gyms repository.GymRepository, accounts repository.AccountRepository) GymService {
	return &gymService{gyms: gyms, accounts: accounts}
}

// Create registers a gym. A non-super-admin creator becomes its first
// administrator so they can manage what they created.
func (s *gymService) Create(ctx context.Context, caller model.Identity, req dto.CreateGymRequest) (*dto.GymResponse, error) {
	if req.PointsRequired < 0 {
		return nil, apierror.ErrInvalidAmount
	}
	g := &model.Gym{
		Name:           req.Name,
		Address:        req.Address,
		PointsRequired: req.PointsRequired,
		Active:         true,
	}
	err := runTx(ctx, s.gyms.DB(), func(tx *gorm.DB) error {
		if err := s.gyms.CreateTx(ctx, tx, g); err != nil {
			return err
		}
		if permission.BypassesOwnership(caller.Role) {
			return nil
		}
		return s.gyms.AddAdminTx(ctx, tx, g.ID, caller.AccountID)
	})
	if err != nil {
		return nil, apierror.Internal(err)
	}
	log.Info().Str("gym_id", g.ID.String()).Str("name", g.Name).Msg("gym: created")
	return s.toResponse(ctx, g)
}

func (s *gymService) Get(ctx context.Context, id uuid.UUID) (*dto.GymResponse, error) {
	g, err := s.gyms.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "gym")
	}
	return s.toResponse(ctx, g)
}

func (s *gymService) List(ctx context.Context, includeInactive bool) ([]dto.GymResponse, error) {
	gyms, err := s.gyms.List(ctx, includeInactive)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	resp := make([]dto.GymResponse, 0, len(gyms))
	for i := range gyms {
		r, err := s.toResponse(ctx, &gyms[i])
		if err != nil {
			return nil, err
		}
		resp = append(resp, *r)
	}
	return resp, nil
}

// Update edits gym settings. A price change does not touch the current QR
// session; the new price applies from the next issuance.
func (s *gymService) Update(ctx context.Context, caller model.Identity, id uuid.UUID, req dto.UpdateGymRequest) (*dto.GymResponse, error) {
	if err := ensureAdministers(ctx, s.gyms, caller, id); err != nil {
		return nil, err
	}
	g, err := s.gyms.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "gym")
	}
	if req.Name != "" {
		g.Name = req.Name
	}
	if req.Address != nil {
		g.Address = *req.Address
	}
	if req.PointsRequired != nil {
		if *req.PointsRequired < 0 {
			return nil, apierror.ErrInvalidAmount
		}
		g.PointsRequired = *req.PointsRequired
	}
	if err := s.gyms.Update(ctx, g); err != nil {
		return nil, apierror.Internal(err)
	}
	return s.toResponse(ctx, g)
}

func (s *gymService) Deactivate(ctx context.Context, caller model.Identity, id uuid.UUID) error {
	if err := ensureAdministers(ctx, s.gyms, caller, id); err != nil {
		return err
	}
	if err := s.gyms.SetActive(ctx, id, false); err != nil {
		return notFoundOr(err, "gym")
	}
	return nil
}

// ── Administrators ────────────────────────────────────────────────────────────

func (s *gymService) AddAdmin(ctx context.Context, caller model.Identity, gymID uuid.UUID, req dto.AddGymAdminRequest) (*dto.GymResponse, error) {
	if err := ensureAdministers(ctx, s.gyms, caller, gymID); err != nil {
		return nil, err
	}
	g, err := s.gyms.FindByID(ctx, gymID)
	if err != nil {
		return nil, notFoundOr(err, "gym")
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return nil, apierror.NotFound("account")
	}
	acc, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, notFoundOr(err, "account")
	}
	if acc.Role == model.RoleMember {
		return nil, apierror.Wrap(apierror.KindForbidden, "members cannot administer gyms", nil)
	}
	if err := s.gyms.AddAdmin(ctx, gymID, accountID); err != nil {
		return nil, apierror.Internal(err)
	}
	return s.toResponse(ctx, g)
}

func (s *gymService) RemoveAdmin(ctx context.Context, caller model.Identity, gymID, accountID uuid.UUID) error {
	if err := ensureAdministers(ctx, s.gyms, caller, gymID); err != nil {
		return err
	}
	if err := s.gyms.RemoveAdmin(ctx, gymID, accountID); err != nil {
		return notFoundOr(err, "gym administrator")
	}
	return nil
}

func (s *gymService) toResponse(ctx context.Context, g *model.Gym) (*dto.GymResponse, error) {
	adminIDs, err := s.gyms.ListAdminIDs(ctx, g.ID)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	ids := make([]string, len(adminIDs))
	for i, id := range adminIDs {
		ids[i] = id.String()
	}
	return &dto.GymResponse{
		ID:             g.ID.String(),
		Name:           g.Name,
		Address:        g.Address,
		PointsRequired: g.PointsRequired,
		Active:         g.Active,
		AdminIDs:       ids,
	}, nil
}
