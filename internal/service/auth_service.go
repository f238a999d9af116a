package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Khaledxab/mygym-backend/internal/apierror"
	"github.com/Khaledxab/mygym-backend/internal/config"
	"github.com/Khaledxab/mygym-backend/internal/dto"
	"github.com/Khaledxab/mygym-backend/internal/model"
	"github.com/Khaledxab/mygym-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	bcryptCost       = 12
)

var errBadCredentials = apierror.Wrap(apierror.KindUnauthenticated, "invalid credentials", nil)

// AuthService is the identity collaborator: it issues tokens and turns a
// presented token back into an Identity. It also owns account administration.
type AuthService interface {
	Register(ctx context.Context, req dto.RegisterRequest) (*dto.AccountResponse, error)
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error)
	Authenticate(ctx context.Context, token string) (*model.Identity, error)
	Me(ctx context.Context, id uuid.UUID) (*dto.AccountResponse, error)

	CreateAccount(ctx context.Context, caller model.Identity, req dto.CreateAccountRequest) (*dto.AccountResponse, error)
	ListAccounts(ctx context.Context, includeInactive bool) ([]dto.AccountResponse, error)
	UpdateAccount(ctx context.Context, caller model.Identity, id uuid.UUID, req dto.UpdateAccountRequest) (*dto.AccountResponse, error)
	DeactivateAccount(ctx context.Context, caller model.Identity, id uuid.UUID) error
	ReactivateAccount(ctx context.Context, caller model.Identity, id uuid.UUID) error
}

type authService struct {
	repo repository.AccountRepository
	gyms repository.GymRepository
	cfg  *config.Config
}

func NewAuthService(repo repository.AccountRepository, gyms repository.GymRepository, cfg *config.Config) AuthService {
	return &authService{repo: repo, gyms: gyms, cfg: cfg}
}

// ── Self-service ──────────────────────────────────────────────────────────────

// Register creates a Member with a zero balance. Points arrive only through
// the ledger.
func (s *authService) Register(ctx context.Context, req dto.RegisterRequest) (*dto.AccountResponse, error) {
	return s.create(ctx, req.Email, req.Name, req.Password, model.RoleMember)
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	acc, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil || !acc.Active {
		return nil, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errBadCredentials
	}
	return s.issueTokens(ctx, acc)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error) {
	id, err := s.parseToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	acc, err := s.repo.FindByID(ctx, id)
	if err != nil || !acc.Active {
		return nil, apierror.Wrap(apierror.KindUnauthenticated, "account not found or inactive", nil)
	}
	return s.issueTokens(ctx, acc)
}

// Authenticate re-reads role and active flag from storage so a deactivation
// or role change applies to tokens that are already out there.
func (s *authService) Authenticate(ctx context.Context, token string) (*model.Identity, error) {
	id, err := s.parseToken(token, tokenTypeAccess)
	if err != nil {
		return nil, err
	}
	acc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.ErrUnauthenticated
		}
		return nil, apierror.Internal(err)
	}
	if !acc.Active {
		return nil, apierror.Wrap(apierror.KindUnauthenticated, "account is deactivated", nil)
	}
	return &model.Identity{AccountID: acc.ID, Role: acc.Role, IsActive: acc.Active}, nil
}

func (s *authService) Me(ctx context.Context, id uuid.UUID) (*dto.AccountResponse, error) {
	acc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "account")
	}
	return s.toResponse(ctx, acc)
}

// ── Administration ────────────────────────────────────────────────────────────

func (s *authService) CreateAccount(ctx context.Context, caller model.Identity, req dto.CreateAccountRequest) (*dto.AccountResponse, error) {
	role := model.Role(req.Role)
	if err := s.ensureMayAssign(caller, role); err != nil {
		return nil, err
	}
	return s.create(ctx, req.Email, req.Name, req.Password, role)
}

func (s *authService) ListAccounts(ctx context.Context, includeInactive bool) ([]dto.AccountResponse, error) {
	var accounts []model.Account
	var err error
	if includeInactive {
		accounts, err = s.repo.ListAll(ctx)
	} else {
		accounts, err = s.repo.List(ctx)
	}
	if err != nil {
		return nil, apierror.Internal(err)
	}
	resp := make([]dto.AccountResponse, 0, len(accounts))
	for i := range accounts {
		r, err := s.toResponse(ctx, &accounts[i])
		if err != nil {
			return nil, err
		}
		resp = append(resp, *r)
	}
	return resp, nil
}

// UpdateAccount edits profile fields and role. The balance is not reachable
// from here.
func (s *authService) UpdateAccount(ctx context.Context, caller model.Identity, id uuid.UUID, req dto.UpdateAccountRequest) (*dto.AccountResponse, error) {
	acc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "account")
	}
	if err := s.ensureMayAssign(caller, acc.Role); err != nil {
		return nil, err
	}
	if req.Name != "" {
		acc.Name = req.Name
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != acc.Email {
			if err := s.ensureEmailFree(ctx, email); err != nil {
				return nil, err
			}
		}
		acc.Email = email
	}
	if req.Role != "" {
		role := model.Role(req.Role)
		if err := s.ensureMayAssign(caller, role); err != nil {
			return nil, err
		}
		acc.Role = role
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if err != nil {
			return nil, apierror.Internal(err)
		}
		acc.PasswordHash = string(hash)
	}

	// Members administer no gyms, so a demotion drops the links with it.
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.UpdateProfileTx(ctx, tx, acc); err != nil {
			return err
		}
		if acc.Role == model.RoleMember {
			return s.gyms.RemoveAccountAdminLinksTx(ctx, tx, acc.ID)
		}
		return nil
	})
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return s.toResponse(ctx, acc)
}

// DeactivateAccount is a soft delete: accounts hold ledger history and are
// never removed.
func (s *authService) DeactivateAccount(ctx context.Context, caller model.Identity, id uuid.UUID) error {
	if id == caller.AccountID {
		return apierror.Wrap(apierror.KindForbidden, "cannot deactivate your own account", nil)
	}
	acc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "account")
	}
	if err := s.ensureMayAssign(caller, acc.Role); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return notFoundOr(err, "account")
	}
	return nil
}

func (s *authService) ReactivateAccount(ctx context.Context, caller model.Identity, id uuid.UUID) error {
	acc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "account")
	}
	if err := s.ensureMayAssign(caller, acc.Role); err != nil {
		return err
	}
	if err := s.repo.Reactivate(ctx, id); err != nil {
		return notFoundOr(err, "account")
	}
	return nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// ensureMayAssign keeps super_admin accounts under super_admin control.
func (s *authService) ensureMayAssign(caller model.Identity, role model.Role) error {
	if role == model.RoleSuperAdmin && caller.Role != model.RoleSuperAdmin {
		return apierror.Wrap(apierror.KindForbidden, "only a super admin can manage super admin accounts", nil)
	}
	return nil
}

func (s *authService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return apierror.Wrap(apierror.KindForbidden, "email already registered", nil)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apierror.Internal(err)
	}
	return nil
}

func (s *authService) create(ctx context.Context, email, name, password string, role model.Role) (*dto.AccountResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	acc := &model.Account{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	if err := s.repo.Create(ctx, acc); err != nil {
		return nil, apierror.Internal(err)
	}
	return s.toResponse(ctx, acc)
}

func (s *authService) issueTokens(ctx context.Context, acc *model.Account) (*dto.LoginResponse, error) {
	access, err := s.generateToken(acc, tokenTypeAccess, time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	refresh, err := s.generateToken(acc, tokenTypeRefresh, time.Duration(s.cfg.JWTRefreshHours)*time.Hour)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	profile, err := s.toResponse(ctx, acc)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    s.cfg.JWTExpirationHours * 3600,
		Account:      *profile,
	}, nil
}

func (s *authService) generateToken(acc *model.Account, typ string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"account_id": acc.ID.String(),
		"role":       string(acc.Role),
		"typ":        typ,
		"exp":        now.Add(duration).Unix(),
		"iat":        now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *authService) parseToken(raw, wantType string) (uuid.UUID, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, apierror.Wrap(apierror.KindUnauthenticated, "invalid or expired token", nil)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, apierror.ErrUnauthenticated
	}
	if typ, _ := claims["typ"].(string); typ != wantType {
		return uuid.Nil, apierror.Wrap(apierror.KindUnauthenticated, "wrong token type", nil)
	}
	idStr, _ := claims["account_id"].(string)
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, apierror.Wrap(apierror.KindUnauthenticated, "malformed token", nil)
	}
	return id, nil
}

func (s *authService) toResponse(ctx context.Context, acc *model.Account) (*dto.AccountResponse, error) {
	gymIDs, err := s.gyms.ListGymIDsForAccount(ctx, acc.ID)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	ids := make([]string, len(gymIDs))
	for i, id := range gymIDs {
		ids[i] = id.String()
	}
	return &dto.AccountResponse{
		ID:      acc.ID.String(),
		Email:   acc.Email,
		Name:    acc.Name,
		Role:    string(acc.Role),
		Balance: acc.Balance,
		Active:  acc.Active,
		GymIDs:  ids,
	}, nil
}
