package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/Khaledxab/mygym-backend/internal/apierror"
	"github.com/Khaledxab/mygym-backend/internal/dto"
	"github.com/Khaledxab/mygym-backend/internal/infra"
	"github.com/Khaledxab/mygym-backend/internal/model"
	"github.com/Khaledxab/mygym-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// DefaultQRTTL is the validity window of an issued code.
const DefaultQRTTL = 24 * time.Hour

// QRService issues and checks gym entry codes. Each gym has at most one
// current session; issuing replaces it, and only the current session's token
// verifies, and only until it expires.
type QRService interface {
	Issue(ctx context.Context, caller model.Identity, gymID uuid.UUID) (*dto.IssueQRResponse, error)
	Verify(ctx context.Context, rawPayload string, gymID uuid.UUID) bool
	Status(ctx context.Context, caller model.Identity, gymID uuid.UUID) (*dto.QRStatusResponse, error)
	WritePoster(ctx context.Context, caller model.Identity, gymID uuid.UUID, w io.Writer) error

	// ValidatePayload runs checks (b) to (e) against an already parsed payload
	// and resolved gym, returning the matching session.
	ValidatePayload(ctx context.Context, p *dto.QRPayload, gym *model.Gym) (*model.QRSession, error)
}

type qrService struct {
	gyms     repository.GymRepository
	sessions repository.QRSessionRepository
	ttl      time.Duration
	now      func() time.Time
}

// QROption customizes a QR service.
type QROption func(*qrService)

// WithClock replaces time.Now, for expiry tests.
func WithClock(now func() time.Time) QROption {
	return func(s *qrService) { s.now = now }
}

func NewQRService(gyms repository.GymRepository, sessions repository.QRSessionRepository, ttl time.Duration, opts ...QROption) QRService {
	if ttl <= 0 {
		ttl = DefaultQRTTL
	}
	s := &qrService{gyms: gyms, sessions: sessions, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ── Issue ─────────────────────────────────────────────────────────────────────

// Issue creates a new session bound to the gym's current price and makes it
// the gym's current session in the same unit of work. Concurrent issues for
// one gym are last-write-wins.
func (s *qrService) Issue(ctx context.Context, caller model.Identity, gymID uuid.UUID) (_ *dto.IssueQRResponse, err error) {
	ctx, span := tracer.Start(ctx, "qr.Issue", trace.WithAttributes(attribute.String("gym_id", gymID.String())))
	defer func() { endSpan(span, err) }()

	if err := ensureAdministers(ctx, s.gyms, caller, gymID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var sess *model.QRSession
	err = runTx(ctx, s.gyms.DB(), func(tx *gorm.DB) error {
		gym, err := s.gyms.FindByIDTx(ctx, tx, gymID)
		if err != nil {
			return notFoundOr(err, "gym")
		}
		if !gym.Active {
			return apierror.NotFound("gym")
		}

		sess = &model.QRSession{
			GymID:          gym.ID,
			Token:          uuid.NewString(),
			PointsRequired: gym.PointsRequired,
			IssuedAt:       now,
			ExpiresAt:      now.Add(s.ttl),
			IssuedBy:       caller.AccountID,
		}
		if err := s.sessions.CreateTx(ctx, tx, sess); err != nil {
			return err
		}
		return s.gyms.SetCurrentSessionTx(ctx, tx, gym.ID, sess.ID)
	})
	if err != nil {
		return nil, classify(err)
	}

	payload, err := EncodePayload(sess)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	png, err := infra.RenderQRPNG(payload, infra.DefaultQRSize)
	if err != nil {
		return nil, apierror.Internal(err)
	}

	log.Info().
		Str("gym_id", gymID.String()).
		Str("session_id", sess.ID.String()).
		Time("expires_at", sess.ExpiresAt).
		Msg("qr: session issued")

	return &dto.IssueQRResponse{
		Payload:   payload,
		ImagePNG:  base64.StdEncoding.EncodeToString(png),
		IssuedAt:  sess.IssuedAt,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// ── Verify ────────────────────────────────────────────────────────────────────

// Verify reports whether rawPayload is a currently valid code for gymID.
func (s *qrService) Verify(ctx context.Context, rawPayload string, gymID uuid.UUID) bool {
	p, err := ParsePayload(rawPayload)
	if err != nil {
		return false
	}
	gym, err := s.gyms.FindByID(ctx, gymID)
	if err != nil {
		return false
	}
	_, err = s.ValidatePayload(ctx, p, gym)
	return err == nil
}

func (s *qrService) ValidatePayload(ctx context.Context, p *dto.QRPayload, gym *model.Gym) (*model.QRSession, error) {
	if id, err := uuid.Parse(p.GymID); err != nil || id != gym.ID {
		return nil, apierror.ErrInvalidOrExpiredCode
	}
	if gym.CurrentSessionID == nil {
		return nil, apierror.ErrInvalidOrExpiredCode
	}
	sess, err := s.sessions.FindByID(ctx, *gym.CurrentSessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.ErrInvalidOrExpiredCode
		}
		return nil, apierror.Internal(err)
	}
	if s.now().After(sess.ExpiresAt) {
		return nil, apierror.ErrInvalidOrExpiredCode
	}
	if sess.Token != p.Token {
		return nil, apierror.ErrInvalidOrExpiredCode
	}
	return sess, nil
}

// ── Status ────────────────────────────────────────────────────────────────────

// Status is a pure read of the gym's current session.
func (s *qrService) Status(ctx context.Context, caller model.Identity, gymID uuid.UUID) (*dto.QRStatusResponse, error) {
	if err := ensureAdministers(ctx, s.gyms, caller, gymID); err != nil {
		return nil, err
	}
	sess, err := s.currentSession(ctx, gymID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return &dto.QRStatusResponse{}, nil
	}
	expiresAt := sess.ExpiresAt
	return &dto.QRStatusResponse{
		Present:   true,
		Expired:   s.now().After(sess.ExpiresAt),
		ExpiresAt: &expiresAt,
	}, nil
}

// ── Poster ────────────────────────────────────────────────────────────────────

// WritePoster renders the current session as a printable PDF.
func (s *qrService) WritePoster(ctx context.Context, caller model.Identity, gymID uuid.UUID, w io.Writer) error {
	if err := ensureAdministers(ctx, s.gyms, caller, gymID); err != nil {
		return err
	}
	gym, err := s.gyms.FindByID(ctx, gymID)
	if err != nil {
		return notFoundOr(err, "gym")
	}
	sess, err := s.currentSession(ctx, gymID)
	if err != nil {
		return err
	}
	if sess == nil {
		return apierror.NotFound("QR session")
	}
	if s.now().After(sess.ExpiresAt) {
		return apierror.ErrInvalidOrExpiredCode
	}

	payload, err := EncodePayload(sess)
	if err != nil {
		return apierror.Internal(err)
	}
	png, err := infra.RenderQRPNG(payload, infra.DefaultQRSize)
	if err != nil {
		return apierror.Internal(err)
	}
	if err := infra.WriteQRPoster(w, infra.PosterData{
		GymName:        gym.Name,
		GymAddress:     gym.Address,
		PointsRequired: sess.PointsRequired,
		IssuedAt:       sess.IssuedAt,
		ExpiresAt:      sess.ExpiresAt,
		QRPNG:          png,
	}); err != nil {
		return apierror.Internal(err)
	}
	return nil
}

// currentSession returns nil, nil when the gym has no session.
func (s *qrService) currentSession(ctx context.Context, gymID uuid.UUID) (*model.QRSession, error) {
	gym, err := s.gyms.FindByID(ctx, gymID)
	if err != nil {
		return nil, notFoundOr(err, "gym")
	}
	if gym.CurrentSessionID == nil {
		return nil, nil
	}
	sess, err := s.sessions.FindByID(ctx, *gym.CurrentSessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apierror.Internal(err)
	}
	return sess, nil
}

// ── Payload codec ─────────────────────────────────────────────────────────────

// EncodePayload renders the canonical QR content for a session.
func EncodePayload(sess *model.QRSession) (string, error) {
	raw, err := json.Marshal(dto.QRPayload{
		Token:          sess.Token,
		GymID:          sess.GymID.String(),
		PointsRequired: sess.PointsRequired,
		IssuedAt:       sess.IssuedAt.UTC(),
	})
	return string(raw), err
}

// ParsePayload decodes and shape-checks scanned QR content.
func ParsePayload(raw string) (*dto.QRPayload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apierror.ErrMalformedPayload
	}
	var p dto.QRPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, apierror.ErrMalformedPayload
	}
	if p.Token == "" || p.IssuedAt.IsZero() || p.PointsRequired < 0 {
		return nil, apierror.ErrMalformedPayload
	}
	if _, err := uuid.Parse(p.GymID); err != nil {
		return nil, apierror.ErrMalformedPayload
	}
	return &p, nil
}
