package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Khaledxab/mygym-backend/internal/apierror"
	"github.com/Khaledxab/mygym-backend/internal/dto"
	"github.com/Khaledxab/mygym-backend/internal/model"
	"github.com/Khaledxab/mygym-backend/internal/repository"
	"github.com/Khaledxab/mygym-backend/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ScanState is a step of a single scan attempt. Every attempt moves forward
// once through the states and ends in GRANTED or DENIED.
type ScanState string

const (
	ScanReceived       ScanState = "RECEIVED"
	ScanParsed         ScanState = "PARSED"
	ScanGymResolved    ScanState = "GYM_RESOLVED"
	ScanQRVerified     ScanState = "QR_VERIFIED"
	ScanBalanceChecked ScanState = "BALANCE_CHECKED"
	ScanGranted        ScanState = "GRANTED"
	ScanDenied         ScanState = "DENIED"
)

// JobDispatcher is the async side channel of the gateway. *worker.Dispatcher
// satisfies it.
type JobDispatcher interface {
	EnqueueAccessEvent(ctx context.Context, job worker.AccessEventJob) error
	EnqueueEmail(ctx context.Context, job worker.EmailJob) error
}

// AccessService turns a scanned QR code into a gym entry charge.
type AccessService interface {
	Scan(ctx context.Context, accountID uuid.UUID, req dto.ScanRequest) (*dto.ScanResponse, error)
}

type accessService struct {
	accounts            repository.AccountRepository
	gyms                repository.GymRepository
	qr                  QRService
	ledger              LedgerService
	dispatcher          JobDispatcher
	lowBalanceThreshold int64
}

// NewAccessService wires the gateway. dispatcher may be nil, in which case no
// audit events or notifications are queued.
func NewAccessService(
	accounts repository.AccountRepository,
	gyms repository.GymRepository,
	qr QRService,
	ledger LedgerService,
	dispatcher JobDispatcher,
	lowBalanceThreshold int64,
) AccessService {
	return &accessService{
		accounts:            accounts,
		gyms:                gyms,
		qr:                  qr,
		ledger:              ledger,
		dispatcher:          dispatcher,
		lowBalanceThreshold: lowBalanceThreshold,
	}
}

// scanAttempt carries one pass through the state machine.
type scanAttempt struct {
	state     ScanState
	accountID uuid.UUID
	req       dto.ScanRequest
	gym       *model.Gym
	token     string
	txID      *uuid.UUID
}

func (a *scanAttempt) advance(to ScanState) {
	log.Debug().
		Str("account_id", a.accountID.String()).
		Str("from", string(a.state)).
		Str("to", string(to)).
		Msg("access: scan transition")
	a.state = to
}

// ── Scan ──────────────────────────────────────────────────────────────────────
// RECEIVED → PARSED → GYM_RESOLVED → QR_VERIFIED → BALANCE_CHECKED → GRANTED,
// DENIED from any step. No retries here: a ConcurrentModification from the
// ledger goes straight back to the turnstile.
func (s *accessService) Scan(ctx context.Context, accountID uuid.UUID, req dto.ScanRequest) (_ *dto.ScanResponse, err error) {
	ctx, span := tracer.Start(ctx, "access.Scan", trace.WithAttributes(attribute.String("account_id", accountID.String())))
	defer func() { endSpan(span, err) }()

	a := &scanAttempt{state: ScanReceived, accountID: accountID, req: req}

	payload, err := ParsePayload(req.Payload)
	if err != nil {
		return nil, s.deny(ctx, a, err)
	}
	a.token = payload.Token
	a.advance(ScanParsed)

	gymID, _ := uuid.Parse(payload.GymID) // shape already checked
	gym, err := s.gyms.FindByID(ctx, gymID)
	if err != nil {
		return nil, s.deny(ctx, a, notFoundOr(err, "gym"))
	}
	if !gym.Active {
		return nil, s.deny(ctx, a, apierror.NotFound("gym"))
	}
	a.gym = gym
	a.advance(ScanGymResolved)

	sess, err := s.qr.ValidatePayload(ctx, payload, gym)
	if err != nil {
		return nil, s.deny(ctx, a, err)
	}
	a.advance(ScanQRVerified)

	acc, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, s.deny(ctx, a, notFoundOr(err, "account"))
	}

	// The price frozen into the session at issuance is what gets charged.
	price := sess.PointsRequired
	newBalance := acc.Balance
	if price > 0 {
		rec, err := s.ledger.ApplyTransaction(ctx, ApplyRequest{
			AccountID:   accountID,
			GymID:       &gym.ID,
			Amount:      price,
			Direction:   model.DirectionSpend,
			Description: "Gym access: " + gym.Name,
			Metadata: map[string]any{
				"qrToken":    payload.Token,
				"deviceInfo": req.DeviceInfo,
				"location":   req.Location,
			},
			AuthorizedBy: accountID,
		})
		if err != nil {
			return nil, s.deny(ctx, a, err)
		}
		a.txID = &rec.ID
		newBalance = rec.BalanceAfter
	}
	a.advance(ScanBalanceChecked)

	a.advance(ScanGranted)
	s.recordDecision(ctx, a, "")
	s.notifyLowBalance(ctx, acc, newBalance+price, newBalance)

	log.Info().
		Str("account_id", accountID.String()).
		Str("gym_id", gym.ID.String()).
		Int64("charged", price).
		Int64("new_balance", newBalance).
		Msg("access: GRANTED")

	resp := &dto.ScanResponse{Granted: true, NewBalance: newBalance, GymName: gym.Name}
	if a.txID != nil {
		resp.TransactionID = a.txID.String()
	}
	return resp, nil
}

// deny moves the attempt to DENIED, records it and returns the classified
// error for the caller.
func (s *accessService) deny(ctx context.Context, a *scanAttempt, cause error) error {
	err := classify(cause)
	from := a.state
	a.advance(ScanDenied)
	s.recordDecision(ctx, a, string(apierror.KindOf(err)))

	log.Info().
		Str("account_id", a.accountID.String()).
		Str("at", string(from)).
		Str("reason", string(apierror.KindOf(err))).
		Msg("access: DENIED")
	return err
}

// recordDecision queues the audit event. Queue failures are logged only.
func (s *accessService) recordDecision(ctx context.Context, a *scanAttempt, reason string) {
	if s.dispatcher == nil {
		return
	}
	job := worker.AccessEventJob{
		AccountID:     a.accountID,
		Granted:       a.state == ScanGranted,
		State:         string(a.state),
		Reason:        reason,
		QRToken:       a.token,
		DeviceInfo:    a.req.DeviceInfo,
		Location:      a.req.Location,
		TransactionID: a.txID,
		DecidedAt:     time.Now().UTC(),
	}
	if a.gym != nil {
		job.GymID = &a.gym.ID
	}
	if err := s.dispatcher.EnqueueAccessEvent(ctx, job); err != nil {
		log.Error().Err(err).Str("account_id", a.accountID.String()).Msg("access: enqueue access event")
	}
}

// notifyLowBalance queues a warning the first time a charge takes the
// balance under the threshold.
func (s *accessService) notifyLowBalance(ctx context.Context, acc *model.Account, before, after int64) {
	if s.dispatcher == nil || s.lowBalanceThreshold <= 0 {
		return
	}
	if !(before >= s.lowBalanceThreshold && after < s.lowBalanceThreshold) {
		return
	}
	job := worker.EmailJob{
		ToEmail: acc.Email,
		Subject: "Your gym points are running low",
		Body: fmt.Sprintf("Hi %s,\n\nYour balance is now %d points. Top up soon to keep access to your gyms.\n",
			acc.Name, after),
	}
	if err := s.dispatcher.EnqueueEmail(ctx, job); err != nil {
		log.Error().Err(err).Str("account_id", acc.ID.String()).Msg("access: enqueue low-balance email")
	}
}
