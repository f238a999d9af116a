package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Khaledxab/mygym-backend/internal/apierror"
	"github.com/Khaledxab/mygym-backend/internal/dto"
	"github.com/Khaledxab/mygym-backend/internal/model"
	"github.com/Khaledxab/mygym-backend/internal/permission"
	"github.com/Khaledxab/mygym-backend/internal/repository"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ApplyRequest is one point movement submitted to the ledger engine.
type ApplyRequest struct {
	AccountID    uuid.UUID
	GymID        *uuid.UUID
	Amount       int64
	Direction    model.Direction
	Description  string
	Metadata     map[string]any
	AuthorizedBy uuid.UUID
}

// LedgerService owns every balance mutation. A balance change and its
// transaction record commit together or not at all.
type LedgerService interface {
	ApplyTransaction(ctx context.Context, req ApplyRequest) (*model.Transaction, error)
	ManualAdjust(ctx context.Context, caller model.Identity, req dto.AdjustPointsRequest) (*dto.TransactionResponse, error)
	GetTransaction(ctx context.Context, caller model.Identity, id uuid.UUID) (*dto.TransactionResponse, error)
	ListTransactions(ctx context.Context, caller model.Identity, filter dto.TransactionFilter) (*dto.TransactionListResponse, error)
}

type ledgerService struct {
	accounts   repository.AccountRepository
	gyms       repository.GymRepository
	txs        repository.TransactionRepository
	maxRetries int
	newBackOff func() backoff.BackOff
}

// LedgerOption customizes a ledger service.
type LedgerOption func(*ledgerService)

// WithRetryBackOff replaces the backoff used between manual-adjust retries.
func WithRetryBackOff(fn func() backoff.BackOff) LedgerOption {
	return func(s *ledgerService) { s.newBackOff = fn }
}

func NewLedgerService(
	accounts repository.AccountRepository,
	gyms repository.GymRepository,
	txs repository.TransactionRepository,
	maxRetries int,
	opts ...LedgerOption,
) LedgerService {
	if maxRetries < 1 {
		maxRetries = 1
	}
	s := &ledgerService{
		accounts:   accounts,
		gyms:       gyms,
		txs:        txs,
		maxRetries: maxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 20 * time.Millisecond
			b.MaxInterval = 250 * time.Millisecond
			return b
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ── ApplyTransaction ──────────────────────────────────────────────────────────
// One unit of work:
//  1. load account (NotFound)
//  2. resolve gym when given (NotFound)
//  3. insert record PENDING
//  4. compute balance; SPEND below zero aborts with InsufficientPoints
//  5. compare-and-swap the balance on account.version (ConcurrentModification)
//  6. flip record to COMPLETED
//
// Any error rolls the whole unit back; the PENDING row is never visible.
func (s *ledgerService) ApplyTransaction(ctx context.Context, req ApplyRequest) (_ *model.Transaction, err error) {
	ctx, span := tracer.Start(ctx, "ledger.ApplyTransaction", trace.WithAttributes(
		attribute.String("account_id", req.AccountID.String()),
		attribute.String("direction", string(req.Direction)),
		attribute.Int64("amount", req.Amount),
	))
	defer func() { endSpan(span, err) }()

	if req.Amount <= 0 {
		return nil, apierror.ErrInvalidAmount
	}
	if !req.Direction.Valid() {
		return nil, apierror.Internal(fmt.Errorf("ledger: unknown direction %q", req.Direction))
	}

	var meta datatypes.JSON
	if len(req.Metadata) > 0 {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, apierror.Internal(err)
		}
		meta = datatypes.JSON(raw)
	}

	var rec *model.Transaction
	err = runTx(ctx, s.accounts.DB(), func(tx *gorm.DB) error {
		acc, err := s.accounts.FindByIDTx(ctx, tx, req.AccountID)
		if err != nil {
			return notFoundOr(err, "account")
		}
		if req.GymID != nil {
			if _, err := s.gyms.FindByIDTx(ctx, tx, *req.GymID); err != nil {
				return notFoundOr(err, "gym")
			}
		}

		rec = &model.Transaction{
			AccountID:    acc.ID,
			GymID:        req.GymID,
			Amount:       req.Amount,
			Direction:    req.Direction,
			Status:       model.StatusPending,
			Description:  req.Description,
			Metadata:     meta,
			BalanceAfter: acc.Balance,
			CreatedBy:    req.AuthorizedBy,
		}
		if err := s.txs.CreateTx(ctx, tx, rec); err != nil {
			return err
		}

		newBalance := acc.Balance + rec.Signed()
		if newBalance < 0 {
			return apierror.ErrInsufficientPoints
		}

		if err := s.accounts.UpdateBalanceTx(ctx, tx, acc.ID, acc.Version, newBalance); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return apierror.ErrConcurrentModification
			}
			return err
		}

		if err := s.txs.CompleteTx(ctx, tx, rec.ID, newBalance); err != nil {
			return err
		}
		rec.Status = model.StatusCompleted
		rec.BalanceAfter = newBalance
		return nil
	})
	if err != nil {
		err = classify(err)
		log.Warn().
			Str("account_id", req.AccountID.String()).
			Str("direction", string(req.Direction)).
			Int64("amount", req.Amount).
			Str("kind", string(apierror.KindOf(err))).
			Err(err).
			Msg("ledger: unit aborted")
		return nil, err
	}

	log.Info().
		Str("transaction_id", rec.ID.String()).
		Str("account_id", rec.AccountID.String()).
		Str("direction", string(rec.Direction)).
		Int64("amount", rec.Amount).
		Int64("balance_after", rec.BalanceAfter).
		Msg("ledger: transaction committed")
	return rec, nil
}

// ── Manual grant / charge ─────────────────────────────────────────────────────

// ManualAdjust applies an operator-initiated EARN or SPEND. Optimistic-lock
// conflicts are retried with backoff up to maxRetries attempts; every other
// error is returned on first occurrence.
func (s *ledgerService) ManualAdjust(ctx context.Context, caller model.Identity, req dto.AdjustPointsRequest) (*dto.TransactionResponse, error) {
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return nil, apierror.NotFound("account")
	}

	var gymID *uuid.UUID
	if req.GymID != nil && *req.GymID != "" {
		id, err := uuid.Parse(*req.GymID)
		if err != nil {
			return nil, apierror.NotFound("gym")
		}
		if err := ensureAdministers(ctx, s.gyms, caller, id); err != nil {
			return nil, err
		}
		gymID = &id
	}

	apply := ApplyRequest{
		AccountID:    accountID,
		GymID:        gymID,
		Amount:       amount,
		Direction:    model.Direction(req.Direction),
		Description:  req.Description,
		Metadata:     map[string]any{"source": "manual"},
		AuthorizedBy: caller.AccountID,
	}

	attempt := 0
	rec, err := backoff.Retry(ctx, func() (*model.Transaction, error) {
		attempt++
		rec, err := s.ApplyTransaction(ctx, apply)
		if err != nil && !apierror.IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		if err != nil {
			log.Debug().Int("attempt", attempt).Msg("ledger: concurrent modification, retrying")
		}
		return rec, err
	},
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(uint(s.maxRetries)),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		return nil, err
	}
	resp := toTransactionResponse(rec)
	return &resp, nil
}

// ParseAmount accepts only positive whole numbers.
func ParseAmount(d decimal.Decimal) (int64, error) {
	if !d.IsInteger() || !d.IsPositive() {
		return 0, apierror.ErrInvalidAmount
	}
	if d.GreaterThan(decimal.NewFromInt(1 << 53)) {
		return 0, apierror.Wrap(apierror.KindInvalidAmount, "amount is too large", nil)
	}
	return d.IntPart(), nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *ledgerService) GetTransaction(ctx context.Context, caller model.Identity, id uuid.UUID) (*dto.TransactionResponse, error) {
	rec, err := s.txs.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "transaction")
	}
	if rec.AccountID != caller.AccountID && !permission.Allowed(caller.Role, permission.TransactionsReadAny) {
		// same answer as a missing record
		return nil, apierror.NotFound("transaction")
	}
	resp := toTransactionResponse(rec)
	return &resp, nil
}

// ListTransactions returns the log newest first. Callers without
// transactions:read_any only ever see their own records.
func (s *ledgerService) ListTransactions(ctx context.Context, caller model.Identity, filter dto.TransactionFilter) (*dto.TransactionListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}

	f := repository.TransactionFilter{
		Direction: model.Direction(filter.Direction),
		Offset:    (filter.Page - 1) * filter.Limit,
		Limit:     filter.Limit,
	}
	if permission.Allowed(caller.Role, permission.TransactionsReadAny) {
		if filter.AccountID != "" {
			id, err := uuid.Parse(filter.AccountID)
			if err != nil {
				return nil, apierror.NotFound("account")
			}
			f.AccountID = &id
		}
	} else {
		own := caller.AccountID
		f.AccountID = &own
	}
	if filter.GymID != "" {
		id, err := uuid.Parse(filter.GymID)
		if err != nil {
			return nil, apierror.NotFound("gym")
		}
		f.GymID = &id
	}

	recs, total, err := s.txs.List(ctx, f)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	data := make([]dto.TransactionResponse, len(recs))
	for i := range recs {
		data[i] = toTransactionResponse(&recs[i])
	}
	return &dto.TransactionListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func toTransactionResponse(t *model.Transaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:           t.ID.String(),
		AccountID:    t.AccountID.String(),
		Amount:       t.Amount,
		Direction:    string(t.Direction),
		Status:       string(t.Status),
		Description:  t.Description,
		BalanceAfter: t.BalanceAfter,
		CreatedBy:    t.CreatedBy.String(),
		CreatedAt:    t.CreatedAt,
	}
	if t.GymID != nil {
		g := t.GymID.String()
		resp.GymID = &g
	}
	if len(t.Metadata) > 0 {
		resp.Metadata = json.RawMessage(t.Metadata)
	}
	return resp
}
