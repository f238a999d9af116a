package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/Khaledxab/mygym-backend/internal/apierror"
	"github.com/Khaledxab/mygym-backend/internal/dto"
	"github.com/Khaledxab/mygym-backend/internal/model"
	"github.com/Khaledxab/mygym-backend/internal/repository"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func spend(accountID uuid.UUID, amount int64) ApplyRequest {
	return ApplyRequest{
		AccountID:    accountID,
		Amount:       amount,
		Direction:    model.DirectionSpend,
		Description:  "test charge",
		AuthorizedBy: accountID,
	}
}

func TestApplyTransaction_EarnAndSpend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, model.RoleMember, 10)

	rec, err := f.ledger.ApplyTransaction(ctx, ApplyRequest{
		AccountID:    acc.ID,
		Amount:       15,
		Direction:    model.DirectionEarn,
		Description:  "welcome bonus",
		Metadata:     map[string]any{"campaign": "spring"},
		AuthorizedBy: f.root.AccountID,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, rec.Status)
	assert.Equal(t, int64(25), rec.BalanceAfter)

	rec, err = f.ledger.ApplyTransaction(ctx, spend(acc.ID, 25))
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.BalanceAfter)
	assert.Equal(t, int64(0), f.balance(t, acc.ID))

	recs := f.transactions(t, acc.ID)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, model.StatusCompleted, r.Status)
	}
}

func TestApplyTransaction_InsufficientPointsLeavesNoRecord(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, model.RoleMember, 10)

	_, err := f.ledger.ApplyTransaction(context.Background(), spend(acc.ID, 30))
	assert.ErrorIs(t, err, apierror.ErrInsufficientPoints)
	assert.Equal(t, int64(10), f.balance(t, acc.ID))
	assert.Empty(t, f.transactions(t, acc.ID))
}

func TestApplyTransaction_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, model.RoleMember, 10)

	for _, amount := range []int64{0, -5} {
		_, err := f.ledger.ApplyTransaction(ctx, spend(acc.ID, amount))
		assert.ErrorIs(t, err, apierror.ErrInvalidAmount)
	}

	_, err := f.ledger.ApplyTransaction(ctx, spend(uuid.New(), 1))
	assert.ErrorIs(t, err, apierror.ErrNotFound)

	missingGym := uuid.New()
	req := spend(acc.ID, 1)
	req.GymID = &missingGym
	_, err = f.ledger.ApplyTransaction(ctx, req)
	assert.ErrorIs(t, err, apierror.ErrNotFound)

	assert.Equal(t, int64(10), f.balance(t, acc.ID))
	assert.Empty(t, f.transactions(t, acc.ID))
}

func TestApplyTransaction_StorageFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, model.RoleMember, 50)

	require.NoError(t, f.db.Callback().Update().Before("gorm:update").
		Register("test:fail_account_update", func(tx *gorm.DB) {
			if tx.Statement.Table == "accounts" {
				_ = tx.AddError(errors.New("disk I/O error"))
			}
		}))

	_, err := f.ledger.ApplyTransaction(context.Background(), spend(acc.ID, 20))
	require.Error(t, err)
	assert.Equal(t, apierror.KindInternal, apierror.KindOf(err))
	assert.NotContains(t, apierror.Message(err), "disk")

	require.NoError(t, f.db.Callback().Update().Remove("test:fail_account_update"))
	assert.Equal(t, int64(50), f.balance(t, acc.ID))
	assert.Empty(t, f.transactions(t, acc.ID))
}

// failingCompleteRepo fails the final PENDING → COMPLETED flip, after the
// balance has already been written inside the unit.
type failingCompleteRepo struct {
	repository.TransactionRepository
}

func (failingCompleteRepo) CompleteTx(context.Context, *gorm.DB, uuid.UUID, int64) error {
	return errors.New("connection reset")
}

func TestApplyTransaction_LateFailureRestoresBalance(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, model.RoleMember, 50)
	ledger := NewLedgerService(f.accounts, f.gyms, failingCompleteRepo{f.txs}, 1)

	_, err := ledger.ApplyTransaction(context.Background(), spend(acc.ID, 20))
	require.Error(t, err)

	assert.Equal(t, int64(50), f.balance(t, acc.ID))
	assert.Empty(t, f.transactions(t, acc.ID))
}

func TestApplyTransaction_ConcurrentSpends(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, model.RoleMember, 40)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ledger.ApplyTransaction(context.Background(), spend(acc.ID, 30))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t,
			errors.Is(err, apierror.ErrInsufficientPoints) || errors.Is(err, apierror.ErrConcurrentModification),
			"unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(10), f.balance(t, acc.ID))
	assert.Len(t, f.transactions(t, acc.ID), 1)
}

func TestApplyTransaction_BalanceNeverNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, model.RoleMember, 0)

	moves := []struct {
		dir    model.Direction
		amount int64
	}{
		{model.DirectionEarn, 5}, {model.DirectionSpend, 7}, {model.DirectionSpend, 5},
		{model.DirectionSpend, 1}, {model.DirectionEarn, 12}, {model.DirectionSpend, 11},
		{model.DirectionSpend, 2}, {model.DirectionEarn, 3}, {model.DirectionSpend, 4},
	}
	var expected int64
	for _, m := range moves {
		_, err := f.ledger.ApplyTransaction(ctx, ApplyRequest{
			AccountID: acc.ID, Amount: m.amount, Direction: m.dir,
			Description: "seq", AuthorizedBy: acc.ID,
		})
		if err == nil {
			if m.dir == model.DirectionEarn {
				expected += m.amount
			} else {
				expected -= m.amount
			}
		}
		bal := f.balance(t, acc.ID)
		assert.GreaterOrEqual(t, bal, int64(0))
		assert.Equal(t, expected, bal)
	}
}

// ── Manual grant / charge ─────────────────────────────────────────────────────

func TestManualAdjust_AdminGrant(t *testing.T) {
	f := newFixture(t)
	admin := f.account(t, model.RoleAdmin, 0)
	member := f.account(t, model.RoleMember, 5)

	resp, err := f.ledger.ManualAdjust(context.Background(), identityOf(admin), dto.AdjustPointsRequest{
		AccountID:   member.ID.String(),
		Amount:      decimal.NewFromInt(40),
		Direction:   "EARN",
		Description: "monthly top-up",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(45), f.balance(t, member.ID))
	assert.Equal(t, "COMPLETED", resp.Status)
	assert.Equal(t, "EARN", resp.Direction)
	assert.Equal(t, admin.ID.String(), resp.CreatedBy)
	assert.Nil(t, resp.GymID)

	recs := f.transactions(t, member.ID)
	require.Len(t, recs, 1)
	assert.Equal(t, admin.ID, recs[0].CreatedBy)
}

func TestManualAdjust_RejectsBadAmounts(t *testing.T) {
	f := newFixture(t)
	member := f.account(t, model.RoleMember, 5)

	for _, amount := range []string{"0", "-3", "2.5"} {
		_, err := f.ledger.ManualAdjust(context.Background(), f.root, dto.AdjustPointsRequest{
			AccountID:   member.ID.String(),
			Amount:      decimal.RequireFromString(amount),
			Direction:   "EARN",
			Description: "x",
		})
		assert.ErrorIs(t, err, apierror.ErrInvalidAmount, amount)
	}
	assert.Empty(t, f.transactions(t, member.ID))
}

func TestManualAdjust_GymOwnership(t *testing.T) {
	f := newFixture(t)
	admin := f.account(t, model.RoleAdmin, 0)
	member := f.account(t, model.RoleMember, 0)
	gym := f.newGym(t, "Harbor", 10)
	gymID := gym.ID.String()

	req := dto.AdjustPointsRequest{
		AccountID:   member.ID.String(),
		GymID:       &gymID,
		Amount:      decimal.NewFromInt(10),
		Direction:   "EARN",
		Description: "class refund",
	}
	_, err := f.ledger.ManualAdjust(context.Background(), identityOf(admin), req)
	assert.ErrorIs(t, err, apierror.ErrForbidden)

	require.NoError(t, f.gyms.AddAdmin(context.Background(), gym.ID, admin.ID))
	resp, err := f.ledger.ManualAdjust(context.Background(), identityOf(admin), req)
	require.NoError(t, err)
	require.NotNil(t, resp.GymID)
	assert.Equal(t, gymID, *resp.GymID)
}

// conflictingAccounts loses the version race a fixed number of times.
type conflictingAccounts struct {
	repository.AccountRepository
	mu        sync.Mutex
	conflicts int
	calls     int
}

func (r *conflictingAccounts) UpdateBalanceTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, version, balance int64) error {
	r.mu.Lock()
	r.calls++
	lose := r.calls <= r.conflicts
	r.mu.Unlock()
	if lose {
		return repository.ErrVersionConflict
	}
	return r.AccountRepository.UpdateBalanceTx(ctx, tx, id, version, balance)
}

func TestManualAdjust_RetriesConcurrentModification(t *testing.T) {
	f := newFixture(t)
	member := f.account(t, model.RoleMember, 0)
	accounts := &conflictingAccounts{AccountRepository: f.accounts, conflicts: 2}
	ledger := NewLedgerService(accounts, f.gyms, f.txs, 3,
		WithRetryBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }))

	_, err := ledger.ManualAdjust(context.Background(), f.root, dto.AdjustPointsRequest{
		AccountID: member.ID.String(), Amount: decimal.NewFromInt(7), Direction: "EARN", Description: "retry",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, accounts.calls)
	assert.Equal(t, int64(7), f.balance(t, member.ID))
	assert.Len(t, f.transactions(t, member.ID), 1)
}

func TestManualAdjust_GivesUpAfterBudget(t *testing.T) {
	f := newFixture(t)
	member := f.account(t, model.RoleMember, 0)
	accounts := &conflictingAccounts{AccountRepository: f.accounts, conflicts: 10}
	ledger := NewLedgerService(accounts, f.gyms, f.txs, 3,
		WithRetryBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }))

	_, err := ledger.ManualAdjust(context.Background(), f.root, dto.AdjustPointsRequest{
		AccountID: member.ID.String(), Amount: decimal.NewFromInt(7), Direction: "EARN", Description: "retry",
	})
	assert.ErrorIs(t, err, apierror.ErrConcurrentModification)
	assert.True(t, apierror.IsRetryable(err))
	assert.Equal(t, 3, accounts.calls)
	assert.Empty(t, f.transactions(t, member.ID))
}

func TestManualAdjust_TerminalErrorsAreNotRetried(t *testing.T) {
	f := newFixture(t)
	member := f.account(t, model.RoleMember, 3)
	accounts := &conflictingAccounts{AccountRepository: f.accounts}
	ledger := NewLedgerService(accounts, f.gyms, f.txs, 3)

	_, err := ledger.ManualAdjust(context.Background(), f.root, dto.AdjustPointsRequest{
		AccountID: member.ID.String(), Amount: decimal.NewFromInt(7), Direction: "SPEND", Description: "fine",
	})
	assert.ErrorIs(t, err, apierror.ErrInsufficientPoints)
	assert.Zero(t, accounts.calls)
}

// ── Queries ───────────────────────────────────────────────────────────────────

func TestTransactionQueries_MembersSeeOwnOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.account(t, model.RoleMember, 0)
	bob := f.account(t, model.RoleMember, 0)

	for _, acc := range []*model.Account{alice, alice, bob} {
		_, err := f.ledger.ApplyTransaction(ctx, ApplyRequest{
			AccountID: acc.ID, Amount: 5, Direction: model.DirectionEarn,
			Description: "grant", AuthorizedBy: f.root.AccountID,
		})
		require.NoError(t, err)
	}

	// asking for bob's history still yields alice's own
	list, err := f.ledger.ListTransactions(ctx, identityOf(alice), dto.TransactionFilter{
		AccountID: bob.ID.String(), Page: 1, Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.Total)
	for _, r := range list.Data {
		assert.Equal(t, alice.ID.String(), r.AccountID)
	}

	list, err = f.ledger.ListTransactions(ctx, f.root, dto.TransactionFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), list.Total)

	bobs := f.transactions(t, bob.ID)
	_, err = f.ledger.GetTransaction(ctx, identityOf(alice), bobs[0].ID)
	assert.ErrorIs(t, err, apierror.ErrNotFound)

	got, err := f.ledger.GetTransaction(ctx, f.root, bobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.BalanceAfter)
}

func TestApplyTransaction_MetadataStored(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, model.RoleMember, 0)

	rec, err := f.ledger.ApplyTransaction(context.Background(), ApplyRequest{
		AccountID: acc.ID, Amount: 1, Direction: model.DirectionEarn, Description: "meta",
		Metadata: map[string]any{"deviceInfo": "kiosk-3"}, AuthorizedBy: acc.ID,
	})
	require.NoError(t, err)

	got, err := f.ledger.GetTransaction(context.Background(), identityOf(acc), rec.ID)
	require.NoError(t, err)
	var meta map[string]string
	require.NoError(t, json.Unmarshal(got.Metadata, &meta))
	assert.Equal(t, "kiosk-3", meta["deviceInfo"])
}
