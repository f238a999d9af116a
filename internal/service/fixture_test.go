package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Khaledxab/mygym-backend/internal/config"
	"github.com/Khaledxab/mygym-backend/internal/infra"
	"github.com/Khaledxab/mygym-backend/internal/model"
	"github.com/Khaledxab/mygym-backend/internal/repository"
	"github.com/Khaledxab/mygym-backend/internal/worker"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []worker.AccessEventJob
	emails []worker.EmailJob
}

func (d *recordingDispatcher) EnqueueAccessEvent(_ context.Context, job worker.AccessEventJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, job)
	return nil
}

func (d *recordingDispatcher) EnqueueEmail(_ context.Context, job worker.EmailJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emails = append(d.emails, job)
	return nil
}

type fixture struct {
	db       *gorm.DB
	accounts repository.AccountRepository
	gyms     repository.GymRepository
	sessions repository.QRSessionRepository
	txs      repository.TransactionRepository
	clock    *testClock
	jobs     *recordingDispatcher

	ledger LedgerService
	qr     QRService
	access AccessService
	auth   AuthService
	gym    GymService

	root model.Identity // super admin
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := infra.NewDatabase(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	f := &fixture{
		db:       db,
		accounts: repository.NewAccountRepository(db),
		gyms:     repository.NewGymRepository(db),
		sessions: repository.NewQRSessionRepository(db),
		txs:      repository.NewTransactionRepository(db),
		clock:    &testClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)},
		jobs:     &recordingDispatcher{},
	}
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpirationHours: 1, JWTRefreshHours: 24}

	f.ledger = NewLedgerService(f.accounts, f.gyms, f.txs, 3,
		WithRetryBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }))
	f.qr = NewQRService(f.gyms, f.sessions, DefaultQRTTL, WithClock(f.clock.Now))
	f.access = NewAccessService(f.accounts, f.gyms, f.qr, f.ledger, f.jobs, 20)
	f.auth = NewAuthService(f.accounts, f.gyms, cfg)
	f.gym = NewGymService(f.gyms, f.accounts)

	root := f.account(t, model.RoleSuperAdmin, 0)
	f.root = model.Identity{AccountID: root.ID, Role: model.RoleSuperAdmin, IsActive: true}
	return f
}

// account inserts directly; the opening balance is test setup, not a ledger
// movement.
func (f *fixture) account(t *testing.T, role model.Role, balance int64) *model.Account {
	t.Helper()
	a := &model.Account{
		Email:        uuid.NewString() + "@example.com",
		Name:         string(role),
		PasswordHash: "x",
		Role:         role,
		Balance:      balance,
		Active:       true,
	}
	require.NoError(t, f.accounts.Create(context.Background(), a))
	return a
}

func (f *fixture) newGym(t *testing.T, name string, price int64) *model.Gym {
	t.Helper()
	g := &model.Gym{Name: name, Address: "1 Main St", PointsRequired: price, Active: true}
	require.NoError(t, f.gyms.Create(context.Background(), g))
	return g
}

func (f *fixture) issue(t *testing.T, gymID uuid.UUID) string {
	t.Helper()
	resp, err := f.qr.Issue(context.Background(), f.root, gymID)
	require.NoError(t, err)
	return resp.Payload
}

func (f *fixture) balance(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	a, err := f.accounts.FindByID(context.Background(), id)
	require.NoError(t, err)
	return a.Balance
}

func (f *fixture) transactions(t *testing.T, accountID uuid.UUID) []model.Transaction {
	t.Helper()
	var recs []model.Transaction
	require.NoError(t, f.db.Where("account_id = ?", accountID).Find(&recs).Error)
	return recs
}

func identityOf(a *model.Account) model.Identity {
	return model.Identity{AccountID: a.ID, Role: a.Role, IsActive: a.Active}
}
