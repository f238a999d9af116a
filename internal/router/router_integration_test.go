//go:build integration

package router

// Runs the HTTP surface against real Postgres and Redis containers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Khaledxab/mygym-backend/internal/config"
	"github.com/Khaledxab/mygym-backend/internal/dto"
	"github.com/Khaledxab/mygym-backend/internal/infra"
	"github.com/Khaledxab/mygym-backend/internal/model"
	"github.com/Khaledxab/mygym-backend/internal/repository"
	"github.com/Khaledxab/mygym-backend/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type stack struct {
	api  api
	db   *gorm.DB
	root string
}

func setupStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.Run(ctx, "postgres:16-alpine",
		tcPostgres.WithDatabase("mygym_test"),
		tcPostgres.WithUsername("mygym"),
		tcPostgres.WithPassword("mygym"),
		testcontainers.WithWaitStrategy(tcPostgres.BasicWaitStrategies()...),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })
	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })
	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Env:                 "test",
		CORSOrigins:         "*",
		JWTSecret:           "integration-secret",
		JWTExpirationHours:  1,
		JWTRefreshHours:     24,
		DatabaseURL:         pgURL,
		RedisURL:            rdURL,
		WorkerPoolSize:      2,
		QRTTL:               24 * time.Hour,
		LedgerMaxRetries:    3,
		LowBalanceThreshold: 20,
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(ctx, cfg.RedisURL)
	require.NoError(t, err)

	workerCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	worker.StartWorkerPool(workerCtx, rdb, &worker.WorkerHandlers{
		AccessEvents: worker.NewAccessEventWorker(repository.NewAccessEventRepository(db)),
	}, cfg.WorkerPoolSize)

	hash, err := bcrypt.GenerateFromPassword([]byte("root-password"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, repository.NewAccountRepository(db).Create(ctx, &model.Account{
		Email: "root@example.com", Name: "Root", PasswordHash: string(hash),
		Role: model.RoleSuperAdmin, Active: true,
	}))

	a := api{t: t, r: New(cfg, db, rdb, nil)}
	return &stack{api: a, db: db, root: a.login("root@example.com", "root-password")}
}

func TestIntegration_ConcurrentScansNeverOverdraw(t *testing.T) {
	s := setupStack(t)
	a := s.api

	w := a.do(http.MethodPost, "/v1/auth/register", "", dto.RegisterRequest{
		Email: "racer@example.com", Name: "Racer", Password: "member-password",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	member := decode[dto.AccountResponse](t, w)
	token := a.login("racer@example.com", "member-password")

	gym := decode[dto.GymResponse](t, a.do(http.MethodPost, "/v1/gyms", s.root,
		dto.CreateGymRequest{Name: "Central", PointsRequired: 10}))
	w = a.do(http.MethodPost, "/v1/transactions", s.root, map[string]any{
		"account_id": member.ID, "amount": 30, "direction": "EARN", "description": "seed",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	qr := decode[dto.IssueQRResponse](t, a.do(http.MethodPost, "/v1/gyms/"+gym.ID+"/qr", s.root, nil))

	const attempts = 10
	codes := make([]int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = a.do(http.MethodPost, "/v1/access/scan", token, dto.ScanRequest{Payload: qr.Payload}).Code
		}(i)
	}
	wg.Wait()

	granted := 0
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			granted++
		case http.StatusPaymentRequired, http.StatusConflict:
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	assert.LessOrEqual(t, granted, 3)
	assert.GreaterOrEqual(t, granted, 1)

	me := decode[dto.AccountResponse](t, a.do(http.MethodGet, "/v1/me", token, nil))
	assert.EqualValues(t, 30-10*granted, me.Balance)

	var sum int64
	require.NoError(t, s.db.Model(&model.Transaction{}).
		Where("account_id = ? AND status = ?", member.ID, model.StatusCompleted).
		Select("COALESCE(SUM(CASE WHEN direction = 'EARN' THEN amount ELSE -amount END), 0)").
		Scan(&sum).Error)
	assert.Equal(t, me.Balance, sum)

	// every terminal scan decision lands in the audit table via the queue
	assert.Eventually(t, func() bool {
		var n int64
		s.db.Model(&model.AccessEvent{}).Where("account_id = ?", member.ID).Count(&n)
		return n == attempts
	}, 15*time.Second, 200*time.Millisecond)
}

func TestIntegration_HealthReportsRedis(t *testing.T) {
	s := setupStack(t)
	w := s.api.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "connected", body["redis"])
	assert.Contains(t, body, "dead_letters")
}
