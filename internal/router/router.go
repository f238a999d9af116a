package router

import (
	"time"

	"github.com/Khaledxab/mygym-backend/internal/config"
	"github.com/Khaledxab/mygym-backend/internal/handler"
	"github.com/Khaledxab/mygym-backend/internal/infra"
	"github.com/Khaledxab/mygym-backend/internal/middleware"
	"github.com/Khaledxab/mygym-backend/internal/permission"
	"github.com/Khaledxab/mygym-backend/internal/repository"
	"github.com/Khaledxab/mygym-backend/internal/service"
	"github.com/Khaledxab/mygym-backend/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// rdb and smtpCB may be nil; scans then run without audit or notification jobs.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, smtpCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	accountRepo := repository.NewAccountRepository(db)
	gymRepo := repository.NewGymRepository(db)
	sessionRepo := repository.NewQRSessionRepository(db)
	txRepo := repository.NewTransactionRepository(db)

	// Worker dispatcher, injected into the gateway for async jobs
	var dispatcher service.JobDispatcher
	if rdb != nil {
		dispatcher = worker.NewDispatcher(rdb)
	}

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(accountRepo, gymRepo, cfg)
	gymSvc := service.NewGymService(gymRepo, accountRepo)
	ledgerSvc := service.NewLedgerService(accountRepo, gymRepo, txRepo, cfg.LedgerMaxRetries)
	qrSvc := service.NewQRService(gymRepo, sessionRepo, cfg.QRTTL)
	accessSvc := service.NewAccessService(accountRepo, gymRepo, qrSvc, ledgerSvc, dispatcher, cfg.LowBalanceThreshold)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	accountsH := handler.NewAccountsHandler(authSvc)
	gymsH := handler.NewGymsHandler(gymSvc)
	qrH := handler.NewQRHandler(qrSvc)
	accessH := handler.NewAccessHandler(accessSvc)
	txH := handler.NewTransactionsHandler(ledgerSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, smtpCB))

	auth := r.Group("/v1/auth", middleware.LoginRateLimiter())
	{
		auth.POST("/login", authH.Login)
		auth.POST("/refresh", authH.Refresh)
		auth.POST("/register", authH.Register)
	}

	// Protected routes
	v1 := r.Group("/v1", middleware.JWTAuth(authSvc))
	{
		v1.GET("/me", authH.Me)
		v1.GET("/me/transactions", middleware.RequirePermission(permission.TransactionsReadOwn), txH.Mine)

		v1.POST("/access/scan", middleware.RequirePermission(permission.AccessScan), accessH.Scan)

		gyms := v1.Group("/gyms")
		{
			read := middleware.RequirePermission(permission.GymsRead)
			manage := middleware.RequirePermission(permission.GymsManage)

			gyms.GET("", read, gymsH.List)
			gyms.GET("/:id", read, gymsH.Get)
			gyms.POST("", manage, gymsH.Create)
			gyms.PUT("/:id", manage, gymsH.Update)
			gyms.DELETE("/:id", manage, gymsH.Deactivate)
			gyms.POST("/:id/admins", manage, gymsH.AddAdmin)
			gyms.DELETE("/:id/admins/:account_id", manage, gymsH.RemoveAdmin)

			gyms.POST("/:id/qr", middleware.RequirePermission(permission.QRIssue), qrH.Issue)
			gyms.GET("/:id/qr/status", middleware.RequirePermission(permission.QRStatus), qrH.Status)
			gyms.GET("/:id/qr/poster", middleware.RequirePermission(permission.QRStatus), qrH.Poster)
		}

		txs := v1.Group("/transactions")
		{
			txs.POST("", middleware.RequirePermission(permission.PointsAdjust), txH.Adjust)
			txs.GET("", middleware.RequirePermission(permission.TransactionsReadAny), txH.List)
			txs.GET("/:id", middleware.RequirePermission(permission.TransactionsReadOwn), txH.Get)
		}

		accounts := v1.Group("/accounts", middleware.RequirePermission(permission.AccountsManage))
		{
			accounts.POST("", accountsH.Create)
			accounts.GET("", accountsH.List)
			accounts.PUT("/:id", accountsH.Update)
			accounts.DELETE("/:id", accountsH.Deactivate)
			accounts.PATCH("/:id/reactivate", accountsH.Reactivate)
		}
	}

	return r
}
