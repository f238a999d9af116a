// cmd/seeduser/main.go creates or resets the bootstrap super admin.
// Usage: SEED_EMAIL=... SEED_PASSWORD=... go run ./cmd/seeduser
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Khaledxab/mygym-backend/internal/config"
	"github.com/Khaledxab/mygym-backend/internal/infra"
	"github.com/Khaledxab/mygym-backend/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/clause"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	email := strings.ToLower(envOr("SEED_EMAIL", "admin@mygym.local"))
	password := envOr("SEED_PASSWORD", "change-me-now")
	name := envOr("SEED_NAME", "Super Admin")

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		log.Fatal().Err(err).Msg("bcrypt")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}

	acc := model.Account{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         model.RoleSuperAdmin,
		Active:       true,
	}
	// Balance and version are left alone on conflict so an existing ledger
	// history stays consistent.
	err = db.WithContext(context.Background()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash", "name", "role", "active"}),
	}).Create(&acc).Error
	if err != nil {
		log.Fatal().Err(err).Msg("upsert super admin")
	}
	fmt.Printf("super admin %q ready\n", email)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
