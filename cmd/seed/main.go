// seed bootstraps the first admin account for a fresh deployment.
// Idempotent: exits cleanly when the admin username already exists.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"trading-advisory/backend/internal/account/domain"
	accountrepo "trading-advisory/backend/internal/account/repository"
	"trading-advisory/backend/internal/config"
	"trading-advisory/backend/internal/db"
	"trading-advisory/backend/internal/security"
)

const (
	defaultAdminUsername = "admin"
	defaultAdminEmail    = "admin@example.com"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	username := envOr("SEED_ADMIN_USERNAME", defaultAdminUsername)
	email := envOr("SEED_ADMIN_EMAIL", defaultAdminEmail)
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		log.Fatal("SEED_ADMIN_PASSWORD is required")
	}
	if len(password) < 8 {
		log.Fatal("SEED_ADMIN_PASSWORD must be at least 8 characters")
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	accounts := accountrepo.NewPostgresRepository(database)
	if existing, err := accounts.GetByLogin(ctx, username); err != nil {
		log.Fatalf("lookup admin: %v", err)
	} else if existing != nil {
		log.Printf("admin %q already exists; nothing to do", username)
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash([]byte(password))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	admin := &domain.Account{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		Name:         "Platform Admin",
		Role:         domain.RoleAdmin,
		Status:       domain.StatusActive,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := admin.Validate(); err != nil {
		log.Fatalf("admin account: %v", err)
	}
	if err := accounts.Create(ctx, admin); err != nil {
		log.Fatalf("create admin: %v", err)
	}
	log.Printf("admin %q created (%s)", username, admin.ID)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
