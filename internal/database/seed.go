package database

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"lorry-backend/internal/apperrors"
	"lorry-backend/internal/models"
)

type demoUser struct {
	name     string
	email    string
	password string
	role     models.Role
}

var demoUsers = []demoUser{
	{name: "Fleet Admin", email: "admin@example.com", password: "admin123", role: models.RoleAdmin},
	{name: "Alex Driver", email: "driver@example.com", password: "driver123", role: models.RoleDriver},
}

// SeedUsers creates the demo admin and driver. Each one is only created when no
// user with its role exists yet, so real accounts are never shadowed.
func SeedUsers(ctx context.Context, db *sqlx.DB) error {
	for _, demo := range demoUsers {
		count, err := CountUsersByRole(ctx, db, demo.role)
		if err != nil {
			return err
		}
		if count > 0 {
			log.Printf("✓ %s users already exist, skipping seed", demo.role)
			continue
		}

		log.Printf("🌱 Seeding %s user...", demo.role)
		hash, err := bcrypt.GenerateFromPassword([]byte(demo.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		user := &models.User{
			Name:      demo.name,
			Email:     demo.email,
			Password:  string(hash),
			Role:      demo.role,
			CreatedAt: time.Now().UnixMilli(),
		}
		if err := CreateUser(ctx, db, user); err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				log.Printf("⚠️  %s already belongs to another account, skipping %s seed", demo.email, demo.role)
				continue
			}
			return err
		}
		log.Printf("  📧 %s: %s / %s", demo.name, demo.email, demo.password)
	}
	return nil
}
