package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"lorry-backend/internal/apperrors"
	"lorry-backend/internal/models"
)

// CreateUser inserts a user. ID is generated when empty and the email is normalized.
// A taken email is a Conflict.
func CreateUser(ctx context.Context, q sqlx.ExtContext, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = models.NormalizeEmail(user.Email)

	query := q.Rebind(`
		INSERT INTO users (id, name, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err := q.ExecContext(ctx, query, user.ID, user.Name, user.Email, user.Password, user.Role, user.CreatedAt)
	if IsUniqueViolation(err) {
		return apperrors.Conflict("Email already in use")
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail returns nil when no user has that email
func GetUserByEmail(ctx context.Context, q sqlx.ExtContext, email string) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, q, &user, q.Rebind(`SELECT * FROM users WHERE email = ?`), models.NormalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// GetUserByID returns nil when the user does not exist
func GetUserByID(ctx context.Context, q sqlx.ExtContext, id string) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, q, &user, q.Rebind(`SELECT * FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func CountUsersByRole(ctx context.Context, q sqlx.ExtContext, role models.Role) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, q, &count, q.Rebind(`SELECT COUNT(*) FROM users WHERE role = ?`), role); err != nil {
		return 0, fmt.Errorf("failed to count %s users: %w", role, err)
	}
	return count, nil
}

// ListDrivers returns every driver, newest first
func ListDrivers(ctx context.Context, q sqlx.ExtContext) ([]models.User, error) {
	drivers := []models.User{}
	query := q.Rebind(`SELECT * FROM users WHERE role = ? ORDER BY created_at DESC, name ASC`)
	if err := sqlx.SelectContext(ctx, q, &drivers, query, models.RoleDriver); err != nil {
		return nil, fmt.Errorf("failed to list drivers: %w", err)
	}
	return drivers, nil
}

// ListActiveDrivers returns drivers that have an ongoing trip along with the
// latest point recorded on it (if any)
func ListActiveDrivers(ctx context.Context, q sqlx.ExtContext) ([]models.ActiveDriver, error) {
	drivers := []models.ActiveDriver{}
	query := `
		SELECT
			u.id AS driver_id,
			u.name AS driver_name,
			u.email,
			t.id AS trip_id,
			t.started_at,
			t.total_distance,
			p.latitude AS last_latitude,
			p.longitude AS last_longitude,
			p.recorded_at AS last_recorded_at
		FROM trips t
		INNER JOIN users u ON u.id = t.driver_id
		LEFT JOIN trip_points p ON p.id = (
			-- Most recent point on the trip
			SELECT p2.id FROM trip_points p2
			WHERE p2.trip_id = t.id
			ORDER BY p2.recorded_at DESC, p2.seq DESC
			LIMIT 1
		)
		WHERE t.status = 'ongoing'
		ORDER BY t.started_at DESC
	`
	if err := sqlx.SelectContext(ctx, q, &drivers, query); err != nil {
		return nil, fmt.Errorf("failed to list active drivers: %w", err)
	}
	return drivers, nil
}
