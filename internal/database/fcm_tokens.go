package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"lorry-backend/internal/models"
)

// UpsertFCMToken registers a device token for a user. A token that already exists
// is moved to the user and its device type refreshed.
func UpsertFCMToken(ctx context.Context, q sqlx.ExtContext, userID, token string, deviceType models.DeviceType, now int64) error {
	query := q.Rebind(`
		INSERT INTO fcm_tokens (id, user_id, token, device_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (token) DO UPDATE SET
			user_id = excluded.user_id,
			device_type = excluded.device_type,
			updated_at = excluded.updated_at
	`)
	if _, err := q.ExecContext(ctx, query, uuid.New().String(), userID, token, deviceType, now, now); err != nil {
		return fmt.Errorf("failed to save FCM token: %w", err)
	}
	return nil
}

func ListFCMTokens(ctx context.Context, q sqlx.ExtContext, userID string) ([]string, error) {
	tokens := []string{}
	query := q.Rebind(`SELECT token FROM fcm_tokens WHERE user_id = ? ORDER BY updated_at DESC`)
	if err := sqlx.SelectContext(ctx, q, &tokens, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list FCM tokens: %w", err)
	}
	return tokens, nil
}

// DeleteFCMToken removes a token FCM reported as no longer registered
func DeleteFCMToken(ctx context.Context, q sqlx.ExtContext, token string) error {
	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM fcm_tokens WHERE token = ?`), token); err != nil {
		return fmt.Errorf("failed to delete FCM token: %w", err)
	}
	return nil
}
