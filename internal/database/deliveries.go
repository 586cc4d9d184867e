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

func CreateDelivery(ctx context.Context, q sqlx.ExtContext, d *models.Delivery) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	query := q.Rebind(`
		INSERT INTO deliveries (id, title, origin, destination, scheduled_date, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if _, err := q.ExecContext(ctx, query, d.ID, d.Title, d.Origin, d.Destination, d.ScheduledDate, d.Notes, d.CreatedAt); err != nil {
		return fmt.Errorf("failed to create delivery: %w", err)
	}
	return nil
}

// GetDelivery returns nil when the delivery does not exist
func GetDelivery(ctx context.Context, q sqlx.ExtContext, id string) (*models.Delivery, error) {
	var d models.Delivery
	err := sqlx.GetContext(ctx, q, &d, q.Rebind(`SELECT * FROM deliveries WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}
	return &d, nil
}

// CountDeliveries returns how many of ids exist (ids must be distinct)
func CountDeliveries(ctx context.Context, q sqlx.ExtContext, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM deliveries WHERE id IN (?)`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to build delivery count query: %w", err)
	}
	var count int
	if err := sqlx.GetContext(ctx, q, &count, q.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("failed to count deliveries: %w", err)
	}
	return count, nil
}

// ListDeliveriesForAdmin returns every delivery, newest first, each with the
// drivers it is assigned to
func ListDeliveriesForAdmin(ctx context.Context, q sqlx.ExtContext) ([]models.AdminDelivery, error) {
	var deliveries []models.Delivery
	if err := sqlx.SelectContext(ctx, q, &deliveries, `SELECT * FROM deliveries ORDER BY created_at DESC, id ASC`); err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}

	var rows []struct {
		DeliveryID string `db:"delivery_id"`
		models.AssignmentView
	}
	query := `
		SELECT da.delivery_id, da.driver_id, u.name AS driver_name, da.status
		FROM delivery_assignments da
		INNER JOIN users u ON u.id = da.driver_id
		ORDER BY da.assigned_at ASC, u.name ASC
	`
	if err := sqlx.SelectContext(ctx, q, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	byDelivery := make(map[string][]models.AssignmentView)
	for _, row := range rows {
		byDelivery[row.DeliveryID] = append(byDelivery[row.DeliveryID], row.AssignmentView)
	}

	result := make([]models.AdminDelivery, 0, len(deliveries))
	for _, d := range deliveries {
		assignments := byDelivery[d.ID]
		if assignments == nil {
			assignments = []models.AssignmentView{}
		}
		result = append(result, models.AdminDelivery{Delivery: d, Assignments: assignments})
	}
	return result, nil
}

// ListDeliveriesForDriver returns the deliveries assigned to one driver with
// that driver's assignment status, most recently assigned first
func ListDeliveriesForDriver(ctx context.Context, q sqlx.ExtContext, driverID string) ([]models.DriverDelivery, error) {
	deliveries := []models.DriverDelivery{}
	query := q.Rebind(`
		SELECT d.*, da.status, da.assigned_at
		FROM deliveries d
		INNER JOIN delivery_assignments da ON da.delivery_id = d.id
		WHERE da.driver_id = ?
		ORDER BY da.assigned_at DESC, d.id ASC
	`)
	if err := sqlx.SelectContext(ctx, q, &deliveries, query, driverID); err != nil {
		return nil, fmt.Errorf("failed to list driver deliveries: %w", err)
	}
	return deliveries, nil
}

// CreateAssignment inserts a pending assignment. A second assignment of the same
// delivery to the same driver is a Conflict.
func CreateAssignment(ctx context.Context, q sqlx.ExtContext, a *models.Assignment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	query := q.Rebind(`
		INSERT INTO delivery_assignments (id, delivery_id, driver_id, status, assigned_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err := q.ExecContext(ctx, query, a.ID, a.DeliveryID, a.DriverID, a.Status, a.AssignedAt, a.UpdatedAt)
	if IsUniqueViolation(err) {
		return apperrors.Conflict("Delivery already assigned to this driver")
	}
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

// GetAssignment returns nil when the delivery is not assigned to the driver
func GetAssignment(ctx context.Context, q sqlx.ExtContext, deliveryID, driverID string) (*models.Assignment, error) {
	var a models.Assignment
	query := q.Rebind(`SELECT * FROM delivery_assignments WHERE delivery_id = ? AND driver_id = ?`)
	err := sqlx.GetContext(ctx, q, &a, query, deliveryID, driverID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return &a, nil
}

// StartAssignments moves the driver's assignments for deliveryIDs to in_progress.
// Only statuses that may advance to in_progress are touched.
func StartAssignments(ctx context.Context, q sqlx.ExtContext, driverID string, deliveryIDs []string, now int64) (int64, error) {
	if len(deliveryIDs) == 0 {
		return 0, nil
	}
	return advanceAssignments(ctx, q, models.AssignmentInProgress, now, `
		WHERE driver_id = ? AND status IN (?) AND delivery_id IN (?)
	`, driverID, models.StatusesAdvancingTo(models.AssignmentInProgress), deliveryIDs)
}

// CompleteAssignmentsForTrip moves the driver's assignments for every delivery
// in the trip to completed
func CompleteAssignmentsForTrip(ctx context.Context, q sqlx.ExtContext, driverID, tripID string, now int64) (int64, error) {
	return advanceAssignments(ctx, q, models.AssignmentCompleted, now, `
		WHERE driver_id = ?
		  AND status IN (?)
		  AND delivery_id IN (SELECT delivery_id FROM trip_deliveries WHERE trip_id = ?)
	`, driverID, models.StatusesAdvancingTo(models.AssignmentCompleted), tripID)
}

// advanceAssignments sets status to next on the rows matched by where. The
// where clause must filter on the statuses allowed to advance to next.
func advanceAssignments(ctx context.Context, q sqlx.ExtContext, next models.AssignmentStatus, now int64, where string, whereArgs ...interface{}) (int64, error) {
	args := append([]interface{}{next, now}, whereArgs...)
	query, args, err := sqlx.In(`UPDATE delivery_assignments SET status = ?, updated_at = ? `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to build assignment update: %w", err)
	}
	result, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to move assignments to %s: %w", next, err)
	}
	return result.RowsAffected()
}
