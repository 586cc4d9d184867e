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

// TripFilter narrows ListTrips. Empty DriverID lists every driver's trips.
type TripFilter struct {
	DriverID string
}

// GetTrip returns nil when the trip does not exist
func GetTrip(ctx context.Context, q sqlx.ExtContext, id string) (*models.Trip, error) {
	var trip models.Trip
	err := sqlx.GetContext(ctx, q, &trip, q.Rebind(`SELECT * FROM trips WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return &trip, nil
}

// GetOngoingTrip returns the driver's ongoing trip or nil
func GetOngoingTrip(ctx context.Context, q sqlx.ExtContext, driverID string) (*models.Trip, error) {
	var trip models.Trip
	query := q.Rebind(`
		SELECT * FROM trips
		WHERE driver_id = ? AND status = ?
		ORDER BY started_at DESC
		LIMIT 1
	`)
	err := sqlx.GetContext(ctx, q, &trip, query, driverID, models.TripOngoing)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ongoing trip: %w", err)
	}
	return &trip, nil
}

// LockOngoingTrip takes the trip's row lock for the rest of the transaction with a
// no-op update that works on both SQLite and Postgres. False means the trip is
// missing, not the driver's, or no longer ongoing.
func LockOngoingTrip(ctx context.Context, q sqlx.ExtContext, tripID, driverID string) (bool, error) {
	query := q.Rebind(`
		UPDATE trips SET status = status
		WHERE id = ? AND driver_id = ? AND status = ?
	`)
	result, err := q.ExecContext(ctx, query, tripID, driverID, models.TripOngoing)
	if err != nil {
		return false, fmt.Errorf("failed to lock trip: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// InsertTrip stores a new trip. A second ongoing trip for the same driver is a Conflict.
func InsertTrip(ctx context.Context, q sqlx.ExtContext, trip *models.Trip) error {
	if trip.ID == "" {
		trip.ID = uuid.New().String()
	}
	query := q.Rebind(`
		INSERT INTO trips (id, driver_id, started_at, ended_at, total_distance, total_duration, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := q.ExecContext(ctx, query,
		trip.ID, trip.DriverID, trip.StartedAt, trip.EndedAt,
		trip.TotalDistanceKm, trip.TotalDurationSeconds, trip.Status,
	)
	if IsUniqueViolation(err) {
		return apperrors.Conflict("An active trip is already running")
	}
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}
	return nil
}

// AddTripDeliveries links deliveries to a trip; links that already exist are skipped
func AddTripDeliveries(ctx context.Context, q sqlx.ExtContext, tripID string, deliveryIDs []string) error {
	query := q.Rebind(`
		INSERT INTO trip_deliveries (trip_id, delivery_id)
		VALUES (?, ?)
		ON CONFLICT DO NOTHING
	`)
	for _, deliveryID := range deliveryIDs {
		if _, err := q.ExecContext(ctx, query, tripID, deliveryID); err != nil {
			return fmt.Errorf("failed to link delivery %s to trip: %w", deliveryID, err)
		}
	}
	return nil
}

// LastTripPoint returns the point with the latest recorded_at (latest arrival on
// ties), or nil for a trip with no points yet
func LastTripPoint(ctx context.Context, q sqlx.ExtContext, tripID string) (*models.TripPoint, error) {
	var point models.TripPoint
	query := q.Rebind(`
		SELECT * FROM trip_points
		WHERE trip_id = ?
		ORDER BY recorded_at DESC, seq DESC
		LIMIT 1
	`)
	err := sqlx.GetContext(ctx, q, &point, query, tripID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last trip point: %w", err)
	}
	return &point, nil
}

// InsertTripPoint appends a point, assigning the next arrival seq for the trip
func InsertTripPoint(ctx context.Context, q sqlx.ExtContext, point *models.TripPoint) error {
	if point.ID == "" {
		point.ID = uuid.New().String()
	}

	var seq int
	if err := sqlx.GetContext(ctx, q, &seq, q.Rebind(`SELECT COALESCE(MAX(seq), 0) + 1 FROM trip_points WHERE trip_id = ?`), point.TripID); err != nil {
		return fmt.Errorf("failed to get next point seq: %w", err)
	}
	point.Seq = seq

	query := q.Rebind(`
		INSERT INTO trip_points (id, trip_id, seq, latitude, longitude, recorded_at, distance_from_last)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := q.ExecContext(ctx, query,
		point.ID, point.TripID, point.Seq, point.Latitude, point.Longitude,
		point.RecordedAt, point.DistanceFromLastKm,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trip point: %w", err)
	}
	return nil
}

// UpdateTripTotals adds increment to the trip's distance and overwrites its duration.
// Only ongoing trips are touched; false means the trip was not ongoing.
func UpdateTripTotals(ctx context.Context, q sqlx.ExtContext, tripID string, incrementKm, durationSeconds float64) (bool, error) {
	query := q.Rebind(`
		UPDATE trips
		SET total_distance = total_distance + ?, total_duration = ?
		WHERE id = ? AND status = ?
	`)
	result, err := q.ExecContext(ctx, query, incrementKm, durationSeconds, tripID, models.TripOngoing)
	if err != nil {
		return false, fmt.Errorf("failed to update trip totals: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// CompleteTrip finalizes an ongoing trip. False means it was not ongoing.
func CompleteTrip(ctx context.Context, q sqlx.ExtContext, tripID string, endedAt int64, durationSeconds float64) (bool, error) {
	query := q.Rebind(`
		UPDATE trips
		SET status = ?, ended_at = ?, total_duration = ?
		WHERE id = ? AND status = ?
	`)
	result, err := q.ExecContext(ctx, query, models.TripCompleted, endedAt, durationSeconds, tripID, models.TripOngoing)
	if err != nil {
		return false, fmt.Errorf("failed to complete trip: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// ListTripPoints returns a trip's points in recorded order
func ListTripPoints(ctx context.Context, q sqlx.ExtContext, tripID string) ([]models.TripPoint, error) {
	points := []models.TripPoint{}
	query := q.Rebind(`
		SELECT * FROM trip_points
		WHERE trip_id = ?
		ORDER BY recorded_at ASC, seq ASC
	`)
	if err := sqlx.SelectContext(ctx, q, &points, query, tripID); err != nil {
		return nil, fmt.Errorf("failed to list trip points: %w", err)
	}
	return points, nil
}

// ListPointsForTrips loads the point trails of several trips in one query, keyed by trip id
func ListPointsForTrips(ctx context.Context, q sqlx.ExtContext, tripIDs []string) (map[string][]models.TripPoint, error) {
	byTrip := make(map[string][]models.TripPoint, len(tripIDs))
	if len(tripIDs) == 0 {
		return byTrip, nil
	}

	query, args, err := sqlx.In(`
		SELECT * FROM trip_points
		WHERE trip_id IN (?)
		ORDER BY recorded_at ASC, seq ASC
	`, tripIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build trip points query: %w", err)
	}

	var rows []models.TripPoint
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list trip points: %w", err)
	}
	for _, row := range rows {
		byTrip[row.TripID] = append(byTrip[row.TripID], row)
	}
	return byTrip, nil
}

// ListTripDeliveries loads the deliveries of several trips in one query, keyed by trip id
func ListTripDeliveries(ctx context.Context, q sqlx.ExtContext, tripIDs []string) (map[string][]models.TripDelivery, error) {
	byTrip := make(map[string][]models.TripDelivery, len(tripIDs))
	if len(tripIDs) == 0 {
		return byTrip, nil
	}

	query, args, err := sqlx.In(`
		SELECT td.trip_id, d.id, d.title, d.origin, d.destination
		FROM trip_deliveries td
		INNER JOIN deliveries d ON d.id = td.delivery_id
		WHERE td.trip_id IN (?)
		ORDER BY d.title ASC, d.id ASC
	`, tripIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build trip deliveries query: %w", err)
	}

	var rows []models.TripDelivery
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list trip deliveries: %w", err)
	}
	for _, row := range rows {
		byTrip[row.TripID] = append(byTrip[row.TripID], row)
	}
	return byTrip, nil
}

// GetTripDetail returns the trip with its points and deliveries, or nil when it does not exist
func GetTripDetail(ctx context.Context, q sqlx.ExtContext, tripID string) (*models.TripDetail, error) {
	trip, err := GetTrip(ctx, q, tripID)
	if err != nil || trip == nil {
		return nil, err
	}

	points, err := ListTripPoints(ctx, q, tripID)
	if err != nil {
		return nil, err
	}
	deliveries, err := ListTripDeliveries(ctx, q, []string{tripID})
	if err != nil {
		return nil, err
	}

	detail := &models.TripDetail{
		Trip:       *trip,
		Points:     points,
		Deliveries: deliveries[tripID],
	}
	detail.TotalPoints = len(detail.Points)
	detail.TotalDeliveries = len(detail.Deliveries)
	return detail, nil
}

// GetActiveTrip returns the detail of the driver's ongoing trip, or nil when there is none
func GetActiveTrip(ctx context.Context, q sqlx.ExtContext, driverID string) (*models.TripDetail, error) {
	trip, err := GetOngoingTrip(ctx, q, driverID)
	if err != nil || trip == nil {
		return nil, err
	}
	return GetTripDetail(ctx, q, trip.ID)
}

// ListTrips returns trip summaries, newest first
func ListTrips(ctx context.Context, q sqlx.ExtContext, filter TripFilter) ([]models.TripSummary, error) {
	query := `
		SELECT
			t.*,
			u.name AS driver_name,
			u.email AS driver_email,
			(SELECT COUNT(*) FROM trip_points p WHERE p.trip_id = t.id) AS total_points,
			(SELECT COUNT(*) FROM trip_deliveries td WHERE td.trip_id = t.id) AS total_deliveries
		FROM trips t
		INNER JOIN users u ON u.id = t.driver_id
	`
	var args []interface{}
	if filter.DriverID != "" {
		query += ` WHERE t.driver_id = ?`
		args = append(args, filter.DriverID)
	}
	query += ` ORDER BY t.started_at DESC, t.id ASC`

	trips := []models.TripSummary{}
	if err := sqlx.SelectContext(ctx, q, &trips, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}

	ids := make([]string, len(trips))
	for i := range trips {
		ids[i] = trips[i].ID
	}
	deliveries, err := ListTripDeliveries(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	points, err := ListPointsForTrips(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range trips {
		trips[i].Deliveries = deliveries[trips[i].ID]
		trips[i].Points = points[trips[i].ID]
	}
	return trips, nil
}
