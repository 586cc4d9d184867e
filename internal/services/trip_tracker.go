package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"lorry-backend/internal/apperrors"
	"lorry-backend/internal/database"
	"lorry-backend/internal/geo"
	"lorry-backend/internal/models"
)

var errTripNotActive = apperrors.InvalidState("Trip is not active")

// TripTracker runs the trip lifecycle: start, record points, stop.
// Every operation is one transaction.
type TripTracker struct {
	db   *sqlx.DB
	feed Broadcaster
	now  func() time.Time
}

func NewTripTracker(db *sqlx.DB, feed Broadcaster) *TripTracker {
	if feed == nil {
		feed = nopBroadcaster{}
	}
	return &TripTracker{db: db, feed: feed, now: time.Now}
}

// WithClock replaces the time source
func (t *TripTracker) WithClock(now func() time.Time) *TripTracker {
	t.now = now
	return t
}

// PointInput is one GPS sample sent by a driver. Zero RecordedAt means now.
type PointInput struct {
	TripID     string
	DriverID   string
	Latitude   float64
	Longitude  float64
	RecordedAt time.Time
}

// Start opens a trip for the driver covering deliveryIDs (duplicates ignored) and
// moves the driver's pending assignments for them to in_progress.
func (t *TripTracker) Start(ctx context.Context, driverID string, deliveryIDs []string) (*models.TripDetail, error) {
	ids := distinct(deliveryIDs)
	now := t.now().UnixMilli()

	var detail *models.TripDetail
	err := withTx(ctx, t.db, func(tx *sqlx.Tx) error {
		active, err := database.GetOngoingTrip(ctx, tx, driverID)
		if err != nil {
			return err
		}
		if active != nil {
			return apperrors.Conflict("An active trip is already running")
		}

		found, err := database.CountDeliveries(ctx, tx, ids)
		if err != nil {
			return err
		}
		if found != len(ids) {
			return apperrors.NotFound("Delivery not found")
		}

		trip := &models.Trip{DriverID: driverID, StartedAt: now, Status: models.TripOngoing}
		if err := database.InsertTrip(ctx, tx, trip); err != nil {
			return err
		}
		if err := database.AddTripDeliveries(ctx, tx, trip.ID, ids); err != nil {
			return err
		}
		started, err := database.StartAssignments(ctx, tx, driverID, ids, now)
		if err != nil {
			return err
		}

		detail, err = database.GetTripDetail(ctx, tx, trip.ID)
		if err != nil {
			return err
		}
		log.Printf("🚚 Trip %s started by driver %s (%d deliveries, %d assignments in progress)", trip.ID, driverID, len(ids), started)
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.feed.BroadcastToRole(models.RoleAdmin, Event{Type: EventTripStarted, Data: detail})
	return detail, nil
}

// RecordPoint appends a GPS sample to the driver's ongoing trip. The increment is
// measured from the point with the latest timestamp; duration is recomputed from
// this point's timestamp, so out-of-order samples are accepted as emitted.
func (t *TripTracker) RecordPoint(ctx context.Context, in PointInput) (*models.PointResult, error) {
	if !geo.ValidCoordinates(in.Latitude, in.Longitude) {
		return nil, apperrors.Validation("Latitude must be between -90 and 90 and longitude between -180 and 180")
	}
	recordedAt := in.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = t.now()
	}

	var result *models.PointResult
	err := withTx(ctx, t.db, func(tx *sqlx.Tx) error {
		ok, err := database.LockOngoingTrip(ctx, tx, in.TripID, in.DriverID)
		if err != nil {
			return err
		}
		if !ok {
			return errTripNotActive
		}

		trip, err := database.GetTrip(ctx, tx, in.TripID)
		if err != nil {
			return err
		}
		if trip == nil || !trip.IsOngoing() {
			return errTripNotActive
		}

		prev, err := database.LastTripPoint(ctx, tx, trip.ID)
		if err != nil {
			return err
		}

		point := &models.TripPoint{
			TripID:     trip.ID,
			Latitude:   in.Latitude,
			Longitude:  in.Longitude,
			RecordedAt: recordedAt.UnixMilli(),
		}
		if prev != nil {
			point.DistanceFromLastKm = geo.DistanceKm(
				&geo.Point{Latitude: prev.Latitude, Longitude: prev.Longitude},
				&geo.Point{Latitude: point.Latitude, Longitude: point.Longitude},
			)
		}
		if err := database.InsertTripPoint(ctx, tx, point); err != nil {
			return err
		}

		duration := trip.DurationUntil(point.RecordedAt)
		if ok, err := database.UpdateTripTotals(ctx, tx, trip.ID, point.DistanceFromLastKm, duration); err != nil {
			return err
		} else if !ok {
			return errTripNotActive
		}

		result = &models.PointResult{
			Point:                *point,
			DistanceFromLastKm:   point.DistanceFromLastKm,
			TotalDistanceKm:      trip.TotalDistanceKm + point.DistanceFromLastKm,
			TotalDurationSeconds: duration,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.feed.BroadcastToRole(models.RoleAdmin, Event{Type: EventTripLocation, Data: TripLocationEvent{
		TripID:               in.TripID,
		DriverID:             in.DriverID,
		Point:                result.Point,
		DistanceFromLastKm:   result.DistanceFromLastKm,
		TotalDistanceKm:      result.TotalDistanceKm,
		TotalDurationSeconds: result.TotalDurationSeconds,
	}})
	return result, nil
}

// Stop completes the driver's ongoing trip and every assignment of that driver
// for a delivery on the trip. Stopping twice fails.
func (t *TripTracker) Stop(ctx context.Context, tripID, driverID string) (*models.TripDetail, error) {
	endedAt := t.now().UnixMilli()

	var detail *models.TripDetail
	err := withTx(ctx, t.db, func(tx *sqlx.Tx) error {
		ok, err := database.LockOngoingTrip(ctx, tx, tripID, driverID)
		if err != nil {
			return err
		}
		if !ok {
			return errTripNotActive
		}

		trip, err := database.GetTrip(ctx, tx, tripID)
		if err != nil {
			return err
		}
		if trip == nil || !trip.IsOngoing() {
			return errTripNotActive
		}

		if ok, err := database.CompleteTrip(ctx, tx, trip.ID, endedAt, trip.DurationUntil(endedAt)); err != nil {
			return err
		} else if !ok {
			return errTripNotActive
		}

		completed, err := database.CompleteAssignmentsForTrip(ctx, tx, driverID, trip.ID, endedAt)
		if err != nil {
			return err
		}

		detail, err = database.GetTripDetail(ctx, tx, trip.ID)
		if err != nil {
			return err
		}
		log.Printf("🏁 Trip %s stopped: %.2f km in %.0fs, %d assignments completed",
			trip.ID, detail.TotalDistanceKm, detail.TotalDurationSeconds, completed)
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.feed.BroadcastToRole(models.RoleAdmin, Event{Type: EventTripStopped, Data: detail})
	return detail, nil
}

// withTx runs fn in a transaction, committing only when fn succeeds
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
