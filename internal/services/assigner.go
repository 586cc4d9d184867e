package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"lorry-backend/internal/apperrors"
	"lorry-backend/internal/database"
	"lorry-backend/internal/models"
)

// Notifier tells a driver about a new assignment outside the live feed (push).
// Failures are the notifier's to log; they never fail the assignment.
type Notifier interface {
	NotifyDeliveryAssigned(ctx context.Context, driverID string, delivery *models.Delivery)
}

// Assigner creates delivery assignments. Status changes after creation belong to TripTracker.
type Assigner struct {
	db       *sqlx.DB
	feed     Broadcaster
	notifier Notifier
	now      func() time.Time
}

func NewAssigner(db *sqlx.DB, feed Broadcaster, notifier Notifier) *Assigner {
	if feed == nil {
		feed = nopBroadcaster{}
	}
	return &Assigner{db: db, feed: feed, notifier: notifier, now: time.Now}
}

func (a *Assigner) WithClock(now func() time.Time) *Assigner {
	a.now = now
	return a
}

// Assign tasks a delivery to a driver with status pending
func (a *Assigner) Assign(ctx context.Context, deliveryID, driverID string) (*models.Assignment, error) {
	deliveryID = strings.TrimSpace(deliveryID)
	driverID = strings.TrimSpace(driverID)
	if deliveryID == "" {
		return nil, apperrors.Validation("Delivery id is required")
	}
	if driverID == "" {
		return nil, apperrors.Validation("driverId is required")
	}

	var (
		assignment *models.Assignment
		delivery   *models.Delivery
	)
	err := withTx(ctx, a.db, func(tx *sqlx.Tx) error {
		var err error
		delivery, err = database.GetDelivery(ctx, tx, deliveryID)
		if err != nil {
			return err
		}
		if delivery == nil {
			return apperrors.NotFound("Delivery not found")
		}

		driver, err := database.GetUserByID(ctx, tx, driverID)
		if err != nil {
			return err
		}
		if driver == nil || driver.Role != models.RoleDriver {
			return apperrors.NotFound("Driver not found")
		}

		existing, err := database.GetAssignment(ctx, tx, deliveryID, driverID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.Conflict("Delivery already assigned to this driver")
		}

		now := a.now().UnixMilli()
		assignment = &models.Assignment{
			DeliveryID: deliveryID,
			DriverID:   driverID,
			Status:     models.AssignmentPending,
			AssignedAt: now,
			UpdatedAt:  now,
		}
		return database.CreateAssignment(ctx, tx, assignment)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📦 Delivery %s assigned to driver %s", deliveryID, driverID)

	a.feed.BroadcastToUser(driverID, Event{Type: EventDeliveryAssigned, Data: DeliveryAssignedEvent{
		Assignment: *assignment,
		Delivery:   *delivery,
	}})
	if a.notifier != nil {
		a.notifier.NotifyDeliveryAssigned(ctx, driverID, delivery)
	}
	return assignment, nil
}
