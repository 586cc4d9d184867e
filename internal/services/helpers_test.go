package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"lorry-backend/internal/database"
	"lorry-backend/internal/models"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Connect(":memory:")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *sqlx.DB, name string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@fleet.test", Password: "hash", Role: role, CreatedAt: 1}
	if err := database.CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func createDelivery(t *testing.T, db *sqlx.DB, title string) *models.Delivery {
	t.Helper()
	d := &models.Delivery{Title: title, Origin: "Depot", Destination: title + " Street", CreatedAt: 1}
	if err := database.CreateDelivery(context.Background(), db, d); err != nil {
		t.Fatalf("create delivery: %v", err)
	}
	return d
}

func assignmentStatus(t *testing.T, db *sqlx.DB, deliveryID, driverID string) models.AssignmentStatus {
	t.Helper()
	a, err := database.GetAssignment(context.Background(), db, deliveryID, driverID)
	if err != nil || a == nil {
		t.Fatalf("get assignment: %v (found=%v)", err, a != nil)
	}
	return a.Status
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type sentEvent struct {
	Role   models.Role
	UserID string
	Event  Event
}

type recordingFeed struct {
	mu     sync.Mutex
	events []sentEvent
}

func (f *recordingFeed) BroadcastToRole(role models.Role, data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{Role: role, Event: data.(Event)})
}

func (f *recordingFeed) BroadcastToUser(userID string, data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{UserID: userID, Event: data.(Event)})
}

func (f *recordingFeed) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Event.Type
	}
	return out
}
