package services

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"

	"lorry-backend/internal/database"
	"lorry-backend/internal/models"
)

type fakeMessenger struct {
	sent []*messaging.MulticastMessage
	err  error
}

func (m *fakeMessenger) SendEachForMulticast(_ context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	m.sent = append(m.sent, msg)
	if m.err != nil {
		return nil, m.err
	}
	responses := make([]*messaging.SendResponse, len(msg.Tokens))
	for i := range responses {
		responses[i] = &messaging.SendResponse{Success: true, MessageID: "m"}
	}
	return &messaging.BatchResponse{SuccessCount: len(msg.Tokens), Responses: responses}, nil
}

func TestSendDeliveryAssignedNotification(t *testing.T) {
	messenger := &fakeMessenger{}
	svc := NewFCMServiceWithClient(messenger)
	delivery := &models.Delivery{ID: "d-1", Title: "Crates", Origin: "Depot", Destination: "Store"}

	stale, err := svc.SendDeliveryAssignedNotification(context.Background(), []string{"a", "b"}, delivery)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 0 {
		t.Errorf("stale = %v", stale)
	}
	if len(messenger.sent) != 1 {
		t.Fatalf("sent %d messages", len(messenger.sent))
	}
	msg := messenger.sent[0]
	if msg.Data["type"] != EventDeliveryAssigned || msg.Data["delivery_id"] != "d-1" || len(msg.Tokens) != 2 {
		t.Errorf("message = %+v", msg)
	}

	if _, err := svc.SendDeliveryAssignedNotification(context.Background(), nil, delivery); err != nil || len(messenger.sent) != 1 {
		t.Errorf("no tokens should not send (err=%v, sent=%d)", err, len(messenger.sent))
	}

	messenger.err = errors.New("fcm down")
	if _, err := svc.SendDeliveryAssignedNotification(context.Background(), []string{"a"}, delivery); err == nil {
		t.Error("expected error from messenger")
	}
}

func TestPushNotifierSendsToRegisteredDevices(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	driver := createUser(t, db, "alex", models.RoleDriver)
	other := createUser(t, db, "sam", models.RoleDriver)
	delivery := createDelivery(t, db, "D1")

	messenger := &fakeMessenger{}
	notifier := NewPushNotifier(db, NewFCMServiceWithClient(messenger))

	notifier.NotifyDeliveryAssigned(ctx, driver.ID, delivery)
	if len(messenger.sent) != 0 {
		t.Fatalf("sent without registered tokens")
	}

	for _, tok := range []struct {
		user  string
		token string
	}{{driver.ID, "phone"}, {driver.ID, "browser"}, {other.ID, "sams-phone"}} {
		if err := database.UpsertFCMToken(ctx, db, tok.user, tok.token, models.DeviceAndroid, 1); err != nil {
			t.Fatal(err)
		}
	}

	notifier.NotifyDeliveryAssigned(ctx, driver.ID, delivery)
	if len(messenger.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(messenger.sent))
	}
	if got := messenger.sent[0].Tokens; len(got) != 2 {
		t.Errorf("tokens = %v, want the driver's two devices", got)
	}

	// Failures are logged, never surfaced
	messenger.err = errors.New("fcm down")
	notifier.NotifyDeliveryAssigned(ctx, driver.ID, delivery)
}
