package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/jmoiron/sqlx"
	"google.golang.org/api/option"

	"lorry-backend/internal/database"
	"lorry-backend/internal/models"
)

// Messenger is the part of *messaging.Client the push service uses
type Messenger interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMService handles Firebase Cloud Messaging
type FCMService struct {
	client Messenger
}

// NewFCMService creates a new FCM service instance from a credentials file
func NewFCMService(ctx context.Context, credentialsFile string) (*FCMService, error) {
	return newFCMService(ctx, option.WithCredentialsFile(credentialsFile))
}

// NewFCMServiceFromBase64 creates a new FCM service instance from base64-encoded credentials
// (for hosts where a credentials file cannot be uploaded)
func NewFCMServiceFromBase64(ctx context.Context, credentialsBase64 string) (*FCMService, error) {
	credentialsJSON, err := base64.StdEncoding.DecodeString(credentialsBase64)
	if err != nil {
		return nil, fmt.Errorf("error decoding base64 credentials: %w", err)
	}
	return newFCMService(ctx, option.WithCredentialsJSON(credentialsJSON))
}

func newFCMService(ctx context.Context, opt option.ClientOption) (*FCMService, error) {
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMService{client: client}, nil
}

// NewFCMServiceWithClient wraps an existing messaging client
func NewFCMServiceWithClient(client Messenger) *FCMService {
	return &FCMService{client: client}
}

// SendDeliveryAssignedNotification pushes a new-assignment alert to every token.
// It returns the tokens FCM reported as no longer registered.
func (s *FCMService) SendDeliveryAssignedNotification(ctx context.Context, tokens []string, delivery *models.Delivery) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: "New Delivery Assigned!",
			Body:  fmt.Sprintf("%s: %s → %s", delivery.Title, delivery.Origin, delivery.Destination),
		},
		Data: map[string]string{
			"type":        EventDeliveryAssigned,
			"delivery_id": delivery.ID,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					ContentAvailable: true,
					Sound:            "default",
				},
			},
		},
	}

	response, err := s.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("error sending multicast message: %w", err)
	}

	var stale []string
	for i, r := range response.Responses {
		if r != nil && r.Error != nil && messaging.IsUnregistered(r.Error) && i < len(tokens) {
			stale = append(stale, tokens[i])
		}
	}

	log.Printf("✅ Multicast sent: %d success, %d failures", response.SuccessCount, response.FailureCount)
	return stale, nil
}

// PushNotifier sends assignment pushes to a driver's registered devices
type PushNotifier struct {
	db  *sqlx.DB
	fcm *FCMService
}

func NewPushNotifier(db *sqlx.DB, fcm *FCMService) *PushNotifier {
	return &PushNotifier{db: db, fcm: fcm}
}

func (n *PushNotifier) NotifyDeliveryAssigned(ctx context.Context, driverID string, delivery *models.Delivery) {
	tokens, err := database.ListFCMTokens(ctx, n.db, driverID)
	if err != nil {
		log.Printf("⚠️  Failed to load FCM tokens for %s: %v", driverID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	stale, err := n.fcm.SendDeliveryAssignedNotification(ctx, tokens, delivery)
	if err != nil {
		log.Printf("⚠️  Failed to send FCM notification: %v", err)
		return
	}
	for _, token := range stale {
		if err := database.DeleteFCMToken(ctx, n.db, token); err != nil {
			log.Printf("⚠️  Failed to drop stale FCM token: %v", err)
		}
	}
}
