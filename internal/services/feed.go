package services

import "lorry-backend/internal/models"

// Live feed event types
const (
	EventTripStarted      = "trip_started"
	EventTripLocation     = "trip_location"
	EventTripStopped      = "trip_stopped"
	EventDeliveryAssigned = "delivery_assigned"
)

// Event is the envelope pushed to live feed subscribers
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Broadcaster fans events out to connected clients. *websocket.Hub implements it.
type Broadcaster interface {
	BroadcastToRole(role models.Role, data interface{})
	BroadcastToUser(userID string, data interface{})
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastToRole(models.Role, interface{}) {}
func (nopBroadcaster) BroadcastToUser(string, interface{})      {}

// TripLocationEvent is published to admins for every stored point
type TripLocationEvent struct {
	TripID               string           `json:"trip_id"`
	DriverID             string           `json:"driver_id"`
	Point                models.TripPoint `json:"point"`
	DistanceFromLastKm   float64          `json:"distance_from_last_km"`
	TotalDistanceKm      float64          `json:"total_distance_km"`
	TotalDurationSeconds float64          `json:"total_duration_seconds"`
}

// DeliveryAssignedEvent is published to the driver a delivery was assigned to
type DeliveryAssignedEvent struct {
	Assignment models.Assignment `json:"assignment"`
	Delivery   models.Delivery   `json:"delivery"`
}
