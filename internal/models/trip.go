package models

import (
	"encoding/json"
	"time"
)

// TripStatus is the two-value trip state flag
type TripStatus string

const (
	TripOngoing   TripStatus = "ongoing"
	TripCompleted TripStatus = "completed"
)

// Trip is one driver's tracked journey. Times are Unix milliseconds.
type Trip struct {
	ID                   string     `db:"id"`
	DriverID             string     `db:"driver_id"`
	StartedAt            int64      `db:"started_at"`
	EndedAt              *int64     `db:"ended_at"`
	TotalDistanceKm      float64    `db:"total_distance"`
	TotalDurationSeconds float64    `db:"total_duration"`
	Status               TripStatus `db:"status"`
}

// IsOngoing reports whether points may still be recorded on the trip
func (t *Trip) IsOngoing() bool {
	return t.Status == TripOngoing
}

// DurationUntil returns seconds elapsed between the trip start and at
func (t *Trip) DurationUntil(at int64) float64 {
	return float64(at-t.StartedAt) / 1000
}

type TripPoint struct {
	ID                 string  `json:"id" db:"id"`
	TripID             string  `json:"-" db:"trip_id"`
	Seq                int     `json:"seq" db:"seq"`
	Latitude           float64 `json:"latitude" db:"latitude"`
	Longitude          float64 `json:"longitude" db:"longitude"`
	RecordedAt         int64   `json:"-" db:"recorded_at"`
	DistanceFromLastKm float64 `json:"distance_from_last_km" db:"distance_from_last"`
}

// MarshalJSON renders recorded_at as RFC 3339
func (p TripPoint) MarshalJSON() ([]byte, error) {
	type alias TripPoint
	return json.Marshal(struct {
		alias
		RecordedAt string `json:"recorded_at"`
	}{alias(p), FormatMillis(p.RecordedAt)})
}

// TripDriver identifies the driver that owns a trip on admin views
type TripDriver struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TripDetail is a trip with its full point trail and deliveries
type TripDetail struct {
	Trip
	Deliveries      []TripDelivery `json:"deliveries"`
	Points          []TripPoint    `json:"points"`
	TotalPoints     int            `json:"total_points"`
	TotalDeliveries int            `json:"total_deliveries"`
}

func (d TripDetail) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		tripJSON
		Deliveries      []TripDelivery `json:"deliveries"`
		Points          []TripPoint    `json:"points"`
		TotalPoints     int            `json:"total_points"`
		TotalDeliveries int            `json:"total_deliveries"`
	}{newTripJSON(d.Trip), nonNilDeliveries(d.Deliveries), nonNilPoints(d.Points), d.TotalPoints, d.TotalDeliveries})
}

// TripSummary is a row of the trip history list, carrying the point trail like TripDetail
type TripSummary struct {
	Trip
	DriverName      string         `db:"driver_name"`
	DriverEmail     string         `db:"driver_email"`
	TotalPoints     int            `db:"total_points"`
	TotalDeliveries int            `db:"total_deliveries"`
	Deliveries      []TripDelivery `db:"-"`
	Points          []TripPoint    `db:"-"`
}

// Driver is only populated for admin views
func (s TripSummary) Driver() *TripDriver {
	if s.DriverName == "" && s.DriverEmail == "" {
		return nil
	}
	return &TripDriver{Name: s.DriverName, Email: s.DriverEmail}
}

func (s TripSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		tripJSON
		Driver          *TripDriver    `json:"driver,omitempty"`
		Deliveries      []TripDelivery `json:"deliveries"`
		Points          []TripPoint    `json:"points"`
		TotalPoints     int            `json:"total_points"`
		TotalDeliveries int            `json:"total_deliveries"`
	}{newTripJSON(s.Trip), s.Driver(), nonNilDeliveries(s.Deliveries), nonNilPoints(s.Points), s.TotalPoints, s.TotalDeliveries})
}

// HideDriver strips driver identity before a summary is sent to a driver
func (s *TripSummary) HideDriver() {
	s.DriverName = ""
	s.DriverEmail = ""
}

type tripJSON struct {
	ID                   string     `json:"id"`
	DriverID             string     `json:"driver_id"`
	StartedAt            string     `json:"started_at"`
	EndedAt              *string    `json:"ended_at"`
	TotalDistanceKm      float64    `json:"total_distance_km"`
	TotalDurationSeconds float64    `json:"total_duration_seconds"`
	Status               TripStatus `json:"status"`
}

func newTripJSON(t Trip) tripJSON {
	out := tripJSON{
		ID:                   t.ID,
		DriverID:             t.DriverID,
		StartedAt:            FormatMillis(t.StartedAt),
		TotalDistanceKm:      t.TotalDistanceKm,
		TotalDurationSeconds: t.TotalDurationSeconds,
		Status:               t.Status,
	}
	if t.EndedAt != nil {
		ended := FormatMillis(*t.EndedAt)
		out.EndedAt = &ended
	}
	return out
}

func nonNilDeliveries(d []TripDelivery) []TripDelivery {
	if d == nil {
		return []TripDelivery{}
	}
	return d
}

func nonNilPoints(p []TripPoint) []TripPoint {
	if p == nil {
		return []TripPoint{}
	}
	return p
}

// PointResult is returned to the driver after a location is stored
type PointResult struct {
	Point                TripPoint `json:"point"`
	DistanceFromLastKm   float64   `json:"distance_from_last_km"`
	TotalDistanceKm      float64   `json:"total_distance_km"`
	TotalDurationSeconds float64   `json:"total_duration_seconds"`
}

// FormatMillis renders Unix milliseconds as RFC 3339 (UTC); zero renders empty
func FormatMillis(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}
