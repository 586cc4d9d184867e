package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDriver Role = "driver"
)

// ParseRole validates a role string coming from a request, token or CLI flag
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleDriver:
		return RoleDriver, nil
	default:
		return "", fmt.Errorf("unknown role %q (must be 'admin' or 'driver')", s)
	}
}

type User struct {
	ID        string `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Email     string `json:"email" db:"email"`
	Password  string `json:"-" db:"password_hash"` // Never return password in JSON
	Role      Role   `json:"role" db:"role"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	CreatedAt string `json:"created_at,omitempty"`
}

func (u *User) ToUserResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: FormatMillis(u.CreatedAt),
	}
}

// NormalizeEmail lower-cases and trims an email so lookups are case-insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ActiveDriver is a driver with an ongoing trip and the last point recorded on it
type ActiveDriver struct {
	DriverID        string   `json:"driver_id" db:"driver_id"`
	DriverName      string   `json:"driver_name" db:"driver_name"`
	Email           string   `json:"email" db:"email"`
	TripID          string   `json:"trip_id" db:"trip_id"`
	StartedAt       int64    `json:"-" db:"started_at"`
	TotalDistanceKm float64  `json:"total_distance_km" db:"total_distance"`
	LastLatitude    *float64 `json:"last_latitude" db:"last_latitude"`
	LastLongitude   *float64 `json:"last_longitude" db:"last_longitude"`
	LastRecordedAt  *int64   `json:"-" db:"last_recorded_at"`
}

func (a ActiveDriver) MarshalJSON() ([]byte, error) {
	type alias ActiveDriver
	out := struct {
		alias
		StartedAt      string  `json:"started_at"`
		LastRecordedAt *string `json:"last_recorded_at"`
	}{alias: alias(a), StartedAt: FormatMillis(a.StartedAt)}
	if a.LastRecordedAt != nil {
		at := FormatMillis(*a.LastRecordedAt)
		out.LastRecordedAt = &at
	}
	return json.Marshal(out)
}
