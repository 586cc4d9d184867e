package models

// DeviceType is the platform a push token was issued for
type DeviceType string

const (
	DeviceIOS     DeviceType = "ios"
	DeviceAndroid DeviceType = "android"
	DeviceWeb     DeviceType = "web"
)

// Valid reports whether d is one of the supported platforms
func (d DeviceType) Valid() bool {
	switch d {
	case DeviceIOS, DeviceAndroid, DeviceWeb:
		return true
	default:
		return false
	}
}

// FCMToken represents a Firebase Cloud Messaging token for a user
type FCMToken struct {
	ID         string     `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	Token      string     `json:"token" db:"token"`
	DeviceType DeviceType `json:"device_type" db:"device_type"`
	CreatedAt  int64      `json:"created_at" db:"created_at"`
	UpdatedAt  int64      `json:"updated_at" db:"updated_at"`
}
