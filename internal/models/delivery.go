package models

// AssignmentStatus tracks one delivery tasked to one driver
type AssignmentStatus string

const (
	AssignmentPending    AssignmentStatus = "pending"     // Assigned, trip not started
	AssignmentInProgress AssignmentStatus = "in_progress" // Covered by an ongoing trip
	AssignmentCompleted  AssignmentStatus = "completed"   // Covered by a stopped trip
)

var assignmentStatuses = []AssignmentStatus{AssignmentPending, AssignmentInProgress, AssignmentCompleted}

func (s AssignmentStatus) rank() int {
	switch s {
	case AssignmentPending:
		return 0
	case AssignmentInProgress:
		return 1
	case AssignmentCompleted:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo reports whether moving from s to next goes strictly forward.
// Statuses never reverse.
func (s AssignmentStatus) CanAdvanceTo(next AssignmentStatus) bool {
	from, to := s.rank(), next.rank()
	return from >= 0 && to >= 0 && to > from
}

// StatusesAdvancingTo lists every status that may move to next, in lifecycle order
func StatusesAdvancingTo(next AssignmentStatus) []AssignmentStatus {
	var from []AssignmentStatus
	for _, s := range assignmentStatuses {
		if s.CanAdvanceTo(next) {
			from = append(from, s)
		}
	}
	return from
}

type Delivery struct {
	ID            string  `json:"id" db:"id"`
	Title         string  `json:"title" db:"title"`
	Origin        string  `json:"origin" db:"origin"`
	Destination   string  `json:"destination" db:"destination"`
	ScheduledDate *string `json:"scheduled_date" db:"scheduled_date"`
	Notes         *string `json:"notes" db:"notes"`
	CreatedAt     int64   `json:"-" db:"created_at"`
}

type Assignment struct {
	ID         string           `json:"id" db:"id"`
	DeliveryID string           `json:"delivery_id" db:"delivery_id"`
	DriverID   string           `json:"driver_id" db:"driver_id"`
	Status     AssignmentStatus `json:"status" db:"status"`
	AssignedAt int64            `json:"-" db:"assigned_at"`
	UpdatedAt  int64            `json:"-" db:"updated_at"`
}

// AssignmentView is an assignment as shown on the admin delivery list
type AssignmentView struct {
	DriverID   string           `json:"driver_id" db:"driver_id"`
	DriverName string           `json:"name" db:"driver_name"`
	Status     AssignmentStatus `json:"status" db:"status"`
}

// AdminDelivery is a delivery with every driver it is assigned to
type AdminDelivery struct {
	Delivery
	Assignments []AssignmentView `json:"assignments"`
}

// DriverDelivery is a delivery as seen by the driver it is assigned to
type DriverDelivery struct {
	Delivery
	Status     AssignmentStatus `json:"status" db:"status"`
	AssignedAt int64            `json:"-" db:"assigned_at"`
}

// TripDelivery is the short delivery shape embedded in trip responses
type TripDelivery struct {
	TripID      string `json:"-" db:"trip_id"`
	ID          string `json:"id" db:"id"`
	Title       string `json:"title" db:"title"`
	Origin      string `json:"origin" db:"origin"`
	Destination string `json:"destination" db:"destination"`
}
