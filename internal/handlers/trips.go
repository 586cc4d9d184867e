package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"lorry-backend/internal/apperrors"
	"lorry-backend/internal/database"
	"lorry-backend/internal/models"
	"lorry-backend/internal/services"
	"lorry-backend/pkg/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type StartTripRequest struct {
	DeliveryIDs []string `json:"deliveryIds"`
}

// RecordLocationRequest uses pointers so a missing coordinate is told apart from 0
type RecordLocationRequest struct {
	Latitude   *float64  `json:"latitude"`
	Longitude  *float64  `json:"longitude"`
	RecordedAt Timestamp `json:"recordedAt"`
}

// Timestamp accepts an RFC 3339 string or Unix milliseconds. Absent or null
// leaves it zero.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid recordedAt %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}

	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("invalid recordedAt %s: %w", data, err)
	}
	t.Time = time.UnixMilli(ms)
	return nil
}

// ListTrips returns trip history. Drivers only see their own trips; admins
// see everyone's and may narrow to one driver with ?driverId=
func ListTrips(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		trips, ok := listTripsForCaller(w, r, db, claims.Role, claims.UserID)
		if !ok {
			return
		}
		utils.RespondJSON(w, http.StatusOK, trips)
	}
}

func listTripsForCaller(w http.ResponseWriter, r *http.Request, db *sqlx.DB, role models.Role, userID string) ([]models.TripSummary, bool) {
	var filter database.TripFilter
	switch role {
	case models.RoleAdmin:
		filter.DriverID = strings.TrimSpace(r.URL.Query().Get("driverId"))
	case models.RoleDriver:
		filter.DriverID = userID
	default:
		respondUnsupportedRole(w, r, role)
		return nil, false
	}

	trips, err := database.ListTrips(r.Context(), db, filter)
	if err != nil {
		respondServiceError(w, r, err)
		return nil, false
	}
	if role == models.RoleDriver {
		for i := range trips {
			trips[i].HideDriver()
		}
	}
	return trips, true
}

// GetActiveTrip returns the caller's ongoing trip, or null
func GetActiveTrip(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		trip, err := database.GetActiveTrip(r.Context(), db, claims.UserID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		if trip == nil {
			utils.RespondJSON(w, http.StatusOK, nil)
			return
		}
		utils.RespondJSON(w, http.StatusOK, trip)
	}
}

// GetTrip returns one trip with its full point trail
func GetTrip(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		tripID := chi.URLParam(r, "id")
		trip, err := database.GetTripDetail(r.Context(), db, tripID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		if trip == nil {
			respondServiceError(w, r, apperrors.NotFound("Trip not found"))
			return
		}

		switch claims.Role {
		case models.RoleAdmin:
		case models.RoleDriver:
			if trip.DriverID != claims.UserID {
				respondServiceError(w, r, apperrors.Forbidden("Access denied"))
				return
			}
		default:
			respondUnsupportedRole(w, r, claims.Role)
			return
		}

		utils.RespondJSON(w, http.StatusOK, trip)
	}
}

// StartTrip opens a trip for the calling driver over the given deliveries
func StartTrip(tracker *services.TripTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		// an empty body starts a trip with no deliveries
		var req StartTripRequest
		if err := utils.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Printf("📥 REQUEST: POST /trips/start - driver %s, %d deliveries", claims.UserID, len(req.DeliveryIDs))

		trip, err := tracker.Start(r.Context(), claims.UserID, req.DeliveryIDs)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		log.Printf("✅ Trip started: %s", trip.ID)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		utils.RespondJSON(w, http.StatusCreated, trip)
	}
}

// RecordLocation appends a GPS point to the caller's ongoing trip
func RecordLocation(tracker *services.TripTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req RecordLocationRequest
		if err := utils.DecodeJSON(r, &req); err != nil {
			log.Printf("❌ Bad location payload: %v", err)
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Latitude == nil || req.Longitude == nil {
			utils.RespondError(w, http.StatusBadRequest, "Latitude and longitude are required")
			return
		}

		result, err := tracker.RecordPoint(r.Context(), services.PointInput{
			TripID:     chi.URLParam(r, "id"),
			DriverID:   claims.UserID,
			Latitude:   *req.Latitude,
			Longitude:  *req.Longitude,
			RecordedAt: req.RecordedAt.Time,
		})
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		utils.RespondJSON(w, http.StatusCreated, result)
	}
}

// StopTrip completes the caller's ongoing trip
func StopTrip(tracker *services.TripTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		tripID := chi.URLParam(r, "id")
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Printf("📥 REQUEST: POST /trips/%s/stop - driver %s", tripID, claims.UserID)

		trip, err := tracker.Stop(r.Context(), tripID, claims.UserID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		log.Printf("✅ Trip stopped: %s (%.2f km, %.0f s)", trip.ID, trip.TotalDistanceKm, trip.TotalDurationSeconds)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		utils.RespondJSON(w, http.StatusOK, trip)
	}
}

// ExportTrips streams the same trip list as ListTrips as an XLSX workbook
func ExportTrips(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		trips, ok := listTripsForCaller(w, r, db, claims.Role, claims.UserID)
		if !ok {
			return
		}

		var buf bytes.Buffer
		if err := services.WriteTripReport(&buf, trips); err != nil {
			respondServiceError(w, r, err)
			return
		}

		filename := fmt.Sprintf("trips-%s.xlsx", time.Now().UTC().Format("20060102"))
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil {
			log.Printf("❌ Failed to write trip export: %v", err)
		}
		log.Printf("📊 Exported %d trips for %s", len(trips), claims.Email)
	}
}
