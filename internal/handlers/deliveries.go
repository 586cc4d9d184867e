package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"lorry-backend/internal/database"
	"lorry-backend/internal/models"
	"lorry-backend/internal/services"
	"lorry-backend/pkg/utils"
)

type CreateDeliveryRequest struct {
	Title         string `json:"title"`
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	ScheduledDate string `json:"scheduledDate"`
	Notes         string `json:"notes"`
}

type AssignDeliveryRequest struct {
	DriverID string `json:"driverId"`
}

type AssignDeliveryResponse struct {
	Message    string            `json:"message"`
	Assignment models.Assignment `json:"assignment"`
}

// ListDeliveries shapes the list by role: admins see every delivery with its
// assignments, drivers see their own assignments only
func ListDeliveries(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		switch claims.Role {
		case models.RoleAdmin:
			deliveries, err := database.ListDeliveriesForAdmin(r.Context(), db)
			if err != nil {
				respondServiceError(w, r, err)
				return
			}
			utils.RespondJSON(w, http.StatusOK, deliveries)

		case models.RoleDriver:
			deliveries, err := database.ListDeliveriesForDriver(r.Context(), db, claims.UserID)
			if err != nil {
				respondServiceError(w, r, err)
				return
			}
			utils.RespondJSON(w, http.StatusOK, deliveries)

		default:
			respondUnsupportedRole(w, r, claims.Role)
		}
	}
}

// CreateDelivery creates a delivery (admin only)
func CreateDelivery(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDeliveryRequest
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		delivery := &models.Delivery{
			Title:         strings.TrimSpace(req.Title),
			Origin:        strings.TrimSpace(req.Origin),
			Destination:   strings.TrimSpace(req.Destination),
			ScheduledDate: optional(req.ScheduledDate),
			Notes:         optional(req.Notes),
			CreatedAt:     time.Now().UnixMilli(),
		}
		if delivery.Title == "" || delivery.Origin == "" || delivery.Destination == "" {
			utils.RespondError(w, http.StatusBadRequest, "Title, origin and destination are required")
			return
		}

		if err := database.CreateDelivery(r.Context(), db, delivery); err != nil {
			respondServiceError(w, r, err)
			return
		}

		log.Printf("✅ Delivery created: %s (%s → %s)", delivery.Title, delivery.Origin, delivery.Destination)
		utils.RespondJSON(w, http.StatusCreated, delivery)
	}
}

// AssignDelivery assigns the delivery in the URL to a driver (admin only)
func AssignDelivery(assigner *services.Assigner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AssignDeliveryRequest
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		assignment, err := assigner.Assign(r.Context(), chi.URLParam(r, "id"), req.DriverID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		utils.RespondJSON(w, http.StatusCreated, AssignDeliveryResponse{
			Message:    "Delivery assigned",
			Assignment: *assignment,
		})
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
