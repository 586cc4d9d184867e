package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"lorry-backend/internal/database"
	"lorry-backend/internal/models"
	"lorry-backend/pkg/utils"
)

type RegisterFCMTokenRequest struct {
	Token      string            `json:"token"`
	DeviceType models.DeviceType `json:"device_type"`
}

// RegisterFCMToken stores the caller's push token. A token already held by
// another account moves to the caller.
func RegisterFCMToken(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req RegisterFCMTokenRequest
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		req.Token = strings.TrimSpace(req.Token)
		if req.Token == "" {
			utils.RespondError(w, http.StatusBadRequest, "Token is required")
			return
		}
		if !req.DeviceType.Valid() {
			utils.RespondError(w, http.StatusBadRequest, "device_type must be ios, android or web")
			return
		}

		if err := database.UpsertFCMToken(r.Context(), db, claims.UserID, req.Token, req.DeviceType, time.Now().UnixMilli()); err != nil {
			respondServiceError(w, r, err)
			return
		}

		log.Printf("📱 FCM token registered for %s (%s)", claims.UserID, req.DeviceType)
		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Token registered",
		})
	}
}
