package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"lorry-backend/internal/database"
	"lorry-backend/internal/models"
	"lorry-backend/pkg/utils"
)

type CreateDriverRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ListDrivers returns every driver account, newest first
func ListDrivers(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		drivers, err := database.ListDrivers(r.Context(), db)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		out := make([]models.UserResponse, 0, len(drivers))
		for i := range drivers {
			out = append(out, drivers[i].ToUserResponse())
		}
		utils.RespondJSON(w, http.StatusOK, out)
	}
}

// CreateDriver creates a driver account (admin only)
func CreateDriver(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("📥 REQUEST: POST /drivers - Create driver")

		var req CreateDriverRequest
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
			log.Println("❌ Missing required fields")
			utils.RespondError(w, http.StatusBadRequest, "Name, email and password are required")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		driver := &models.User{
			Name:      req.Name,
			Email:     req.Email,
			Password:  string(hash),
			Role:      models.RoleDriver,
			CreatedAt: time.Now().UnixMilli(),
		}
		if err := database.CreateUser(r.Context(), db, driver); err != nil {
			respondServiceError(w, r, err)
			return
		}

		log.Printf("✅ Driver created: %s (%s)", driver.Email, driver.ID)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		utils.RespondJSON(w, http.StatusCreated, driver.ToUserResponse())
	}
}

// ListActiveDrivers returns drivers with an ongoing trip and their last known position
func ListActiveDrivers(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		drivers, err := database.ListActiveDrivers(r.Context(), db)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		log.Printf("📋 Active drivers: %d", len(drivers))
		utils.RespondJSON(w, http.StatusOK, drivers)
	}
}
