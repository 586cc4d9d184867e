package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"lorry-backend/internal/apperrors"
	"lorry-backend/internal/database"
	"lorry-backend/internal/middleware"
	"lorry-backend/internal/models"
	"lorry-backend/pkg/utils"
)

var errInvalidCredentials = apperrors.Auth("Invalid credentials")

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string              `json:"token"`
	User  models.UserResponse `json:"user"`
}

// Login checks credentials and issues a bearer token carrying id, name, email and role
func Login(db *sqlx.DB, jwtSecret string, tokenTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if strings.TrimSpace(req.Email) == "" || req.Password == "" {
			utils.RespondError(w, http.StatusBadRequest, "Email and password are required")
			return
		}

		log.Printf("🔐 Login attempt for: %s", models.NormalizeEmail(req.Email))

		user, err := database.GetUserByEmail(r.Context(), db, req.Email)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		if user == nil {
			log.Printf("❌ User not found: %s", req.Email)
			respondServiceError(w, r, errInvalidCredentials)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			log.Printf("❌ Invalid password for: %s", user.Email)
			respondServiceError(w, r, errInvalidCredentials)
			return
		}

		token, err := middleware.IssueToken(jwtSecret, user, tokenTTL, time.Now())
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		log.Printf("✅ Login successful: %s (%s)", user.Email, user.Role)
		utils.RespondJSON(w, http.StatusOK, LoginResponse{Token: token, User: user.ToUserResponse()})
	}
}

// Me returns the identity carried by the caller's token
func Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := currentUser(w, r)
		if !ok {
			return
		}
		utils.RespondJSON(w, http.StatusOK, models.UserResponse{
			ID:    claims.UserID,
			Name:  claims.Name,
			Email: claims.Email,
			Role:  claims.Role,
		})
	}
}
