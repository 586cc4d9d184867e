package handlers

import (
	"log"
	"net/http"

	"lorry-backend/internal/apperrors"
	"lorry-backend/internal/middleware"
	"lorry-backend/internal/models"
	"lorry-backend/pkg/utils"
)

// respondServiceError maps a service or storage error to its status and
// caller-safe message. Internal details are only logged.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("❌ %s %s failed: %v", r.Method, r.URL.Path, err)
	} else {
		log.Printf("⚠️  %s %s rejected (%d): %v", r.Method, r.URL.Path, status, err)
	}
	utils.RespondError(w, status, apperrors.PublicMessage(err))
}

// currentUser returns the caller's claims, answering 401 itself when Auth did not run
func currentUser(w http.ResponseWriter, r *http.Request) (middleware.UserClaims, bool) {
	claims, ok := middleware.GetUserFromContext(r)
	if !ok {
		respondServiceError(w, r, apperrors.Auth("Authorization header missing"))
	}
	return claims, ok
}

func respondUnsupportedRole(w http.ResponseWriter, r *http.Request, role models.Role) {
	log.Printf("❌ Unsupported role: %q", role)
	respondServiceError(w, r, apperrors.Forbidden("Unsupported role"))
}
