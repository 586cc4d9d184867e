package apperrors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("latitude and longitude are required"), http.StatusBadRequest},
		{"auth", Auth("invalid credentials"), http.StatusUnauthorized},
		{"forbidden", Forbidden("forbidden"), http.StatusForbidden},
		{"not found", NotFound("trip not found"), http.StatusNotFound},
		{"conflict", Conflict("an active trip is already running"), http.StatusBadRequest},
		{"invalid state", InvalidState("trip is not active"), http.StatusBadRequest},
		{"wrapped conflict", fmt.Errorf("start trip: %w", Conflict("dup")), http.StatusBadRequest},
		{"internal", Internal("save trip", sql.ErrConnDone), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorsIsByKind(t *testing.T) {
	err := fmt.Errorf("assign: %w", Conflict("delivery already assigned to this driver"))

	if !errors.Is(err, ErrConflict) {
		t.Fatal("expected errors.Is(err, ErrConflict)")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("conflict must not match ErrNotFound")
	}
}

func TestPublicMessageHidesInternals(t *testing.T) {
	err := Internal("insert trip", errors.New("disk I/O error at /var/lib/lorry.db"))
	if got := PublicMessage(err); got != "Internal server error" {
		t.Errorf("PublicMessage() = %q", got)
	}
	if got := PublicMessage(errors.New("raw driver error")); got != "Internal server error" {
		t.Errorf("PublicMessage() = %q", got)
	}
	if got := PublicMessage(NotFound("Delivery not found")); got != "Delivery not found" {
		t.Errorf("PublicMessage() = %q", got)
	}
}

func TestInternalUnwraps(t *testing.T) {
	err := Internal("load trip", sql.ErrNoRows)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatal("expected cause to be reachable through Unwrap")
	}
}
