package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"

	"lorry-backend/internal/middleware"
	"lorry-backend/internal/models"
	"lorry-backend/internal/services"
	"lorry-backend/internal/websocket"
)

// RouterDeps is everything the HTTP layer needs, built once in main
type RouterDeps struct {
	DB             *sqlx.DB
	Hub            *websocket.Hub
	Tracker        *services.TripTracker
	Assigner       *services.Assigner
	JWTSecret      string
	TokenTTL       time.Duration
	AllowedOrigins []string

	// AccessLog receives the per-request log lines; stdout when nil
	AccessLog chimiddleware.LoggerInterface
}

// NewRouter builds the HTTP router. The API is served at the root and
// mirrored under /api.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(accessLogger(deps.AccessLog))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Live feed
	if deps.Hub != nil {
		r.Get("/ws", websocket.HandleWebSocket(deps.Hub, deps.JWTSecret, origins))
	}

	r.Route("/api", func(r chi.Router) {
		registerAPI(r, deps)
	})
	registerAPI(r, deps)

	return r
}

func registerAPI(r chi.Router, deps RouterDeps) {
	auth := middleware.Auth(deps.JWTSecret)

	// Public
	r.Post("/auth/login", Login(deps.DB, deps.JWTSecret, deps.TokenTTL))

	// Any authenticated user
	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Get("/auth/me", Me())
		r.Post("/devices/fcm-token", RegisterFCMToken(deps.DB))

		r.With(middleware.RequireRole(models.RoleAdmin, models.RoleDriver)).Group(func(r chi.Router) {
			r.Get("/deliveries", ListDeliveries(deps.DB))
			r.Get("/trips", ListTrips(deps.DB))
			r.Get("/trips/{id}", GetTrip(deps.DB))
		})
	})

	// Driver routes
	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(middleware.RequireRole(models.RoleDriver))

		r.Get("/trips/active", GetActiveTrip(deps.DB))
		r.Post("/trips/start", StartTrip(deps.Tracker))
		r.Post("/trips/{id}/location", RecordLocation(deps.Tracker))
		r.Post("/trips/{id}/stop", StopTrip(deps.Tracker))
	})

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(middleware.RequireRole(models.RoleAdmin))

		r.Get("/drivers", ListDrivers(deps.DB))
		r.Post("/drivers", CreateDriver(deps.DB))
		r.Get("/drivers/active", ListActiveDrivers(deps.DB))

		r.Post("/deliveries", CreateDelivery(deps.DB))
		r.Post("/deliveries/{id}/assign", AssignDelivery(deps.Assigner))

		r.Get("/trips/export", ExportTrips(deps.DB))
	})
}
