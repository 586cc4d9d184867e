package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lorry-backend/internal/config"
	"lorry-backend/internal/database"
	"lorry-backend/internal/handlers"
	"lorry-backend/internal/services"
	"lorry-backend/internal/websocket"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 LORRY BACKEND SERVER STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("📂 Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Invalid configuration")
		log.Printf("   Error: %v", err)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal(err)
	}

	log.Println("🔌 Connecting to database...")
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Database connection failed")
		log.Printf("   Error: %v", err)
		log.Println("   This is usually caused by:")
		log.Println("   1. Wrong DATABASE_URL format")
		log.Println("   2. Database file directory is not writable")
		log.Println("   3. PostgreSQL service is down or unreachable")
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal(err)
	}
	defer db.Close()
	log.Println("✅ Database connection established")

	log.Println("🔄 Running database migrations...")
	if err := database.Migrate(db); err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Database migrations failed")
		log.Printf("   Error: %v", err)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal(err)
	}
	log.Println("✅ Database migrations completed")

	if cfg.SeedDemoUsers {
		log.Println("🌱 Seeding demo users...")
		if err := database.SeedUsers(ctx, db); err != nil {
			log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
			log.Println("❌ FATAL ERROR: User seeding failed")
			log.Printf("   Error: %v", err)
			log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
			log.Fatal(err)
		}
		log.Println("✅ Users seeded successfully")
	}

	// Push notifications are optional; the server runs without them
	var notifier services.Notifier
	if fcmService := initFCM(ctx, cfg); fcmService != nil {
		notifier = services.NewPushNotifier(db, fcmService)
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)
	log.Println("✅ WebSocket hub started")

	router := handlers.NewRouter(handlers.RouterDeps{
		DB:             db,
		Hub:            hub,
		Tracker:        services.NewTripTracker(db, hub),
		Assigner:       services.NewAssigner(db, hub, notifier),
		JWTSecret:      cfg.JWTSecret,
		TokenTTL:       cfg.TokenTTL,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Println("═══════════════════════════════════════════════════════════════════")
		log.Printf("🌐 Server listening on port %s (env: %s)", cfg.Port, cfg.Env)
		log.Println("═══════════════════════════════════════════════════════════════════")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Shutdown signal received, draining connections...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Graceful shutdown failed: %v", err)
	}
	log.Println("👋 Server stopped")
}

// initFCM prefers base64 credentials (cloud deployments) and falls back to a file
func initFCM(ctx context.Context, cfg *config.Config) *services.FCMService {
	if cfg.FirebaseCredentialsBase64 != "" {
		fcmService, err := services.NewFCMServiceFromBase64(ctx, cfg.FirebaseCredentialsBase64)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from base64: %v (push notifications disabled)", err)
			return nil
		}
		log.Println("✅ Firebase Cloud Messaging initialized from base64 credentials")
		return fcmService
	}

	if cfg.FirebaseCredentialsFile == "" {
		log.Println("ℹ️  No Firebase credentials configured (push notifications disabled)")
		return nil
	}
	fcmService, err := services.NewFCMService(ctx, cfg.FirebaseCredentialsFile)
	if err != nil {
		log.Printf("⚠️  Failed to initialize FCM from file: %v (push notifications disabled)", err)
		return nil
	}
	log.Println("✅ Firebase Cloud Messaging initialized from file")
	return fcmService
}
