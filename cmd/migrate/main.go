package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"lorry-backend/internal/config"
	"lorry-backend/internal/database"
)

func main() {
	seed := flag.Bool("seed", true, "create the demo admin and driver when their role has no users")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = config.DefaultDatabaseURL
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migration completed successfully!")

	if *seed {
		if err := database.SeedUsers(context.Background(), db); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	}

	// Query and display summary
	var result struct {
		Admins          int `db:"admins"`
		Drivers         int `db:"drivers"`
		Deliveries      int `db:"deliveries"`
		Assignments     int `db:"assignments"`
		OngoingTrips    int `db:"ongoing_trips"`
		CompletedTrips  int `db:"completed_trips"`
		RecordedPoints  int `db:"recorded_points"`
		FCMTokens       int `db:"fcm_tokens"`
	}

	query := `
		SELECT
			(SELECT COUNT(*) FROM users WHERE role = 'admin') AS admins,
			(SELECT COUNT(*) FROM users WHERE role = 'driver') AS drivers,
			(SELECT COUNT(*) FROM deliveries) AS deliveries,
			(SELECT COUNT(*) FROM delivery_assignments) AS assignments,
			(SELECT COUNT(*) FROM trips WHERE status = 'ongoing') AS ongoing_trips,
			(SELECT COUNT(*) FROM trips WHERE status = 'completed') AS completed_trips,
			(SELECT COUNT(*) FROM trip_points) AS recorded_points,
			(SELECT COUNT(*) FROM fcm_tokens) AS fcm_tokens
	`
	if err := db.Get(&result, query); err != nil {
		log.Fatalf("Failed to query summary: %v", err)
	}

	// Display results
	fmt.Println("\n============================================================")
	fmt.Println("DATABASE SUMMARY")
	fmt.Println("============================================================")
	fmt.Printf("Admins:                  %d\n", result.Admins)
	fmt.Printf("Drivers:                 %d\n", result.Drivers)
	fmt.Printf("Deliveries:              %d\n", result.Deliveries)
	fmt.Printf("Assignments:             %d\n", result.Assignments)
	fmt.Printf("Ongoing trips:           %d\n", result.OngoingTrips)
	fmt.Printf("Completed trips:         %d\n", result.CompletedTrips)
	fmt.Printf("Recorded points:         %d\n", result.RecordedPoints)
	fmt.Printf("Registered push tokens:  %d\n", result.FCMTokens)
	fmt.Println("============================================================")
}
