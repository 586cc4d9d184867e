package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"lorry-backend/internal/apperrors"
	"lorry-backend/internal/config"
	"lorry-backend/internal/database"
	"lorry-backend/internal/models"
)

func main() {
	name := flag.String("name", "", "display name")
	email := flag.String("email", "", "login email")
	password := flag.String("password", "", "login password")
	roleFlag := flag.String("role", string(models.RoleAdmin), "admin or driver")
	flag.Parse()

	if *name == "" || *email == "" || *password == "" {
		flag.Usage()
		log.Fatal("❌ -name, -email and -password are required")
	}
	role, err := models.ParseRole(*roleFlag)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

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
	log.Println("🔌 Connected to database")

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{
		Name:      *name,
		Email:     *email,
		Password:  string(hash),
		Role:      role,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := database.CreateUser(context.Background(), db, user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			log.Printf("⚠️  User already exists: %s", models.NormalizeEmail(*email))
			return
		}
		log.Fatalf("❌ Failed to create user %s: %v", *email, err)
	}

	log.Printf("✅ Created %s user: %s (%s)", user.Role, user.Email, user.ID)
}
