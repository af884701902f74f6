package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sadiqgoni/GreenCycle/internal/config"
	"github.com/sadiqgoni/GreenCycle/internal/database"
	"github.com/sadiqgoni/GreenCycle/internal/models"
	"github.com/sadiqgoni/GreenCycle/internal/services"
	"github.com/sadiqgoni/GreenCycle/internal/utils"
	"github.com/sirupsen/logrus"
)

func main() {
	var dbURL, name, email, password string
	var bcryptCost int
	flag.StringVar(&dbURL, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.StringVar(&name, "name", "GreenCycle Admin", "Display name of the admin")
	flag.StringVar(&email, "email", "", "Login email of the admin (required)")
	flag.StringVar(&password, "password", "", "Initial password; generated and printed when empty")
	flag.IntVar(&bcryptCost, "bcrypt-cost", 12, "bcrypt cost for the password hash")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	_ = godotenv.Load()

	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}
	if email == "" {
		logger.Fatal("-email is required")
	}

	generated := false
	if password == "" {
		var err error
		if password, err = utils.GeneratePassword(16); err != nil {
			logger.Fatalf("Failed to generate password: %v", err)
		}
		generated = true
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     2,
		MaxIdleConnections: 1,
	})
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admins := services.NewAdminService(
		database.NewUserRepository(db),
		database.NewRefreshTokenRepository(db),
		services.NewAuditService(db),
		bcryptCost,
		logger,
	)

	admin, err := admins.CreateAdmin(ctx, models.CreateAdminRequest{
		Name:     name,
		Email:    email,
		Password: password,
	}, nil, services.ClientInfo{UserAgent: "create-admin"})
	if err != nil {
		logger.Fatalf("Failed to create admin: %v", err)
	}

	fmt.Printf("Admin created: %s (%s)\n", admin.Email, admin.ID)
	if generated {
		fmt.Printf("Initial password: %s\n", password)
		fmt.Println("Change it after the first login with PUT /api/v1/auth/password.")
	}
}
