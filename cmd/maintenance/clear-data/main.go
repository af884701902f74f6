package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sadiqgoni/GreenCycle/internal/config"
	"github.com/sadiqgoni/GreenCycle/internal/database"
)

// Child tables first so the verification counts read naturally
var tables = []string{
	"audit_logs",
	"payments",
	"service_requests",
	"companies",
	"login_attempts",
	"refresh_tokens",
	"users",
}

func main() {
	var dbURLFlag string
	var keepUsers bool
	var confirm bool
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.BoolVar(&keepUsers, "keep-users", false, "Keep users and refresh tokens, clear marketplace data only")
	flag.BoolVar(&confirm, "yes", false, "Confirm that all selected tables should be truncated")
	flag.Parse()

	// Optional .env in the working directory keeps secrets off the command line
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	selected := tables
	if keepUsers {
		selected = []string{"audit_logs", "payments", "service_requests", "companies"}
	}

	if !confirm {
		fmt.Printf("Would truncate: %s\nRe-run with -yes to proceed.\n", strings.Join(selected, ", "))
		return
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     5,
		MaxIdleConnections: 2,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	fmt.Println("Connected to database. Truncating tables...")

	truncateSQL := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(selected, ", "))
	if _, err := db.ExecContext(ctx, truncateSQL); err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}

	fmt.Println("Data cleared successfully (tables truncated, identities reset).")

	fmt.Println("Post-clear row counts:")
	for _, t := range selected {
		var count int
		if err := db.GetContext(ctx, &count, fmt.Sprintf("SELECT COUNT(*) FROM %s", t)); err != nil {
			fmt.Printf("  %s: error: %v\n", t, err)
			continue
		}
		fmt.Printf("  %s: %d\n", t, count)
	}
}
