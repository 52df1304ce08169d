package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"sigedoc/internal/config"
	"sigedoc/internal/repository/postgres"

	"github.com/joho/godotenv"
)

func main() {
	// Parse command-line flags
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed sample users")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Create database connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Set up schema
	if err := postgres.SetupSchema(ctx, pool); err != nil {
		log.Fatalf("Failed to set up schema: %v", err)
	}
	logger.Info("schema ready", "environment", cfg.Environment)

	if *schemaOnly {
		return
	}

	// SAFETY: sample users are for development only
	if cfg.Environment == "prod" {
		log.Fatalf("Refusing to seed sample users in production (use --schema-only)")
	}

	users := []struct {
		name string
		rol  string
	}{
		{"Admin de Calidad", "admin"},
		{"Revisor de Procesos", "revisor"},
		{"Aprobador General", "aprobador"},
	}

	for _, u := range users {
		_, err := pool.Exec(ctx,
			`INSERT INTO users (name, rol) SELECT $1, $2
			 WHERE NOT EXISTS (SELECT 1 FROM users WHERE name = $1)`,
			u.name, u.rol)
		if err != nil {
			log.Fatalf("Failed to seed user %q: %v", u.name, err)
		}
	}

	logger.Info("sample users seeded", "count", len(users))
}
