package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"sigedoc/internal/auth"
	"sigedoc/internal/config"
	"sigedoc/internal/convert"
	"sigedoc/internal/handler"
	"sigedoc/internal/middleware"
	"sigedoc/internal/repository/postgres"
	"sigedoc/internal/service"
	"sigedoc/internal/sign"
	"sigedoc/internal/storage"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging: stdout plus a rotating file
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	logOutput := io.Writer(os.Stdout)
	if logFile, err := config.SetupLogFile(cfg.LogDir, 10); err == nil {
		defer logFile.Close()
		logOutput = io.MultiWriter(os.Stdout, logFile)
	} else {
		log.Printf("warning: file logging disabled: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(logOutput, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
	)

	// Create JWT verifier for session tokens
	jwtVerifier, err := auth.NewVerifier(cfg.JWTSecret, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}

	// Create pgx connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected")

	// Storage directories
	paths, err := storage.NewPaths(cfg.UploadsDir, cfg.SignedDir, cfg.SignaturesDir, logger)
	if err != nil {
		log.Fatalf("Failed to prepare storage directories: %v", err)
	}

	// Create repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Logger: logger,
	}
	docRepo := postgres.NewDocumentRepository(repoConfig)
	userRepo := postgres.NewUserRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	// Stamp placement configuration
	layout, err := sign.LoadLayout()
	if err != nil {
		log.Fatalf("Failed to load signing layout: %v", err)
	}

	// The PDF writer requires a license key before it produces output
	if cfg.UnidocLicenseKey != "" {
		if err := sign.SetLicenseKey(cfg.UnidocLicenseKey); err != nil {
			log.Fatalf("Failed to set unidoc license key: %v", err)
		}
	} else {
		logger.Warn("UNIDOC_LICENSE_KEY not set, PDF stamping will fail")
	}

	// Conversion and signing tools
	converter := convert.NewSofficeConverter(cfg.SofficeBin, logger)
	stamper := sign.NewSigner(
		sign.NewPDFStamper(layout, logger),
		sign.NewExcelStamper(layout, logger),
		sign.NewOfficeStamper(cfg.PythonBin, cfg.StamperScript, layout, logger),
		logger,
	)
	assets := sign.NewAssets(userRepo, paths, cfg.DefaultSignature, logger)

	// Create the lifecycle engine
	docService := service.NewDocumentService(docRepo, userRepo, txManager, converter, stamper, assets, paths, logger)

	// Create handlers
	docHandler := handler.NewDocumentHandler(docService, paths, logger)
	healthHandler := handler.NewHealthHandler(pool)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", healthHandler.HealthCheck)

	// Document CRUD
	mux.HandleFunc("POST /api/documentos", docHandler.CreateDocument)
	mux.HandleFunc("GET /api/documentos", docHandler.ListDocuments)
	mux.HandleFunc("GET /api/documentos/pendientes/revision", docHandler.PendingReview) // Must come before {id} route
	mux.HandleFunc("GET /api/documentos/pendientes/aprobacion", docHandler.PendingApproval)
	mux.HandleFunc("GET /api/documentos/{id}", docHandler.GetDocument)
	mux.HandleFunc("PUT /api/documentos/{id}", docHandler.UpdateDocument)
	mux.HandleFunc("DELETE /api/documentos/{id}", docHandler.DeleteDocument)
	mux.HandleFunc("GET /api/documentos/{id}/historico", docHandler.GetHistory)

	// Lifecycle transitions
	mux.HandleFunc("POST /api/documentos/{id}/revisar", docHandler.MarkReviewed)
	mux.HandleFunc("POST /api/documentos/{id}/aprobar", docHandler.MarkApproved)
	mux.HandleFunc("POST /api/documentos/{id}/rechazar", docHandler.Reject)

	// File operations
	mux.HandleFunc("POST /api/documentos/{id}/convertir", docHandler.ConvertToPDF)
	mux.HandleFunc("POST /api/documentos/{id}/firmar", docHandler.Sign)
	mux.HandleFunc("POST /api/documentos/{id}/sellar-revision", docHandler.ReviewStamp)
	mux.HandleFunc("GET /api/documentos/{id}/archivo/{tipo}", docHandler.DownloadFile)

	// Build middleware chain
	var root http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → Routes
	root = middleware.Auth(jwtVerifier, logger)(root)
	root = middleware.Recovery(logger)(root)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // Conversion and signing can take a while
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
