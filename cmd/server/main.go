package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BerylCAtieno/milo-api/internal/analyzer"
	"github.com/BerylCAtieno/milo-api/internal/config"
	"github.com/BerylCAtieno/milo-api/internal/db"
	"github.com/BerylCAtieno/milo-api/internal/extractor"
	"github.com/BerylCAtieno/milo-api/internal/prompt"
	"github.com/BerylCAtieno/milo-api/internal/repository"
	"github.com/BerylCAtieno/milo-api/internal/router"
	"github.com/BerylCAtieno/milo-api/internal/services"
	"github.com/BerylCAtieno/milo-api/internal/session"
	"github.com/BerylCAtieno/milo-api/internal/storage"
	"github.com/BerylCAtieno/milo-api/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger := utils.NewLogger(cfg.LogLevel)

	ctx := context.Background()

	// Patient store
	var patients repository.PatientRepository
	switch cfg.PatientStore {
	case config.PatientStoreFirestore:
		client, err := repository.NewFirestoreClient(ctx, cfg.FirestoreProjectID)
		if err != nil {
			logger.Fatal("Failed to connect to Firestore", "error", err)
		}
		defer client.Close()
		patients = repository.NewFirestoreRepository(client)
	default:
		database, err := db.NewSQLiteDB(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to database", "error", err)
		}
		defer database.Close()

		if err := db.RunMigrations(database); err != nil {
			logger.Fatal("Failed to run migrations", "error", err)
		}
		patients = repository.NewSQLiteRepository(database)
	}
	logger.Info("Patient store ready", "store", cfg.PatientStore)

	// Report file storage is optional
	var reports storage.Storage
	if cfg.StorageEnabled() {
		reports, err = storage.NewS3Storage(ctx, cfg)
		if err != nil {
			logger.Fatal("Failed to initialize S3 storage", "error", err)
		}
	}

	assembler, err := prompt.Load(cfg.PromptFile)
	if err != nil {
		logger.Fatal("Failed to load prompt definition", "error", err)
	}
	logger.Info("Prompt loaded", "version", assembler.Version())

	if cfg.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set; generation requests will fail")
	}
	llm := analyzer.NewOpenAIAnalyzer(analyzer.Options{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		LabModel:    cfg.LabModel,
		Temperature: cfg.Temperature,
	}, logger)

	ocr := extractor.NewTesseractOCR(cfg.OCRLanguage, logger)
	ext := extractor.NewExtractor(extractor.NewHybrid(ocr, logger), logger)

	chatService := services.NewChatService(
		session.NewController(logger),
		patients,
		assembler,
		llm,
		ext,
		reports,
		services.ChatOptions{Model: cfg.OpenAIModel},
		logger,
	)

	// Setup HTTP router
	handler := router.NewRouter(router.Services{
		Patients: services.NewPatientService(patients, reports, logger),
		Chat:     chatService,
		Proxy:    services.NewProxyService(llm, logger),
	}, cfg.MaxFileSize, logger)

	// Generation and OCR can take close to a minute
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
