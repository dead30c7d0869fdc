package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	PatientStoreSQLite    = "sqlite"
	PatientStoreFirestore = "firestore"
)

type Config struct {
	Port        string
	DatabaseURL string
	LogLevel    string

	// Patient persistence backend: sqlite or firestore
	PatientStore       string
	FirestoreProjectID string

	// S3 (lab report files). Empty endpoint disables file storage.
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3BucketName      string
	S3UseSSL          bool

	// Generation service
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	LabModel      string
	Temperature   float64

	// Prompt template file; empty uses the embedded default
	PromptFile string

	OCRLanguage string

	// Upload limits
	MaxFileSize int64
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", "data/milo.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		PatientStore:       getEnv("PATIENT_STORE", PatientStoreSQLite),
		FirestoreProjectID: getEnv("FIRESTORE_PROJECT_ID", ""),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:      getEnv("S3_ACCESS_KEY_ID", "minioadmin"),
		S3SecretAccessKey:  getEnv("S3_SECRET_ACCESS_KEY", "minioadmin"),
		S3BucketName:       getEnv("S3_BUCKET_NAME", "lab-reports"),
		S3UseSSL:           getEnv("S3_USE_SSL", "false") == "true",
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-4"),
		LabModel:           getEnv("OPENAI_LAB_MODEL", "gpt-4"),
		PromptFile:         getEnv("PROMPT_FILE", ""),
		OCRLanguage:        getEnv("OCR_LANGUAGE", "eng"),
	}

	temperature, err := strconv.ParseFloat(getEnv("OPENAI_TEMPERATURE", "0.2"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OPENAI_TEMPERATURE: %w", err)
	}
	cfg.Temperature = temperature

	maxSize, err := strconv.ParseInt(getEnv("MAX_FILE_SIZE", "10485760"), 10, 64)
	if err != nil || maxSize <= 0 {
		return nil, fmt.Errorf("invalid MAX_FILE_SIZE %q", os.Getenv("MAX_FILE_SIZE"))
	}
	cfg.MaxFileSize = maxSize

	switch cfg.PatientStore {
	case PatientStoreSQLite:
	case PatientStoreFirestore:
		if cfg.FirestoreProjectID == "" {
			return nil, fmt.Errorf("FIRESTORE_PROJECT_ID is required when PATIENT_STORE=firestore")
		}
	default:
		return nil, fmt.Errorf("unknown PATIENT_STORE %q", cfg.PatientStore)
	}

	return cfg, nil
}

// StorageEnabled reports whether uploaded files should be kept in object storage.
func (c *Config) StorageEnabled() bool {
	return c.S3Endpoint != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
