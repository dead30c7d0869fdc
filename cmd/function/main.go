package main

import (
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/BerylCAtieno/milo-api/internal/analyzer"
	"github.com/BerylCAtieno/milo-api/internal/config"
	"github.com/BerylCAtieno/milo-api/internal/handlers"
	"github.com/BerylCAtieno/milo-api/internal/middleware"
	"github.com/BerylCAtieno/milo-api/internal/services"
	"github.com/BerylCAtieno/milo-api/internal/utils"
)

var (
	proxyHandler *handlers.ProxyHandler
	logger       *utils.Logger
	once         sync.Once
	initErr      error
)

func init() {
	// Entry point names configured at deploy time.
	functions.HTTP("Milo", withProxy(func(h *handlers.ProxyHandler) http.HandlerFunc { return h.Milo }))
	functions.HTTP("AnalyzeLabs", withProxy(func(h *handlers.ProxyHandler) http.HandlerFunc { return h.AnalyzeLabs }))
}

func setup() {
	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}

	logger = utils.NewLogger(cfg.LogLevel)
	llm := analyzer.NewOpenAIAnalyzer(analyzer.Options{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		LabModel:    cfg.LabModel,
		Temperature: cfg.Temperature,
	}, logger)
	proxyHandler = handlers.NewProxyHandler(services.NewProxyService(llm, logger), logger)
}

func withProxy(pick func(*handlers.ProxyHandler) http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		once.Do(setup)
		if initErr != nil {
			log.Printf("CRITICAL: function initialization failed: %v", initErr)
			http.Error(w, `{"error":"Internal server error."}`, http.StatusInternalServerError)
			return
		}

		h := middleware.CORS()(middleware.Recovery(logger)(pick(proxyHandler)))
		h.ServeHTTP(w, r)
	}
}

// main runs the functions locally; deployed functions use the registered entry points.
func main() {
	port := "8080"
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = envPort
	}
	if err := funcframework.Start(port); err != nil {
		log.Fatalf("funcframework.Start: %v", err)
	}
}
