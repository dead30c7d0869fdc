package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BerylCAtieno/milo-api/internal/models"
	"github.com/BerylCAtieno/milo-api/internal/utils"
)

const (
	DefaultTemperature = 0.2
	NoResponseText     = "No response generated."

	labSystemPrompt = "Analyze the lab results using strict protocol style."
)

var ErrMissingAPIKey = errors.New("missing OpenAI API key")

// UpstreamError is a non-2xx answer from the generation service. Body is the
// raw response body, passed back to callers unchanged.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("generation service returned status %d", e.StatusCode)
}

type Analyzer interface {
	// Chat sends a complete message list and returns the first choice's text.
	Chat(ctx context.Context, req models.CompletionRequest) (string, error)
	// AnalyzeLabs runs a single-shot analysis of raw lab text.
	AnalyzeLabs(ctx context.Context, labText string) (string, error)
}

type Options struct {
	APIKey      string
	BaseURL     string
	LabModel    string
	Temperature float64
	HTTPClient  *http.Client
}

type openAIAnalyzer struct {
	apiKey      string
	baseURL     string
	labModel    string
	temperature float64
	logger      *utils.Logger
	client      *http.Client
}

type chatRequest struct {
	Model       string                     `json:"model"`
	Messages    []models.CompletionMessage `json:"messages"`
	Temperature float64                    `json:"temperature"`
}

type chatResponse struct {
	Choices []choice `json:"choices"`
}

type choice struct {
	Message models.CompletionMessage `json:"message"`
}

func NewOpenAIAnalyzer(opts Options, logger *utils.Logger) Analyzer {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: 60 * time.Second,
		}
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	return &openAIAnalyzer{
		apiKey:      opts.APIKey,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		labModel:    opts.LabModel,
		temperature: temperature,
		logger:      logger,
		client:      client,
	}
}

func (a *openAIAnalyzer) Chat(ctx context.Context, req models.CompletionRequest) (string, error) {
	temperature := a.temperature
	if req.Temperature != nil && *req.Temperature != 0 {
		temperature = *req.Temperature
	}

	return a.complete(ctx, chatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: temperature,
	})
}

func (a *openAIAnalyzer) AnalyzeLabs(ctx context.Context, labText string) (string, error) {
	return a.complete(ctx, chatRequest{
		Model: a.labModel,
		Messages: []models.CompletionMessage{
			{Role: "system", Content: labSystemPrompt},
			{Role: "user", Content: labText},
		},
		Temperature: a.temperature,
	})
}

func (a *openAIAnalyzer) complete(ctx context.Context, reqBody chatRequest) (string, error) {
	if a.apiKey == "" {
		a.logger.Error("Missing OpenAI API key")
		return "", ErrMissingAPIKey
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		a.logger.Error("OpenAI API error", "status", resp.StatusCode, "body", string(body))
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	a.logger.Debug("Completion received",
		"model", reqBody.Model,
		"messages", len(reqBody.Messages),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return NoResponseText, nil
	}

	return chatResp.Choices[0].Message.Content, nil
}
