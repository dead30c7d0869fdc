package services

import (
	"context"
	"errors"
	"strings"

	"github.com/BerylCAtieno/milo-api/internal/analyzer"
	"github.com/BerylCAtieno/milo-api/internal/models"
	"github.com/BerylCAtieno/milo-api/internal/utils"
)

// ProxyService relays client-assembled requests to the generation service
// without touching sessions or patients.
type ProxyService interface {
	Complete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResponse, error)
	AnalyzeLabText(ctx context.Context, req *models.LabTextRequest) (*models.LabTextResponse, error)
}

type proxyService struct {
	analyzer analyzer.Analyzer
	logger   *utils.Logger
}

func NewProxyService(llm analyzer.Analyzer, logger *utils.Logger) ProxyService {
	return &proxyService{
		analyzer: llm,
		logger:   logger,
	}
}

func (s *proxyService) Complete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResponse, error) {
	if strings.TrimSpace(req.Model) == "" || len(req.Messages) == 0 {
		return nil, utils.NewBadRequestError("Missing model or messages.")
	}

	reply, err := s.analyzer.Chat(ctx, *req)
	if err != nil {
		s.logger.Error("Error contacting generation service", "error", err)
		return nil, generationError(err)
	}

	return &models.CompletionResponse{Message: reply}, nil
}

func (s *proxyService) AnalyzeLabText(ctx context.Context, req *models.LabTextRequest) (*models.LabTextResponse, error) {
	if strings.TrimSpace(req.LabText) == "" {
		return nil, utils.NewBadRequestError("Missing labText in request.")
	}

	reply, err := s.analyzer.AnalyzeLabs(ctx, req.LabText)
	if err != nil {
		s.logger.Error("Error analyzing lab text", "error", err)
		return nil, generationError(err)
	}

	return &models.LabTextResponse{Result: reply}, nil
}

// generationError maps a generation failure to the status the client sees.
// Upstream statuses and bodies pass through unchanged.
func generationError(err error) error {
	var upstream *analyzer.UpstreamError
	switch {
	case errors.As(err, &upstream):
		return utils.NewUpstreamError(upstream.StatusCode, upstream.Body)
	case errors.Is(err, analyzer.ErrMissingAPIKey):
		return utils.NewInternalError("Missing OpenAI API Key")
	default:
		return utils.NewInternalError("Internal server error.")
	}
}
