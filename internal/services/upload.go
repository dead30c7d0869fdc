package services

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/BerylCAtieno/milo-api/internal/extractor"
	"github.com/BerylCAtieno/milo-api/internal/models"
	"github.com/BerylCAtieno/milo-api/internal/session"
	"github.com/BerylCAtieno/milo-api/internal/storage"
	"github.com/BerylCAtieno/milo-api/internal/utils"
)

func (s *chatService) UploadReports(ctx context.Context, sessionID string, files []models.UploadedFile) ([]models.TurnResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, utils.NewBadRequestError("No file provided")
	}

	results := make([]models.TurnResult, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := s.uploadOne(ctx, sess, f)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}

	return results, nil
}

func (s *chatService) uploadOne(ctx context.Context, sess *session.Session, f models.UploadedFile) (*models.TurnResult, error) {
	logger := s.logger.With("session_id", sess.ID, "filename", f.Filename)

	extracted, err := s.extractor.Extract(ctx, extractor.Document{
		Filename:    f.Filename,
		ContentType: f.ContentType,
		Data:        f.Data,
	})
	if err != nil {
		logger.Warn("Unsupported upload", "content_type", f.ContentType, "error", err)
		return nil, utils.NewBadRequestError("Only .txt and .pdf files are supported")
	}

	logger.Info("Report extracted",
		"status", string(extracted.Status),
		"method", string(extracted.Method),
		"text_length", len(extracted.Text))

	if extracted.Status != extractor.StatusFound {
		if extracted.Err != nil {
			logger.Warn("Report extraction failed", "error", extracted.Err)
		}
		return &models.TurnResult{
			Filename:   f.Filename,
			Extraction: string(extracted.Status),
			Method:     string(extracted.Method),
		}, nil
	}

	var fileKey *string
	if s.storage != nil {
		owner := ""
		if p := sess.Patient(); p != nil {
			owner = p.ID
		}
		key := storage.ReportKey(owner, utils.GenerateID(), f.Filename, s.now())
		if err := s.storage.Upload(ctx, key, f.Data, f.ContentType); err != nil {
			logger.Error("Failed to store report", "error", err, "key", key)
		} else {
			fileKey = &key
		}
	}

	text := extractor.CleanForPrompt(extracted.Text)

	res, err := s.turn(ctx, sess, session.TabLab, text, fileKey)
	if err != nil {
		return nil, err
	}
	res.Filename = f.Filename
	res.Extraction = string(extracted.Status)
	res.Method = string(extracted.Method)
	if fileKey != nil {
		res.FileKey = *fileKey
	}

	return res, nil
}

// DetermineContentType maps a filename extension to a supported media type,
// falling back to the type the client reported.
func DetermineContentType(filename, headerContentType string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return extractor.ContentTypePDF
	case ".txt":
		return extractor.ContentTypeText
	}

	if i := strings.Index(headerContentType, ";"); i >= 0 {
		headerContentType = strings.TrimSpace(headerContentType[:i])
	}
	return headerContentType
}

// IsSupportedContentType reports whether uploads of contentType can be read.
func IsSupportedContentType(contentType string) bool {
	return contentType == extractor.ContentTypePDF || extractor.IsTextContentType(contentType)
}
