package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/BerylCAtieno/milo-api/internal/utils"
)

// Status separates "nothing to read" from "could not read".
type Status string

const (
	StatusFound    Status = "found"
	StatusNotFound Status = "not_found"
	StatusFailed   Status = "failed"
)

type Method string

const (
	MethodPlainText Method = "text"
	MethodTextLayer Method = "text-layer"
	MethodOCR       Method = "ocr"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeText = "text/plain"
)

// Document is an uploaded file held only for the duration of one request.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Result is the outcome of one extraction pass.
type Result struct {
	Text   string
	Pages  []string
	Method Method
	Status Status
	Err    error
}

func found(method Method, pages []string, sep string) Result {
	text := strings.TrimSpace(strings.Join(pages, sep))
	if text == "" {
		return Result{Method: method, Status: StatusNotFound}
	}
	return Result{Text: text, Pages: pages, Method: method, Status: StatusFound}
}

func failed(method Method, err error) Result {
	return Result{Method: method, Status: StatusFailed, Err: err}
}

// Extractor routes a document to the extraction path for its media type.
type Extractor struct {
	hybrid *Hybrid
	logger *utils.Logger
}

func NewExtractor(hybrid *Hybrid, logger *utils.Logger) *Extractor {
	return &Extractor{hybrid: hybrid, logger: logger}
}

// Extract returns an error only for media types it cannot handle. Read
// failures are reported through Result.Status.
func (e *Extractor) Extract(ctx context.Context, doc Document) (Result, error) {
	switch {
	case doc.ContentType == ContentTypePDF:
		return e.hybrid.Extract(ctx, doc.Data), nil
	case IsTextContentType(doc.ContentType):
		res := ExtractTXT(doc.Data)
		if res.Status == StatusFailed {
			e.logger.Warn("Failed to read text upload", "filename", doc.Filename, "error", res.Err)
		}
		return res, nil
	default:
		return Result{}, fmt.Errorf("unsupported content type %q", doc.ContentType)
	}
}

// IsTextContentType accepts the plain-text variants browsers send.
func IsTextContentType(contentType string) bool {
	switch contentType {
	case ContentTypeText, "text/txt", "application/txt", "application/x-txt":
		return true
	}
	return false
}
