package extractor

import (
	"context"
	"strings"

	"github.com/BerylCAtieno/milo-api/internal/utils"
)

const (
	// MinTextLength is the shortest text layer trusted without OCR.
	MinTextLength = 100
	// DegenerateTextLength marks a text layer that is effectively empty.
	DegenerateTextLength = 20
	// repeatedHeader is injected once per physical page by some scanner
	// software; seen more than maxHeaderRepeats times it means no real text.
	repeatedHeader   = "LAB* for"
	maxHeaderRepeats = 2
)

// clinicalMarkers are expected somewhere in any genuine hormone lab report.
var clinicalMarkers = []string{
	"tsh", "testosterone", "free t3", "vitamin d", "estradiol", "dhea", "igf", "psa",
}

// Decision records which checks a text layer failed.
type Decision struct {
	Length         int
	HeaderRepeats  int
	TooShort       bool
	Degenerate     bool
	RepeatedHeader bool
	MissingMarkers bool
}

// NeedsOCR is true when any check failed.
func (d Decision) NeedsOCR() bool {
	return d.TooShort || d.Degenerate || d.RepeatedHeader || d.MissingMarkers
}

// Reasons lists the failed checks for logging.
func (d Decision) Reasons() []string {
	var reasons []string
	if d.Degenerate {
		reasons = append(reasons, "degenerate")
	}
	if d.TooShort {
		reasons = append(reasons, "too_short")
	}
	if d.RepeatedHeader {
		reasons = append(reasons, "repeated_header")
	}
	if d.MissingMarkers {
		reasons = append(reasons, "missing_markers")
	}
	return reasons
}

// Assess inspects a text layer without touching any file.
func Assess(text string) Decision {
	trimmed := strings.TrimSpace(text)
	d := Decision{
		Length:        len([]rune(trimmed)),
		HeaderRepeats: strings.Count(text, repeatedHeader),
	}

	d.TooShort = d.Length < MinTextLength
	d.Degenerate = d.Length <= DegenerateTextLength
	d.RepeatedHeader = d.HeaderRepeats > maxHeaderRepeats
	d.MissingMarkers = !containsAny(strings.ToLower(trimmed), clinicalMarkers)

	return d
}

// NeedsOCR reports whether a text layer should be replaced by OCR output.
func NeedsOCR(text string) bool {
	return Assess(text).NeedsOCR()
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// PageOCR is the expensive second stage of the hybrid pipeline.
type PageOCR interface {
	Extract(ctx context.Context, data []byte) Result
}

// Hybrid runs the text layer first and falls back to OCR once when the
// text layer fails Assess. The two sources are never merged.
type Hybrid struct {
	textLayer func(data []byte) Result
	ocr       PageOCR
	logger    *utils.Logger
}

func NewHybrid(ocr PageOCR, logger *utils.Logger) *Hybrid {
	return &Hybrid{
		textLayer: func(data []byte) Result { return ExtractTextLayer(data, logger) },
		ocr:       ocr,
		logger:    logger,
	}
}

func (h *Hybrid) Extract(ctx context.Context, data []byte) Result {
	layer := h.textLayer(data)

	decision := Assess(layer.Text)
	if !decision.NeedsOCR() {
		h.logger.Info("Using PDF text layer", "text_length", decision.Length)
		return layer
	}

	h.logger.Warn("PDF text layer unusable, switching to OCR",
		"reasons", decision.Reasons(),
		"text_status", layer.Status,
		"text_length", decision.Length,
		"header_repeats", decision.HeaderRepeats)

	return h.ocr.Extract(ctx, data)
}
