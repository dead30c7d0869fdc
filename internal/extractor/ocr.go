package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"

	"github.com/BerylCAtieno/milo-api/internal/utils"
	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
)

const (
	// OCRScale upsamples pages relative to PDF's native 72 DPI.
	OCRScale = 2.0
	pdfDPI   = 72.0
)

// Rasterizer renders every page of a PDF to a PNG image.
type Rasterizer interface {
	RasterizePages(ctx context.Context, data []byte, scale float64) ([][]byte, error)
}

// Recognizer runs optical character recognition over one page image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// OCRExtractor recovers text from scanned PDFs. It is far slower than the
// text layer and is only used when the text layer looks unusable.
type OCRExtractor struct {
	rasterizer Rasterizer
	recognizer Recognizer
	logger     *utils.Logger
}

func NewOCRExtractor(rasterizer Rasterizer, recognizer Recognizer, logger *utils.Logger) *OCRExtractor {
	return &OCRExtractor{
		rasterizer: rasterizer,
		recognizer: recognizer,
		logger:     logger,
	}
}

// NewTesseractOCR wires MuPDF rasterization to Tesseract recognition.
func NewTesseractOCR(language string, logger *utils.Logger) *OCRExtractor {
	return NewOCRExtractor(FitzRasterizer{}, &TesseractRecognizer{Language: language}, logger)
}

// Extract recognizes every page. Any failure discards the whole document;
// partial results are never returned.
func (o *OCRExtractor) Extract(ctx context.Context, data []byte) Result {
	images, err := o.rasterizer.RasterizePages(ctx, data, OCRScale)
	if err != nil {
		o.logger.Error("OCR rasterization failed", "error", err)
		return failed(MethodOCR, fmt.Errorf("rasterize: %w", err))
	}

	pages := make([]string, 0, len(images))
	for i, img := range images {
		text, err := o.recognizer.Recognize(ctx, img)
		if err != nil {
			o.logger.Error("OCR recognition failed", "page", i+1, "error", err)
			return failed(MethodOCR, fmt.Errorf("recognize page %d: %w", i+1, err))
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	res := found(MethodOCR, pages, "")
	if res.Status != StatusFound {
		return res
	}

	var b strings.Builder
	for i, text := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- page %d ---\n", i+1)
		b.WriteString(text)
	}
	res.Text = b.String()

	o.logger.Info("OCR extraction complete", "pages", len(pages), "text_length", len(res.Text))
	return res
}

// FitzRasterizer renders pages with MuPDF.
type FitzRasterizer struct{}

func (FitzRasterizer) RasterizePages(ctx context.Context, data []byte, scale float64) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	images := make([][]byte, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := doc.ImageDPI(i, pdfDPI*scale)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", i+1, err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", i+1, err)
		}
		images = append(images, buf.Bytes())
	}

	return images, nil
}

// TesseractRecognizer runs Tesseract through its C API. gosseract clients
// are not safe for concurrent use; each page gets its own.
type TesseractRecognizer struct {
	Language string
}

func (t *TesseractRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	lang := t.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		return "", fmt.Errorf("failed to set OCR language %q: %w", lang, err)
	}

	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("failed to set OCR image data: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR text extraction failed: %w", err)
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n"), nil
}
