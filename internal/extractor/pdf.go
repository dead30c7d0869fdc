package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/BerylCAtieno/milo-api/internal/utils"
	"github.com/ledongthuc/pdf"
)

// pageSeparator goes between pages of the text layer.
const pageSeparator = "\n\n"

// ExtractTextLayer reads the text embedded in a PDF, page by page in document
// order. A document with no text yields StatusNotFound; unreadable bytes yield
// StatusFailed. Parser panics on malformed input are recovered.
func ExtractTextLayer(data []byte, logger *utils.Logger) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("PDF parser panicked", "panic", r)
			res = failed(MethodTextLayer, fmt.Errorf("pdf parser panic: %v", r))
		}
	}()

	reader := bytes.NewReader(data)

	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		logger.Warn("Failed to open PDF text layer", "error", err, "size", len(data))
		return failed(MethodTextLayer, fmt.Errorf("failed to create PDF reader: %w", err))
	}

	numPages := pdfReader.NumPage()
	pages := make([]string, 0, numPages)

	for i := 1; i <= numPages; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Log but continue with other pages
			logger.Debug("Skipping unreadable PDF page", "page", i, "error", err)
			continue
		}

		pages = append(pages, strings.TrimSpace(text))
	}

	return found(MethodTextLayer, pages, pageSeparator)
}
