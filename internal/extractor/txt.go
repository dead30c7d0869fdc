package extractor

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ExtractTXT decodes a plain-text upload. BOM-marked UTF-16 and legacy
// single-byte encodings are converted to UTF-8.
func ExtractTXT(data []byte) Result {
	if len(data) == 0 {
		return Result{Method: MethodPlainText, Status: StatusNotFound}
	}

	text, err := decodeText(data)
	if err != nil {
		return failed(MethodPlainText, fmt.Errorf("failed to decode text file: %w", err))
	}

	if err := ValidateText(text); err != nil {
		return failed(MethodPlainText, err)
	}

	return found(MethodPlainText, []string{cleanText(text)}, "")
}

func decodeText(data []byte) (string, error) {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return string(data[3:]), nil
	}

	if len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE {
		decoder := xunicode.UTF16(xunicode.LittleEndian, xunicode.UseBOM).NewDecoder()
		decoded, _, err := transform.Bytes(decoder, data)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	}

	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		decoder := xunicode.UTF16(xunicode.BigEndian, xunicode.UseBOM).NewDecoder()
		decoded, _, err := transform.Bytes(decoder, data)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	decoder := charmap.Windows1252.NewDecoder()
	decoded, _, err := transform.Bytes(decoder, data)
	if err == nil {
		return string(decoded), nil
	}

	decoder = charmap.ISO8859_1.NewDecoder()
	decoded, _, err = transform.Bytes(decoder, data)
	if err == nil {
		return string(decoded), nil
	}

	return string(data), nil
}

func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = strings.ReplaceAll(text, "\x00", "")

	lines := strings.Split(text, "\n")

	var cleanedLines []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleanedLines = append(cleanedLines, line)
		}
	}

	result := strings.Join(cleanedLines, "\n")

	return strings.TrimSpace(result)
}

// ValidateText rejects decoded content that is mostly non-printable, which
// usually means a binary file was uploaded with a text extension.
func ValidateText(text string) error {
	sampleSize := 512
	printable, total := 0, 0

	for _, r := range text {
		if total == sampleSize {
			break
		}
		total++
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			printable++
		}
	}

	if total == 0 {
		return nil
	}

	// If less than 80% of sample is printable text, it might be binary
	if float64(printable)/float64(total) < 0.8 {
		return fmt.Errorf("file does not appear to be valid text")
	}

	return nil
}
