package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// TextExtractor pulls plain text out of uploaded files. Supported types are
// "pdf" and "txt"/"text"; anything else is ErrUnsupportedFileType.
type TextExtractor struct {
	maxFileSize int64
}

func NewTextExtractor(maxFileSize int64) *TextExtractor {
	return &TextExtractor{maxFileSize: maxFileSize}
}

// Extract returns the text content of the file.
func (e *TextExtractor) Extract(content []byte, fileType string) (string, error) {
	if e.maxFileSize > 0 && int64(len(content)) > e.maxFileSize {
		return "", fmt.Errorf("file exceeds maximum size of %d bytes", e.maxFileSize)
	}

	switch strings.ToLower(fileType) {
	case "pdf":
		return e.extractPDF(content)
	case "txt", "text":
		return string(content), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, fileType)
	}
}

func (e *TextExtractor) extractPDF(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			// Skip unreadable pages rather than failing the whole document.
			continue
		}

		if textBuilder.Len() > 0 {
			textBuilder.WriteString("\n\n")
		}
		textBuilder.WriteString(text)
	}

	extracted := textBuilder.String()
	if len(strings.TrimSpace(extracted)) == 0 {
		return "", fmt.Errorf("no text extracted from PDF")
	}

	return extracted, nil
}
