// Package extract turns uploaded invoice documents into typed records:
// PDF text extraction followed by a model call that emits the
// four-section CSV the parser understands.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// pageSeparator keeps page boundaries visible to the model; the
// extraction prompt tells it pages are separated this way.
const pageSeparator = "\n\n\n"

// PDFReader extracts the text layer of a PDF using mupdf.
type PDFReader struct {
	logger *zap.Logger
}

func NewPDFReader(logger *zap.Logger) *PDFReader {
	return &PDFReader{logger: logger}
}

// Text returns the concatenated text of every page. Scanned PDFs with
// no text layer come back empty; the caller decides whether that is an
// error.
func (r *PDFReader) Text(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("PDF file not found: %s", path)
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".pdf" {
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}

	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for pageNum := 0; pageNum < doc.NumPage(); pageNum++ {
		text, err := doc.Text(pageNum)
		if err != nil {
			r.logger.Warn("Failed to read page text",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		pages = append(pages, text)
	}

	r.logger.Debug("Extracted PDF text", zap.String("path", path), zap.Int("pages", len(pages)))
	return strings.Join(pages, pageSeparator), nil
}
