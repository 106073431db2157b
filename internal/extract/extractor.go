// Package extract provides text extraction from uploaded artifacts.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docent-ai/docent/internal/models"
)

// imageExts are extensions handed to the OCR engine instead of a document parser.
var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tiff": true, ".webp": true,
}

// Extractor turns an uploaded artifact into text units. A PDF yields one unit
// per page; every other format yields a single unit. Images go through the
// OCR engine; ocr may be nil, in which case image input is an error.
type Extractor struct {
	ocr OCR
}

// NewExtractor returns an Extractor. ocr may be nil to disable image support.
func NewExtractor(ocr OCR) *Extractor {
	return &Extractor{ocr: ocr}
}

// IsImageExt reports whether ext (with leading dot) is a supported image extension.
func IsImageExt(ext string) bool {
	return imageExts[strings.ToLower(ext)]
}

// Extract reads the file at path and returns its text units. Each unit carries
// a "source" metadata entry with the artifact's base name; PDF units add "page".
// Returns an error if the file cannot be read or parsed; an image with no
// recognizable text yields one unit with empty text, not an error.
func (e *Extractor) Extract(path string) ([]models.TextUnit, error) {
	ext := strings.ToLower(filepath.Ext(path))
	source := filepath.Base(path)

	if imageExts[ext] {
		if e.ocr == nil {
			return nil, fmt.Errorf("image extraction not available: no OCR engine configured")
		}
		text, err := e.ocr.Recognize(path)
		if err != nil {
			return nil, fmt.Errorf("ocr %s: %w", source, err)
		}
		return []models.TextUnit{{Text: text, Metadata: map[string]string{"source": source}}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext, source)
}

// ExtractBytes extracts text units from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext, source string) ([]models.TextUnit, error) {
	switch ext {
	case ".pdf":
		pages, err := extractPDF(content)
		if err != nil {
			return nil, err
		}
		units := make([]models.TextUnit, len(pages))
		for i, page := range pages {
			units[i] = models.TextUnit{
				Text: page,
				Metadata: map[string]string{
					"source": source,
					"page":   fmt.Sprintf("%d", i+1),
				},
			}
		}
		return units, nil
	case ".docx":
		text, err := extractDOCX(content)
		if err != nil {
			return nil, err
		}
		return []models.TextUnit{{Text: text, Metadata: map[string]string{"source": source}}}, nil
	case ".xlsx":
		text, err := extractExcel(content)
		if err != nil {
			return nil, err
		}
		return []models.TextUnit{{Text: text, Metadata: map[string]string{"source": source}}}, nil
	default:
		// Unknown extension: treat as plain text
		text, err := extractPlain(content)
		if err != nil {
			return nil, err
		}
		return []models.TextUnit{{Text: text, Metadata: map[string]string{"source": source}}}, nil
	}
}
