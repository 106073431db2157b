package extract

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// OCR recognizes text in an image file. Empty text is a valid result for an
// image with nothing recognizable in it.
type OCR interface {
	Recognize(path string) (string, error)
}

// TesseractOCR shells out to the tesseract binary, the same engine the rest
// of the stack treats as an external collaborator.
type TesseractOCR struct {
	binary  string
	timeout time.Duration
}

// NewTesseractOCR returns an OCR engine backed by the given binary path
// (empty = "tesseract" from PATH).
func NewTesseractOCR(binary string) *TesseractOCR {
	if binary == "" {
		binary = "tesseract"
	}
	return &TesseractOCR{binary: binary, timeout: 60 * time.Second}
}

// Recognize runs tesseract on path and returns the recognized text.
func (t *TesseractOCR) Recognize(path string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, t.binary, path, "stdout").Output()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
