//go:build !ocr

package ocr

import (
	"log/slog"

	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
)

// newTesseractEngine reports ErrTesseractNotEnabled; build with -tags ocr
// for in-process Tesseract, or use OCR_ENGINE=tesseract-cli.
func newTesseractEngine(common.OCRConfig, *slog.Logger) (Engine, error) {
	return nil, ErrTesseractNotEnabled
}
