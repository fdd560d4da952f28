// Package ocr turns receipt image bytes into positioned text fragments.
//
// Each Engine wraps one OCR backend and reports fragments with bounding
// boxes normalized to 0..1 of the page, so downstream row grouping does
// not care which backend produced them.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/receipt-itemizer/constants"
	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
)

// BoundingBox is a page-relative rectangle; all values are in 0..1.
type BoundingBox struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Fragment is one positioned text block as reported by an OCR engine.
// BlockType, Text and Box may each be absent.
type Fragment struct {
	ID         string       `json:"id,omitempty"`
	BlockType  string       `json:"blockType,omitempty"`
	Text       string       `json:"text,omitempty"`
	Box        *BoundingBox `json:"boundingBox,omitempty"`
	Confidence float64      `json:"confidence,omitempty"`
}

// Engine detects text fragments in an encoded image.
type Engine interface {
	Name() string
	Detect(ctx context.Context, image []byte) ([]Fragment, error)
}

// ErrTesseractNotEnabled is returned for OCR_ENGINE=tesseract in builds without the ocr tag.
var ErrTesseractNotEnabled = errors.New("tesseract support not enabled; rebuild with -tags ocr")

// NewEngine builds the engine selected by cfg.Engine.
func NewEngine(ctx context.Context, cfg common.OCRConfig, logger *slog.Logger) (Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Engine {
	case constants.EngineTextract, "":
		return NewTextractEngine(ctx, cfg, logger)
	case constants.EngineVision:
		return NewVisionEngine(ctx, cfg, logger)
	case constants.EngineAzure:
		return NewAzureEngine(cfg, logger), nil
	case constants.EngineTesseract:
		return newTesseractEngine(cfg, logger)
	case constants.EngineTesseractCLI:
		return NewTesseractCLIEngine(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", cfg.Engine)
	}
}

// pixelBox converts a pixel rectangle into a normalized box. It returns nil
// when the page size is unknown, leaving the fragment without geometry.
func pixelBox(x, y, w, h, pageW, pageH float64) *BoundingBox {
	if pageW <= 0 || pageH <= 0 || w < 0 || h < 0 {
		return nil
	}
	return &BoundingBox{
		Top:    y / pageH,
		Left:   x / pageW,
		Width:  w / pageW,
		Height: h / pageH,
	}
}

func serviceError(engine, op string, err error) error {
	return common.NewExternalServiceError(engine, op, err)
}
