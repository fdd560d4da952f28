//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/receipt-itemizer/constants"
	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
)

// TesseractEngine runs libtesseract in-process and reports text-line boxes.
type TesseractEngine struct {
	lang        string
	tessdataDir string
	logger      *slog.Logger
}

func newTesseractEngine(cfg common.OCRConfig, logger *slog.Logger) (Engine, error) {
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	return &TesseractEngine{lang: cfg.TesseractLang, tessdataDir: cfg.TessdataDir, logger: logger}, nil
}

func (e *TesseractEngine) Name() string { return constants.EngineTesseract }

func (e *TesseractEngine) Detect(ctx context.Context, image []byte) ([]Fragment, error) {
	info, err := InspectImage(image)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, serviceError(e.Name(), "detect", err)
	}

	start := time.Now()
	c := gosseract.NewClient()
	defer c.Close()
	if e.tessdataDir != "" {
		if err := c.SetTessdataPrefix(e.tessdataDir); err != nil {
			return nil, serviceError(e.Name(), "set tessdata prefix", err)
		}
	}
	if err := c.SetLanguage(e.lang); err != nil {
		return nil, serviceError(e.Name(), "set language", err)
	}
	if err := c.SetImageFromBytes(image); err != nil {
		return nil, serviceError(e.Name(), "set image", err)
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, serviceError(e.Name(), "bounding boxes", err)
	}

	frags := make([]Fragment, 0, len(boxes))
	for i, b := range boxes {
		frags = append(frags, Fragment{
			ID:         fmt.Sprintf("line-%d", i),
			BlockType:  constants.BlockTypeLine,
			Text:       b.Word,
			Confidence: b.Confidence / 100,
			Box: pixelBox(float64(b.Box.Min.X), float64(b.Box.Min.Y), float64(b.Box.Dx()), float64(b.Box.Dy()),
				float64(info.Width), float64(info.Height)),
		})
	}
	e.logger.Info("ocr.tesseract.ok", "lines", len(frags), "elapsed_ms", time.Since(start).Milliseconds())
	return frags, nil
}
