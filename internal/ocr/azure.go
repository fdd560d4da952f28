package ocr

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"

	"github.com/joseph-ayodele/receipt-itemizer/constants"
	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
)

// AzureOCRAPI is the subset of the Computer Vision client we call.
type AzureOCRAPI interface {
	RecognizePrintedTextInStream(ctx context.Context, detectOrientation bool, imageParameter io.ReadCloser, language computervision.OcrLanguages) (computervision.OcrResult, error)
}

// AzureEngine runs Azure Computer Vision printed-text OCR. Azure reports
// pixel boxes, so the image is decoded once to learn its size.
type AzureEngine struct {
	api    AzureOCRAPI
	logger *slog.Logger
}

func NewAzureEngine(cfg common.OCRConfig, logger *slog.Logger) *AzureEngine {
	client := computervision.New(cfg.AzureEndpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(cfg.AzureKey)
	return NewAzureEngineWithAPI(client, logger)
}

func NewAzureEngineWithAPI(api AzureOCRAPI, logger *slog.Logger) *AzureEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &AzureEngine{api: api, logger: logger}
}

func (e *AzureEngine) Name() string { return constants.EngineAzure }

func (e *AzureEngine) Detect(ctx context.Context, image []byte) ([]Fragment, error) {
	info, err := InspectImage(image)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := e.api.RecognizePrintedTextInStream(ctx, false, io.NopCloser(bytes.NewReader(image)),
		computervision.OcrLanguages(computervision.En))
	if err != nil {
		e.logger.Error("ocr.azure.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, serviceError(e.Name(), "recognize printed text", err)
	}

	var frags []Fragment
	if result.Regions != nil {
		for _, region := range *result.Regions {
			if region.Lines == nil {
				continue
			}
			for _, line := range *region.Lines {
				frags = append(frags, azureLine(line, len(frags), info))
			}
		}
	}
	e.logger.Info("ocr.azure.ok", "lines", len(frags), "elapsed_ms", time.Since(start).Milliseconds())
	return frags, nil
}

func azureLine(line computervision.OcrLine, idx int, info ImageInfo) Fragment {
	var words []string
	if line.Words != nil {
		for _, w := range *line.Words {
			if w.Text != nil {
				words = append(words, *w.Text)
			}
		}
	}
	f := Fragment{
		ID:        "line-" + strconv.Itoa(idx),
		BlockType: constants.BlockTypeLine,
		Text:      strings.Join(words, " "),
	}
	if line.BoundingBox != nil {
		if x, y, w, h, ok := parseAzureBox(*line.BoundingBox); ok {
			f.Box = pixelBox(x, y, w, h, float64(info.Width), float64(info.Height))
		}
	}
	return f
}

// parseAzureBox reads Azure's "x,y,width,height" pixel box.
func parseAzureBox(s string) (x, y, w, h float64, ok bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0, false
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, 0, 0, 0, false
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], vals[3], true
}
