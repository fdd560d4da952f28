package ocr

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/joseph-ayodele/receipt-itemizer/constants"
	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
)

// TextractAPI is the subset of the Textract client we call; stubbed in tests.
type TextractAPI interface {
	AnalyzeDocument(ctx context.Context, params *textract.AnalyzeDocumentInput, optFns ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error)
}

// TextractEngine runs AWS Textract AnalyzeDocument (TABLES) on the image bytes.
type TextractEngine struct {
	api    TextractAPI
	logger *slog.Logger
}

func NewTextractEngine(ctx context.Context, cfg common.OCRConfig, logger *slog.Logger) (*TextractEngine, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, serviceError(constants.EngineTextract, "load aws config", err)
	}
	return NewTextractEngineWithAPI(textract.NewFromConfig(awsCfg), logger), nil
}

func NewTextractEngineWithAPI(api TextractAPI, logger *slog.Logger) *TextractEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextractEngine{api: api, logger: logger}
}

func (e *TextractEngine) Name() string { return constants.EngineTextract }

func (e *TextractEngine) Detect(ctx context.Context, image []byte) ([]Fragment, error) {
	start := time.Now()
	out, err := e.api.AnalyzeDocument(ctx, &textract.AnalyzeDocumentInput{
		Document:     &types.Document{Bytes: image},
		FeatureTypes: []types.FeatureType{types.FeatureTypeTables},
	})
	if err != nil {
		e.logger.Error("ocr.textract.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, serviceError(e.Name(), "failed to process receipt image with Textract", err)
	}

	frags := make([]Fragment, 0, len(out.Blocks))
	for _, b := range out.Blocks {
		f := Fragment{
			ID:         aws.ToString(b.Id),
			BlockType:  string(b.BlockType),
			Text:       aws.ToString(b.Text),
			Confidence: float64(aws.ToFloat32(b.Confidence)) / 100,
		}
		if b.Geometry != nil && b.Geometry.BoundingBox != nil {
			bb := b.Geometry.BoundingBox
			f.Box = &BoundingBox{
				Top:    float64(bb.Top),
				Left:   float64(bb.Left),
				Width:  float64(bb.Width),
				Height: float64(bb.Height),
			}
		}
		frags = append(frags, f)
	}
	e.logger.Info("ocr.textract.ok", "blocks", len(frags), "elapsed_ms", time.Since(start).Milliseconds())
	return frags, nil
}
