package ocr

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/receipt-itemizer/constants"
	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
)

// VisionAPI is the subset of the Vision client we call.
type VisionAPI interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
}

// VisionEngine runs Google Cloud Vision DOCUMENT_TEXT_DETECTION and rebuilds
// text lines from the symbol break markers.
type VisionEngine struct {
	api    VisionAPI
	logger *slog.Logger
}

// NewVisionEngine prefers inline credentials, then a credentials file, then
// application default credentials.
func NewVisionEngine(ctx context.Context, cfg common.OCRConfig, logger *slog.Logger) (*VisionEngine, error) {
	var opts []option.ClientOption
	switch {
	case cfg.GoogleCredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.GoogleCredentialsJSON)))
	case cfg.GoogleCredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, serviceError(constants.EngineVision, "create image annotator client", err)
	}
	return NewVisionEngineWithAPI(client, logger), nil
}

func NewVisionEngineWithAPI(api VisionAPI, logger *slog.Logger) *VisionEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &VisionEngine{api: api, logger: logger}
}

func (e *VisionEngine) Name() string { return constants.EngineVision }

func (e *VisionEngine) Detect(ctx context.Context, image []byte) ([]Fragment, error) {
	start := time.Now()
	resp, err := e.api.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: image},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	})
	if err != nil {
		e.logger.Error("ocr.vision.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, serviceError(e.Name(), "batch annotate images", err)
	}
	if len(resp.GetResponses()) == 0 {
		return nil, nil
	}
	r := resp.GetResponses()[0]
	if r.GetError() != nil && r.GetError().GetMessage() != "" {
		return nil, serviceError(e.Name(), "annotate image", errors.New(r.GetError().GetMessage()))
	}

	var frags []Fragment
	for _, page := range r.GetFullTextAnnotation().GetPages() {
		frags = append(frags, visionPageLines(page, len(frags))...)
	}
	e.logger.Info("ocr.vision.ok", "lines", len(frags), "elapsed_ms", time.Since(start).Milliseconds())
	return frags, nil
}

type visionLine struct {
	words                  []string
	seen                   bool
	minX, minY, maxX, maxY float64
}

func (l *visionLine) add(text string, poly *visionpb.BoundingPoly, pageW, pageH float64) {
	l.words = append(l.words, text)
	for _, v := range poly.GetVertices() {
		l.extend(float64(v.GetX()), float64(v.GetY()))
	}
	if len(poly.GetVertices()) == 0 {
		for _, v := range poly.GetNormalizedVertices() {
			l.extend(float64(v.GetX())*pageW, float64(v.GetY())*pageH)
		}
	}
}

func (l *visionLine) extend(x, y float64) {
	if !l.seen {
		l.minX, l.minY, l.maxX, l.maxY = x, y, x, y
		l.seen = true
		return
	}
	l.minX, l.minY = math.Min(l.minX, x), math.Min(l.minY, y)
	l.maxX, l.maxY = math.Max(l.maxX, x), math.Max(l.maxY, y)
}

func visionPageLines(page *visionpb.Page, offset int) []Fragment {
	pageW, pageH := float64(page.GetWidth()), float64(page.GetHeight())
	var out []Fragment
	flush := func(l *visionLine) {
		if len(l.words) == 0 {
			return
		}
		f := Fragment{
			ID:        "line-" + strconv.Itoa(offset+len(out)),
			BlockType: constants.BlockTypeLine,
			Text:      strings.Join(l.words, " "),
		}
		if l.seen {
			f.Box = pixelBox(l.minX, l.minY, l.maxX-l.minX, l.maxY-l.minY, pageW, pageH)
		}
		out = append(out, f)
		*l = visionLine{}
	}

	for _, block := range page.GetBlocks() {
		for _, para := range block.GetParagraphs() {
			var cur visionLine
			for _, word := range para.GetWords() {
				var sb strings.Builder
				endsLine := false
				for _, sym := range word.GetSymbols() {
					sb.WriteString(sym.GetText())
					switch sym.GetProperty().GetDetectedBreak().GetType() {
					case visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE,
						visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
						endsLine = true
					}
				}
				cur.add(sb.String(), word.GetBoundingBox(), pageW, pageH)
				if endsLine {
					flush(&cur)
				}
			}
			flush(&cur)
		}
	}
	return out
}
