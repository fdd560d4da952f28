package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipt-itemizer/constants"
	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
)

// TesseractCLIEngine shells out to the tesseract binary in TSV mode and
// rebuilds line fragments from the word rows.
type TesseractCLIEngine struct {
	bin         string
	lang        string
	tessdataDir string
	runner      Runner
	logger      *slog.Logger
}

func NewTesseractCLIEngine(cfg common.OCRConfig, logger *slog.Logger) *TesseractCLIEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return NewTesseractCLIEngineWithRunner(cfg, execRunner{logger: logger}, logger)
}

func NewTesseractCLIEngineWithRunner(cfg common.OCRConfig, r Runner, logger *slog.Logger) *TesseractCLIEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	return &TesseractCLIEngine{
		bin:         cfg.Tesseract,
		lang:        cfg.TesseractLang,
		tessdataDir: cfg.TessdataDir,
		runner:      r,
		logger:      logger,
	}
}

func (e *TesseractCLIEngine) Name() string { return constants.EngineTesseractCLI }

func (e *TesseractCLIEngine) Detect(ctx context.Context, image []byte) ([]Fragment, error) {
	path, cleanup, err := stagePNG(image)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	args := []string{path, "stdout", "-l", e.lang}
	if e.tessdataDir != "" {
		args = append(args, "--tessdata-dir", e.tessdataDir)
	}
	args = append(args, "tsv")

	start := time.Now()
	out, errb, err := e.runner.Run(ctx, e.bin, args...)
	if err != nil {
		return nil, serviceError(e.Name(), "tesseract tsv", fmt.Errorf("%w: %s", err, truncate(string(errb), 512)))
	}
	frags := parseTSVLines(string(out))
	e.logger.Info("ocr.tesseract_cli.ok", "lines", len(frags), "elapsed_ms", time.Since(start).Milliseconds())
	return frags, nil
}

// stagePNG writes the image to a temp PNG. Call cleanup() to remove it.
func stagePNG(image []byte) (string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "ri-ocr-*")
	if err != nil {
		return "", nil, fmt.Errorf("temp dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	path := filepath.Join(tmpDir, "page.png")
	f, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("create temp image: %w", err)
	}
	if err := writePNG(f, image); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp image: %w", err)
	}
	return path, cleanup, nil
}

type tsvLine struct {
	key            string
	left, top      float64
	width, height  float64
	words          []string
	confSum, confN float64
}

// parseTSVLines reads tesseract TSV output:
// level page_num block_num par_num line_num word_num left top width height conf text
// Level 1 rows carry the page size, level 4 rows the line box, level 5 rows the words.
func parseTSVLines(tsv string) []Fragment {
	var pageW, pageH float64
	var order []*tsvLine
	byKey := map[string]*tsvLine{}

	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || strings.TrimSpace(ln) == "" {
			continue
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 11 {
			continue
		}
		level, _ := strconv.Atoi(cols[0])
		left, _ := strconv.ParseFloat(cols[6], 64)
		top, _ := strconv.ParseFloat(cols[7], 64)
		width, _ := strconv.ParseFloat(cols[8], 64)
		height, _ := strconv.ParseFloat(cols[9], 64)
		key := strings.Join(cols[1:5], "/")

		switch level {
		case 1:
			pageW, pageH = width, height
		case 4:
			l := &tsvLine{key: key, left: left, top: top, width: width, height: height}
			byKey[key] = l
			order = append(order, l)
		case 5:
			l, ok := byKey[key]
			if !ok || len(cols) < 12 {
				continue
			}
			if w := strings.TrimSpace(cols[11]); w != "" {
				l.words = append(l.words, w)
			}
			if c, err := strconv.ParseFloat(cols[10], 64); err == nil && c >= 0 {
				l.confSum += c
				l.confN++
			}
		}
	}

	frags := make([]Fragment, 0, len(order))
	for _, l := range order {
		if len(l.words) == 0 {
			continue
		}
		f := Fragment{
			ID:        "line-" + l.key,
			BlockType: constants.BlockTypeLine,
			Text:      strings.Join(l.words, " "),
			Box:       pixelBox(l.left, l.top, l.width, l.height, pageW, pageH),
		}
		if l.confN > 0 {
			f.Confidence = l.confSum / l.confN / 100
		}
		frags = append(frags, f)
	}
	return frags
}
