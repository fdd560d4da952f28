// Package pipeline runs one receipt image through OCR, row grouping,
// structured extraction, reconciliation and persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-itemizer/constants"
	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
	"github.com/joseph-ayodele/receipt-itemizer/internal/entity"
	"github.com/joseph-ayodele/receipt-itemizer/internal/layout"
	"github.com/joseph-ayodele/receipt-itemizer/internal/llm"
	"github.com/joseph-ayodele/receipt-itemizer/internal/ocr"
	"github.com/joseph-ayodele/receipt-itemizer/internal/reconcile"
	"github.com/joseph-ayodele/receipt-itemizer/internal/repository"
	"github.com/joseph-ayodele/receipt-itemizer/internal/uploads"
)

// Store persists a reconciled receipt and its items.
type Store interface {
	CreateReceipt(ctx context.Context, in repository.NewReceipt) (uuid.UUID, error)
	CreateItems(ctx context.Context, items []repository.NewItem) error
}

// Outcome is what one run produced. Exactly one of Result and Raw is set
// once extraction has run; Raw means the model output could not be parsed.
type Outcome struct {
	RequestID   string                    `json:"requestId"`
	State       constants.State           `json:"state"`
	FailedStage constants.Stage           `json:"failedStage,omitempty"`
	Rows        []layout.Row              `json:"rows"`
	Result      *entity.ExtractionResult  `json:"result,omitempty"`
	Raw         string                    `json:"raw,omitempty"`
	Unparsed    bool                      `json:"unparsed"`
	Check       *reconcile.TotalCheck     `json:"totalCheck,omitempty"`
	ReceiptID   uuid.UUID                 `json:"receiptId"`
	Timings     map[constants.Stage]int64 `json:"timingsMs"`
	Warnings    []string                  `json:"warnings,omitempty"`
}

// Processor holds only immutable dependencies and is safe for concurrent use.
// A nil Store turns every run into a dry run that stops at RECONCILED.
type Processor struct {
	engine     ocr.Engine
	requester  *llm.Requester
	reconciler *reconcile.Reconciler
	store      Store
	logger     *slog.Logger
}

func NewProcessor(engine ocr.Engine, requester *llm.Requester, reconciler *reconcile.Reconciler, store Store, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if requester == nil {
		requester = llm.NewRequester(nil, logger)
	}
	if reconciler == nil {
		reconciler = reconcile.New(logger)
	}
	return &Processor{engine: engine, requester: requester, reconciler: reconciler, store: store, logger: logger}
}

// ProcessReceiptImage runs the full pipeline over image bytes. On failure
// the returned Outcome is in state FAILED and carries whatever was produced
// before the failing stage.
func (p *Processor) ProcessReceiptImage(ctx context.Context, data []byte) (*Outcome, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	out := newOutcome(rid)
	start := time.Now()
	p.logger.Info("pipeline.start", "req_id", rid, "bytes", len(data), "engine", p.engine.Name())

	fragments, stage, err := p.detect(ctx, out, data)
	if err != nil {
		return p.fail(ctx, out, stage, err)
	}

	var lines []layout.PositionedLine
	p.timed(ctx, out, constants.StageLines, func() error {
		lines = layout.ExtractLines(fragments)
		return nil
	})
	if len(lines) == 0 {
		out.Warnings = append(out.Warnings, "no usable text lines found in image")
		p.logger.Warn("pipeline.lines.empty", "req_id", rid, "fragments", len(fragments))
	}
	out.State = constants.StateLinesExtracted

	p.timed(ctx, out, constants.StageRows, func() error {
		out.Rows = layout.GroupRows(lines)
		return nil
	})
	out.State = constants.StateRowsGrouped

	var cand llm.Candidate
	if err := p.timed(ctx, out, constants.StageExtraction, func() error {
		var err error
		cand, err = p.requester.Request(ctx, layout.ParsedReceipt{Rows: out.Rows})
		return err
	}); err != nil {
		return p.fail(ctx, out, constants.StageExtraction, err)
	}
	out.State = constants.StateExtractionRequested
	out.Warnings = append(out.Warnings, cand.Warnings...)
	if cand.Unparsed {
		out.Raw = cand.Raw
		out.Unparsed = true
		p.logger.Warn("pipeline.done.unparsed", "req_id", rid, "state", out.State, "terminal", out.State.Terminal(),
			"elapsed_ms", time.Since(start).Milliseconds())
		return out, nil
	}

	p.timed(ctx, out, constants.StageReconcile, func() error {
		res := p.reconciler.Reconcile(ctx, cand.Object, out.Rows)
		out.Result = &res.Extraction
		out.Check = &res.Check
		out.Warnings = append(out.Warnings, res.Warnings...)
		return nil
	})
	out.State = constants.StateReconciled

	if p.store == nil {
		p.logger.Info("pipeline.done", "req_id", rid, "state", out.State, "terminal", out.State.Terminal(), "dry_run", true,
			"items", len(out.Result.Items), "elapsed_ms", time.Since(start).Milliseconds())
		return out, nil
	}

	if err := p.timed(ctx, out, constants.StagePersist, func() error {
		id, err := p.persist(ctx, *out.Result)
		out.ReceiptID = id
		return err
	}); err != nil {
		return p.fail(ctx, out, constants.StagePersist, err)
	}
	out.State = constants.StatePersisted
	p.logger.Info("pipeline.done", "req_id", rid, "state", out.State, "terminal", out.State.Terminal(), "receipt_id", out.ReceiptID,
		"items", len(out.Result.Items), "elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

// ProcessUpload reads res, runs the pipeline and releases res exactly once
// on every path. A failed release is logged and never replaces the result.
func (p *Processor) ProcessUpload(ctx context.Context, res uploads.Resource) (*Outcome, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	defer func() {
		if rerr := res.Release(); rerr != nil {
			p.logger.Warn("pipeline.cleanup.failed", "req_id", rid, "upload", res.Name(), "error", rerr)
		}
	}()

	data, err := res.Bytes()
	if err != nil {
		return p.fail(ctx, newOutcome(rid), constants.StageInput, common.NewInputValidationError("read upload "+res.Name(), err))
	}
	return p.ProcessReceiptImage(ctx, data)
}

// ProcessFile runs the pipeline over a file the caller owns; it is not removed.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*Outcome, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	data, err := os.ReadFile(path)
	if err != nil {
		return p.fail(ctx, newOutcome(rid), constants.StageInput, common.NewInputValidationError("read "+path, err))
	}
	p.logger.Debug("pipeline.file", "req_id", rid, "path", path)
	return p.ProcessReceiptImage(ctx, data)
}

// Rows runs OCR and row grouping only.
func (p *Processor) Rows(ctx context.Context, data []byte) ([]layout.Row, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	fragments, _, err := p.detect(ctx, newOutcome(rid), data)
	if err != nil {
		return nil, err
	}
	return layout.Parse(fragments).Rows, nil
}

// detect validates the image bytes, then runs OCR. The returned stage is the
// one that failed.
func (p *Processor) detect(ctx context.Context, out *Outcome, data []byte) ([]ocr.Fragment, constants.Stage, error) {
	if err := p.timed(ctx, out, constants.StageInput, func() error {
		_, err := ocr.InspectImage(data)
		return err
	}); err != nil {
		return nil, constants.StageInput, err
	}

	var fragments []ocr.Fragment
	err := p.timed(ctx, out, constants.StageOCR, func() error {
		var err error
		fragments, err = p.engine.Detect(ctx, data)
		if err != nil && !errors.Is(err, common.ErrExternalService) && !errors.Is(err, common.ErrInputValidation) {
			return common.NewExternalServiceError(p.engine.Name(), "detect text", err)
		}
		return err
	})
	return fragments, constants.StageOCR, err
}

func (p *Processor) persist(ctx context.Context, res entity.ExtractionResult) (uuid.UUID, error) {
	rec := repository.NewReceipt{
		StoreName:   res.Receipt.StoreName,
		TotalAmount: res.TotalPrice,
	}
	if res.Receipt.PurchaseDate != "" {
		if t, err := time.Parse(time.RFC3339, res.Receipt.PurchaseDate); err == nil {
			rec.PurchaseDate = &t
		}
	}
	id, err := p.store.CreateReceipt(ctx, rec)
	if err != nil {
		return uuid.Nil, asPersistence("create receipt", err)
	}

	items := make([]repository.NewItem, len(res.Items))
	for i, it := range res.Items {
		items[i] = repository.NewItem{
			ReceiptID: id,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
			LineTotal: it.LineTotal,
		}
	}
	if err := p.store.CreateItems(ctx, items); err != nil {
		return id, asPersistence("create items", err)
	}
	return id, nil
}

func (p *Processor) timed(ctx context.Context, out *Outcome, stage constants.Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	out.Timings[stage] = elapsed.Milliseconds()
	if err != nil {
		return err
	}
	p.logger.Debug("pipeline.stage.ok",
		"req_id", common.RequestIDFromContext(ctx),
		"stage", stage,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return nil
}

func (p *Processor) fail(ctx context.Context, out *Outcome, stage constants.Stage, err error) (*Outcome, error) {
	out.State = constants.StateFailed
	out.FailedStage = stage
	p.logger.Error("pipeline.stage.failed",
		"req_id", common.RequestIDFromContext(ctx),
		"stage", stage,
		"service", common.ServiceOf(err),
		"error", err,
	)
	return out, err
}

func newOutcome(rid string) *Outcome {
	return &Outcome{
		RequestID: rid,
		State:     constants.StateReceived,
		Rows:      []layout.Row{},
		Timings:   map[constants.Stage]int64{},
	}
}

func asPersistence(op string, err error) error {
	if errors.Is(err, common.ErrPersistence) {
		return err
	}
	return common.NewPersistenceError(fmt.Sprintf("failed to %s", op), err)
}
