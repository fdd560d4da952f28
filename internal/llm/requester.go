package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
	"github.com/joseph-ayodele/receipt-itemizer/internal/layout"
)

// Requester turns grouped rows into a schema-shaped candidate through a Capability.
type Requester struct {
	capability Capability
	logger     *slog.Logger

	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
}

// NewRequester accepts a nil capability; every request then yields the
// canonical empty result.
func NewRequester(capability Capability, logger *slog.Logger) *Requester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Requester{capability: capability, logger: logger}
}

// Available reports whether a model is configured.
func (r *Requester) Available() bool {
	return r.capability != nil
}

// Request asks the model to restructure the rows. The only error it returns
// is an external-service error from the capability; parse and schema
// problems are reported on the Candidate.
func (r *Requester) Request(ctx context.Context, parsed layout.ParsedReceipt) (Candidate, error) {
	rid := common.RequestIDFromContext(ctx)
	if r.capability == nil {
		r.logger.Warn("llm.extract.unavailable", "req_id", rid, "hint", "no extraction capability configured; returning empty result")
		return Candidate{Object: emptyObject(), Skipped: true}, nil
	}
	if len(parsed.Rows) == 0 {
		r.logger.Warn("llm.extract.no_rows", "req_id", rid)
		return Candidate{Object: emptyObject(), Skipped: true}, nil
	}

	prompt, err := BuildExtractionPrompt(parsed)
	if err != nil {
		return Candidate{}, err
	}

	start := time.Now()
	r.logger.Info("llm.extract.start",
		"req_id", rid,
		"capability", r.capability.Name(),
		"rows", len(parsed.Rows),
		"prompt_len", len(prompt),
	)
	raw, err := r.capability.Generate(ctx, GenerateRequest{
		Prompt:     prompt,
		SchemaName: ExtractionSchemaName,
		Schema:     ExtractionJSONSchema(),
	})
	if err != nil {
		r.logger.Error("llm.extract.failed",
			"req_id", rid, "capability", r.capability.Name(), "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		if errors.Is(err, common.ErrExternalService) {
			return Candidate{}, err
		}
		return Candidate{}, common.NewExternalServiceError(r.capability.Name(), "generate", err)
	}

	obj, err := DecodeObject(raw)
	if err != nil {
		perr := common.NewSchemaParseError("failed to parse extraction output", err)
		r.logger.Warn("llm.extract.unparsed",
			"req_id", rid, "error", perr, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Candidate{Raw: raw, Unparsed: true, Warnings: []string{perr.Error()}}, nil
	}

	cand := Candidate{Object: obj, Raw: raw}
	if notes := NormalizeObject(obj); len(notes) > 0 {
		r.logger.Warn("llm.extract.normalize_sanitize", "req_id", rid, "changed", notes)
		cand.Warnings = append(cand.Warnings, fmt.Sprintf("normalized: %v", notes))
	}
	if verr := r.validate(obj); verr != nil {
		r.logger.Warn("llm.extract.schema_mismatch", "req_id", rid, "error", verr)
		cand.Warnings = append(cand.Warnings, verr.Error())
	}

	r.logger.Info("llm.extract.ok",
		"req_id", rid,
		"capability", r.capability.Name(),
		"warnings", len(cand.Warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return cand, nil
}

func (r *Requester) validate(obj map[string]any) error {
	r.schemaOnce.Do(func() {
		r.schema, r.schemaErr = CompileSchema(ExtractionJSONSchema())
	})
	if r.schemaErr != nil {
		return r.schemaErr
	}
	if err := r.schema.Validate(any(obj)); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

func emptyObject() map[string]any {
	return map[string]any{
		"items":      []any{},
		"totalPrice": 0.0,
		"receipt":    map[string]any{"storeName": "", "purchaseDate": ""},
	}
}
