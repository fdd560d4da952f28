// Package reconcile repairs a model's extraction candidate into a valid
// ExtractionResult and checks its total against the line items.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
	"github.com/joseph-ayodele/receipt-itemizer/internal/entity"
	"github.com/joseph-ayodele/receipt-itemizer/internal/layout"
)

// Result is a reconciled extraction plus what had to change to get there.
type Result struct {
	Extraction entity.ExtractionResult
	Check      TotalCheck
	Warnings   []string
}

type Reconciler struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{logger: logger}
}

// Reconcile never fails: any candidate, including nil, produces a result
// that satisfies the output schema.
//
//   - items that are not objects, have no name, or lack an explicit whole
//     quantity are dropped
//   - a missing lineTotal is price × quantity rounded to cents
//   - a missing or non-numeric totalPrice falls back to the rounded sum
//     of line totals
//   - a receipt with no items totals 0
func (r *Reconciler) Reconcile(ctx context.Context, candidate map[string]any, rows []layout.Row) Result {
	rid := common.RequestIDFromContext(ctx)
	res := Result{Extraction: entity.EmptyExtraction()}
	warn := func(format string, args ...any) {
		res.Warnings = append(res.Warnings, fmt.Sprintf(format, args...))
	}

	rawItems, ok := candidate["items"].([]any)
	if !ok && candidate["items"] != nil {
		warn("items: not an array")
	}

	var lineTotals []float64
	for i, raw := range rawItems {
		item, reason := parseItem(raw)
		if reason != "" {
			warn("items[%d]: dropped: %s", i, reason)
			continue
		}
		if item.LineTotal != nil {
			lineTotals = append(lineTotals, *item.LineTotal)
		}
		res.Extraction.Items = append(res.Extraction.Items, item)
	}

	res.Extraction.Receipt = parseReceiptInfo(candidate["receipt"], warn)

	switch {
	case len(res.Extraction.Items) == 0:
		res.Check = TotalCheck{Source: TotalEmptyReceipt}
	default:
		total, source := resolveTotal(candidate["totalPrice"], lineTotals)
		res.Extraction.TotalPrice = total
		res.Check = checkTotal(total, source, lineTotals)
	}
	if t, ok := ExplicitTotal(rows); ok {
		res.Check.RowTotal, res.Check.HasRowTotal = t, true
	}

	level := slog.LevelInfo
	if res.Check.HasComputedSum && !res.Check.WithinTolerance {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "reconcile.total",
		"req_id", rid,
		"items", len(res.Extraction.Items),
		"total", res.Check.Total,
		"source", res.Check.Source,
		"computed_sum", res.Check.ComputedSum,
		"delta_pct", res.Check.DeltaPercent,
		"within_tolerance", res.Check.WithinTolerance,
		"row_total", res.Check.RowTotal,
	)
	if len(res.Warnings) > 0 {
		r.logger.Warn("reconcile.repaired", "req_id", rid, "warnings", res.Warnings)
	}
	return res
}

func resolveTotal(v any, lineTotals []float64) (float64, TotalSource) {
	if t, ok := numberOf(v); ok {
		return t, TotalFromModel
	}
	return sumRounded(lineTotals), TotalFromLineSum
}

func parseItem(raw any) (entity.ExtractedItem, string) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return entity.ExtractedItem{}, "not an object"
	}
	name, _ := obj["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return entity.ExtractedItem{}, "missing name"
	}
	q, ok := numberOf(obj["quantity"])
	if !ok {
		return entity.ExtractedItem{}, "missing quantity"
	}
	if q != math.Trunc(q) || q < 1 || q > math.MaxInt32 {
		return entity.ExtractedItem{}, fmt.Sprintf("quantity %v is not a positive whole number", q)
	}
	item := entity.ExtractedItem{Name: name, Quantity: int(q)}

	if p, ok := numberOf(obj["price"]); ok {
		item.Price = &p
	}
	if lt, ok := numberOf(obj["lineTotal"]); ok {
		item.LineTotal = &lt
	} else if item.Price != nil {
		lt := lineTotal(*item.Price, item.Quantity)
		item.LineTotal = &lt
	}
	return item, ""
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
	"02 Jan 2006",
	"2 Jan 2006",
}

// NormalizeDate returns s as RFC 3339 in UTC, or false when no known layout matches.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC().Format(time.RFC3339), true
		}
	}
	return "", false
}

func parseReceiptInfo(v any, warn func(string, ...any)) entity.ReceiptInfo {
	obj, ok := v.(map[string]any)
	if !ok {
		return entity.ReceiptInfo{}
	}
	var info entity.ReceiptInfo
	if s, ok := obj["storeName"].(string); ok {
		info.StoreName = strings.TrimSpace(s)
	}
	if s, ok := obj["purchaseDate"].(string); ok && strings.TrimSpace(s) != "" {
		if d, ok := NormalizeDate(s); ok {
			info.PurchaseDate = d
		} else {
			warn("receipt.purchaseDate: unrecognized date %q", s)
		}
	}
	return info
}
