package reconcile

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/receipt-itemizer/internal/layout"
	"github.com/joseph-ayodele/receipt-itemizer/internal/llm"
)

// TolerancePercent is the band within which an explicit total and the
// computed line-total sum are considered to agree.
const TolerancePercent = 2.0

// TotalSource records where the final total came from.
type TotalSource string

const (
	TotalFromModel    TotalSource = "model"
	TotalFromLineSum  TotalSource = "line_sum"
	TotalEmptyReceipt TotalSource = "empty"
)

// TotalCheck compares the final total with the sum of line totals. It is
// informational; the explicit total always wins and line totals are never adjusted.
// RowTotal is the TOTAL row printed on the receipt, when one is found; it is
// reported for diagnosis and never becomes the stored total.
type TotalCheck struct {
	Total           float64     `json:"total"`
	Source          TotalSource `json:"source"`
	ComputedSum     float64     `json:"computedSum"`
	HasComputedSum  bool        `json:"hasComputedSum"`
	DeltaPercent    float64     `json:"deltaPercent"`
	WithinTolerance bool        `json:"withinTolerance"`
	RowTotal        float64     `json:"rowTotal,omitempty"`
	HasRowTotal     bool        `json:"hasRowTotal"`
}

var (
	reTotalLabel = regexp.MustCompile(`\b(GRAND\s+TOTAL|TOTAL|AMOUNT\s+DUE|BALANCE\s+DUE|TOTAL\s+DUE)\b`)
	reNotTotal   = regexp.MustCompile(`\b(SUB\s*-?\s*TOTAL|TOTAL\s+TAX|TAX\s+TOTAL|TOTAL\s+ITEMS?|DISCOUNTS?|SAVED|SAVINGS|TIPS?|GRATUITY|CHANGE|PAID|TENDERED)\b`)
	reAmount     = regexp.MustCompile(`[$€£]?\d{1,3}(?:,\d{3})+\.\d{2}|[$€£]?\d+\.\d{2}`)
)

// ExplicitTotal finds the first grand-total row (TOTAL, AMOUNT DUE) and
// returns its last amount. Subtotal, tax, discount, tip, tendered and change
// rows are ignored.
func ExplicitTotal(rows []layout.Row) (float64, bool) {
	for _, r := range rows {
		up := strings.ToUpper(r.Text)
		if !reTotalLabel.MatchString(up) || reNotTotal.MatchString(up) {
			continue
		}
		amounts := reAmount.FindAllString(up, -1)
		if len(amounts) == 0 {
			continue
		}
		if v, ok := llm.ParseAmount(amounts[len(amounts)-1]); ok {
			return v, true
		}
	}
	return 0, false
}

func checkTotal(total float64, source TotalSource, lineTotals []float64) TotalCheck {
	c := TotalCheck{Total: total, Source: source}
	if len(lineTotals) == 0 {
		return c
	}
	c.HasComputedSum = true
	c.ComputedSum = sumRounded(lineTotals)
	if c.ComputedSum == 0 {
		c.WithinTolerance = total == 0
		return c
	}
	c.DeltaPercent = deltaPercent(total, c.ComputedSum)
	c.WithinTolerance = c.DeltaPercent <= TolerancePercent
	return c
}
