package reconcile

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipt-itemizer/internal/llm"
)

// round2 rounds half away from zero to cents.
func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// lineTotal is price × quantity rounded to cents.
func lineTotal(price float64, qty int) float64 {
	f, _ := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(qty))).Round(2).Float64()
	return f
}

// sumRounded adds the values exactly and rounds the sum to cents.
func sumRounded(values []float64) float64 {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	f, _ := sum.Round(2).Float64()
	return f
}

// deltaPercent is |a-b| / b × 100, rounded to one decimal.
func deltaPercent(a, b float64) float64 {
	db := decimal.NewFromFloat(b)
	if db.IsZero() {
		return 0
	}
	f, _ := decimal.NewFromFloat(a).Sub(db).Abs().Div(db.Abs()).Mul(decimal.NewFromInt(100)).Round(1).Float64()
	return f
}

// numberOf reads a JSON-decoded value as a finite number. Numeric strings count.
func numberOf(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		return llm.ParseAmount(t)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
