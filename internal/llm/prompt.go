package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/receipt-itemizer/internal/layout"
)

// InputJSONInstruction opens every extraction prompt.
const InputJSONInstruction = "Restructure ONLY the provided JSON data (do not invent or guess) parsed from a restaurant receipt " +
	"into a standardized object: { items: [...], totalPrice }. Use ONLY items explicitly present."

// HardRules are restated verbatim on every call.
const HardRules = `HARD RULES (do not break):
- DO NOT create imaginary food/items.
- Use only lines that explicitly contain a quantity (integer) followed by item name words and (optionally) a price number.
- Example valid line patterns: "1 Crisfield Special Platter 27.00" , "2 Coke 3.50".
- Subtotal / tax / total lines are NOT items but may inform totalPrice.
- Quantities default to 1 only if explicitly shown as 1 (never infer).
- If no qualifying item lines, return { items: [], totalPrice: 0 }.`

// ContextInstruction defines the output fields and the total reconciliation policy.
const ContextInstruction = `Instructions:
1. Extract relevant rows from the input JSON representing food items, quantities, and prices.
2. Identify rows with item details in the format "{quantity} {item name} {price}".
3. Output a JSON OBJECT with:
   - items: an array of line items with fields name, quantity (integer), price (float or null), lineTotal (quantity * price, or null if price missing).
   - totalPrice: Overall total for ALL items (including tax if an explicit TOTAL line exists). If an explicit total line (e.g. 'TOTAL', 'TOTAL: $42.74', 'Amount Due') is present, prefer that numeric value. Otherwise compute as the sum of all non-null lineTotal values. If both computed sum and explicit total exist but differ by <= 2% (typical rounding/tax), use explicit total. If explicit total differs by > 2% provide explicit total; do not adjust line totals.
   - receipt: an object containing storeName (string) and purchaseDate (DateTime, e.g. "2024-06-01T12:34:56.000Z").
4. Ignore irrelevant rows such as restaurant name, address, headers, subheaders.
5. Do NOT invent items.
6. Ensure adaptation across diverse restaurant receipt formats.
7. If no items found return: { "items": [], "totalPrice": 0 }.`

// BuildExtractionPrompt embeds the parsed rows as compact JSON between the
// fixed instruction blocks.
func BuildExtractionPrompt(parsed layout.ParsedReceipt) (string, error) {
	if parsed.Rows == nil {
		parsed.Rows = []layout.Row{}
	}
	rows, err := json.Marshal(parsed)
	if err != nil {
		return "", fmt.Errorf("encode rows: %w", err)
	}
	parts := []string{
		InputJSONInstruction,
		HardRules,
		"INPUT_JSON_ROWS: " + string(rows),
		ContextInstruction,
	}
	return strings.Join(parts, "\n\n"), nil
}
