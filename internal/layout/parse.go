package layout

import "github.com/joseph-ayodele/receipt-itemizer/internal/ocr"

// Parse runs line extraction and row grouping over raw fragments.
func Parse(fragments []ocr.Fragment) ParsedReceipt {
	return ParsedReceipt{Rows: GroupRows(ExtractLines(fragments))}
}

// Texts returns the row texts in order.
func (p ParsedReceipt) Texts() []string {
	out := make([]string, len(p.Rows))
	for i, r := range p.Rows {
		out[i] = r.Text
	}
	return out
}
