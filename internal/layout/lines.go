// Package layout rebuilds receipt rows from positioned OCR fragments.
package layout

import (
	"cmp"
	"slices"
	"strings"

	"github.com/joseph-ayodele/receipt-itemizer/constants"
	"github.com/joseph-ayodele/receipt-itemizer/internal/ocr"
)

// PositionedLine is a LINE fragment with trimmed text and a usable box.
type PositionedLine struct {
	ID     string
	Text   string
	Box    ocr.BoundingBox
	Bottom float64
}

// ExtractLines keeps LINE fragments that carry non-empty text and a box,
// ordered by top then left. Everything else is dropped silently.
func ExtractLines(fragments []ocr.Fragment) []PositionedLine {
	lines := make([]PositionedLine, 0, len(fragments))
	for _, f := range fragments {
		if f.BlockType != constants.BlockTypeLine || f.Box == nil {
			continue
		}
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		lines = append(lines, PositionedLine{
			ID:     f.ID,
			Text:   text,
			Box:    *f.Box,
			Bottom: f.Box.Top + f.Box.Height,
		})
	}
	sortByTopLeft(lines)
	return lines
}

func sortByTopLeft(lines []PositionedLine) {
	slices.SortStableFunc(lines, func(a, b PositionedLine) int {
		if c := cmp.Compare(a.Box.Top, b.Box.Top); c != 0 {
			return c
		}
		return cmp.Compare(a.Box.Left, b.Box.Left)
	})
}
