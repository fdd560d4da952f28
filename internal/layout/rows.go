package layout

import (
	"cmp"
	"math"
	"slices"
	"strings"
)

// Row is one reconstructed receipt row.
type Row struct {
	Text string `json:"text"`
}

// ParsedReceipt is the row-level view handed to extraction.
type ParsedReceipt struct {
	Rows []Row `json:"rows"`
}

type cluster struct {
	lines         []PositionedLine
	repTop        float64
	maxHalfHeight float64
}

// GroupRows clusters lines into rows by vertical proximity.
//
// Lines are visited in (top, left) order. A line joins the first cluster,
// in creation order, whose representative top is within
// max(cluster max half-height, line half-height) of its own top; otherwise it
// opens a new cluster. The representative top is the running mean of member
// tops. Members are joined left to right with single spaces and rows come
// back ordered by final representative top.
func GroupRows(lines []PositionedLine) []Row {
	if len(lines) == 0 {
		return []Row{}
	}
	sorted := slices.Clone(lines)
	sortByTopLeft(sorted)

	var clusters []*cluster
	for _, ln := range sorted {
		top := ln.Box.Top
		rng := ln.Box.Height / 2

		var target *cluster
		for _, c := range clusters {
			if math.Abs(top-c.repTop) <= math.Max(c.maxHalfHeight, rng) {
				target = c
				break
			}
		}
		if target == nil {
			clusters = append(clusters, &cluster{
				lines:         []PositionedLine{ln},
				repTop:        top,
				maxHalfHeight: rng,
			})
			continue
		}
		target.lines = append(target.lines, ln)
		target.maxHalfHeight = math.Max(target.maxHalfHeight, rng)
		n := float64(len(target.lines))
		target.repTop = (target.repTop*(n-1) + top) / n
	}

	slices.SortStableFunc(clusters, func(a, b *cluster) int {
		return cmp.Compare(a.repTop, b.repTop)
	})

	rows := make([]Row, 0, len(clusters))
	for _, c := range clusters {
		slices.SortStableFunc(c.lines, func(a, b PositionedLine) int {
			return cmp.Compare(a.Box.Left, b.Box.Left)
		})
		texts := make([]string, len(c.lines))
		for i, ln := range c.lines {
			texts[i] = ln.Text
		}
		rows = append(rows, Row{Text: strings.Join(texts, " ")})
	}
	return rows
}
