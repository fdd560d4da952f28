package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipt-itemizer/internal/entity"
)

const (
	receiptsSheet = "Receipts"
	itemsSheet    = "Items"
)

// ReceiptLister is the read side of the receipt store.
type ReceiptLister interface {
	ListReceipts(ctx context.Context) ([]*entity.Receipt, error)
}

// Service produces XLSX bytes for receipts and their line items.
type Service struct {
	receipts ReceiptLister
	logger   *slog.Logger
}

func NewService(receipts ReceiptLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{receipts: receipts, logger: logger}
}

// ExportReceiptsXLSX returns a workbook with one "Receipts" row per receipt
// (newest first) and one "Items" row per line item in extraction order.
func (s *Service) ExportReceiptsXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	recs, err := s.receipts.ListReceipts(ctx)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", receiptsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	writeRow(f, receiptsSheet, 1, "Receipt ID", "Created At", "Store", "Purchase Date", "Items", "Total")
	writeRow(f, itemsSheet, 1, "Receipt ID", "Store", "Line", "Item", "Quantity", "Price", "Line Total")

	itemRow := 2
	for i, r := range recs {
		purchase := ""
		if r.PurchaseDate != nil {
			purchase = r.PurchaseDate.Format("2006-01-02")
		}
		writeRow(f, receiptsSheet, i+2,
			r.ID.String(),
			r.CreatedAt.Format(time.RFC3339),
			r.StoreName,
			purchase,
			len(r.Items),
			r.TotalAmount,
		)
		for _, it := range r.Items {
			writeRow(f, itemsSheet, itemRow,
				r.ID.String(),
				r.StoreName,
				it.Position+1,
				it.Name,
				it.Quantity,
				optional(it.Price),
				optional(it.LineTotal),
			)
			itemRow++
		}
	}

	_ = f.SetColWidth(receiptsSheet, "A", "A", 38) // id
	_ = f.SetColWidth(receiptsSheet, "B", "B", 22)
	_ = f.SetColWidth(receiptsSheet, "C", "C", 28) // store
	_ = f.SetColWidth(receiptsSheet, "D", "F", 14)
	_ = f.SetColWidth(itemsSheet, "A", "A", 38)
	_ = f.SetColWidth(itemsSheet, "B", "B", 28)
	_ = f.SetColWidth(itemsSheet, "D", "D", 36) // item
	_ = f.SetColWidth(itemsSheet, "E", "G", 12)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"receipts", len(recs),
		"items", itemRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

// optional leaves the cell blank for a missing amount.
func optional(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
