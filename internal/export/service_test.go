package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipt-itemizer/internal/entity"
)

type fakeLister struct {
	recs []*entity.Receipt
	err  error
}

func (f fakeLister) ListReceipts(context.Context) ([]*entity.Receipt, error) { return f.recs, f.err }

func TestExportReceiptsXLSX(t *testing.T) {
	id := uuid.New()
	price := 3.5
	lt := 7.0
	purchased := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	lister := fakeLister{recs: []*entity.Receipt{{
		ID:           id,
		StoreName:    "Corner Diner",
		PurchaseDate: &purchased,
		TotalAmount:  7,
		CreatedAt:    time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC),
		Items: []entity.Item{
			{ReceiptID: id, Position: 0, Name: "Coke", Quantity: 2, Price: &price, LineTotal: &lt},
			{ReceiptID: id, Position: 1, Name: "Napkins", Quantity: 1},
		},
	}}}

	b, err := NewService(lister, nil).ExportReceiptsXLSX(context.Background())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Receipts", "Items"}, f.GetSheetList())

	rows, err := f.GetRows("Receipts")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Store", rows[0][2])
	assert.Equal(t, []string{id.String(), "2024-06-02T09:00:00Z", "Corner Diner", "2024-06-01", "2", "7"}, rows[1])

	items, err := f.GetRows("Items")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{id.String(), "Corner Diner", "1", "Coke", "2", "3.5", "7"}, items[1])
	assert.Equal(t, "Napkins", items[2][3])
}

func TestExportReceiptsXLSXQueryError(t *testing.T) {
	_, err := NewService(fakeLister{err: errors.New("db down")}, nil).ExportReceiptsXLSX(context.Background())
	assert.Error(t, err)
}
