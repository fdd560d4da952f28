package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{
		Driver:      "sqlite",
		DSN:         "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		AutoMigrate: true,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { Close(db, nil) })
	return db
}

func f(v float64) *float64 { return &v }

func TestCreateAndGetReceipt(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewReceiptRepository(db, nil)

	purchased := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	id, err := repo.CreateReceipt(ctx, NewReceipt{StoreName: "Crisfield", PurchaseDate: &purchased, TotalAmount: 42.74})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	require.NoError(t, repo.CreateItems(ctx, []NewItem{
		{ReceiptID: id, Name: "Crisfield Special Platter", Quantity: 1, Price: f(27), LineTotal: f(27)},
		{ReceiptID: id, Name: "Crab Cake", Quantity: 1, Price: f(14.9), LineTotal: f(14.9)},
		{ReceiptID: id, Name: "Bread", Quantity: 2},
	}))

	got, err := repo.GetReceipt(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Crisfield", got.StoreName)
	assert.Equal(t, 42.74, got.TotalAmount)
	require.NotNil(t, got.PurchaseDate)
	assert.True(t, purchased.Equal(*got.PurchaseDate))

	require.Len(t, got.Items, 3)
	names := []string{got.Items[0].Name, got.Items[1].Name, got.Items[2].Name}
	assert.Equal(t, []string{"Crisfield Special Platter", "Crab Cake", "Bread"}, names)
	for i, it := range got.Items {
		assert.Equal(t, i, it.Position)
		assert.Equal(t, id, it.ReceiptID)
	}
	assert.Equal(t, f(14.9), got.Items[1].LineTotal)
	assert.Nil(t, got.Items[2].Price)
	assert.Nil(t, got.Items[2].LineTotal)
}

func TestGetReceiptNotFound(t *testing.T) {
	repo := NewReceiptRepository(openTestDB(t), nil)
	_, err := repo.GetReceipt(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestListReceiptsNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewReceiptRepository(db, nil).(*receiptRepository)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i, store := range []string{"first", "second", "third"} {
		repo.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		id, err := repo.CreateReceipt(ctx, NewReceipt{StoreName: store})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, repo.CreateItems(ctx, []NewItem{{ReceiptID: ids[1], Name: "Tea", Quantity: 2, Price: f(1.5), LineTotal: f(3)}}))

	recs, err := repo.ListReceipts(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "third", recs[0].StoreName)
	assert.Equal(t, "second", recs[1].StoreName)
	assert.Equal(t, "first", recs[2].StoreName)
	assert.Nil(t, recs[0].PurchaseDate)
	assert.Empty(t, recs[0].Items)
	require.Len(t, recs[1].Items, 1)
	assert.Equal(t, "Tea", recs[1].Items[0].Name)
}

func TestCreateItemsRejectsUnknownReceipt(t *testing.T) {
	repo := NewReceiptRepository(openTestDB(t), nil)
	err := repo.CreateItems(context.Background(), []NewItem{{ReceiptID: uuid.New(), Name: "orphan", Quantity: 1}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrPersistence))
}

func TestCreateItemsEmptyIsNoop(t *testing.T) {
	repo := NewReceiptRepository(openTestDB(t), nil)
	assert.NoError(t, repo.CreateItems(context.Background(), nil))
}

func TestHealthCheck(t *testing.T) {
	assert.NoError(t, HealthCheck(context.Background(), openTestDB(t), time.Second, nil))
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql"}, nil)
	assert.Error(t, err)
}
