package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
	"github.com/joseph-ayodele/receipt-itemizer/internal/entity"
)

// NewReceipt is the receipt row written for one structured extraction.
type NewReceipt struct {
	StoreName    string
	PurchaseDate *time.Time
	TotalAmount  float64
}

// NewItem is one line item of a stored receipt. Items are positioned in
// the order they are passed to CreateItems.
type NewItem struct {
	ReceiptID uuid.UUID
	Name      string
	Quantity  int
	Price     *float64
	LineTotal *float64
}

type ReceiptRepository interface {
	CreateReceipt(ctx context.Context, in NewReceipt) (uuid.UUID, error)
	CreateItems(ctx context.Context, items []NewItem) error
	ListReceipts(ctx context.Context) ([]*entity.Receipt, error)
	GetReceipt(ctx context.Context, id uuid.UUID) (*entity.Receipt, error)
}

type receiptRepository struct {
	drv    *entsql.Driver
	logger *slog.Logger
	now    func() time.Time
}

func NewReceiptRepository(db *DB, logger *slog.Logger) ReceiptRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &receiptRepository{
		drv:    db.Driver,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *receiptRepository) CreateReceipt(ctx context.Context, in NewReceipt) (uuid.UUID, error) {
	id := uuid.New()
	var purchase any
	if in.PurchaseDate != nil {
		purchase = in.PurchaseDate.UTC()
	}
	q, args := entsql.Dialect(r.drv.Dialect()).
		Insert(ReceiptsTable.Name).
		Columns("id", "store_name", "purchase_date", "total_amount", "created_at").
		Values(id, in.StoreName, purchase, in.TotalAmount, r.now()).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("repo.receipt.create.failed", "req_id", common.RequestIDFromContext(ctx), "error", err)
		return uuid.Nil, common.NewPersistenceError("failed to create receipt", err)
	}
	r.logger.Info("repo.receipt.created", "req_id", common.RequestIDFromContext(ctx), "receipt_id", id)
	return id, nil
}

// CreateItems inserts all items in a single statement.
func (r *receiptRepository) CreateItems(ctx context.Context, items []NewItem) error {
	if len(items) == 0 {
		return nil
	}
	b := entsql.Dialect(r.drv.Dialect()).
		Insert(ItemsTable.Name).
		Columns("id", "receipt_id", "position", "name", "quantity", "price", "line_total")
	for i, it := range items {
		b.Values(uuid.New(), it.ReceiptID, i, it.Name, it.Quantity, nullFloat(it.Price), nullFloat(it.LineTotal))
	}
	q, args := b.Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("repo.items.create.failed", "req_id", common.RequestIDFromContext(ctx), "count", len(items), "error", err)
		return common.NewPersistenceError("failed to create items", err)
	}
	r.logger.Info("repo.items.created", "req_id", common.RequestIDFromContext(ctx), "count", len(items))
	return nil
}

// ListReceipts returns every receipt, newest first, with its items in order.
func (r *receiptRepository) ListReceipts(ctx context.Context) ([]*entity.Receipt, error) {
	q, args := entsql.Dialect(r.drv.Dialect()).
		Select("id", "store_name", "purchase_date", "total_amount", "created_at").
		From(entsql.Table(ReceiptsTable.Name)).
		OrderBy(entsql.Desc("created_at")).
		Query()
	recs, err := r.queryReceipts(ctx, q, args)
	if err != nil {
		r.logger.Error("repo.receipts.list.failed", "error", err)
		return nil, common.NewPersistenceError("failed to list receipts", err)
	}
	if err := r.attachItems(ctx, recs); err != nil {
		r.logger.Error("repo.items.list.failed", "error", err)
		return nil, common.NewPersistenceError("failed to list items", err)
	}
	return recs, nil
}

func (r *receiptRepository) GetReceipt(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	q, args := entsql.Dialect(r.drv.Dialect()).
		Select("id", "store_name", "purchase_date", "total_amount", "created_at").
		From(entsql.Table(ReceiptsTable.Name)).
		Where(entsql.EQ("id", id)).
		Query()
	recs, err := r.queryReceipts(ctx, q, args)
	if err != nil {
		r.logger.Error("repo.receipt.get.failed", "receipt_id", id, "error", err)
		return nil, common.NewPersistenceError("failed to get receipt", err)
	}
	if len(recs) == 0 {
		return nil, common.NewNotFoundError("receipt " + id.String() + " not found")
	}
	if err := r.attachItems(ctx, recs); err != nil {
		r.logger.Error("repo.items.list.failed", "receipt_id", id, "error", err)
		return nil, common.NewPersistenceError("failed to list items", err)
	}
	return recs[0], nil
}

func (r *receiptRepository) queryReceipts(ctx context.Context, q string, args []any) ([]*entity.Receipt, error) {
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Receipt
	for rows.Next() {
		var (
			rec      entity.Receipt
			purchase sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.StoreName, &purchase, &rec.TotalAmount, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if purchase.Valid {
			t := purchase.Time.UTC()
			rec.PurchaseDate = &t
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		rec.Items = []entity.Item{}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r *receiptRepository) attachItems(ctx context.Context, recs []*entity.Receipt) error {
	if len(recs) == 0 {
		return nil
	}
	ids := make([]any, len(recs))
	byID := make(map[uuid.UUID]*entity.Receipt, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
		byID[rec.ID] = rec
	}
	q, args := entsql.Dialect(r.drv.Dialect()).
		Select("id", "receipt_id", "position", "name", "quantity", "price", "line_total").
		From(entsql.Table(ItemsTable.Name)).
		Where(entsql.In("receipt_id", ids...)).
		OrderBy("receipt_id", "position").
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it               entity.Item
			price, lineTotal sql.NullFloat64
		)
		if err := rows.Scan(&it.ID, &it.ReceiptID, &it.Position, &it.Name, &it.Quantity, &price, &lineTotal); err != nil {
			return err
		}
		it.Price = floatPtr(price)
		it.LineTotal = floatPtr(lineTotal)
		if rec, ok := byID[it.ReceiptID]; ok {
			rec.Items = append(rec.Items, it)
		}
	}
	return rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
