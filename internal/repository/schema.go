package repository

import (
	"context"
	"log/slog"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	// ReceiptsColumns holds the columns for the "receipts" table.
	ReceiptsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "store_name", Type: field.TypeString, Default: ""},
		{Name: "purchase_date", Type: field.TypeTime, Nullable: true},
		{Name: "total_amount", Type: field.TypeFloat64},
		{Name: "created_at", Type: field.TypeTime},
	}
	ReceiptsTable = &schema.Table{
		Name:       "receipts",
		Columns:    ReceiptsColumns,
		PrimaryKey: []*schema.Column{ReceiptsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "receipt_created_at", Columns: []*schema.Column{ReceiptsColumns[4]}},
		},
	}

	// ItemsColumns holds the columns for the "items" table.
	ItemsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "receipt_id", Type: field.TypeUUID},
		{Name: "position", Type: field.TypeInt},
		{Name: "name", Type: field.TypeString},
		{Name: "quantity", Type: field.TypeInt},
		{Name: "price", Type: field.TypeFloat64, Nullable: true},
		{Name: "line_total", Type: field.TypeFloat64, Nullable: true},
	}
	ItemsTable = &schema.Table{
		Name:       "items",
		Columns:    ItemsColumns,
		PrimaryKey: []*schema.Column{ItemsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "items_receipts_items",
				Columns:    []*schema.Column{ItemsColumns[1]},
				RefColumns: []*schema.Column{ReceiptsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "item_receipt_id_position", Unique: true, Columns: []*schema.Column{ItemsColumns[1], ItemsColumns[2]}},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{ReceiptsTable, ItemsTable}
)

func init() {
	ItemsTable.ForeignKeys[0].RefTable = ReceiptsTable
}

// Migrate creates or updates the receipts and items tables.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := schema.NewMigrate(db.Driver)
	if err != nil {
		return err
	}
	if err := m.Create(ctx, Tables...); err != nil {
		logger.Error("db.migrate.failed", "error", err)
		return err
	}
	logger.Info("db.migrate.ok", "tables", len(Tables))
	return nil
}
