package entity

import (
	"time"

	"github.com/google/uuid"
)

// Receipt represents a stored receipt for data transfer between layers.
type Receipt struct {
	ID           uuid.UUID  `json:"id"`
	StoreName    string     `json:"store_name"`
	PurchaseDate *time.Time `json:"purchase_date,omitempty"`
	TotalAmount  float64    `json:"total_amount"`
	CreatedAt    time.Time  `json:"created_at"`
	Items        []Item     `json:"items"`
}

// Item is one stored line item of a receipt.
type Item struct {
	ID        uuid.UUID `json:"id"`
	ReceiptID uuid.UUID `json:"receipt_id"`
	Position  int       `json:"position"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Price     *float64  `json:"price,omitempty"`
	LineTotal *float64  `json:"line_total,omitempty"`
}
