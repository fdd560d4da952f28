package entity

// ExtractedItem is a line item recovered from receipt rows. Quantity is
// always present in the source text; Price and LineTotal may be absent.
type ExtractedItem struct {
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	Price     *float64 `json:"price"`
	LineTotal *float64 `json:"lineTotal"`
}

// ReceiptInfo carries receipt-level metadata. PurchaseDate is RFC 3339 or empty.
type ReceiptInfo struct {
	StoreName    string `json:"storeName"`
	PurchaseDate string `json:"purchaseDate"`
}

// ExtractionResult is the validated, reconciled output of one receipt.
type ExtractionResult struct {
	Items      []ExtractedItem `json:"items"`
	TotalPrice float64         `json:"totalPrice"`
	Receipt    ReceiptInfo     `json:"receipt"`
}

// EmptyExtraction is the canonical result when nothing qualifies.
func EmptyExtraction() ExtractionResult {
	return ExtractionResult{Items: []ExtractedItem{}}
}
