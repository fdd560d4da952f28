package llm

// ExtractionSchemaName labels the schema in providers that want one.
const ExtractionSchemaName = "receipt_extraction"

// ExtractionJSONSchema returns the strict output schema as a generic map.
// Every property is required and nullable fields use a ["number","null"]
// union, which is what strict structured-output modes accept. It is also
// used locally to validate model output.
func ExtractionJSONSchema() map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":      map[string]any{"type": "string"},
			"quantity":  map[string]any{"type": "integer"},
			"price":     map[string]any{"type": []string{"number", "null"}},
			"lineTotal": map[string]any{"type": []string{"number", "null"}},
		},
		"required": []string{"name", "quantity", "price", "lineTotal"},
	}
	receipt := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"storeName": map[string]any{"type": "string"},
			"purchaseDate": map[string]any{
				"type":        "string",
				"description": "ISO-8601 date-time, e.g. 2024-06-01T12:34:56.000Z; empty if not shown",
			},
		},
		"required": []string{"storeName", "purchaseDate"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"items":      map[string]any{"type": "array", "items": item},
			"totalPrice": map[string]any{"type": "number"},
			"receipt":    receipt,
		},
		"required": []string{"items", "totalPrice", "receipt"},
	}
}
