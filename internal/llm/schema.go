package llm

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass this to the model as a structured output constraint
// and also use it locally to validate what comes back.
func BuildInvoiceJSONSchema() map[string]any {
	props := map[string]any{
		"invoice_number":   map[string]any{"type": "string"},
		"supplier_name":    map[string]any{"type": "string", "minLength": 1},
		"supplier_address": map[string]any{"type": "string"},
		"supplier_tax_id":  map[string]any{"type": "string"},
		"subtotal":         amountProp(),
		"tax_amount":       amountProp(),
		"tax_rate":         amountProp(),
		"total_amount":     amountProp(),
		"currency_code":    map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
		"invoice_date":     dateProp(),
		"due_date":         dateProp(),
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"supplier_name", "total_amount", "currency_code"},
	}
}

// amountProp matches non-negative decimals: invoice amounts and rates are
// never negative in this schema.
func amountProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^\d+(\.\d{1,4})?$`,
	}
}

func dateProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^\d{4}-\d{2}-\d{2}$`,
	}
}
