package llm

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// SanitizeInvoiceJSON normalizes a model payload before schema validation:
// renames known synonyms, coerces numeric amounts to strings, drops
// null/empty optionals and removes unknown keys (additionalProperties is
// false in the schema). Returns the cleaned payload plus the list of
// normalizations applied.
func SanitizeInvoiceJSON(raw []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	applied := make([]string, 0, 8)
	rename := func(from, to string) {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			applied = append(applied, from+"->"+to)
		}
	}

	rename("vendor_name", "supplier_name")
	rename("merchant_name", "supplier_name")
	rename("vendor_address", "supplier_address")
	rename("vat_id", "supplier_tax_id")
	rename("tax_id", "supplier_tax_id")
	rename("total", "total_amount")
	rename("tax", "tax_amount")
	rename("vat", "tax_amount")
	rename("currency", "currency_code")
	rename("date", "invoice_date")

	amountFields := []string{"subtotal", "tax_amount", "tax_rate", "total_amount"}
	for _, k := range amountFields {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			m[k] = strconv.FormatFloat(t, 'f', -1, 64)
			applied = append(applied, k+"(number)")
		case string:
			s := strings.TrimSpace(strings.TrimPrefix(t, "%"))
			s = strings.TrimSuffix(s, "%")
			if s == "" {
				delete(m, k)
				applied = append(applied, k+"(empty)")
			} else {
				m[k] = s
			}
		case nil:
			delete(m, k)
			applied = append(applied, k+"(null)")
		default:
			delete(m, k)
			applied = append(applied, k+"(type)")
		}
	}

	if v, ok := m["currency_code"].(string); ok {
		m["currency_code"] = strings.ToUpper(strings.TrimSpace(v))
	}

	allowed := map[string]struct{}{
		"invoice_number": {}, "supplier_name": {}, "supplier_address": {},
		"supplier_tax_id": {}, "subtotal": {}, "tax_amount": {}, "tax_rate": {},
		"total_amount": {}, "currency_code": {}, "invoice_date": {}, "due_date": {},
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			applied = append(applied, k+"(unknown)")
		}
	}

	for k := range allowed {
		if v, ok := m[k].(string); ok {
			s := strings.TrimSpace(v)
			if s == "" {
				delete(m, k)
				applied = append(applied, k+"(empty)")
			} else {
				m[k] = s
			}
		} else if v, exists := m[k]; exists && v == nil {
			delete(m, k)
			applied = append(applied, k+"(null)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, applied, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, applied, nil
}
