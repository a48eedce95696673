package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/invoicevault/invoicevault/internal/common"
)

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ValidateFields enforces the semantic invariants the schema cannot: numeric
// fields parse as non-negative decimals and dates are real calendar dates.
func ValidateFields(f InvoiceFields) error {
	amounts := map[string]string{
		"subtotal":     f.Subtotal,
		"tax_amount":   f.TaxAmount,
		"tax_rate":     f.TaxRate,
		"total_amount": f.TotalAmount,
	}
	for name, v := range amounts {
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return common.Errorf(common.CodeInvalidExtractionFormat,
				"%s %q is not a decimal", name, v)
		}
		if n < 0 {
			return common.Errorf(common.CodeInvalidExtractionFormat,
				"%s %q must be non-negative", name, v)
		}
	}
	dates := map[string]string{
		"invoice_date": f.InvoiceDate,
		"due_date":     f.DueDate,
	}
	for name, v := range dates {
		if v == "" {
			continue
		}
		if _, err := ParseYMD(v); err != nil {
			return common.Errorf(common.CodeInvalidExtractionFormat,
				"%s %q is not a valid date", name, v)
		}
	}
	return nil
}

// ParseYMD parses a YYYY-MM-DD date at midnight UTC.
func ParseYMD(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
