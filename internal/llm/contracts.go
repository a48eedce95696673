package llm

import "context"

// InvoiceFields is the normalized shape we want from the extraction model.
// Money fields are decimal strings; dates are YYYY-MM-DD.
type InvoiceFields struct {
	InvoiceNumber   string `json:"invoice_number,omitempty"`
	SupplierName    string `json:"supplier_name"`
	SupplierAddress string `json:"supplier_address,omitempty"`
	SupplierTaxID   string `json:"supplier_tax_id,omitempty"`
	Subtotal        string `json:"subtotal,omitempty"`
	TaxAmount       string `json:"tax_amount,omitempty"`
	TaxRate         string `json:"tax_rate,omitempty"` // percentage, e.g. "19" or "7.5"
	TotalAmount     string `json:"total_amount"`
	CurrencyCode    string `json:"currency_code"` // ISO 4217
	InvoiceDate     string `json:"invoice_date,omitempty"`
	DueDate         string `json:"due_date,omitempty"`
}

// Extraction is one successful extraction call: parsed fields plus the raw
// payload the model produced.
type Extraction struct {
	Fields InvoiceFields
	Raw    []byte
}

// ImageInput is the invoice image handed to the extractor: either inline
// bytes or a pre-signed read URL, never both.
type ImageInput struct {
	Data        []byte
	ContentType string
	URL         string
}

// InvoiceExtractor is the interface the pipeline depends on.
type InvoiceExtractor interface {
	ExtractInvoice(ctx context.Context, in ImageInput) (*Extraction, error)
}

// TransientFileStore manages short-lived file copies held by the AI
// provider.
type TransientFileStore interface {
	UploadTransient(ctx context.Context, filename string, data []byte, contentType string) (string, error)
	DeleteTransient(ctx context.Context, handle string) error
}
