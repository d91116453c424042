// Package receiptparser turns an uploaded receipt file into structured
// vendor, date, total and line-item data using an external extraction
// service, and writes the outcome back through a Store.
package receiptparser

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FailureMarker is stored as a receipt's parsed data when parsing fails.
var FailureMarker = json.RawMessage(`{"error":"AI parsing failed"}`)

// Document is the file handed to the extraction service.
type Document struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Extractor sends one document to the extraction service with the given
// instructions and returns the model's raw reply text.
type Extractor interface {
	Extract(ctx context.Context, prompt string, doc Document) ([]byte, error)
}

// FileOpener reads stored receipt files.
type FileOpener interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Store persists the outcome of a parse attempt.
type Store interface {
	// ApplyParsedReceipt updates the receipt and inserts its line items in a
	// single transaction.
	ApplyParsedReceipt(ctx context.Context, receiptID uuid.UUID, parsed ParsedReceipt) error
	// MarkReceiptParseFailed records marker as the parsed data and clears the
	// parsed flag.
	MarkReceiptParseFailed(ctx context.Context, receiptID uuid.UUID, marker json.RawMessage) error
}

// ParsedReceipt is a validated extraction reply with defaults applied.
type ParsedReceipt struct {
	Vendor    *string
	Date      *time.Time
	Total     decimal.Decimal
	LineItems []ParsedLineItem
	// Payload is the reply exactly as the service returned it.
	Payload json.RawMessage
}

type ParsedLineItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
	SKU         *string
}
