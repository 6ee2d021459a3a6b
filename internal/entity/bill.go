package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawExtraction is the boundary object handed to us by the OCR/LLM extraction
// collaborator. Field values are untyped on purpose: the extractor emits
// whatever it could read off the page, and only the normalizer is allowed to
// interpret them. Immutable once received.
type RawExtraction struct {
	BillID    string         `json:"bill_id,omitempty"`
	Fields    map[string]any `json:"fields"`
	LineItems []RawLineItem  `json:"line_items"`
	Signals   ImageSignals   `json:"image_signals"`
}

// RawLineItem mirrors one extracted line item before typing. Any field may be
// a string, a number, or absent. Page is the 1-based source page the item was
// read from, when the extractor knows it.
type RawLineItem struct {
	Description any `json:"description,omitempty"`
	Quantity    any `json:"quantity,omitempty"`
	UnitPrice   any `json:"unit_price,omitempty"`
	Amount      any `json:"amount,omitempty"`
	Page        any `json:"page,omitempty"`
}

// LineItem is a typed line item. Amount is authoritative when present;
// quantity and unit price survive for cross-checking only.
type LineItem struct {
	Description string           `json:"description"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Page        *int             `json:"page,omitempty"`
}

// NormalizedBill is the strict typed record produced by the normalizer. All
// monetary fields are fixed-point decimals with at most two fractional
// digits; nil means the field could not be recovered from the extraction.
// Line-item order preserves extraction order.
type NormalizedBill struct {
	ProviderID string           `json:"provider_id"`
	BillDate   *time.Time       `json:"bill_date,omitempty"`
	LineItems  []LineItem       `json:"line_items"`
	Subtotal   *decimal.Decimal `json:"subtotal,omitempty"`
	Tax        *decimal.Decimal `json:"tax,omitempty"`
	Discount   *decimal.Decimal `json:"discount,omitempty"`
	Total      *decimal.Decimal `json:"total,omitempty"`
	Currency   string           `json:"currency"`
}
