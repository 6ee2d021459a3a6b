package constants

// Canonical field names used across the extraction boundary, findings, and
// image-signal references.
const (
	FieldProviderID = "provider_id"
	FieldBillDate   = "bill_date"
	FieldSubtotal   = "subtotal"
	FieldTax        = "tax"
	FieldDiscount   = "discount"
	FieldTotal      = "total"
	FieldCurrency   = "currency"
	FieldLineItems  = "line_items"
)

// AppName and AppVersion identify the service on the root endpoint.
const (
	AppName    = "billaudit"
	AppVersion = "0.3.0"
)
