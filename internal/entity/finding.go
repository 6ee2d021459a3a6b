package entity

// FindingKind classifies a data-quality or consistency issue on a bill.
type FindingKind string

const (
	ArithmeticMismatch FindingKind = "ArithmeticMismatch"
	MissingField       FindingKind = "MissingField"
	OutOfRange         FindingKind = "OutOfRange"
	DuplicateLineItem  FindingKind = "DuplicateLineItem"
)

// Severity grades a finding.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ValidationFinding annotates a bill with a detected issue. Findings never
// mutate the bill. Expected/Actual are rendered values so a consumer can show
// a diff without re-deriving anything.
type ValidationFinding struct {
	Kind     FindingKind `json:"kind"`
	Severity Severity    `json:"severity"`
	Field    string      `json:"field"`
	Expected string      `json:"expected,omitempty"`
	Actual   string      `json:"actual,omitempty"`
	Message  string      `json:"message"`
}
