package entity

// AssessedBill is the final assembled response: normalized fields, findings,
// and the fraud assessment. Absent duplicate match, empty findings and a zero
// fraud score are all valid terminal states.
//
// Record is the prepared store entry for the two-phase commit; it is not part
// of the serialized response.
type AssessedBill struct {
	BillID        string              `json:"bill_id"`
	Bill          *NormalizedBill     `json:"bill"`
	Findings      []ValidationFinding `json:"findings"`
	Duplicate     *DuplicateMatch     `json:"duplicate,omitempty"`
	Fraud         FraudAssessment     `json:"fraud"`
	Fingerprint   Fingerprint         `json:"fingerprint"`
	Digest        string              `json:"digest"`
	DroppedItems  int                 `json:"dropped_items"`
	LowConfidence bool                `json:"low_confidence"`
	Partial       bool                `json:"partial"`

	Record *BillRecord `json:"-"`
}
