// Package assemble merges the pipeline stage outputs into the final response
// record. Deterministic: identical inputs produce identical output, and no
// timestamps or randomness touch content fields.
package assemble

import (
	"github.com/clearclaim/billaudit/constants"
	"github.com/clearclaim/billaudit/internal/entity"
)

// Assemble builds the AssessedBill. Absent duplicate match, empty findings
// and a zero fraud score are valid terminal states. LowConfidence marks the
// whole-bill integrity failures: every line item dropped, or a total past the
// sanity ceiling.
func Assemble(
	billID string,
	bill *entity.NormalizedBill,
	findings []entity.ValidationFinding,
	match *entity.DuplicateMatch,
	fraud entity.FraudAssessment,
	rec *entity.BillRecord,
	droppedItems int,
) *entity.AssessedBill {
	if findings == nil {
		findings = []entity.ValidationFinding{}
	}
	return &entity.AssessedBill{
		BillID:        billID,
		Bill:          bill,
		Findings:      findings,
		Duplicate:     match,
		Fraud:         fraud,
		Fingerprint:   rec.Fingerprint,
		Digest:        rec.Digest,
		DroppedItems:  droppedItems,
		LowConfidence: lowConfidence(bill, findings, droppedItems),
		Partial:       fraud.Partial,
		Record:        rec,
	}
}

func lowConfidence(bill *entity.NormalizedBill, findings []entity.ValidationFinding, dropped int) bool {
	if dropped > 0 && len(bill.LineItems) == 0 {
		return true
	}
	for _, f := range findings {
		if f.Kind == entity.OutOfRange && f.Field == constants.FieldTotal && f.Severity == entity.SeverityHigh {
			return true
		}
	}
	return false
}
