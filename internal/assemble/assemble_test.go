package assemble

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/clearclaim/billaudit/internal/entity"
)

func TestAssemble(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Assemble Suite")
}

var _ = Describe("Assemble", func() {
	var (
		bill *entity.NormalizedBill
		rec  *entity.BillRecord
	)

	BeforeEach(func() {
		amount := decimal.RequireFromString("10.00")
		bill = &entity.NormalizedBill{
			ProviderID: "apollo-2041",
			LineItems:  []entity.LineItem{{Description: "Consultation", Amount: &amount}},
		}
		rec = &entity.BillRecord{
			Fingerprint: entity.Fingerprint{1, 2, 3},
			BillID:      "bill-1",
			Digest:      "abc123",
		}
	})

	It("serializes findings as an empty array, never null", func() {
		out := Assemble("bill-1", bill, nil, nil, entity.FraudAssessment{}, rec, 0)
		Expect(out.Findings).NotTo(BeNil())
		Expect(out.Findings).To(BeEmpty())
	})

	It("copies fingerprint and digest from the prepared record", func() {
		out := Assemble("bill-1", bill, nil, nil, entity.FraudAssessment{}, rec, 0)
		Expect(out.Fingerprint).To(Equal(rec.Fingerprint))
		Expect(out.Digest).To(Equal("abc123"))
		Expect(out.Record).To(BeIdenticalTo(rec))
	})

	It("mirrors the fraud partial flag", func() {
		out := Assemble("bill-1", bill, nil, nil, entity.FraudAssessment{Partial: true}, rec, 0)
		Expect(out.Partial).To(BeTrue())
	})

	When("every line item was dropped", func() {
		It("flags low confidence", func() {
			bill.LineItems = nil
			out := Assemble("bill-1", bill, nil, nil, entity.FraudAssessment{}, rec, 3)
			Expect(out.LowConfidence).To(BeTrue())
			Expect(out.DroppedItems).To(Equal(3))
		})
	})

	When("the total blew past the sanity ceiling", func() {
		It("flags low confidence", func() {
			findings := []entity.ValidationFinding{{
				Kind:     entity.OutOfRange,
				Severity: entity.SeverityHigh,
				Field:    "total",
			}}
			out := Assemble("bill-1", bill, findings, nil, entity.FraudAssessment{}, rec, 0)
			Expect(out.LowConfidence).To(BeTrue())
		})
	})

	When("only minor findings exist", func() {
		It("does not flag low confidence", func() {
			findings := []entity.ValidationFinding{{
				Kind:     entity.ArithmeticMismatch,
				Severity: entity.SeverityLow,
				Field:    "line_items[0].amount",
			}}
			out := Assemble("bill-1", bill, findings, nil, entity.FraudAssessment{}, rec, 0)
			Expect(out.LowConfidence).To(BeFalse())
		})
	})
})
