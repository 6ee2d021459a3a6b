// Package validate reconciles a normalized bill's arithmetic. All comparisons
// run on integer minor currency units so no rounding error can accumulate.
package validate

import (
	"fmt"
	"strings"

	"github.com/clearclaim/billaudit/constants"
	"github.com/clearclaim/billaudit/internal/common"
	"github.com/clearclaim/billaudit/internal/entity"
)

type Validator struct {
	cfg common.ArithmeticConfig
}

func New(cfg common.ArithmeticConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate is a pure function over the bill: it returns findings and touches
// nothing. Absent optional fields simply skip their checks.
func (v *Validator) Validate(bill *entity.NormalizedBill) []entity.ValidationFinding {
	findings := make([]entity.ValidationFinding, 0, 2)

	findings = append(findings, v.rangeFindings(bill)...)

	var sumMinor int64
	for _, item := range bill.LineItems {
		if item.Amount != nil {
			sumMinor += entity.MinorUnits(*item.Amount)
		}
	}

	if bill.Subtotal != nil && len(bill.LineItems) > 0 {
		stated := entity.MinorUnits(*bill.Subtotal)
		if diff := abs64(sumMinor - stated); diff > v.tolerance(sumMinor) {
			findings = append(findings, mismatch(constants.FieldSubtotal, sumMinor, stated, entity.SeverityMedium,
				"line item amounts do not sum to the stated subtotal"))
		}
	}

	if bill.Total != nil {
		expected := sumMinor
		if bill.Tax != nil {
			expected += entity.MinorUnits(*bill.Tax)
		}
		if bill.Discount != nil {
			expected -= entity.MinorUnits(*bill.Discount)
		}
		stated := entity.MinorUnits(*bill.Total)
		if diff := abs64(expected - stated); diff > v.tolerance(expected) {
			findings = append(findings, mismatch(constants.FieldTotal, expected, stated, entity.SeverityHigh,
				"subtotal plus tax minus discount does not reconcile with the stated total"))
		}
	}

	findings = append(findings, v.lineFindings(bill)...)
	findings = append(findings, duplicateItemFindings(bill)...)
	return findings
}

// duplicateItemFindings flags the same (description, amount) pair listed more
// than once inside one bill, a common double-billing pattern across pages.
// Cross-submission duplicates are the dedupe detector's concern.
func duplicateItemFindings(bill *entity.NormalizedBill) []entity.ValidationFinding {
	type itemKey struct {
		desc        string
		amountMinor int64
	}
	seen := make(map[itemKey]int, len(bill.LineItems))
	var out []entity.ValidationFinding
	for i, item := range bill.LineItems {
		if item.Amount == nil || item.Description == "" {
			continue
		}
		key := itemKey{strings.ToLower(item.Description), entity.MinorUnits(*item.Amount)}
		first, ok := seen[key]
		if !ok {
			seen[key] = i
			continue
		}
		msg := fmt.Sprintf("line item repeats %s[%d] with the same description and amount",
			constants.FieldLineItems, first)
		prior := bill.LineItems[first]
		if item.Page != nil && prior.Page != nil && *item.Page != *prior.Page {
			msg = fmt.Sprintf("line item repeats %s[%d] from page %d with the same description and amount",
				constants.FieldLineItems, first, *prior.Page)
		}
		out = append(out, entity.ValidationFinding{
			Kind:     entity.DuplicateLineItem,
			Severity: entity.SeverityMedium,
			Field:    fmt.Sprintf("%s[%d]", constants.FieldLineItems, i),
			Actual:   item.Amount.String(),
			Message:  msg,
		})
	}
	return out
}

// tolerance is max(absolute, relative×|expected|), in minor units. OCR
// rounding noise stays under it; fraud-scale discrepancies do not.
func (v *Validator) tolerance(expectedMinor int64) int64 {
	rel := int64(v.cfg.RelativeTolerance * float64(abs64(expectedMinor)))
	if rel > v.cfg.AbsoluteToleranceMinor {
		return rel
	}
	return v.cfg.AbsoluteToleranceMinor
}

// lineFindings cross-checks quantity × unit price against each stated amount.
func (v *Validator) lineFindings(bill *entity.NormalizedBill) []entity.ValidationFinding {
	var out []entity.ValidationFinding
	for i, item := range bill.LineItems {
		if item.Amount == nil || item.Quantity == nil || item.UnitPrice == nil {
			continue
		}
		expected := entity.MinorUnits(item.Quantity.Mul(*item.UnitPrice).Round(2))
		stated := entity.MinorUnits(*item.Amount)
		if diff := abs64(expected - stated); diff > v.tolerance(expected) {
			out = append(out, mismatch(
				fmt.Sprintf("%s[%d].amount", constants.FieldLineItems, i),
				expected, stated, entity.SeverityLow,
				"quantity × unit price does not match the line amount"))
		}
	}
	return out
}

func (v *Validator) rangeFindings(bill *entity.NormalizedBill) []entity.ValidationFinding {
	var out []entity.ValidationFinding

	check := func(field string, minor int64) {
		if minor < 0 {
			out = append(out, entity.ValidationFinding{
				Kind:     entity.OutOfRange,
				Severity: entity.SeverityHigh,
				Field:    field,
				Actual:   entity.FromMinorUnits(minor).String(),
				Message:  field + " is negative",
			})
		}
	}

	for i, item := range bill.LineItems {
		ref := fmt.Sprintf("%s[%d]", constants.FieldLineItems, i)
		if item.Amount != nil {
			check(ref+".amount", entity.MinorUnits(*item.Amount))
		}
		if item.UnitPrice != nil {
			check(ref+".unit_price", entity.MinorUnits(*item.UnitPrice))
		}
		if item.Quantity != nil && item.Quantity.IsNegative() {
			out = append(out, entity.ValidationFinding{
				Kind:     entity.OutOfRange,
				Severity: entity.SeverityHigh,
				Field:    ref + ".quantity",
				Actual:   item.Quantity.String(),
				Message:  "line item quantity is negative",
			})
		}
		if item.Quantity != nil && item.Quantity.IsZero() && item.Amount != nil && entity.MinorUnits(*item.Amount) > 0 {
			out = append(out, entity.ValidationFinding{
				Kind:     entity.OutOfRange,
				Severity: entity.SeverityMedium,
				Field:    ref,
				Actual:   item.Amount.String(),
				Message:  "paid line item has zero quantity",
			})
		}
	}

	if bill.Tax != nil {
		check(constants.FieldTax, entity.MinorUnits(*bill.Tax))
	}
	if bill.Subtotal != nil {
		check(constants.FieldSubtotal, entity.MinorUnits(*bill.Subtotal))
	}
	if bill.Total != nil {
		totalMinor := entity.MinorUnits(*bill.Total)
		check(constants.FieldTotal, totalMinor)
		if totalMinor > v.cfg.SanityCeilingMinor {
			out = append(out, entity.ValidationFinding{
				Kind:     entity.OutOfRange,
				Severity: entity.SeverityHigh,
				Field:    constants.FieldTotal,
				Expected: "<= " + entity.FromMinorUnits(v.cfg.SanityCeilingMinor).String(),
				Actual:   bill.Total.String(),
				Message:  "total exceeds the sanity ceiling",
			})
		}
	}
	return out
}

func mismatch(field string, expectedMinor, statedMinor int64, sev entity.Severity, msg string) entity.ValidationFinding {
	return entity.ValidationFinding{
		Kind:     entity.ArithmeticMismatch,
		Severity: sev,
		Field:    field,
		Expected: entity.FromMinorUnits(expectedMinor).String(),
		Actual:   entity.FromMinorUnits(statedMinor).String(),
		Message:  msg,
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
