// Package normalize converts raw extraction output into the strict
// NormalizedBill type. Untyped values do not leak past this package.
package normalize

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearclaim/billaudit/constants"
	"github.com/clearclaim/billaudit/internal/common"
	"github.com/clearclaim/billaudit/internal/entity"
)

type Normalizer struct {
	cfg    common.NormalizeConfig
	logger *slog.Logger
}

func New(cfg common.NormalizeConfig, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{cfg: cfg, logger: logger}
}

// Normalize types the raw extraction, emitting a MissingField finding for
// every field it had to give up on. It never fails: garbled input yields a
// sparser bill, not an error. The returned int counts dropped line items.
func (n *Normalizer) Normalize(raw *entity.RawExtraction) (*entity.NormalizedBill, []entity.ValidationFinding, int) {
	findings := make([]entity.ValidationFinding, 0, 4)
	bill := &entity.NormalizedBill{
		LineItems: make([]entity.LineItem, 0, len(raw.LineItems)),
		Currency:  n.cfg.DefaultCurrency,
	}

	bill.ProviderID = cleanString(raw.Fields[constants.FieldProviderID])
	if bill.ProviderID == "" {
		findings = append(findings, missing(constants.FieldProviderID, entity.SeverityMedium, "provider id missing or empty"))
	}

	if t, ok := n.parseDate(raw.Fields[constants.FieldBillDate]); ok {
		bill.BillDate = &t
	} else {
		findings = append(findings, missing(constants.FieldBillDate, entity.SeverityMedium, "bill date missing or unparsable"))
	}

	if cur := cleanString(raw.Fields[constants.FieldCurrency]); cur != "" {
		up := strings.ToUpper(cur)
		if len(up) == 3 && isAlpha(up) {
			bill.Currency = up
		} else {
			findings = append(findings, missing(constants.FieldCurrency, entity.SeverityMedium,
				fmt.Sprintf("currency %q is not an ISO 4217 code, using %s", cur, n.cfg.DefaultCurrency)))
		}
	}

	// Optional money fields: absence is fine, garbage is not.
	bill.Subtotal = n.moneyField(raw.Fields, constants.FieldSubtotal, entity.SeverityMedium, false, &findings)
	bill.Tax = n.moneyField(raw.Fields, constants.FieldTax, entity.SeverityMedium, false, &findings)
	bill.Discount = n.moneyField(raw.Fields, constants.FieldDiscount, entity.SeverityMedium, false, &findings)
	bill.Total = n.moneyField(raw.Fields, constants.FieldTotal, entity.SeverityHigh, true, &findings)

	dropped := 0
	for i, ri := range raw.LineItems {
		item, ok := n.normalizeItem(i, ri, &findings)
		if !ok {
			dropped++
			continue
		}
		bill.LineItems = append(bill.LineItems, item)
	}
	if dropped > 0 {
		n.logger.Warn("normalize.items.dropped", "count", dropped, "kept", len(bill.LineItems))
	}

	return bill, findings, dropped
}

// moneyField pulls one monetary field out of the raw map. required only
// controls whether absence itself is worth a finding.
func (n *Normalizer) moneyField(fields map[string]any, name string, sev entity.Severity, required bool, findings *[]entity.ValidationFinding) *decimal.Decimal {
	v, present := fields[name]
	if !present || v == nil {
		if required {
			*findings = append(*findings, missing(name, sev, name+" is missing"))
		}
		return nil
	}
	d, ok := parseMoney(v)
	if !ok {
		*findings = append(*findings, entity.ValidationFinding{
			Kind:     entity.MissingField,
			Severity: sev,
			Field:    name,
			Actual:   fmt.Sprintf("%v", v),
			Message:  name + " could not be parsed as a monetary value",
		})
		return nil
	}
	return d
}

// normalizeItem applies the line-item acceptance rules: a present amount is
// authoritative; quantity×unit price can stand in for a missing amount; an
// item with neither is dropped.
func (n *Normalizer) normalizeItem(idx int, ri entity.RawLineItem, findings *[]entity.ValidationFinding) (entity.LineItem, bool) {
	item := entity.LineItem{Description: cleanString(ri.Description)}
	ref := fmt.Sprintf("%s[%d]", constants.FieldLineItems, idx)

	if ri.Amount != nil {
		if d, ok := parseMoney(ri.Amount); ok {
			item.Amount = d
		} else {
			*findings = append(*findings, entity.ValidationFinding{
				Kind:     entity.MissingField,
				Severity: entity.SeverityHigh,
				Field:    ref + ".amount",
				Actual:   fmt.Sprintf("%v", ri.Amount),
				Message:  "line item amount could not be parsed",
			})
		}
	}
	if ri.Quantity != nil {
		if d, ok := parseQuantity(ri.Quantity); ok {
			item.Quantity = d
		} else {
			*findings = append(*findings, missing(ref+".quantity", entity.SeverityMedium, "line item quantity could not be parsed"))
		}
	}
	if ri.UnitPrice != nil {
		if d, ok := parseMoney(ri.UnitPrice); ok {
			item.UnitPrice = d
		} else {
			*findings = append(*findings, missing(ref+".unit_price", entity.SeverityMedium, "line item unit price could not be parsed"))
		}
	}
	if ri.Page != nil {
		if p, ok := parsePage(ri.Page); ok {
			item.Page = &p
		} else {
			*findings = append(*findings, missing(ref+".page", entity.SeverityLow, "line item page could not be parsed"))
		}
	}

	if item.Amount == nil {
		if item.Quantity != nil && item.UnitPrice != nil {
			derived := item.Quantity.Mul(*item.UnitPrice).Round(2)
			item.Amount = &derived
		} else {
			*findings = append(*findings, entity.ValidationFinding{
				Kind:     entity.MissingField,
				Severity: entity.SeverityMedium,
				Field:    ref,
				Message:  "line item dropped: no amount and no quantity+unit price",
			})
			return entity.LineItem{}, false
		}
	}
	return item, true
}

func (n *Normalizer) parseDate(v any) (time.Time, bool) {
	s := cleanString(v)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range n.cfg.DateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func missing(field string, sev entity.Severity, msg string) entity.ValidationFinding {
	return entity.ValidationFinding{
		Kind:     entity.MissingField,
		Severity: sev,
		Field:    field,
		Message:  msg,
	}
}
