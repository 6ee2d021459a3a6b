// Package dedupe detects near-duplicate bill submissions. Exact matches use a
// canonical content hash; re-split or re-ordered bills fall back to multiset
// similarity over candidate records sharing a coarse secondary key.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/gowebpki/jcs"

	"github.com/clearclaim/billaudit/internal/entity"
)

// countBucketSize groups line-item counts so small OCR splits land in the
// same candidate pool.
const countBucketSize = 5

type canonicalItem struct {
	Description string `json:"description"`
	AmountMinor int64  `json:"amount_minor"`
}

type canonicalBill struct {
	ProviderID string          `json:"provider_id"`
	TotalMinor int64           `json:"total_minor"`
	Items      []canonicalItem `json:"items"`
}

// FingerprintOf hashes the order-independent economic content of a bill:
// provider, total, and the line-item set sorted by (description, amount).
// Permuting line items never changes the result.
func FingerprintOf(bill *entity.NormalizedBill) (entity.Fingerprint, error) {
	cb := canonicalBill{
		ProviderID: bill.ProviderID,
		TotalMinor: totalMinor(bill),
		Items:      canonicalItems(bill),
	}
	raw, err := json.Marshal(cb)
	if err != nil {
		return entity.Fingerprint{}, fmt.Errorf("fingerprint: marshal: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return entity.Fingerprint{}, fmt.Errorf("fingerprint: canonicalize: %w", err)
	}
	return sha256.Sum256(canonical), nil
}

// DigestOf hashes the full normalized content, order preserved. Unlike the
// fingerprint it distinguishes re-ordered bills; it is stored on the record
// for later forensics.
func DigestOf(bill *entity.NormalizedBill) (string, error) {
	raw, err := json.Marshal(bill)
	if err != nil {
		return "", fmt.Errorf("digest: marshal: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("digest: canonicalize: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// SecondaryKeyOf builds the coarse candidate-pool key: exact total in minor
// units plus the bucketed line-item count.
func SecondaryKeyOf(bill *entity.NormalizedBill) string {
	return secondaryKey(totalMinor(bill), len(bill.LineItems))
}

func secondaryKey(totalMinor int64, itemCount int) string {
	bucket := (itemCount + countBucketSize - 1) / countBucketSize
	return fmt.Sprintf("%d:%d", totalMinor, bucket)
}

// AmountsOf returns the sorted multiset of line-item amounts in minor units.
func AmountsOf(bill *entity.NormalizedBill) []int64 {
	out := make([]int64, 0, len(bill.LineItems))
	for _, item := range bill.LineItems {
		if item.Amount != nil {
			out = append(out, entity.MinorUnits(*item.Amount))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// totalMinor prefers the stated total; a bill with no recoverable total falls
// back to the line-item sum so it still fingerprints deterministically.
func totalMinor(bill *entity.NormalizedBill) int64 {
	if bill.Total != nil {
		return entity.MinorUnits(*bill.Total)
	}
	var sum int64
	for _, item := range bill.LineItems {
		if item.Amount != nil {
			sum += entity.MinorUnits(*item.Amount)
		}
	}
	return sum
}

func canonicalItems(bill *entity.NormalizedBill) []canonicalItem {
	items := make([]canonicalItem, 0, len(bill.LineItems))
	for _, item := range bill.LineItems {
		if item.Amount == nil {
			continue
		}
		items = append(items, canonicalItem{
			Description: strings.ToLower(strings.Join(strings.Fields(item.Description), " ")),
			AmountMinor: entity.MinorUnits(*item.Amount),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Description != items[j].Description {
			return items[i].Description < items[j].Description
		}
		return items[i].AmountMinor < items[j].AmountMinor
	})
	return items
}
