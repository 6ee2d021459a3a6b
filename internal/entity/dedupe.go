package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Fingerprint is a deterministic, order-independent content hash of a bill
// used for duplicate detection. It is recomputed per request, never cached on
// the bill itself.
type Fingerprint [sha256.Size]byte

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Fingerprint) UnmarshalText(b []byte) error {
	fp, err := ParseFingerprint(string(b))
	if err != nil {
		return err
	}
	*f = fp
	return nil
}

// ParseFingerprint decodes the hex form written by String.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("parse fingerprint: %w", err)
	}
	if len(b) != sha256.Size {
		return f, fmt.Errorf("parse fingerprint: want %d bytes, got %d", sha256.Size, len(b))
	}
	copy(f[:], b)
	return f, nil
}

// DuplicateMatch reports a prior bill matching the one under assessment.
// Similarity is 1.0 for exact fingerprint hits and in [0,1) for fuzzy ones.
type DuplicateMatch struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	BillID      string      `json:"bill_id"`
	Similarity  float64     `json:"similarity"`
	Exact       bool        `json:"exact"`
}

// BillRecord is the persisted duplicate-store entry for a committed bill.
// Records are write-once; retention is the store operator's concern.
// SecondaryKey, TotalMinor and AmountsMinor exist so the fuzzy fallback can
// score candidates without re-reading full bills.
type BillRecord struct {
	Fingerprint  Fingerprint `json:"fingerprint"`
	BillID       string      `json:"bill_id"`
	Digest       string      `json:"digest"`
	SecondaryKey string      `json:"secondary_key"`
	TotalMinor   int64       `json:"total_minor"`
	AmountsMinor []int64     `json:"amounts_minor"`
	CommittedAt  time.Time   `json:"committed_at"`
}
