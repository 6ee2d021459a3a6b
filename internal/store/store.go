// Package store provides the persisted duplicate-detection store: a
// write-once mapping fingerprint → BillRecord with atomic check-and-insert
// semantics. Backends only need a KV with compare-and-set; everything
// similarity-related lives in the dedupe package.
package store

import (
	"context"

	"github.com/clearclaim/billaudit/internal/entity"
)

// BillStore is the injected store capability. Lookup and Candidates are
// side-effect-free; Commit inserts atomically and reports
// common.ErrAlreadyExists when another writer won the race.
type BillStore interface {
	// Lookup returns the record for an exact fingerprint, or
	// common.ErrNotFound.
	Lookup(ctx context.Context, fp entity.Fingerprint) (*entity.BillRecord, error)

	// Candidates returns every record filed under any of the given secondary
	// keys, for fuzzy matching. Missing keys are not an error.
	Candidates(ctx context.Context, keys []string) ([]*entity.BillRecord, error)

	// Commit inserts the record if and only if its fingerprint is unseen.
	Commit(ctx context.Context, rec *entity.BillRecord) error

	Close() error
}
