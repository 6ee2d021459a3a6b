package dedupe

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/clearclaim/billaudit/internal/common"
	"github.com/clearclaim/billaudit/internal/entity"
	"github.com/clearclaim/billaudit/internal/store"
)

// Detector runs the two-phase duplicate contract: Lookup is side-effect-free,
// Commit registers a bill only once the caller accepts it. A store that
// cannot answer within the timeout degrades the lookup instead of failing
// the request.
type Detector struct {
	store     store.BillStore
	threshold float64
	timeout   time.Duration
	logger    *slog.Logger
}

func NewDetector(s store.BillStore, cfg common.DedupeConfig, timeout time.Duration, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{store: s, threshold: cfg.SimilarityThreshold, timeout: timeout, logger: logger}
}

// Prepare builds the store record for a bill so a later Commit needs no
// access to the bill itself.
func Prepare(bill *entity.NormalizedBill, billID string) (*entity.BillRecord, error) {
	fp, err := FingerprintOf(bill)
	if err != nil {
		return nil, common.WrapError(err, "preparing bill record")
	}
	digest, err := DigestOf(bill)
	if err != nil {
		return nil, common.WrapError(err, "preparing bill record")
	}
	return &entity.BillRecord{
		Fingerprint:  fp,
		BillID:       billID,
		Digest:       digest,
		SecondaryKey: SecondaryKeyOf(bill),
		TotalMinor:   totalMinor(bill),
		AmountsMinor: AmountsOf(bill),
	}, nil
}

// Lookup checks the bill against the store. It returns the best match, or
// nil; degraded=true means the store could not be consulted and the duplicate
// signal should be treated as absent, not zero.
func (d *Detector) Lookup(ctx context.Context, rec *entity.BillRecord) (match *entity.DuplicateMatch, degraded bool) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	prior, err := d.store.Lookup(ctx, rec.Fingerprint)
	switch {
	case err == nil:
		return &entity.DuplicateMatch{
			Fingerprint: prior.Fingerprint,
			BillID:      prior.BillID,
			Similarity:  1.0,
			Exact:       true,
		}, false
	case errors.Is(err, common.ErrNotFound):
		// fall through to the fuzzy pass
	default:
		d.logger.Warn("dedupe.lookup.degraded", "err", err)
		return nil, true
	}

	candidates, err := d.store.Candidates(ctx, d.candidateKeys(rec))
	if err != nil {
		d.logger.Warn("dedupe.candidates.degraded", "err", err)
		return nil, true
	}

	var best *entity.DuplicateMatch
	for _, cand := range candidates {
		score := Similarity(rec.AmountsMinor, cand.AmountsMinor)
		if score < d.threshold {
			continue
		}
		if best == nil || score > best.Similarity {
			best = &entity.DuplicateMatch{
				Fingerprint: cand.Fingerprint,
				BillID:      cand.BillID,
				Similarity:  score,
				Exact:       false,
			}
		}
	}
	return best, false
}

// Commit registers the bill as seen. common.ErrAlreadyExists means a
// concurrent submission won; the caller should re-observe it as a duplicate.
func (d *Detector) Commit(ctx context.Context, rec *entity.BillRecord, billID string) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	committed := *rec
	if billID != "" {
		committed.BillID = billID
	}
	committed.CommittedAt = time.Now().UTC()
	if err := d.store.Commit(ctx, &committed); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return err
		}
		d.logger.Warn("dedupe.commit.failed", "fingerprint", rec.Fingerprint.String(), "err", err)
		return common.WrapError(common.ErrDependency, err.Error())
	}
	d.logger.Info("dedupe.commit.ok", "fingerprint", rec.Fingerprint.String(), "bill_id", committed.BillID)
	return nil
}

// candidateKeys covers the bill's own secondary key plus one minor unit of
// total drift either way, within the same item-count bucket.
func (d *Detector) candidateKeys(rec *entity.BillRecord) []string {
	count := len(rec.AmountsMinor)
	return []string{
		secondaryKey(rec.TotalMinor-1, count),
		rec.SecondaryKey,
		secondaryKey(rec.TotalMinor+1, count),
	}
}
