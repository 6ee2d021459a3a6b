// Package pipeline wires the per-request stages: normalize, validate,
// duplicate lookup, fraud scoring, assembly.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/clearclaim/billaudit/internal/assemble"
	"github.com/clearclaim/billaudit/internal/common"
	"github.com/clearclaim/billaudit/internal/dedupe"
	"github.com/clearclaim/billaudit/internal/entity"
	"github.com/clearclaim/billaudit/internal/fraud"
	"github.com/clearclaim/billaudit/internal/normalize"
	"github.com/clearclaim/billaudit/internal/validate"
)

// Processor coordinates the per-request stages. Each stage is pure or
// near-pure; the duplicate store is the only shared resource, and it is
// consulted read-only here. Commit is the separate second phase.
type Processor struct {
	Logger     *slog.Logger
	Normalizer *normalize.Normalizer
	Validator  *validate.Validator
	Detector   *dedupe.Detector
	Engine     *fraud.Engine
}

func NewProcessor(logger *slog.Logger, n *normalize.Normalizer, v *validate.Validator, d *dedupe.Detector, e *fraud.Engine) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Normalizer: n, Validator: v, Detector: d, Engine: e}
}

// Process runs one extraction through the whole pipeline and returns the
// best-effort assessment. Data-quality problems surface as findings and
// flags; only invariant violations return an error.
func (p *Processor) Process(ctx context.Context, raw *entity.RawExtraction) (*entity.AssessedBill, error) {
	billID := raw.BillID
	if billID == "" {
		billID = uuid.NewString()
	}

	bill, findings, dropped := p.Normalizer.Normalize(raw)
	p.Logger.Info("pipeline.normalize.ok",
		"bill_id", billID,
		"items", len(bill.LineItems),
		"dropped", dropped,
		"findings", len(findings),
	)

	findings = append(findings, p.Validator.Validate(bill)...)

	rec, err := dedupe.Prepare(bill, billID)
	if err != nil {
		p.Logger.Error("pipeline.fingerprint.failed", "bill_id", billID, "err", err)
		return nil, common.Programmingf("fingerprinting bill %s: %v", billID, err)
	}

	match, degraded := p.Detector.Lookup(ctx, rec)
	if degraded {
		p.Logger.Warn("pipeline.dedupe.degraded", "bill_id", billID)
	}

	assessment, err := p.Engine.Assess(bill, findings, match, raw.Signals, degraded)
	if err != nil {
		p.Logger.Error("pipeline.fraud.failed", "bill_id", billID, "err", err)
		return nil, err
	}

	out := assemble.Assemble(billID, bill, findings, match, assessment, rec, dropped)
	p.Logger.Info("pipeline.assess.ok",
		"bill_id", billID,
		"score", assessment.Score,
		"duplicate", match != nil,
		"partial", out.Partial,
		"low_confidence", out.LowConfidence,
	)
	return out, nil
}

// Confirm is phase two of the duplicate contract: the caller accepted the
// bill, so register it. common.ErrAlreadyExists propagates unchanged so the
// caller can report the bill as a duplicate instead.
func (p *Processor) Confirm(ctx context.Context, rec *entity.BillRecord, billID string) error {
	return p.Detector.Commit(ctx, rec, billID)
}
