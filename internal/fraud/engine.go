// Package fraud combines independent manipulation signals into a single
// explainable risk score.
package fraud

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/clearclaim/billaudit/internal/common"
	"github.com/clearclaim/billaudit/internal/entity"
)

type Engine struct {
	cfg    common.FraudConfig
	logger *slog.Logger
}

// NewEngine validates the weight configuration up front; a NaN or negative
// weight is a programming error, not a tunable.
func NewEngine(cfg common.FraudConfig, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w := cfg.Weights
	sum := 0.0
	for _, v := range []float64{w.Whitening, w.FontInconsistency, w.Arithmetic, w.Duplicate} {
		if math.IsNaN(v) || v < 0 {
			return nil, common.Programmingf("fraud weight %v is not a valid weight", v)
		}
		sum += v
	}
	if sum == 0 {
		return nil, common.Programmingf("all fraud weights are zero")
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

// Assess evaluates the four sub-scores and combines them under the configured
// weights. duplicateDegraded drops the duplicate signal and renormalizes the
// remaining weights, marking the assessment partial.
func (e *Engine) Assess(
	bill *entity.NormalizedBill,
	findings []entity.ValidationFinding,
	match *entity.DuplicateMatch,
	signals entity.ImageSignals,
	duplicateDegraded bool,
) (entity.FraudAssessment, error) {
	var evidence []entity.Evidence

	whitening, whEv := e.whiteningScore(signals)
	font, fontEv := e.fontScore(signals)
	arith, arithEv := e.arithmeticScore(findings)

	assessment := entity.FraudAssessment{
		SubScores: entity.SubScores{
			Whitening:         whitening,
			FontInconsistency: font,
			Arithmetic:        arith,
		},
		Partial: duplicateDegraded,
	}

	w := e.cfg.Weights
	weightSum := w.Whitening + w.FontInconsistency + w.Arithmetic
	score := w.Whitening*whitening + w.FontInconsistency*font + w.Arithmetic*arith

	if !duplicateDegraded {
		dup, dupEv := duplicateScore(match)
		assessment.SubScores.Duplicate = &dup
		weightSum += w.Duplicate
		score += w.Duplicate * dup
		if dupEv != nil {
			dupEv.Contribution = w.Duplicate * dup
			evidence = append(evidence, *dupEv)
		}
	}

	evidence = append(evidence, whEv...)
	evidence = append(evidence, fontEv...)
	evidence = append(evidence, arithEv...)

	// With only the duplicate weight configured and the store degraded there
	// is no signal left to score; the assessment stays neutral and partial.
	if weightSum == 0 {
		assessment.Evidence = evidence
		e.logger.Debug("fraud.assess.ok", "score", 0.0, "partial", assessment.Partial)
		return assessment, nil
	}

	overall := clamp01(score / weightSum)
	if math.IsNaN(overall) {
		return entity.FraudAssessment{}, common.Programmingf("fraud score is NaN (weights %+v)", w)
	}
	assessment.Score = overall

	for i := range evidence {
		evidence[i].Contribution = clamp01(evidence[i].Contribution / weightSum)
	}
	sort.SliceStable(evidence, func(i, j int) bool {
		return evidence[i].Contribution > evidence[j].Contribution
	})
	assessment.Evidence = evidence

	e.logger.Debug("fraud.assess.ok",
		"score", assessment.Score,
		"whitening", whitening,
		"font", font,
		"arithmetic", arith,
		"partial", assessment.Partial,
	)
	return assessment, nil
}

// whiteningScore accumulates detector confidence over flagged regions,
// weighting regions that overlap monetary text at full strength and the rest
// at the configured fraction. The accumulated mass saturates so a stack of
// weak flags cannot exceed one strong one by much.
func (e *Engine) whiteningScore(signals entity.ImageSignals) (float64, []entity.Evidence) {
	var (
		mass     float64
		evidence []entity.Evidence
	)
	for _, wr := range signals.Whitened {
		weight := e.cfg.NonMonetaryWeight
		ref := ""
		for _, tr := range signals.TextRegions {
			if wr.Region.Intersects(tr.Region) && entity.IsMonetaryField(tr.Field) {
				weight = 1.0
				ref = tr.Field
				break
			}
		}
		contribution := wr.Confidence * weight
		if contribution <= 0 {
			continue
		}
		mass += contribution
		detail := fmt.Sprintf("possible whitening (confidence %.2f) over non-monetary text", wr.Confidence)
		if ref != "" {
			detail = fmt.Sprintf("possible whitening (confidence %.2f) over monetary field %s", wr.Confidence, ref)
		}
		evidence = append(evidence, entity.Evidence{
			Signal:       entity.SignalWhitening,
			Ref:          ref,
			Detail:       detail,
			Contribution: e.cfg.Weights.Whitening * contribution,
		})
	}
	return saturate(mass, e.cfg.WhiteningSaturation), evidence
}

// fontScore counts extra font clusters inside logically uniform fields: a
// total rendered in two typefaces is one extra cluster.
func (e *Engine) fontScore(signals entity.ImageSignals) (float64, []entity.Evidence) {
	clusters := make(map[string]map[string]struct{})
	for _, tr := range signals.TextRegions {
		if tr.Field == "" || tr.FontClusterID == "" {
			continue
		}
		if clusters[tr.Field] == nil {
			clusters[tr.Field] = make(map[string]struct{})
		}
		clusters[tr.Field][tr.FontClusterID] = struct{}{}
	}

	fields := make([]string, 0, len(clusters))
	for field := range clusters {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var (
		extra    float64
		evidence []entity.Evidence
	)
	for _, field := range fields {
		n := len(clusters[field])
		if n <= 1 {
			continue
		}
		extra += float64(n - 1)
		evidence = append(evidence, entity.Evidence{
			Signal:       entity.SignalFontInconsistency,
			Ref:          field,
			Detail:       fmt.Sprintf("field %s spans %d font clusters, expected 1", field, n),
			Contribution: e.cfg.Weights.FontInconsistency * float64(n-1),
		})
	}
	return saturate(extra, e.cfg.FontSaturation), evidence
}

// arithmeticScore weighs ArithmeticMismatch findings by severity with
// diminishing returns per additional mismatch.
func (e *Engine) arithmeticScore(findings []entity.ValidationFinding) (float64, []entity.Evidence) {
	var (
		mass     float64
		evidence []entity.Evidence
	)
	for _, f := range findings {
		if f.Kind != entity.ArithmeticMismatch {
			continue
		}
		w := severityWeight(f.Severity)
		mass += w
		evidence = append(evidence, entity.Evidence{
			Signal:       entity.SignalArithmetic,
			Ref:          f.Field,
			Detail:       fmt.Sprintf("%s (expected %s, stated %s)", f.Message, f.Expected, f.Actual),
			Contribution: e.cfg.Weights.Arithmetic * w,
		})
	}
	return saturate(mass, e.cfg.ArithmeticSaturation), evidence
}

func duplicateScore(match *entity.DuplicateMatch) (float64, *entity.Evidence) {
	if match == nil {
		return 0, nil
	}
	score := match.Similarity
	detail := fmt.Sprintf("fuzzy duplicate of bill %s (similarity %.2f)", match.BillID, match.Similarity)
	if match.Exact {
		score = 1.0
		detail = fmt.Sprintf("exact duplicate of bill %s", match.BillID)
	}
	return score, &entity.Evidence{
		Signal:       entity.SignalDuplicate,
		Ref:          match.BillID,
		Detail:       detail,
		Contribution: score,
	}
}

func severityWeight(s entity.Severity) float64 {
	switch s {
	case entity.SeverityHigh:
		return 1.0
	case entity.SeverityMedium:
		return 0.5
	default:
		return 0.25
	}
}

// saturate maps accumulated mass to [0,1) with diminishing returns.
func saturate(mass, k float64) float64 {
	if mass <= 0 {
		return 0
	}
	return 1 - math.Exp(-k*mass)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
