package entity

// Signal names used in sub-scores and evidence.
const (
	SignalWhitening         = "whitening"
	SignalFontInconsistency = "font_inconsistency"
	SignalArithmetic        = "arithmetic"
	SignalDuplicate         = "duplicate"
)

// SubScores holds the independent manipulation signals, each in [0,1].
// Duplicate is a pointer so a degraded duplicate check can omit the signal
// entirely instead of pretending it scored zero.
type SubScores struct {
	Whitening         float64  `json:"whitening"`
	FontInconsistency float64  `json:"font_inconsistency"`
	Arithmetic        float64  `json:"arithmetic"`
	Duplicate         *float64 `json:"duplicate,omitempty"`
}

// Evidence explains one non-zero signal contribution in human-readable form.
type Evidence struct {
	Signal       string  `json:"signal"`
	Ref          string  `json:"ref,omitempty"`
	Detail       string  `json:"detail"`
	Contribution float64 `json:"contribution"`
}

// FraudAssessment is the combined risk verdict. Derived per request, never
// persisted as ground truth. Partial marks assessments computed without the
// duplicate signal because the store was unreachable.
type FraudAssessment struct {
	Score     float64    `json:"score"`
	SubScores SubScores  `json:"sub_scores"`
	Evidence  []Evidence `json:"evidence"`
	Partial   bool       `json:"partial"`
}
