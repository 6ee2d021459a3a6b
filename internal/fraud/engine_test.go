package fraud

import (
	"log/slog"
	"math"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clearclaim/billaudit/internal/common"
	"github.com/clearclaim/billaudit/internal/entity"
)

func TestFraud(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Fraud Suite")
}

func testFraudConfig() common.FraudConfig {
	return common.FraudConfig{
		Weights: common.FraudWeights{
			Whitening:         0.25,
			FontInconsistency: 0.25,
			Arithmetic:        0.25,
			Duplicate:         0.25,
		},
		NonMonetaryWeight:    0.25,
		WhiteningSaturation:  1.5,
		FontSaturation:       0.7,
		ArithmeticSaturation: 0.9,
	}
}

var _ = Describe("NewEngine", func() {
	It("rejects NaN weights", func() {
		cfg := testFraudConfig()
		cfg.Weights.Whitening = math.NaN()
		_, err := NewEngine(cfg, slog.New(slog.DiscardHandler))
		Expect(err).To(MatchError(common.ErrProgramming))
	})

	It("rejects negative weights", func() {
		cfg := testFraudConfig()
		cfg.Weights.Duplicate = -0.1
		_, err := NewEngine(cfg, slog.New(slog.DiscardHandler))
		Expect(err).To(MatchError(common.ErrProgramming))
	})

	It("rejects all-zero weights", func() {
		cfg := testFraudConfig()
		cfg.Weights = common.FraudWeights{}
		_, err := NewEngine(cfg, slog.New(slog.DiscardHandler))
		Expect(err).To(MatchError(common.ErrProgramming))
	})
})

var _ = Describe("Engine.Assess", func() {
	var (
		engine *Engine
		bill   *entity.NormalizedBill
	)

	BeforeEach(func() {
		var err error
		engine, err = NewEngine(testFraudConfig(), slog.New(slog.DiscardHandler))
		Expect(err).NotTo(HaveOccurred())
		bill = &entity.NormalizedBill{ProviderID: "apollo-2041"}
	})

	When("nothing is suspicious", func() {
		It("scores zero with no evidence", func() {
			got, err := engine.Assess(bill, nil, nil, entity.ImageSignals{}, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Score).To(BeZero())
			Expect(got.Partial).To(BeFalse())
			Expect(got.Evidence).To(BeEmpty())
			Expect(got.SubScores.Duplicate).To(HaveValue(BeZero()))
		})
	})

	When("an exact duplicate was found", func() {
		var got entity.FraudAssessment

		BeforeEach(func() {
			match := &entity.DuplicateMatch{BillID: "bill-1", Similarity: 1.0, Exact: true}
			var err error
			got, err = engine.Assess(bill, nil, match, entity.ImageSignals{}, false)
			Expect(err).NotTo(HaveOccurred())
		})

		It("pins the duplicate sub-score at 1", func() {
			Expect(got.SubScores.Duplicate).To(HaveValue(Equal(1.0)))
		})

		It("contributes exactly its weight share to the score", func() {
			Expect(got.Score).To(BeNumerically("~", 0.25, 1e-9))
		})

		It("names the prior bill in the evidence", func() {
			Expect(got.Evidence).To(HaveLen(1))
			Expect(got.Evidence[0].Signal).To(Equal(entity.SignalDuplicate))
			Expect(got.Evidence[0].Ref).To(Equal("bill-1"))
		})
	})

	When("a fuzzy duplicate was found", func() {
		It("uses the similarity as the sub-score", func() {
			match := &entity.DuplicateMatch{BillID: "bill-1", Similarity: 0.9}
			got, err := engine.Assess(bill, nil, match, entity.ImageSignals{}, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.SubScores.Duplicate).To(HaveValue(Equal(0.9)))
		})
	})

	When("whitening overlaps a monetary field", func() {
		var signals entity.ImageSignals

		BeforeEach(func() {
			signals = entity.ImageSignals{
				Whitened: []entity.WhitenedRegion{
					{Region: entity.Region{X0: 0, Y0: 0, X1: 10, Y1: 10}, Confidence: 0.8},
				},
				TextRegions: []entity.TextRegion{
					{Region: entity.Region{X0: 5, Y0: 5, X1: 20, Y1: 20}, Field: "total"},
				},
			}
		})

		It("weights the region at full strength", func() {
			got, err := engine.Assess(bill, nil, nil, signals, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.SubScores.Whitening).To(BeNumerically("~", 1-math.Exp(-1.5*0.8), 1e-9))
			Expect(got.Evidence).To(ContainElement(SatisfyAll(
				HaveField("Signal", entity.SignalWhitening),
				HaveField("Ref", "total"),
			)))
		})

		It("down-weights the same region when it misses all monetary text", func() {
			signals.TextRegions[0].Field = "provider_id"
			got, err := engine.Assess(bill, nil, nil, signals, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.SubScores.Whitening).To(BeNumerically("~", 1-math.Exp(-1.5*0.2), 1e-9))
		})
	})

	When("a field spans several font clusters", func() {
		It("scores the extra clusters", func() {
			signals := entity.ImageSignals{
				TextRegions: []entity.TextRegion{
					{Field: "total", FontClusterID: "f1"},
					{Field: "total", FontClusterID: "f2"},
					{Field: "tax", FontClusterID: "f1"},
				},
			}
			got, err := engine.Assess(bill, nil, nil, signals, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.SubScores.FontInconsistency).To(BeNumerically("~", 1-math.Exp(-0.7), 1e-9))
			Expect(got.Evidence).To(ContainElement(SatisfyAll(
				HaveField("Signal", entity.SignalFontInconsistency),
				HaveField("Ref", "total"),
			)))
		})
	})

	When("arithmetic mismatches were found", func() {
		It("weighs them by severity", func() {
			findings := []entity.ValidationFinding{
				{Kind: entity.ArithmeticMismatch, Severity: entity.SeverityHigh, Field: "total"},
				{Kind: entity.ArithmeticMismatch, Severity: entity.SeverityMedium, Field: "subtotal"},
				{Kind: entity.MissingField, Severity: entity.SeverityHigh, Field: "tax"},
			}
			got, err := engine.Assess(bill, findings, nil, entity.ImageSignals{}, false)
			Expect(err).NotTo(HaveOccurred())
			// MissingField contributes nothing; mass is 1.0 + 0.5.
			Expect(got.SubScores.Arithmetic).To(BeNumerically("~", 1-math.Exp(-0.9*1.5), 1e-9))
			Expect(got.Evidence).To(HaveLen(2))
		})
	})

	When("only the duplicate signal carries weight and the store is degraded", func() {
		It("degrades to a neutral partial assessment", func() {
			cfg := testFraudConfig()
			cfg.Weights = common.FraudWeights{Duplicate: 1.0}
			dupOnly, err := NewEngine(cfg, slog.New(slog.DiscardHandler))
			Expect(err).NotTo(HaveOccurred())

			findings := []entity.ValidationFinding{
				{Kind: entity.ArithmeticMismatch, Severity: entity.SeverityHigh, Field: "total"},
			}
			got, err := dupOnly.Assess(bill, findings, nil, entity.ImageSignals{}, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Score).To(BeZero())
			Expect(got.Partial).To(BeTrue())
			Expect(got.SubScores.Duplicate).To(BeNil())
		})
	})

	When("the duplicate store was unreachable", func() {
		var got entity.FraudAssessment

		BeforeEach(func() {
			findings := []entity.ValidationFinding{
				{Kind: entity.ArithmeticMismatch, Severity: entity.SeverityHigh, Field: "total"},
			}
			var err error
			got, err = engine.Assess(bill, findings, nil, entity.ImageSignals{}, true)
			Expect(err).NotTo(HaveOccurred())
		})

		It("marks the assessment partial and omits the duplicate sub-score", func() {
			Expect(got.Partial).To(BeTrue())
			Expect(got.SubScores.Duplicate).To(BeNil())
		})

		It("renormalizes over the remaining three weights", func() {
			arith := 1 - math.Exp(-0.9)
			Expect(got.Score).To(BeNumerically("~", (0.25*arith)/0.75, 1e-9))
		})
	})

	It("orders evidence by contribution, strongest first", func() {
		findings := []entity.ValidationFinding{
			{Kind: entity.ArithmeticMismatch, Severity: entity.SeverityLow, Field: "line_items[0].amount"},
		}
		match := &entity.DuplicateMatch{BillID: "bill-1", Similarity: 1.0, Exact: true}
		got, err := engine.Assess(bill, findings, match, entity.ImageSignals{}, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Evidence).To(HaveLen(2))
		Expect(got.Evidence[0].Signal).To(Equal(entity.SignalDuplicate))
		Expect(got.Evidence[1].Signal).To(Equal(entity.SignalArithmetic))
	})

	It("never scores outside [0,1]", func() {
		signals := entity.ImageSignals{
			Whitened: []entity.WhitenedRegion{
				{Region: entity.Region{X1: 10, Y1: 10}, Confidence: 1.0},
				{Region: entity.Region{X1: 10, Y1: 10}, Confidence: 1.0},
				{Region: entity.Region{X1: 10, Y1: 10}, Confidence: 1.0},
			},
			TextRegions: []entity.TextRegion{
				{Region: entity.Region{X1: 10, Y1: 10}, Field: "total", FontClusterID: "f1"},
				{Region: entity.Region{X1: 10, Y1: 10}, Field: "total", FontClusterID: "f2"},
				{Region: entity.Region{X1: 10, Y1: 10}, Field: "total", FontClusterID: "f3"},
			},
		}
		findings := []entity.ValidationFinding{
			{Kind: entity.ArithmeticMismatch, Severity: entity.SeverityHigh, Field: "total"},
			{Kind: entity.ArithmeticMismatch, Severity: entity.SeverityHigh, Field: "subtotal"},
		}
		match := &entity.DuplicateMatch{BillID: "bill-1", Similarity: 1.0, Exact: true}
		got, err := engine.Assess(bill, findings, match, signals, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Score).To(BeNumerically(">=", 0))
		Expect(got.Score).To(BeNumerically("<=", 1))
	})
})
