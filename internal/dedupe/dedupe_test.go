package dedupe

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/clearclaim/billaudit/internal/common"
	"github.com/clearclaim/billaudit/internal/entity"
	"github.com/clearclaim/billaudit/internal/store"
)

func TestDedupe(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Dedupe Suite")
}

func money(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	Expect(err).NotTo(HaveOccurred())
	return &d
}

func sampleBill(items ...entity.LineItem) *entity.NormalizedBill {
	return &entity.NormalizedBill{
		ProviderID: "apollo-2041",
		LineItems:  items,
		Total:      money("28.05"),
	}
}

func li(desc, amount string) entity.LineItem {
	return entity.LineItem{Description: desc, Amount: money(amount)}
}

// unreachableStore simulates a store that cannot be consulted.
type unreachableStore struct{}

func (unreachableStore) Lookup(context.Context, entity.Fingerprint) (*entity.BillRecord, error) {
	return nil, errors.New("connection refused")
}

func (unreachableStore) Candidates(context.Context, []string) ([]*entity.BillRecord, error) {
	return nil, errors.New("connection refused")
}

func (unreachableStore) Commit(context.Context, *entity.BillRecord) error {
	return errors.New("connection refused")
}

func (unreachableStore) Close() error { return nil }

var _ = Describe("FingerprintOf", func() {
	It("is unchanged by line item order", func() {
		a, err := FingerprintOf(sampleBill(li("Consultation", "10.00"), li("X-Ray", "15.50")))
		Expect(err).NotTo(HaveOccurred())
		b, err := FingerprintOf(sampleBill(li("X-Ray", "15.50"), li("Consultation", "10.00")))
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(b))
	})

	It("ignores description case and internal whitespace", func() {
		a, err := FingerprintOf(sampleBill(li("X-Ray  Chest", "15.50")))
		Expect(err).NotTo(HaveOccurred())
		b, err := FingerprintOf(sampleBill(li("x-ray chest", "15.50")))
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(b))
	})

	It("changes when an amount changes", func() {
		a, err := FingerprintOf(sampleBill(li("Consultation", "10.00")))
		Expect(err).NotTo(HaveOccurred())
		b, err := FingerprintOf(sampleBill(li("Consultation", "10.01")))
		Expect(err).NotTo(HaveOccurred())
		Expect(a).NotTo(Equal(b))
	})

	It("changes when the provider changes", func() {
		bill := sampleBill(li("Consultation", "10.00"))
		a, err := FingerprintOf(bill)
		Expect(err).NotTo(HaveOccurred())
		bill.ProviderID = "fortis-118"
		b, err := FingerprintOf(bill)
		Expect(err).NotTo(HaveOccurred())
		Expect(a).NotTo(Equal(b))
	})

	It("round-trips through its text encoding", func() {
		fp, err := FingerprintOf(sampleBill(li("Consultation", "10.00")))
		Expect(err).NotTo(HaveOccurred())
		parsed, err := entity.ParseFingerprint(fp.String())
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed).To(Equal(fp))
	})
})

var _ = Describe("DigestOf", func() {
	It("distinguishes reordered bills the fingerprint conflates", func() {
		a, err := DigestOf(sampleBill(li("Consultation", "10.00"), li("X-Ray", "15.50")))
		Expect(err).NotTo(HaveOccurred())
		b, err := DigestOf(sampleBill(li("X-Ray", "15.50"), li("Consultation", "10.00")))
		Expect(err).NotTo(HaveOccurred())
		Expect(a).NotTo(Equal(b))
	})
})

var _ = Describe("SecondaryKeyOf", func() {
	It("buckets nearby item counts together", func() {
		three := sampleBill(li("a", "1.00"), li("b", "2.00"), li("c", "3.00"))
		five := sampleBill(li("a", "1.00"), li("b", "2.00"), li("c", "3.00"), li("d", "4.00"), li("e", "5.00"))
		Expect(SecondaryKeyOf(three)).To(Equal(SecondaryKeyOf(five)))
	})

	It("separates different totals", func() {
		a := sampleBill(li("a", "1.00"))
		b := sampleBill(li("a", "1.00"))
		b.Total = money("29.00")
		Expect(SecondaryKeyOf(a)).NotTo(Equal(SecondaryKeyOf(b)))
	})
})

var _ = Describe("Similarity", func() {
	It("scores identical multisets as 1", func() {
		Expect(Similarity([]int64{100, 200, 200}, []int64{200, 100, 200})).To(Equal(1.0))
	})

	It("scores disjoint multisets as 0", func() {
		Expect(Similarity([]int64{100}, []int64{200})).To(BeZero())
	})

	It("treats two empty multisets as identical", func() {
		Expect(Similarity(nil, nil)).To(Equal(1.0))
	})

	It("respects multiplicity", func() {
		// {100,100} vs {100}: intersection 1, union 2.
		Expect(Similarity([]int64{100, 100}, []int64{100})).To(BeNumerically("~", 0.5))
	})
})

var _ = Describe("Detector", func() {
	var (
		mem      *store.Memory
		detector *Detector
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		mem = store.NewMemory()
		detector = NewDetector(mem, common.DedupeConfig{SimilarityThreshold: 0.85}, time.Second, slog.New(slog.DiscardHandler))
	})

	When("the bill has never been seen", func() {
		It("finds no match and does not write", func() {
			rec, err := Prepare(sampleBill(li("Consultation", "10.00")), "bill-1")
			Expect(err).NotTo(HaveOccurred())

			match, degraded := detector.Lookup(ctx, rec)
			Expect(match).To(BeNil())
			Expect(degraded).To(BeFalse())
			Expect(mem.Len()).To(BeZero())
		})
	})

	When("an identical bill was committed earlier", func() {
		It("reports an exact match with the prior bill id", func() {
			first, err := Prepare(sampleBill(li("Consultation", "10.00"), li("X-Ray", "15.50")), "bill-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(detector.Commit(ctx, first, "bill-1")).To(Succeed())

			reordered, err := Prepare(sampleBill(li("X-Ray", "15.50"), li("Consultation", "10.00")), "bill-2")
			Expect(err).NotTo(HaveOccurred())
			match, degraded := detector.Lookup(ctx, reordered)

			Expect(degraded).To(BeFalse())
			Expect(match).NotTo(BeNil())
			Expect(match.Exact).To(BeTrue())
			Expect(match.Similarity).To(Equal(1.0))
			Expect(match.BillID).To(Equal("bill-1"))
		})
	})

	When("a near-duplicate shares most amounts", func() {
		It("reports a fuzzy match above the threshold", func() {
			items := []entity.LineItem{
				li("a", "1.00"), li("b", "2.00"), li("c", "3.00"),
				li("d", "4.00"), li("e", "5.00"), li("f", "6.00"),
				li("g", "7.00"), li("h", "8.00"),
			}
			first, err := Prepare(sampleBill(items...), "bill-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(detector.Commit(ctx, first, "bill-1")).To(Succeed())

			// Same total and item-count bucket, one description reworded,
			// amounts identical: similarity 1.0 but a different fingerprint.
			reworded := append([]entity.LineItem{}, items...)
			reworded[0] = li("a (reviewed)", "1.00")
			second, err := Prepare(sampleBill(reworded...), "bill-2")
			Expect(err).NotTo(HaveOccurred())

			match, degraded := detector.Lookup(ctx, second)
			Expect(degraded).To(BeFalse())
			Expect(match).NotTo(BeNil())
			Expect(match.Exact).To(BeFalse())
			Expect(match.BillID).To(Equal("bill-1"))
			Expect(match.Similarity).To(BeNumerically(">=", 0.85))
		})

		It("reports a match sitting exactly on the threshold", func() {
			detector = NewDetector(mem, common.DedupeConfig{SimilarityThreshold: 0.5}, time.Second, slog.New(slog.DiscardHandler))

			// {100,200,300} vs {100,200,500}: intersection 2, union 4.
			first, err := Prepare(sampleBill(li("a", "1.00"), li("b", "2.00"), li("c", "3.00")), "bill-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(detector.Commit(ctx, first, "bill-1")).To(Succeed())

			second, err := Prepare(sampleBill(li("a", "1.00"), li("b", "2.00"), li("e", "5.00")), "bill-2")
			Expect(err).NotTo(HaveOccurred())

			match, degraded := detector.Lookup(ctx, second)
			Expect(degraded).To(BeFalse())
			Expect(match).NotTo(BeNil())
			Expect(match.Similarity).To(BeNumerically("~", 0.5))
		})

		It("stays silent below the threshold", func() {
			first, err := Prepare(sampleBill(li("a", "1.00"), li("b", "27.05")), "bill-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(detector.Commit(ctx, first, "bill-1")).To(Succeed())

			second, err := Prepare(sampleBill(li("x", "14.00"), li("y", "14.05")), "bill-2")
			Expect(err).NotTo(HaveOccurred())

			match, degraded := detector.Lookup(ctx, second)
			Expect(degraded).To(BeFalse())
			Expect(match).To(BeNil())
		})
	})

	When("the store is unreachable", func() {
		BeforeEach(func() {
			detector = NewDetector(unreachableStore{}, common.DedupeConfig{SimilarityThreshold: 0.85}, time.Second, slog.New(slog.DiscardHandler))
		})

		It("degrades the lookup instead of failing", func() {
			rec, err := Prepare(sampleBill(li("Consultation", "10.00")), "bill-1")
			Expect(err).NotTo(HaveOccurred())

			match, degraded := detector.Lookup(ctx, rec)
			Expect(match).To(BeNil())
			Expect(degraded).To(BeTrue())
		})

		It("surfaces commit failures as dependency errors", func() {
			rec, err := Prepare(sampleBill(li("Consultation", "10.00")), "bill-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(detector.Commit(ctx, rec, "bill-1")).To(MatchError(common.ErrDependency))
		})
	})

	When("the same bill is committed concurrently", func() {
		It("registers exactly one record", func() {
			rec, err := Prepare(sampleBill(li("Consultation", "10.00")), "bill-1")
			Expect(err).NotTo(HaveOccurred())

			const submitters = 16
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				won      int
				conflict int
			)
			for i := 0; i < submitters; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					err := detector.Commit(ctx, rec, "bill-1")
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						won++
					case errors.Is(err, common.ErrAlreadyExists):
						conflict++
					default:
						Fail("unexpected commit error: " + err.Error())
					}
				}()
			}
			wg.Wait()

			Expect(won).To(Equal(1))
			Expect(conflict).To(Equal(submitters - 1))
			Expect(mem.Len()).To(Equal(1))
		})
	})
})
