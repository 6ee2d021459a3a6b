package normalize

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("parseMoney", func() {
	DescribeTable("accepted values",
		func(in any, want string) {
			d, ok := parseMoney(in)
			Expect(ok).To(BeTrue())
			Expect(d.String()).To(Equal(want))
		},
		Entry("plain string", "28.05", "28.05"),
		Entry("thousands separators", "1,234.56", "1234.56"),
		Entry("rupee symbol", "₹1550.00", "1550"),
		Entry("dollar symbol and spaces", "$ 12.50", "12.5"),
		Entry("negative string", "-5.00", "-5"),
		Entry("integer string", "100", "100"),
		Entry("float64", 28.05, "28.05"),
		Entry("int", 100, "100"),
		Entry("int64", int64(100), "100"),
		Entry("json.Number", json.Number("28.05"), "28.05"),
	)

	DescribeTable("rejected values",
		func(in any) {
			_, ok := parseMoney(in)
			Expect(ok).To(BeFalse())
		},
		Entry("OCR confusions", "2B.O5"),
		Entry("three fractional digits", "10.123"),
		Entry("float with sub-cent precision", 10.123),
		Entry("empty string", ""),
		Entry("bool", true),
		Entry("nil", nil),
	)
})

var _ = Describe("parseQuantity", func() {
	It("allows more fractional precision than money", func() {
		d, ok := parseQuantity("0.333")
		Expect(ok).To(BeTrue())
		Expect(d.String()).To(Equal("0.333"))
	})

	It("rejects non-numeric strings", func() {
		_, ok := parseQuantity("two")
		Expect(ok).To(BeFalse())
	})
})
