package normalize

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// Currency symbols and thousands separators the extractor leaves behind.
	reMoneyNoise = regexp.MustCompile(`[₹$€£,\s]`)
	// Decimal with at most 2 fractional digits. Anything looser is rejected
	// rather than rounded: silent rounding would hide OCR damage.
	reDecimal = regexp.MustCompile(`^-?\d+(\.\d{1,2})?$`)
	// Quantities may carry more precision (e.g. 1.5 units of 0.333 ml).
	reQuantity = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

// parseMoney converts an untyped raw value into a fixed-point decimal with at
// most two fractional digits. Returns false for anything it cannot prove is a
// well-formed amount.
func parseMoney(v any) (*decimal.Decimal, bool) {
	switch t := v.(type) {
	case string:
		s := reMoneyNoise.ReplaceAllString(t, "")
		if !reDecimal.MatchString(s) {
			return nil, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, false
		}
		return &d, true
	case float64:
		d := decimal.NewFromFloat(t)
		if d.Exponent() < -2 {
			return nil, false
		}
		return &d, true
	case int:
		d := decimal.NewFromInt(int64(t))
		return &d, true
	case int64:
		d := decimal.NewFromInt(t)
		return &d, true
	case json.Number:
		return parseMoney(string(t))
	default:
		return nil, false
	}
}

func parseQuantity(v any) (*decimal.Decimal, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", ""))
		if !reQuantity.MatchString(s) {
			return nil, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, false
		}
		return &d, true
	case float64:
		d := decimal.NewFromFloat(t)
		return &d, true
	case int:
		d := decimal.NewFromInt(int64(t))
		return &d, true
	case int64:
		d := decimal.NewFromInt(t)
		return &d, true
	case json.Number:
		return parseQuantity(string(t))
	default:
		return nil, false
	}
}

// parsePage accepts a positive 1-based page number.
func parsePage(v any) (int, bool) {
	switch t := v.(type) {
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil && n > 0
	case float64:
		n := int(t)
		return n, float64(n) == t && n > 0
	case int:
		return t, t > 0
	case int64:
		return int(t), t > 0
	case json.Number:
		return parsePage(string(t))
	default:
		return 0, false
	}
}

func cleanString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.Join(strings.Fields(s), " ")
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
