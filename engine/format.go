package engine

import (
	"math"
	"strconv"
	"strings"
)

// ErrorDisplay is shown in place of a result that is NaN, infinite or outside
// a function's domain.
const ErrorDisplay = "Error"

// DefaultFractionDigits is the number of fractional digits kept before
// trailing zeros are stripped.
const DefaultFractionDigits = 8

// MaxFractionDigits bounds WithFractionDigits.
const MaxFractionDigits = 15

// FormatResult renders r the way the display shows it.
//
// Integral values in int64 range print without a decimal point. Everything
// else is printed with digits fractional digits and then loses its trailing
// zeros and a trailing point, so 1/3 renders as "0.33333333" and 2.5 as "2.5".
func FormatResult(r float64, digits int) string {
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return ErrorDisplay
	}
	if r == math.Trunc(r) && r >= math.MinInt64 && r < math.MaxInt64 {
		return strconv.FormatInt(int64(r), 10)
	}
	s := strconv.FormatFloat(r, 'f', digits, 64)
	if strings.IndexByte(s, '.') >= 0 {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}

// parseOperand reads the input buffer as a number. Malformed text is zero.
func parseOperand(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !math.IsInf(f, 0) {
		return 0
	}
	return f
}
