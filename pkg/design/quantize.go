package design

import (
	"strconv"
	"strings"
)

// Precision is the fixed number of decimal digits numeric parameters are
// quantized to when a tree is encoded. It is process-wide and read-only:
// the round-trip contract between encoder and decoder is only well defined
// relative to this single value.
const Precision = 8

// FormatQuantized renders x at the codec precision: round-half-to-even to
// Precision decimal digits, trailing zeros stripped, negative zero
// collapsed to "0". This string is the quantized value's definition — the
// decoder parses exactly what the encoder emitted.
func FormatQuantized(x float64) string {
	s := strconv.FormatFloat(x, 'f', Precision, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}

// Quantize returns the float64 value the decoder will see for x after a
// round trip through the textual encoding.
func Quantize(x float64) float64 {
	v, err := strconv.ParseFloat(FormatQuantized(x), 64)
	if err != nil {
		// FormatQuantized always yields a valid decimal literal.
		panic("design: unparseable quantized literal: " + FormatQuantized(x))
	}
	return v
}
