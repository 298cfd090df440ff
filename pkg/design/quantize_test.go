package design

import "testing"

func TestFormatQuantized(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want string
	}{
		{"integer", 1.0, "1"},
		{"negative integer", -3.0, "-3"},
		{"half", 0.5, "0.5"},
		{"exact binary fraction", 0.125, "0.125"},
		{"trailing zeros stripped", 2.50000000, "2.5"},
		{"eight digits kept", 1.23456789, "1.23456789"},
		{"ninth digit rounded", 0.123456789, "0.12345679"},
		{"zero", 0.0, "0"},
		{"negative zero", negZero(), "0"},
		{"tiny positive collapses", 1e-9, "0"},
		{"tiny negative collapses", -1e-9, "0"},
		{"large", 123456.75, "123456.75"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatQuantized(tt.in); got != tt.want {
				t.Errorf("FormatQuantized(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func negZero() float64 {
	z := 0.0
	return -z
}

func TestQuantizeIdempotent(t *testing.T) {
	values := []float64{0, 1, -1, 0.1, -0.1, 1.0 / 3.0, 123456.789123456, 1e-9, -2.718281828459045}
	for _, v := range values {
		q := Quantize(v)
		if qq := Quantize(q); qq != q {
			t.Errorf("Quantize(Quantize(%v)) = %v, want %v", v, qq, q)
		}
	}
}

func TestQuantizeMatchesFormat(t *testing.T) {
	// The quantized value must parse back from exactly the string the
	// codec emits, so text round trips are bit-exact.
	values := []float64{1.0 / 3.0, 0.1 + 0.2, -7.25, 99999.000000004}
	for _, v := range values {
		q := Quantize(v)
		if got := FormatQuantized(q); got != FormatQuantized(v) {
			t.Errorf("FormatQuantized(Quantize(%v)) = %q, want %q", v, got, FormatQuantized(v))
		}
	}
}
