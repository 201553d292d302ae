package entities

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Quantity is a numeric form value in the unit of the field it belongs to.
// It decodes from JSON numbers and from decimal strings written with either a
// comma or a dot. Blank strings and null decode to zero.
type Quantity float64

// Float64 returns the quantity as a plain float64
func (q Quantity) Float64() float64 {
	return float64(q)
}

// UnmarshalJSON implements json.Unmarshaler
func (q *Quantity) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		*q = 0
		return nil
	}

	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return fmt.Errorf("invalid quantity %s: %w", s, err)
		}
		*q = Quantity(ParseDecimal(str))
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid quantity %s: %w", s, err)
	}
	*q = Quantity(v)
	return nil
}

// ParseDecimal reads a number typed into a form field. The first comma is
// treated as the decimal separator, the longest numeric prefix is used and
// anything that does not start with a number yields 0.
func ParseDecimal(input string) float64 {
	s := strings.Replace(strings.TrimSpace(input), ",", ".", 1)
	if s == "" {
		return 0
	}

	end := numericPrefix(s)
	if end == 0 {
		return 0
	}

	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// numericPrefix returns the length of the leading [+-]?digits[.digits][e[+-]digits] run
func numericPrefix(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}

	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			frac++
		}
		if digits > 0 || frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return 0
	}

	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		exp := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			exp++
		}
		if exp > 0 {
			i = j
		}
	}
	return i
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// finite maps NaN and infinities to zero
func finite(q Quantity) Quantity {
	f := float64(q)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return q
}
