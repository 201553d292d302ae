// Package display turns calculator results into the strings shown on the
// prescription editor: locale aware numbers, the glucose mix cells and the
// dilution labels.
package display

import (
	"math"
	"math/big"

	"github.com/giygas/pn-calculator/calculator"
	"github.com/giygas/pn-calculator/calculator/entities"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Placeholder is shown wherever a value is not applicable
const Placeholder = "---"

// DefaultLocale is the charting locale: comma decimals, no grouping
var DefaultLocale = language.Italian

// Formatter renders numbers for one locale. The zero value is not usable,
// use NewFormatter.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter returns a formatter for tag
func NewFormatter(tag language.Tag) *Formatter {
	return &Formatter{printer: message.NewPrinter(tag)}
}

// ParseLocale parses a BCP 47 tag, falling back to DefaultLocale
func ParseLocale(s string) language.Tag {
	tag, err := language.Parse(s)
	if err != nil || s == "" {
		return DefaultLocale
	}
	return tag
}

var std = NewFormatter(DefaultLocale)

// Default returns the formatter for DefaultLocale
func Default() *Formatter {
	return std
}

// Fixed formats v with exactly decimals fraction digits. Ties round away
// from zero, so 0.125 is "0,13".
func (f *Formatter) Fixed(v float64, decimals int) string {
	return f.printer.Sprint(number.Decimal(roundHalfUp(v, decimals), number.Scale(decimals), number.NoSeparator()))
}

// roundHalfUp rounds v to decimals fraction digits, ties away from zero.
// The tie test runs on the exact binary value of v, so 0.125 rounds up
// while 1.005, stored as 1.00499..., rounds down.
func roundHalfUp(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || decimals < 0 || decimals > 15 {
		return v
	}
	p := math.Pow10(decimals)

	x := new(big.Float).SetPrec(256).SetFloat64(math.Abs(v))
	x.Mul(x, new(big.Float).SetPrec(256).SetFloat64(p))

	whole, _ := x.Int(nil)
	frac := new(big.Float).SetPrec(256).Sub(x, new(big.Float).SetPrec(256).SetInt(whole))
	if frac.Cmp(big.NewFloat(0.5)) >= 0 {
		whole.Add(whole, big.NewInt(1))
	}

	r, _ := new(big.Float).SetInt(whole).Float64()
	r /= p
	if v < 0 {
		r = -r
	}
	return r
}

// Ml formats a volume with two decimals, e.g. "108,70"
func (f *Formatter) Ml(v float64) string {
	return f.Fixed(v, 2)
}

// Flow formats a flow rate with one decimal
func (f *Formatter) Flow(v float64) string {
	return f.Fixed(v, 1)
}

// Simple formats v without trailing zeros, e.g. "2,5" or "12"
func (f *Formatter) Simple(v float64) string {
	return f.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(6), number.NoSeparator()))
}

// Volume formats a volume as "<ml> ml", or Placeholder when not applicable
func (f *Formatter) Volume(v calculator.Volume) string {
	if !v.Valid {
		return Placeholder
	}
	return f.Ml(v.Ml) + " ml"
}

// FormatMl formats with the default formatter
func FormatMl(v float64) string { return std.Ml(v) }

// FormatFlow formats with the default formatter
func FormatFlow(v float64) string { return std.Flow(v) }

// FormatSimple formats with the default formatter
func FormatSimple(v float64) string { return std.Simple(v) }

// ParseDecimal reads a number typed into an editor field, comma or dot
// separated. Blank and unparseable input is 0.
func ParseDecimal(s string) float64 {
	return entities.ParseDecimal(s)
}
