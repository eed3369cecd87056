package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

var units = [...]string{
	"zéro", "un", "deux", "trois", "quatre", "cinq", "six", "sept", "huit", "neuf",
	"dix", "onze", "douze", "treize", "quatorze", "quinze", "seize",
	"dix-sept", "dix-huit", "dix-neuf",
}

var tens = [...]string{
	"", "dix", "vingt", "trente", "quarante", "cinquante", "soixante",
}

const (
	thousand = 1_000
	million  = 1_000_000
	billion  = 1_000_000_000
)

// AmountInWords spells amount in French using the unit names of the currency
// identified by code, e.g. "mille deux cent trente-quatre dinars et cinq cent
// soixante-sept millimes". The amount is first rounded to the minor unit.
func AmountInWords(amount decimal.Decimal, code string) string {
	return Lookup(code).InWords(amount)
}

// InWords spells amount in French. A zero minor part is omitted; a zero major
// part with a non-zero minor part yields the minor part alone.
func (c Currency) InWords(amount decimal.Decimal) string {
	rounded := c.Round(amount)
	prefix := ""
	if rounded.IsNegative() {
		prefix = "moins "
		rounded = rounded.Abs()
	}

	major := rounded.Truncate(0)
	minor := rounded.Sub(major).Shift(c.DecimalPlaces).IntPart()
	majorN := major.IntPart()

	switch {
	case minor == 0:
		return prefix + spellUnit(majorN, c.MajorSingular, c.MajorPlural)
	case majorN == 0:
		return prefix + spellUnit(minor, c.MinorSingular, c.MinorPlural)
	default:
		return prefix + spellUnit(majorN, c.MajorSingular, c.MajorPlural) +
			" et " + spellUnit(minor, c.MinorSingular, c.MinorPlural)
	}
}

// spellUnit spells n followed by the unit name. Exact millions and billions
// take "de" before the unit ("un million de dinars").
func spellUnit(n int64, singular, plural string) string {
	unit := plural
	if n < 2 {
		unit = singular
	}
	if n >= million && n%million == 0 {
		return NumberToWords(n) + " de " + unit
	}
	return NumberToWords(n) + " " + unit
}

// NumberToWords spells a non-negative integer in French.
func NumberToWords(n int64) string {
	if n < 0 {
		return "moins " + NumberToWords(-n)
	}
	if n == 0 {
		return units[0]
	}

	var parts []string
	if b := n / billion; b > 0 {
		parts = append(parts, scale(b, "milliard"))
		n %= billion
	}
	if m := n / million; m > 0 {
		parts = append(parts, scale(m, "million"))
		n %= million
	}
	if t := n / thousand; t > 0 {
		if t == 1 {
			parts = append(parts, "mille")
		} else {
			// mille is invariant and cent/vingt lose their plural before it
			parts = append(parts, hundreds(int(t), false)+" mille")
		}
		n %= thousand
	}
	if n > 0 {
		parts = append(parts, hundreds(int(n), true))
	}
	return strings.Join(parts, " ")
}

// scale spells count followed by a noun that takes a plural ("millions").
func scale(count int64, noun string) string {
	var words string
	if count >= thousand {
		words = NumberToWords(count)
	} else {
		words = hundreds(int(count), true)
	}
	if count > 1 {
		noun += "s"
	}
	return words + " " + noun
}

// hundreds spells 1..999. final is false when the number is followed by
// "mille", which suppresses the plural of "cents" and "quatre-vingts".
func hundreds(n int, final bool) string {
	h, rest := n/100, n%100
	var b strings.Builder
	switch {
	case h == 1:
		b.WriteString("cent")
	case h > 1:
		b.WriteString(units[h])
		b.WriteString(" cent")
		if rest == 0 && final {
			b.WriteByte('s')
		}
	}
	if rest > 0 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(belowHundred(rest, final))
	}
	return b.String()
}

func belowHundred(n int, final bool) string {
	if n < len(units) {
		return units[n]
	}
	t, u := n/10, n%10
	switch t {
	case 7:
		// soixante-dix .. soixante-dix-neuf
		if u == 1 {
			return "soixante et onze"
		}
		return "soixante-" + units[10+u]
	case 8:
		if u == 0 {
			if final {
				return "quatre-vingts"
			}
			return "quatre-vingt"
		}
		return "quatre-vingt-" + units[u]
	case 9:
		return "quatre-vingt-" + units[10+u]
	}
	switch u {
	case 0:
		return tens[t]
	case 1:
		return tens[t] + " et un"
	default:
		return tens[t] + "-" + units[u]
	}
}
