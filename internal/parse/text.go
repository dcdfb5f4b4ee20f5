// Package parse holds the pure text heuristics of the receipt pipeline:
// currency, dates, masked card numbers, merchant city extraction, item
// line extraction and category inference.
package parse

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	currencyLabelRe = regexp.MustCompile(`(?i)\b(?:CAD|USD|EUR|GBP|DOLLARS?)\b`)
	currencyKeepRe  = regexp.MustCompile(`[^0-9.,\-]`)

	maskedCardRe = regexp.MustCompile(`(?:[*xX\x{2022}]{4}[ -]?){3}(\d{4})\b`)

	// "…, CITY, PC" with a two-letter province/state code.
	cityLabeledRe = regexp.MustCompile(`,\s*([A-Za-z][A-Za-z .'\-]*[A-Za-z]),\s*([A-Z]{2})\b`)
	cityLineRe    = regexp.MustCompile(`(?im)^\s*city\s*:?\s*(.+?)\s*$`)
	cityLooseRe   = regexp.MustCompile(`(?m)\b([A-Z][A-Za-z .'\-]+?),\s*([A-Z]{2})\b`)

	merchantKeyRe = regexp.MustCompile(`[^\p{L}\p{N} ]+`)

	nonAlnumRe = regexp.MustCompile(`\d{6,}|[*#]+`)
)

// dateLayouts are tried in order before the lenient fallback. ISO first,
// then slash/dash variants, then month-name forms.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"01/02/06",
	"1/2/06",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"January 2, 2006",
	"2 January 2006",
}

// lenientLayouts are the last-resort formats, including timestamps that
// OCR sometimes glues onto the date.
var lenientLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006 15:04",
	"02/01/2006 15:04",
	"Jan 2 06",
	"060102",
}

// Currency parses a monetary string into a decimal. Currency labels,
// symbols and thousands separators are stripped; a lone comma is treated
// as the decimal separator. Returns zero on any failure, never an error.
func Currency(s string) decimal.Decimal {
	cleaned := currencyLabelRe.ReplaceAllString(s, "")
	cleaned = currencyKeepRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return decimal.Zero
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")
	switch {
	case hasComma && hasDot:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case hasComma && strings.Count(cleaned, ",") == 1:
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case hasComma:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Date parses a date string against the explicit layout table, then the
// lenient fallbacks. Returns nil when nothing matches.
func Date(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return fixCentury(t)
		}
	}
	for _, layout := range lenientLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return fixCentury(t)
		}
	}
	return nil
}

func fixCentury(t time.Time) *time.Time {
	if t.Year() < 100 {
		t = t.AddDate(2000, 0, 0)
	}
	return &t
}

// MaskedCard extracts a masked card number from free text: four groups
// of four masking characters followed by exactly four digits. It returns
// the normalized "**** **** **** NNNN" form and a brand guess, or empty
// strings when no masked number is present.
func MaskedCard(text string) (masked, brand string) {
	m := maskedCardRe.FindStringSubmatch(text)
	if m == nil {
		return "", ""
	}
	return "**** **** **** " + m[1], cardBrand(text)
}

// cardBrand guesses the brand from keyword presence, in fixed priority
// order: Mastercard, Visa, Amex, Debit.
func cardBrand(text string) string {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "MASTERCARD") || strings.Contains(upper, "MASTER CARD"):
		return "Mastercard"
	case strings.Contains(upper, "VISA"):
		return "Visa"
	case strings.Contains(upper, "AMEX") || strings.Contains(upper, "AMERICAN EXPRESS"):
		return "Amex"
	case strings.Contains(upper, "DEBIT") || strings.Contains(upper, "INTERAC"):
		return "Debit"
	default:
		return ""
	}
}

// City extracts a merchant city from free text, trying the labeled
// "…, CITY, PC" pattern, then a "City:" line, then a looser
// "word(s), PC" pattern. Returns "" when nothing matches.
func City(text string) string {
	if m := cityLabeledRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := cityLineRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := cityLooseRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// MerchantKey reduces a merchant name to a stable join/compare key:
// letters, digits and spaces only, whitespace collapsed, upper-cased.
// Not for display.
func MerchantKey(s string) string {
	cleaned := merchantKeyRe.ReplaceAllString(s, "")
	return strings.ToUpper(strings.Join(strings.Fields(cleaned), " "))
}

var titleCaser = cases.Title(language.English)

// FormatMerchantName cleans a raw merchant string for display: drops
// long digit runs and masking characters, collapses whitespace and
// title-cases the words.
func FormatMerchantName(raw string) string {
	cleaned := nonAlnumRe.ReplaceAllString(raw, "")
	words := strings.Fields(cleaned)
	for i, word := range words {
		if len(word) > 2 {
			words[i] = titleCaser.String(strings.ToLower(word))
		} else {
			words[i] = strings.ToUpper(word)
		}
	}
	out := strings.Join(words, " ")
	if runes := []rune(out); len(runes) > 50 {
		out = string(runes[:50])
	}
	return out
}
