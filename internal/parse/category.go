package parse

import (
	"regexp"
	"strings"

	"github.com/opsledger/receiptd/internal/lexicon"
)

// Inferencer assigns a category to a receipt. Precedence is strict:
// vendor override, then item-keyword signals, then merchant-name
// heuristics, then Unknown.
type Inferencer struct {
	lex          *lexicon.Lexicon
	fuelRe       *regexp.Regexp
	suppliesRe   *regexp.Regexp
	restaurantRe *regexp.Regexp
}

// NewInferencer creates an Inferencer with instance-held patterns.
func NewInferencer(lex *lexicon.Lexicon) *Inferencer {
	return &Inferencer{
		lex:          lex,
		fuelRe:       regexp.MustCompile(`(?i)\b(petro|esso|shell|husky|ultramar|chevron|mobil|pioneer|co-?op|gas\s*bar|fuel|petroleum)\b`),
		suppliesRe:   regexp.MustCompile(`(?i)\b(parts?|tools?|supply|supplies|hardware|napa|fastenal|grainger|acklands|industrial|equipment|auto\s*value|bumper\s*to\s*bumper)\b`),
		restaurantRe: regexp.MustCompile(`(?i)\b(restaurant|cafe|coffee|pizza|grill|diner|bistro|pub|bar|sushi|subs?|burger|donut|doughnut|bakery|eatery|kitchen|chicken)\b`),
	}
}

// Infer returns the category for a merchant and its item lines.
func (in *Inferencer) Infer(merchant string, itemLines []string) lexicon.Category {
	if cat, ok := in.lex.VendorOverride(merchant); ok {
		return cat
	}

	joined := strings.ToLower(strings.Join(itemLines, " "))
	if joined != "" {
		if containsAnyKeyword(joined, in.lex.ItemKeywords(lexicon.CategoryRestaurant)) {
			return lexicon.CategoryRestaurant
		}
		if containsAnyKeyword(joined, in.lex.ItemKeywords(lexicon.CategorySupplies)) {
			return lexicon.CategorySupplies
		}
	}

	switch {
	case in.fuelRe.MatchString(merchant):
		return lexicon.CategoryFuel
	case in.suppliesRe.MatchString(merchant):
		return lexicon.CategorySupplies
	case in.restaurantRe.MatchString(merchant):
		return lexicon.CategoryRestaurant
	}

	return lexicon.CategoryUnknown
}

// FromBrandOrVendor categorizes payment-method lines: vendor override
// first, then any card brand other than Debit means a card payment, else
// Supplies.
func (in *Inferencer) FromBrandOrVendor(brand, merchant string) lexicon.Category {
	if cat, ok := in.lex.VendorOverride(merchant); ok {
		return cat
	}
	if brand != "" && brand != "Debit" {
		return lexicon.CategoryCardPayment
	}
	return lexicon.CategorySupplies
}

func containsAnyKeyword(joined string, keywords map[string]struct{}) bool {
	for kw := range keywords {
		if strings.Contains(joined, kw) {
			return true
		}
	}
	return false
}
