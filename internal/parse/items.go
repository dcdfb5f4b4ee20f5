package parse

import (
	"regexp"
	"strings"

	"github.com/opsledger/receiptd/internal/lexicon"
)

const (
	minItemLen = 2
	maxItemLen = 120
)

var (
	// boilerplateRe matches tender, totals and payment-brand lines that
	// are never purchased items.
	boilerplateRe = regexp.MustCompile(`(?i)\b(sub\s*-?\s*total|total|tax|hst|gst|pst|qst|visa|master\s*card|mastercard|amex|debit|credit|interac|cash|change|tender|balance|approved|auth(?:orization)?)\b`)

	// itemLineRe captures a description (any SKU prefix included)
	// followed by a trailing price token. The lexicon SKU pattern is
	// never embedded here; it is user-configured and may carry its own
	// capture groups, which would shift submatch indices.
	itemLineRe = regexp.MustCompile(`^\s*(\S.*?)\s+\$?-?\d{1,5}(?:[.,]\d{2})\s*$`)
)

// ItemExtractor pulls candidate purchased-item lines out of raw OCR text
// and filters them by category vocabulary.
type ItemExtractor struct {
	lex *lexicon.Lexicon
}

// NewItemExtractor creates an extractor backed by the given lexicon.
func NewItemExtractor(lex *lexicon.Lexicon) *ItemExtractor {
	return &ItemExtractor{lex: lex}
}

// Candidates scans rawText line by line for item-shaped lines: not
// boilerplate, a description, a trailing price. The captured description
// is whitespace-normalized, bounded to 2–120 characters and
// de-duplicated case-insensitively in first-seen order.
func (e *ItemExtractor) Candidates(rawText string) []string {
	var out []string
	seen := make(map[string]struct{})

	for _, line := range strings.Split(rawText, "\n") {
		if boilerplateRe.MatchString(line) {
			continue
		}
		m := itemLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		desc := strings.Join(strings.Fields(m[1]), " ")
		if len(desc) < minItemLen || len(desc) > maxItemLen {
			continue
		}

		key := strings.ToLower(desc)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, desc)
	}
	return out
}

// FilterByCategory applies the lexicon's vocabulary to candidate lines:
// Supplies lines matching the SKU pattern pass unconditionally, stop-word
// lines are dropped, and categories with a non-empty allow-list require
// at least one allow-list term as a whole word.
func (e *ItemExtractor) FilterByCategory(lines []string, category lexicon.Category) []string {
	allow := e.lex.AllowList(category)

	var out []string
	seen := make(map[string]struct{})
	for _, line := range lines {
		if category == lexicon.CategorySupplies && e.lex.SKUPattern().MatchString(line) {
			appendUnique(&out, seen, line)
			continue
		}
		if e.containsStopWord(line) {
			continue
		}
		if len(allow) > 0 && !containsAnyWord(line, allow) {
			continue
		}
		appendUnique(&out, seen, line)
	}
	return out
}

func (e *ItemExtractor) containsStopWord(line string) bool {
	for _, word := range splitWords(line) {
		if e.lex.IsStopWord(word) {
			return true
		}
	}
	return false
}

func containsAnyWord(line string, terms map[string]struct{}) bool {
	for _, word := range splitWords(line) {
		if _, ok := terms[word]; ok {
			return true
		}
	}
	return false
}

func splitWords(line string) []string {
	return strings.FieldsFunc(strings.ToLower(line), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

func appendUnique(out *[]string, seen map[string]struct{}, line string) {
	key := strings.ToLower(line)
	if _, dup := seen[key]; dup {
		return
	}
	seen[key] = struct{}{}
	*out = append(*out, line)
}
