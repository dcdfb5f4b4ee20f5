package ocr

import (
	"strings"

	"github.com/opsledger/receiptd/internal/lexicon"
)

// Resolver resolves a canonical field name against an analyzed document:
// literal key, then known aliases in configured order, then a
// case-insensitive scan.
type Resolver struct {
	lex *lexicon.Lexicon
}

// NewResolver creates a Resolver backed by the given lexicon.
func NewResolver(lex *lexicon.Lexicon) *Resolver {
	return &Resolver{lex: lex}
}

// Resolve returns the content for canonical, or ("", false) when no path
// yields non-blank content.
func (r *Resolver) Resolve(doc *AnalyzedDocument, canonical string) (string, bool) {
	if doc == nil {
		return "", false
	}

	if v, ok := nonBlank(doc.Fields[canonical]); ok {
		return v, true
	}

	for _, alias := range r.lex.Aliases(canonical) {
		if v, ok := nonBlank(doc.Fields[alias]); ok {
			return v, true
		}
	}

	for key, content := range doc.Fields {
		if strings.EqualFold(key, canonical) {
			if v, ok := nonBlank(content); ok {
				return v, true
			}
		}
	}

	return "", false
}

func nonBlank(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	return trimmed, trimmed != ""
}
