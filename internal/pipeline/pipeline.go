// Package pipeline composes the receipt-understanding flow: normalize,
// analyze, heuristic extraction, conditional AI enhancement. Every
// collaborator is an explicit, narrow dependency so batches can swap or
// fake any of them.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/opsledger/receiptd/internal/enhance"
	"github.com/opsledger/receiptd/internal/lexicon"
	"github.com/opsledger/receiptd/internal/ocr"
	"github.com/opsledger/receiptd/internal/parse"
)

// Normalizer prepares an upload for OCR submission.
type Normalizer interface {
	Normalize(data []byte, filename string) ([]byte, error)
}

// Analyzer submits an image to the document-understanding service.
type Analyzer interface {
	Analyze(ctx context.Context, imageBytes []byte, modelID string) (*ocr.AnalyzedDocument, error)
}

// Enhancer is the generative fallback. May be nil when not configured.
type Enhancer interface {
	Enhance(ctx context.Context, rawText string) (*enhance.Receipt, error)
}

// Limiter spaces calls to a rate-sensitive endpoint.
type Limiter interface {
	Wait(ctx context.Context) error
}

const defaultEnhanceThreshold = 0.60

// Config tunes the processor.
type Config struct {
	ModelID string
	// EnhanceThreshold is the heuristic confidence below which the AI
	// fallback runs. Zero means the default.
	EnhanceThreshold float64
	Logger           *zap.Logger
}

// Processor runs the pipeline for single receipts.
type Processor struct {
	cfg        Config
	lex        *lexicon.Lexicon
	normalizer Normalizer
	analyzer   Analyzer
	resolver   *ocr.Resolver
	items      *parse.ItemExtractor
	inferencer *parse.Inferencer
	enhancer   Enhancer
	ocrLimit   Limiter
	aiLimit    Limiter
	logger     *zap.Logger
}

// NewProcessor wires a processor. enhancer may be nil to disable the
// fallback; limiters may be nil to disable throttling.
func NewProcessor(
	cfg Config,
	lex *lexicon.Lexicon,
	normalizer Normalizer,
	analyzer Analyzer,
	enhancer Enhancer,
	ocrLimit, aiLimit Limiter,
) *Processor {
	if cfg.EnhanceThreshold <= 0 {
		cfg.EnhanceThreshold = defaultEnhanceThreshold
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		cfg:        cfg,
		lex:        lex,
		normalizer: normalizer,
		analyzer:   analyzer,
		resolver:   ocr.NewResolver(lex),
		items:      parse.NewItemExtractor(lex),
		inferencer: parse.NewInferencer(lex),
		enhancer:   enhancer,
		ocrLimit:   ocrLimit,
		aiLimit:    aiLimit,
		logger:     logger,
	}
}

// Process runs one receipt through the pipeline. Image and OCR failures
// return a *Error and abort that receipt; enhancement failures are
// absorbed and the heuristic result is returned.
func (p *Processor) Process(ctx context.Context, data []byte, filename string) (*ParsedReceipt, error) {
	normalized, err := p.normalizer.Normalize(data, filename)
	if err != nil {
		return nil, &Error{Code: CodeUnsupportedImage, Stage: "normalize", Cause: err}
	}

	if p.ocrLimit != nil {
		if err := p.ocrLimit.Wait(ctx); err != nil {
			return nil, &Error{Code: CodeAnalysisFailed, Stage: "analyze", Cause: err}
		}
	}
	doc, err := p.analyzer.Analyze(ctx, normalized, p.cfg.ModelID)
	if err != nil {
		return nil, &Error{Code: CodeAnalysisFailed, Stage: "analyze", Retryable: true, Cause: err}
	}

	receipt := p.heuristicPass(doc)

	if p.shouldEnhance(receipt) && p.enhancer != nil {
		p.enhancePass(ctx, doc.RawText, receipt, filename)
	}

	return receipt, nil
}

// heuristicPass builds a ParsedReceipt from the analyzed document using
// the field resolver, text parsers, item extractor and inferencer.
func (p *Processor) heuristicPass(doc *ocr.AnalyzedDocument) *ParsedReceipt {
	r := &ParsedReceipt{}

	if v, ok := p.resolver.Resolve(doc, FieldMerchantName); ok {
		r.MerchantName = parse.FormatMerchantName(v)
	}
	if v, ok := p.resolver.Resolve(doc, FieldMerchantAddress); ok {
		r.MerchantAddress = v
	}
	if v, ok := p.resolver.Resolve(doc, FieldMerchantCity); ok {
		r.MerchantCity = v
	} else {
		r.MerchantCity = parse.City(doc.RawText)
	}

	if v, ok := p.resolver.Resolve(doc, FieldTransactionDate); ok {
		r.TransactionDate = parse.Date(v)
	}
	if r.TransactionDate == nil {
		r.TransactionDate = findDate(doc.RawText)
	}

	r.SubTotal = p.amount(doc, FieldSubTotal, []string{"subtotal", "sub-total", "sub total"}, nil)
	r.TotalTax = p.amount(doc, FieldTotalTax, []string{"hst", "gst", "pst", "qst", "tax"}, nil)
	r.Total = p.amount(doc, FieldTotal, []string{"total", "amount due", "balance due", "grand total"}, []string{"sub"})

	r.MaskedCardLast4, r.CardBrand = parse.MaskedCard(doc.RawText)

	candidates := p.items.Candidates(doc.RawText)
	r.Category = p.inferencer.Infer(r.MerchantName, candidates)
	if r.Category == lexicon.CategoryUnknown && r.MaskedCardLast4 != "" {
		r.Category = p.inferencer.FromBrandOrVendor(r.CardBrand, r.MerchantName)
	}
	r.ItemLines = p.items.FilterByCategory(candidates, r.Category)

	r.Confidence = score(r)
	return r
}

// amount resolves a monetary field, falling back to a label scan over
// the raw text. exclude drops lines that would shadow the label (the
// "total" scan must not pick up "subtotal").
func (p *Processor) amount(doc *ocr.AnalyzedDocument, canonical string, labels, exclude []string) decimal.Decimal {
	if v, ok := p.resolver.Resolve(doc, canonical); ok {
		if d := parse.Currency(v); !d.IsZero() {
			return d
		}
	}
	return scanAmount(doc.RawText, labels, exclude)
}

// scanAmount finds the first line carrying one of the labels and parses
// its trailing amount.
func scanAmount(rawText string, labels, exclude []string) decimal.Decimal {
	for _, line := range strings.Split(rawText, "\n") {
		lower := strings.ToLower(line)
		if containsAny(lower, exclude) {
			continue
		}
		for _, label := range labels {
			if !strings.Contains(lower, label) {
				continue
			}
			// index and slice must use the same string: lower-casing can
			// change byte offsets for non-ASCII characters
			rest := lower[strings.Index(lower, label)+len(label):]
			if d := parse.Currency(rest); !d.IsZero() {
				return d
			}
		}
	}
	return decimal.Zero
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// findDate scans lines for a parseable date, preferring lines that are
// labeled as one.
func findDate(rawText string) *time.Time {
	lines := strings.Split(rawText, "\n")
	for _, line := range lines {
		lower := strings.ToLower(line)
		if idx := strings.Index(lower, "date"); idx >= 0 {
			rest := strings.TrimLeft(line[idx+len("date"):], ": \t")
			if t := parse.Date(rest); t != nil {
				return t
			}
		}
	}
	for _, line := range lines {
		for _, token := range strings.Fields(line) {
			if t := parse.Date(token); t != nil {
				return t
			}
		}
	}
	return nil
}

// shouldEnhance applies the fallback policy: low heuristic confidence or
// a required field missing.
func (p *Processor) shouldEnhance(r *ParsedReceipt) bool {
	return r.Confidence < p.cfg.EnhanceThreshold || r.MerchantName == "" || r.Total.IsZero()
}

// enhancePass runs the AI fallback and merges its result. Failures are
// logged and absorbed; the heuristic receipt is kept as-is.
func (p *Processor) enhancePass(ctx context.Context, rawText string, r *ParsedReceipt, filename string) {
	if p.aiLimit != nil {
		if err := p.aiLimit.Wait(ctx); err != nil {
			p.logger.Warn("enhancement skipped", zap.String("file", filename), zap.Error(err))
			return
		}
	}

	enhanced, err := p.enhancer.Enhance(ctx, rawText)
	if err != nil || enhanced == nil {
		p.logger.Warn("enhancement unavailable, keeping heuristic result",
			zap.String("file", filename), zap.Error(err))
		return
	}

	p.merge(r, enhanced)
}

// merge applies the AI result field by field: a field is replaced only
// when the heuristic one is empty/zero or the AI confidence is strictly
// higher than the heuristic confidence. Items are replaced only when the
// heuristic pass found none.
func (p *Processor) merge(r *ParsedReceipt, ai *enhance.Receipt) {
	aiWins := ai.Confidence > r.Confidence
	applied := false

	if ai.Merchant != "" && (r.MerchantName == "" || aiWins) {
		r.MerchantName = parse.FormatMerchantName(ai.Merchant)
		applied = true
	}
	if ai.Subtotal != 0 && (r.SubTotal.IsZero() || aiWins) {
		r.SubTotal = decimal.NewFromFloat(ai.Subtotal).Round(2)
		applied = true
	}
	if ai.Tax != 0 && (r.TotalTax.IsZero() || aiWins) {
		r.TotalTax = decimal.NewFromFloat(ai.Tax).Round(2)
		applied = true
	}
	if ai.Total != 0 && (r.Total.IsZero() || aiWins) {
		r.Total = decimal.NewFromFloat(ai.Total).Round(2)
		applied = true
	}
	if len(ai.Items) > 0 && len(r.ItemLines) == 0 {
		lines := make([]string, 0, len(ai.Items))
		for _, item := range ai.Items {
			if desc := strings.TrimSpace(item.Description); desc != "" {
				lines = append(lines, desc)
			}
		}
		if len(lines) > 0 {
			r.ItemLines = p.items.FilterByCategory(lines, r.Category)
			applied = true
		}
	}

	if applied {
		r.Enhanced = true
		if r.Category == lexicon.CategoryUnknown {
			r.Category = p.inferencer.Infer(r.MerchantName, r.ItemLines)
		}
		if ai.Confidence > r.Confidence {
			r.Confidence = ai.Confidence
		}
	}
}
