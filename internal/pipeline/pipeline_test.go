package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsledger/receiptd/internal/enhance"
	"github.com/opsledger/receiptd/internal/lexicon"
	"github.com/opsledger/receiptd/internal/ocr"
)

const partsReceiptText = `NAPA AUTO PARTS #204
123 MAIN ST
SASKATOON, SK S7K 1N2
DATE: 03/15/2024
FIL-1057 OIL FILTER 12.99
SHOP TOWELS 6.49
SUBTOTAL 10.00
HST 1.30
TOTAL 11.30
VISA **** **** **** 4242
THANK YOU`

type stubNormalizer struct {
	failOn string
}

func (s stubNormalizer) Normalize(data []byte, filename string) ([]byte, error) {
	if s.failOn != "" && filename == s.failOn {
		return nil, errors.New("undecodable image")
	}
	return data, nil
}

type stubAnalyzer struct {
	doc *ocr.AnalyzedDocument
	err error
}

func (s *stubAnalyzer) Analyze(ctx context.Context, imageBytes []byte, modelID string) (*ocr.AnalyzedDocument, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.doc, nil
}

type stubEnhancer struct {
	receipt *enhance.Receipt
	err     error
	called  bool
}

func (s *stubEnhancer) Enhance(ctx context.Context, rawText string) (*enhance.Receipt, error) {
	s.called = true
	if s.err != nil {
		return nil, s.err
	}
	return s.receipt, nil
}

func testLexicon(t *testing.T) *lexicon.Lexicon {
	t.Helper()
	lex, err := lexicon.Load(context.Background(), lexicon.DefaultStore())
	require.NoError(t, err)
	return lex
}

func newTestProcessor(t *testing.T, analyzer Analyzer, enhancer Enhancer) *Processor {
	t.Helper()
	return NewProcessor(Config{ModelID: "prebuilt-receipt"}, testLexicon(t),
		stubNormalizer{}, analyzer, enhancer, nil, nil)
}

func TestProcessHeuristicPass(t *testing.T) {
	analyzer := &stubAnalyzer{doc: &ocr.AnalyzedDocument{
		Fields:  map[string]string{"Merchant": "NAPA AUTO PARTS"},
		RawText: partsReceiptText,
	}}
	enhancer := &stubEnhancer{}
	p := newTestProcessor(t, analyzer, enhancer)

	r, err := p.Process(context.Background(), []byte("img"), "receipt.jpg")
	require.NoError(t, err)

	assert.Equal(t, "Napa Auto Parts", r.MerchantName)
	assert.Equal(t, "SASKATOON", r.MerchantCity)
	require.NotNil(t, r.TransactionDate)
	assert.Equal(t, "2024-03-15", r.TransactionDate.Format("2006-01-02"))

	assert.True(t, r.SubTotal.Equal(decimal.RequireFromString("10.00")), "subtotal %s", r.SubTotal)
	assert.True(t, r.TotalTax.Equal(decimal.RequireFromString("1.30")), "tax %s", r.TotalTax)
	assert.True(t, r.Total.Equal(decimal.RequireFromString("11.30")), "total %s", r.Total)

	assert.Equal(t, "**** **** **** 4242", r.MaskedCardLast4)
	assert.Equal(t, "Visa", r.CardBrand)

	assert.Equal(t, lexicon.CategorySupplies, r.Category)
	assert.Equal(t, []string{"FIL-1057 OIL FILTER", "SHOP TOWELS"}, r.ItemLines)

	assert.InDelta(t, 1.0, r.Confidence, 0.001)
	assert.False(t, r.Enhanced)
	assert.False(t, enhancer.called, "confident heuristic result must not trigger the fallback")
}

func TestProcessNormalizeFailure(t *testing.T) {
	p := NewProcessor(Config{}, testLexicon(t),
		stubNormalizer{failOn: "corrupt.bin"}, &stubAnalyzer{}, nil, nil, nil)

	_, err := p.Process(context.Background(), []byte{0x00}, "corrupt.bin")
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeUnsupportedImage, perr.Code)
	assert.False(t, perr.Retryable)
}

func TestProcessAnalyzeFailureIsRetryable(t *testing.T) {
	p := newTestProcessor(t, &stubAnalyzer{err: errors.New("503 from service")}, nil)

	_, err := p.Process(context.Background(), []byte("img"), "receipt.jpg")
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeAnalysisFailed, perr.Code)
	assert.True(t, perr.Retryable)
}

func TestProcessEnhancementApplied(t *testing.T) {
	analyzer := &stubAnalyzer{doc: &ocr.AnalyzedDocument{RawText: "smudged thermal paper"}}
	enhancer := &stubEnhancer{receipt: &enhance.Receipt{
		Merchant: "Tim Hortons",
		Items: []enhance.Item{
			{Description: "COFFEE", Price: 2.10},
			{Description: "DONUT", Price: 1.49},
		},
		Subtotal:   10.00,
		Tax:        1.30,
		Total:      11.30,
		Confidence: 0.9,
	}}
	p := newTestProcessor(t, analyzer, enhancer)

	r, err := p.Process(context.Background(), []byte("img"), "blurry.jpg")
	require.NoError(t, err)
	require.True(t, enhancer.called)

	assert.True(t, r.Enhanced)
	assert.Equal(t, "Tim Hortons", r.MerchantName)
	assert.True(t, r.Total.Equal(decimal.RequireFromString("11.30")))
	assert.Equal(t, []string{"COFFEE", "DONUT"}, r.ItemLines)
	assert.Equal(t, lexicon.CategoryRestaurant, r.Category)
	assert.InDelta(t, 0.9, r.Confidence, 0.001)
}

func TestProcessEnhancementFailureKeepsHeuristic(t *testing.T) {
	analyzer := &stubAnalyzer{doc: &ocr.AnalyzedDocument{RawText: "smudged thermal paper"}}
	enhancer := &stubEnhancer{err: enhance.ErrUnavailable}
	p := newTestProcessor(t, analyzer, enhancer)

	r, err := p.Process(context.Background(), []byte("img"), "blurry.jpg")
	require.NoError(t, err)
	require.True(t, enhancer.called)

	assert.False(t, r.Enhanced)
	assert.Empty(t, r.MerchantName)
	assert.True(t, r.Total.IsZero())
	assert.Equal(t, lexicon.CategoryUnknown, r.Category)
}

func TestScanAmountNonASCIILine(t *testing.T) {
	// "Ⱥ" grows from two bytes to three when lower-cased; the labeled
	// amount must still be sliced correctly.
	got := scanAmount("ȺȺ TOTAL 90.00", []string{"total"}, []string{"sub"})
	assert.True(t, got.Equal(decimal.RequireFromString("90.00")), "got %s", got)
}

func TestMergePrefersHeuristicWhenMoreConfident(t *testing.T) {
	analyzer := &stubAnalyzer{doc: &ocr.AnalyzedDocument{
		Fields: map[string]string{"MerchantName": "SHELL CANADA"},
		RawText: strings.Join([]string{
			"SHELL CANADA",
			"DIESEL 45.2 L 65.00",
			"TOTAL 65.00",
		}, "\n"),
	}}
	// Confident heuristic fields survive a lower-confidence AI result;
	// only gaps are filled.
	enhancer := &stubEnhancer{receipt: &enhance.Receipt{
		Merchant:   "Shall Canda",
		Subtotal:   57.52,
		Total:      64.00,
		Confidence: 0.5,
	}}
	p := NewProcessor(Config{EnhanceThreshold: 0.99}, testLexicon(t),
		stubNormalizer{}, analyzer, enhancer, nil, nil)

	r, err := p.Process(context.Background(), []byte("img"), "fuel.jpg")
	require.NoError(t, err)
	require.True(t, enhancer.called)

	assert.Equal(t, "Shell Canada", r.MerchantName)
	assert.True(t, r.Total.Equal(decimal.RequireFromString("65.00")), "total %s", r.Total)
	assert.True(t, r.SubTotal.Equal(decimal.RequireFromString("57.52")), "gap filled from AI, got %s", r.SubTotal)
	assert.True(t, r.Enhanced)
	assert.Equal(t, lexicon.CategoryFuel, r.Category)
}
