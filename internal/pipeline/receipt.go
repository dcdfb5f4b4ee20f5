package pipeline

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/opsledger/receiptd/internal/export"
	"github.com/opsledger/receiptd/internal/lexicon"
)

// Canonical field names asked of the field resolver. The lexicon maps
// these to whatever keys the OCR service actually emitted.
const (
	FieldMerchantName    = "MerchantName"
	FieldMerchantAddress = "MerchantAddress"
	FieldMerchantCity    = "MerchantCity"
	FieldTransactionDate = "TransactionDate"
	FieldSubTotal        = "SubTotal"
	FieldTotalTax        = "TotalTax"
	FieldTotal           = "Total"
)

// ParsedReceipt is the structured result for one receipt. Built by the
// heuristic pass; individual fields may be overwritten by the AI
// fallback under the merge policy.
type ParsedReceipt struct {
	MerchantName    string
	MerchantCity    string
	MerchantAddress string
	TransactionDate *time.Time
	SubTotal        decimal.Decimal
	TotalTax        decimal.Decimal
	Total           decimal.Decimal
	Category        lexicon.Category
	CardBrand       string
	MaskedCardLast4 string
	ItemLines       []string
	Confidence      float64
	Enhanced        bool // true when any AI field was applied
}

// ToRow projects the receipt into its CSV export shape.
func (r *ParsedReceipt) ToRow(id, sourceFile string, processedAt time.Time) export.Row {
	return export.Row{
		ID:              id,
		SourceFile:      sourceFile,
		ProcessedAt:     processedAt,
		MerchantName:    r.MerchantName,
		MerchantCity:    r.MerchantCity,
		MerchantAddress: r.MerchantAddress,
		TransactionDate: r.TransactionDate,
		SubTotal:        r.SubTotal,
		TotalTax:        r.TotalTax,
		Total:           r.Total,
		Category:        string(r.Category),
		CardBrand:       r.CardBrand,
		MaskedCardLast4: r.MaskedCardLast4,
		ItemLines:       r.ItemLines,
		Confidence:      r.Confidence,
	}
}

// score rates a heuristic extraction in [0,1]. The subtotal+tax vs total
// comparison is a plausibility signal only; receipts are taxed unevenly
// and exact equality is never enforced.
func score(r *ParsedReceipt) float64 {
	conf := 1.0
	if r.MerchantName == "" {
		conf -= 0.25
	}
	if r.Total.IsZero() {
		conf -= 0.30
	}
	if r.TransactionDate == nil {
		conf -= 0.15
	}
	if len(r.ItemLines) == 0 {
		conf -= 0.15
	}
	if !r.Total.IsZero() && !r.SubTotal.IsZero() {
		sum := r.SubTotal.Add(r.TotalTax)
		diff := sum.Sub(r.Total).Abs()
		tolerance := r.Total.Abs().Mul(decimal.NewFromFloat(0.05))
		if diff.GreaterThan(tolerance) {
			conf -= 0.10
		}
	}
	if conf < 0 {
		return 0
	}
	return conf
}
