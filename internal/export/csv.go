// Package export serializes processed receipts to CSV and delivers the
// export by email.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Row is the flat projection of one processed receipt, the unit the CSV
// exporter serializes.
type Row struct {
	ID              string
	SourceFile      string
	ProcessedAt     time.Time
	MerchantName    string
	MerchantCity    string
	MerchantAddress string
	TransactionDate *time.Time
	SubTotal        decimal.Decimal
	TotalTax        decimal.Decimal
	Total           decimal.Decimal
	Category        string
	CardBrand       string
	MaskedCardLast4 string
	ItemLines       []string
	Confidence      float64
}

// Header is the fixed CSV column set, in order.
var Header = []string{
	"id",
	"source_file",
	"processed_at",
	"merchant_name",
	"merchant_city",
	"merchant_address",
	"transaction_date",
	"sub_total",
	"total_tax",
	"total",
	"category",
	"card_brand",
	"masked_card",
	"items",
	"confidence",
}

// WriteCSV streams rows to w as UTF-8 CSV without a byte-order mark:
// one header row, one row per receipt, invariant dot-decimal amounts and
// ISO dates. Safe for batches of hundreds of rows; nothing is buffered
// beyond the csv writer's own line buffer.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.ID,
			row.SourceFile,
			row.ProcessedAt.UTC().Format(time.RFC3339),
			row.MerchantName,
			row.MerchantCity,
			row.MerchantAddress,
			formatDate(row.TransactionDate),
			row.SubTotal.StringFixed(2),
			row.TotalTax.StringFixed(2),
			row.Total.StringFixed(2),
			row.Category,
			row.CardBrand,
			row.MaskedCardLast4,
			strings.Join(row.ItemLines, "; "),
			strconv.FormatFloat(row.Confidence, 'f', 2, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %s: %w", row.SourceFile, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
