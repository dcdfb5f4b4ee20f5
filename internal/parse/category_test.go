package parse

import (
	"context"
	"testing"

	"github.com/opsledger/receiptd/internal/lexicon"
)

func TestInferVendorOverridePrecedence(t *testing.T) {
	store := lexicon.DefaultStore()
	store.Overrides["bobs garage"] = string(lexicon.CategorySupplies)
	lex, err := lexicon.Load(context.Background(), store)
	if err != nil {
		t.Fatal(err)
	}
	in := NewInferencer(lex)

	// Item content screams Restaurant; the override still wins.
	got := in.Infer("BOBS GARAGE LTD", []string{"COFFEE 1.99", "DONUT 1.49"})
	if got != lexicon.CategorySupplies {
		t.Errorf("Infer() = %s, want Supplies via vendor override", got)
	}
}

func TestInferPrecedence(t *testing.T) {
	in := NewInferencer(testLexicon(t))

	tests := []struct {
		name     string
		merchant string
		items    []string
		want     lexicon.Category
	}{
		{
			name:     "item keywords pick restaurant",
			merchant: "SOME UNLISTED PLACE #123",
			items:    []string{"COFFEE 1.99", "DONUT 1.49"},
			want:     lexicon.CategoryRestaurant,
		},
		{
			name:     "item keywords pick supplies",
			merchant: "SOME UNLISTED PLACE",
			items:    []string{"AIR FILTER", "GREASE GUN"},
			want:     lexicon.CategorySupplies,
		},
		{
			name:     "fuel merchant regex",
			merchant: "ULTRAMAR 1042",
			items:    nil,
			want:     lexicon.CategoryFuel,
		},
		{
			name:     "supplies merchant regex",
			merchant: "ACME INDUSTRIAL EQUIPMENT",
			items:    nil,
			want:     lexicon.CategorySupplies,
		},
		{
			name:     "restaurant merchant regex",
			merchant: "RIVERSIDE BISTRO",
			items:    nil,
			want:     lexicon.CategoryRestaurant,
		},
		{
			name:     "default unknown",
			merchant: "MYSTERY VENDOR",
			items:    []string{"WIDGET"},
			want:     lexicon.CategoryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := in.Infer(tt.merchant, tt.items); got != tt.want {
				t.Errorf("Infer(%q, %v) = %s, want %s", tt.merchant, tt.items, got, tt.want)
			}
		})
	}
}

func TestInferTimHortons(t *testing.T) {
	// No override assumed: strip Tim Hortons from the vendor map so the
	// item-keyword signal carries the classification.
	store := lexicon.DefaultStore()
	delete(store.Overrides, "tim hortons")
	lex, err := lexicon.Load(context.Background(), store)
	if err != nil {
		t.Fatal(err)
	}
	in := NewInferencer(lex)

	got := in.Infer("TIM HORTONS #123", []string{"COFFEE 1.99", "DONUT 1.49"})
	if got != lexicon.CategoryRestaurant {
		t.Errorf("Infer() = %s, want Restaurant via item keywords", got)
	}
}

func TestFromBrandOrVendor(t *testing.T) {
	in := NewInferencer(testLexicon(t))

	tests := []struct {
		name     string
		brand    string
		merchant string
		want     lexicon.Category
	}{
		{"vendor override first", "Visa", "TIM HORTONS 99", lexicon.CategoryRestaurant},
		{"card brand", "Visa", "UNKNOWN VENDOR", lexicon.CategoryCardPayment},
		{"mastercard", "Mastercard", "UNKNOWN VENDOR", lexicon.CategoryCardPayment},
		{"debit falls through", "Debit", "UNKNOWN VENDOR", lexicon.CategorySupplies},
		{"no brand", "", "UNKNOWN VENDOR", lexicon.CategorySupplies},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := in.FromBrandOrVendor(tt.brand, tt.merchant); got != tt.want {
				t.Errorf("FromBrandOrVendor(%q, %q) = %s, want %s", tt.brand, tt.merchant, got, tt.want)
			}
		})
	}
}
