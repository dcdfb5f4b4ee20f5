// Package lexicon holds the read-only vocabulary that drives receipt
// heuristics: field aliases, vendor overrides, stop words, per-category
// keyword tables and the vendor SKU pattern. A Lexicon is built once per
// batch and shared by reference; it is never mutated after Load.
package lexicon

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Category is an expense category label drawn from a closed set.
type Category string

const (
	CategoryRestaurant  Category = "Restaurant"
	CategorySupplies    Category = "Supplies"
	CategoryFuel        Category = "Fuel"
	CategoryCardPayment Category = "CardPayment"
	CategoryUnknown     Category = "Unknown"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryRestaurant,
	CategorySupplies,
	CategoryFuel,
	CategoryCardPayment,
	CategoryUnknown,
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// KeywordTable identifies which keyword table an entry belongs to.
type KeywordTable string

const (
	TableAllowList    KeywordTable = "allow_list"
	TableItemKeywords KeywordTable = "item_keywords"
)

// KeywordEntry is the single typed shape shared by the allow-list and
// item-keyword tables.
type KeywordEntry struct {
	Category Category
	Keyword  string
	Active   bool
}

// ErrConfiguration indicates the backing store references an unknown
// category or carries an invalid pattern. Fatal at load time.
var ErrConfiguration = errors.New("lexicon configuration error")

// Store is the narrow read-only interface a Lexicon is loaded from.
type Store interface {
	FieldAliases(ctx context.Context) (map[string][]string, error)
	VendorOverrides(ctx context.Context) (map[string]string, error)
	StopWords(ctx context.Context) ([]string, error)
	// Keywords returns the entries of one keyword table for one category.
	Keywords(ctx context.Context, table KeywordTable, category Category) ([]KeywordEntry, error)
	SKUPattern(ctx context.Context) (string, error)
}

// Lexicon is the immutable vocabulary bundle.
type Lexicon struct {
	fieldAliases    map[string][]string
	vendorOverrides map[string]Category
	vendorKeys      []string // lower-cased override keys, sorted for deterministic scans
	stopWords       map[string]struct{}
	allowLists      map[Category]map[string]struct{}
	itemKeywords    map[Category]map[string]struct{}
	skuPattern      *regexp.Regexp
}

// Load builds a Lexicon from the store, validating every category
// reference against the closed set. The returned Lexicon is read-only.
func Load(ctx context.Context, store Store) (*Lexicon, error) {
	aliases, err := store.FieldAliases(ctx)
	if err != nil {
		return nil, fmt.Errorf("load field aliases: %w", err)
	}

	rawOverrides, err := store.VendorOverrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("load vendor overrides: %w", err)
	}
	overrides := make(map[string]Category, len(rawOverrides))
	keys := make([]string, 0, len(rawOverrides))
	for vendor, cat := range rawOverrides {
		category := Category(cat)
		if !category.Valid() {
			return nil, fmt.Errorf("vendor override %q references category %q: %w", vendor, cat, ErrConfiguration)
		}
		key := strings.ToLower(strings.TrimSpace(vendor))
		overrides[key] = category
		keys = append(keys, key)
	}
	sort.Strings(keys)

	words, err := store.StopWords(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stop words: %w", err)
	}
	stopWords := make(map[string]struct{}, len(words))
	for _, w := range words {
		stopWords[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}

	allowLists, err := loadKeywordTable(ctx, store, TableAllowList)
	if err != nil {
		return nil, err
	}
	itemKeywords, err := loadKeywordTable(ctx, store, TableItemKeywords)
	if err != nil {
		return nil, err
	}

	pattern, err := store.SKUPattern(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sku pattern: %w", err)
	}
	sku, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile sku pattern %q: %v: %w", pattern, err, ErrConfiguration)
	}

	return &Lexicon{
		fieldAliases:    aliases,
		vendorOverrides: overrides,
		vendorKeys:      keys,
		stopWords:       stopWords,
		allowLists:      allowLists,
		itemKeywords:    itemKeywords,
		skuPattern:      sku,
	}, nil
}

// loadKeywordTable pulls one table for every category through the single
// typed KeywordEntry shape. Inactive entries are skipped.
func loadKeywordTable(ctx context.Context, store Store, table KeywordTable) (map[Category]map[string]struct{}, error) {
	out := make(map[Category]map[string]struct{})
	for _, cat := range Categories {
		entries, err := store.Keywords(ctx, table, cat)
		if err != nil {
			return nil, fmt.Errorf("load %s for %s: %w", table, cat, err)
		}
		for _, e := range entries {
			if !e.Category.Valid() {
				return nil, fmt.Errorf("%s entry %q references category %q: %w", table, e.Keyword, e.Category, ErrConfiguration)
			}
			if !e.Active {
				continue
			}
			set := out[e.Category]
			if set == nil {
				set = make(map[string]struct{})
				out[e.Category] = set
			}
			set[strings.ToLower(strings.TrimSpace(e.Keyword))] = struct{}{}
		}
	}
	return out, nil
}

// Aliases returns the known aliases for a canonical field name, in
// configured order.
func (l *Lexicon) Aliases(canonical string) []string {
	return l.fieldAliases[canonical]
}

// VendorOverride returns the category mapped for the first override key
// contained in merchant (case-insensitive), if any.
func (l *Lexicon) VendorOverride(merchant string) (Category, bool) {
	lower := strings.ToLower(merchant)
	for _, key := range l.vendorKeys {
		if strings.Contains(lower, key) {
			return l.vendorOverrides[key], true
		}
	}
	return CategoryUnknown, false
}

// IsStopWord reports whether word (case-insensitive) is a stop word.
func (l *Lexicon) IsStopWord(word string) bool {
	_, ok := l.stopWords[strings.ToLower(word)]
	return ok
}

// AllowList returns the allow-list terms for a category. May be empty.
func (l *Lexicon) AllowList(cat Category) map[string]struct{} {
	return l.allowLists[cat]
}

// ItemKeywords returns the item-keyword terms for a category.
func (l *Lexicon) ItemKeywords(cat Category) map[string]struct{} {
	return l.itemKeywords[cat]
}

// SKUPattern returns the compiled vendor SKU pattern.
func (l *Lexicon) SKUPattern() *regexp.Regexp {
	return l.skuPattern
}
