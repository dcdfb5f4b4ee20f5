package lexicon

// defaultSKUPattern matches vendor part/SKU codes such as "BAT-24F",
// "0556677" or "NGK7090" at the start of an item line.
const defaultSKUPattern = `\b[A-Z0-9]{2,4}-?[A-Z0-9]{2,6}\b`

// DefaultStore returns the built-in vocabulary. It covers common OCR key
// variants and the vendors seen most often on shop receipts; deployments
// with their own vocabulary load a FileStore instead.
func DefaultStore() *MemoryStore {
	return &MemoryStore{
		Aliases: map[string][]string{
			"MerchantName":    {"Merchant", "VendorName", "StoreName", "Supplier"},
			"MerchantAddress": {"Address", "VendorAddress", "StoreAddress"},
			"MerchantCity":    {"City", "VendorCity"},
			"TransactionDate": {"Date", "InvoiceDate", "PurchaseDate", "ReceiptDate"},
			"SubTotal":        {"Subtotal", "Sub-Total", "NetAmount"},
			"TotalTax":        {"Tax", "HST", "GST", "SalesTax"},
			"Total":           {"AmountDue", "GrandTotal", "InvoiceTotal", "BalanceDue"},
		},
		Overrides: map[string]string{
			"tim hortons":    string(CategoryRestaurant),
			"mcdonald":       string(CategoryRestaurant),
			"subway":         string(CategoryRestaurant),
			"a&w":            string(CategoryRestaurant),
			"petro-canada":   string(CategoryFuel),
			"petro canada":   string(CategoryFuel),
			"esso":           string(CategoryFuel),
			"shell":          string(CategoryFuel),
			"husky":          string(CategoryFuel),
			"napa":           string(CategorySupplies),
			"canadian tire":  string(CategorySupplies),
			"princess auto":  string(CategorySupplies),
			"home depot":     string(CategorySupplies),
			"fastenal":       string(CategorySupplies),
			"acklands":       string(CategorySupplies),
		},
		Stop: []string{
			"subtotal", "total", "tax", "hst", "gst", "pst", "qst",
			"change", "cash", "tender", "balance", "approved", "auth",
			"invoice", "cashier", "register", "transaction", "thank",
		},
		Entries: map[KeywordTable][]KeywordEntry{
			TableItemKeywords: {
				{Category: CategoryRestaurant, Keyword: "coffee", Active: true},
				{Category: CategoryRestaurant, Keyword: "latte", Active: true},
				{Category: CategoryRestaurant, Keyword: "donut", Active: true},
				{Category: CategoryRestaurant, Keyword: "bagel", Active: true},
				{Category: CategoryRestaurant, Keyword: "sandwich", Active: true},
				{Category: CategoryRestaurant, Keyword: "burger", Active: true},
				{Category: CategoryRestaurant, Keyword: "fries", Active: true},
				{Category: CategoryRestaurant, Keyword: "combo", Active: true},
				{Category: CategorySupplies, Keyword: "filter", Active: true},
				{Category: CategorySupplies, Keyword: "bolt", Active: true},
				{Category: CategorySupplies, Keyword: "fitting", Active: true},
				{Category: CategorySupplies, Keyword: "grease", Active: true},
				{Category: CategorySupplies, Keyword: "oil", Active: true},
				{Category: CategorySupplies, Keyword: "battery", Active: true},
				{Category: CategorySupplies, Keyword: "hose", Active: true},
				{Category: CategorySupplies, Keyword: "wrench", Active: true},
			},
			TableAllowList: {
				{Category: CategoryFuel, Keyword: "diesel", Active: true},
				{Category: CategoryFuel, Keyword: "regular", Active: true},
				{Category: CategoryFuel, Keyword: "premium", Active: true},
				{Category: CategoryFuel, Keyword: "unleaded", Active: true},
				{Category: CategoryFuel, Keyword: "litre", Active: true},
				{Category: CategoryFuel, Keyword: "fuel", Active: true},
			},
		},
		SKU: defaultSKUPattern,
	}
}
