// Package domain holds the client-shape entities of the expense tracker and
// the sentinel errors shared across services. Entities carry JSON tags because
// the same shapes round-trip the local store blobs, the sync wire format and
// the backup envelope.
package domain

import "math"

// Category groups products for reporting. Seeded defaults carry IsDefault.
// Unique per (owner, name).
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon,omitempty"`
	Color     string `json:"color,omitempty"`
	IsDefault bool   `json:"isDefault,omitempty"`
}

// Subcategory is always owned transitively through its parent category.
// A subcategory no product references is orphaned and gets pruned.
type Subcategory struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	ParentCategoryID string `json:"parentCategoryId"`
}

// Merchant is either a user-confirmed record (IsSolidified) or a limbo record
// auto-created from free-text receipt entry. NIF, when present, uniquely
// identifies the merchant.
type Merchant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	NIF          string `json:"nif,omitempty"`
	Address      string `json:"address,omitempty"`
	IsSolidified bool   `json:"isSolidified"`
}

// PricePoint is one observation in a product's price history.
type PricePoint struct {
	Date       string  `json:"date"`
	Price      float64 `json:"price"`
	MerchantID string  `json:"merchantId,omitempty"`
}

// Product shares the limbo/solidified duality with Merchant. PriceHistory is
// append-only, newest first.
type Product struct {
	ID                      string       `json:"id"`
	Name                    string       `json:"name"`
	CategoryID              string       `json:"categoryId,omitempty"`
	SubcategoryID           string       `json:"subcategoryId,omitempty"`
	DefaultPrice            *float64     `json:"defaultPrice,omitempty"`
	Barcode                 string       `json:"barcode,omitempty"`
	IsWeighted              bool         `json:"isWeighted,omitempty"`
	ExcludeFromPriceHistory bool         `json:"excludeFromPriceHistory,omitempty"`
	IsSolidified            bool         `json:"isSolidified"`
	PriceHistory            []PricePoint `json:"priceHistory,omitempty"`
}

// ReceiptItem snapshots the product name at entry time; the line total is
// fixed at construction and independently editable afterwards.
type ReceiptItem struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Total       float64 `json:"total"`
}

// Receipt is an itemized purchase. Total may diverge from the item sum; an
// explicit user total always wins.
type Receipt struct {
	ID             string        `json:"id"`
	MerchantID     string        `json:"merchantId"`
	Date           string        `json:"date"`
	Time           string        `json:"time,omitempty"`
	ReceiptNumber  string        `json:"receiptNumber,omitempty"`
	CustomerNIF    string        `json:"customerNif,omitempty"`
	HasCustomerNIF bool          `json:"hasCustomerNif"`
	Items          []ReceiptItem `json:"items"`
	Total          float64       `json:"total"`
	Notes          string        `json:"notes,omitempty"`
}

// CommunityProduct is a row in the global, opt-in product directory.
// Unique on name (case-insensitive).
type CommunityProduct struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Barcode           string `json:"barcode,omitempty"`
	CategoryHint      string `json:"categoryHint,omitempty"`
	TrustScore        int    `json:"trustScore"`
	ContributionCount int    `json:"contributionCount"`
}

// CommunityMerchant is a row in the global merchant directory.
// Unique on (name, nif), case-insensitive on name.
type CommunityMerchant struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	NIF               string `json:"nif,omitempty"`
	Address           string `json:"address,omitempty"`
	TrustScore        int    `json:"trustScore"`
	ContributionCount int    `json:"contributionCount"`
}

// Round2 rounds a monetary amount to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// NewReceiptItem builds a receipt item with the line total derived from
// quantity and unit price. The invariant holds at construction only.
func NewReceiptItem(id, productID, productName string, quantity, unitPrice float64) ReceiptItem {
	return ReceiptItem{
		ID:          id,
		ProductID:   productID,
		ProductName: productName,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Total:       Round2(quantity * unitPrice),
	}
}

// ItemSum returns the sum of the receipt's line totals, used as the default
// receipt total only when the user supplied none.
func (r Receipt) ItemSum() float64 {
	var sum float64
	for _, it := range r.Items {
		sum += it.Total
	}
	return Round2(sum)
}
