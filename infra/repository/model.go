// Package repository implements the persistence interfaces over gorm and
// postgres. Schema DDL lives in infra/migrations; these models only map rows.
package repository

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatusSynced marks a row that reached the server through a sync push.
const SyncStatusSynced = "synced"

// SyncColumns are the bookkeeping fields every owner-scoped synced row carries.
type SyncColumns struct {
	ID         uuid.UUID `gorm:"primaryKey"`
	OwnerID    uuid.UUID `gorm:"index"`
	LocalID    string
	SyncStatus string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Category row; unique per (owner_id, name).
type Category struct {
	SyncColumns
	Name      string
	Icon      string
	Color     string
	IsDefault bool
}

// Subcategory row; parent resolved from the pushed local id, NULL when
// dangling.
type Subcategory struct {
	SyncColumns
	Name             string
	ParentCategoryID *uuid.UUID
}

// Merchant row.
type Merchant struct {
	SyncColumns
	Name         string
	NIF          *string `gorm:"column:nif"`
	Address      *string
	IsSolidified bool
}

// Product row. PriceHistory is the client's append-only history as jsonb.
type Product struct {
	SyncColumns
	Name                    string
	CategoryID              *uuid.UUID
	SubcategoryID           *uuid.UUID
	DefaultPrice            *float64
	Barcode                 *string
	IsWeighted              bool
	ExcludeFromPriceHistory bool
	IsSolidified            bool
	PriceHistory            []byte `gorm:"type:jsonb"`
}

// Receipt row. Date keeps the client's ISO string; lexical order matches
// chronological order.
type Receipt struct {
	SyncColumns
	MerchantID     *uuid.UUID
	Date           string
	Time           *string
	ReceiptNumber  *string
	CustomerNIF    *string `gorm:"column:customer_nif"`
	HasCustomerNIF bool    `gorm:"column:has_customer_nif"`
	Total          float64
	Notes          *string
}

// ReceiptItem row, inserted in the receipt fan-out.
type ReceiptItem struct {
	ID          uuid.UUID `gorm:"primaryKey"`
	ReceiptID   uuid.UUID `gorm:"index"`
	LocalID     string
	ProductID   *uuid.UUID
	ProductName string
	Quantity    float64
	UnitPrice   float64
	Total       float64
}

// CommunityProduct row. NameKey is the lowercased natural key backing the
// unique constraint and the ON CONFLICT target.
type CommunityProduct struct {
	ID                uuid.UUID `gorm:"primaryKey"`
	Name              string
	NameKey           string `gorm:"uniqueIndex"`
	Barcode           *string
	CategoryHint      *string
	TrustScore        int
	ContributionCount int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CommunityMerchant row; unique on (name_key, nif_key).
type CommunityMerchant struct {
	ID                uuid.UUID `gorm:"primaryKey"`
	Name              string
	NameKey           string  `gorm:"uniqueIndex:idx_community_merchants_key"`
	NIF               *string `gorm:"column:nif"`
	NIFKey            string  `gorm:"column:nif_key;uniqueIndex:idx_community_merchants_key"`
	Address           *string
	TrustScore        int
	ContributionCount int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Profile row.
type Profile struct {
	ID               uuid.UUID `gorm:"primaryKey"`
	Username         string
	CommunityEnabled bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
