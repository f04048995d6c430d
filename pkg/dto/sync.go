// Package dto defines the wire shapes moved between the local-first client,
// the sync API and the community directory.
package dto

import (
	"encoding/json"
	"time"

	"github.com/nuno2msilva/pocket-keeper/pkg/domain"
)

// EntityType tags a sync item with the collection it belongs to.
type EntityType string

const (
	EntityCategory    EntityType = "category"
	EntitySubcategory EntityType = "subcategory"
	EntityMerchant    EntityType = "merchant"
	EntityProduct     EntityType = "product"
	EntityReceipt     EntityType = "receipt"
)

// Valid reports whether t is one of the five synced collections.
func (t EntityType) Valid() bool {
	switch t {
	case EntityCategory, EntitySubcategory, EntityMerchant, EntityProduct, EntityReceipt:
		return true
	}
	return false
}

// Operation is the mutation a push item applies.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// PushItem is one batched local mutation. Data holds the entity payload for
// create/update and is decoded per EntityType at the service boundary.
type PushItem struct {
	EntityType     EntityType      `json:"entityType" validate:"required"`
	EntityID       string          `json:"entityId" validate:"required"`
	Operation      Operation       `json:"operation" validate:"required,oneof=create update delete"`
	Data           json.RawMessage `json:"data,omitempty"`
	LocalTimestamp time.Time       `json:"localTimestamp"`
}

// PushResult reports the outcome for one item, aligned to input order.
// Failures are captured here, never thrown out of the batch.
type PushResult struct {
	EntityID string `json:"entityId"`
	Success  bool   `json:"success"`
	ServerID string `json:"serverId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SyncedCategory is a pulled category carrying both the client id (local when
// known) and the authoritative server id.
type SyncedCategory struct {
	domain.Category
	ServerID  string    `json:"serverId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SyncedSubcategory mirrors SyncedCategory for subcategories.
type SyncedSubcategory struct {
	domain.Subcategory
	ServerID  string    `json:"serverId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SyncedMerchant mirrors SyncedCategory for merchants.
type SyncedMerchant struct {
	domain.Merchant
	ServerID  string    `json:"serverId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SyncedProduct mirrors SyncedCategory for products.
type SyncedProduct struct {
	domain.Product
	ServerID  string    `json:"serverId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SyncedReceipt carries its items aggregated server-side.
type SyncedReceipt struct {
	domain.Receipt
	ServerID  string    `json:"serverId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PullResponse is the delta (or full snapshot) for one owner across the five
// synced collections.
type PullResponse struct {
	Categories    []SyncedCategory    `json:"categories"`
	Subcategories []SyncedSubcategory `json:"subcategories"`
	Merchants     []SyncedMerchant    `json:"merchants"`
	Products      []SyncedProduct     `json:"products"`
	Receipts      []SyncedReceipt     `json:"receipts"`
	SyncTimestamp time.Time           `json:"syncTimestamp"`
}

// CollectionStatus summarizes one server-side collection.
type CollectionStatus struct {
	Count         int64      `json:"count"`
	LastUpdatedAt *time.Time `json:"lastUpdatedAt,omitempty"`
}

// SyncStatus lets the client decide whether a pull is worthwhile.
type SyncStatus struct {
	Collections map[EntityType]CollectionStatus `json:"collections"`
}
