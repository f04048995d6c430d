package resolver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nuno2msilva/pocket-keeper/pkg/domain"
	"github.com/nuno2msilva/pocket-keeper/pkg/dto"
	"github.com/nuno2msilva/pocket-keeper/pkg/localstore"
)

// AddReceipt stores a new receipt and queues it for sync. When the user
// supplied no explicit total the item sum is used as the default. Each priced
// item is appended to its product's price history.
func (r *Resolver) AddReceipt(receipt domain.Receipt) (domain.Receipt, error) {
	if receipt.ID == "" {
		receipt.ID = r.store.GenerateID()
	}
	if receipt.Total == 0 {
		receipt.Total = receipt.ItemSum()
	}
	receipts, err := r.store.Receipts()
	if err != nil {
		return domain.Receipt{}, err
	}
	if err := r.store.SetReceipts(append(receipts, receipt)); err != nil {
		return domain.Receipt{}, err
	}
	for _, item := range receipt.Items {
		if err := r.RecordPrice(item.ProductID, receipt.Date, item.UnitPrice, receipt.MerchantID); err != nil {
			return domain.Receipt{}, err
		}
	}
	return receipt, enqueueUpsert(r.store, "receipt", receipt.ID, receipt, true)
}

// DeleteReceipt removes a receipt and queues the deletion. The merchants and
// products it referenced are left alone.
func (r *Resolver) DeleteReceipt(id string) error {
	receipts, err := r.store.Receipts()
	if err != nil {
		return err
	}
	kept := receipts[:0]
	for _, rc := range receipts {
		if rc.ID != id {
			kept = append(kept, rc)
		}
	}
	if len(kept) == len(receipts) {
		return fmt.Errorf("receipt %s: %w", id, domain.ErrNotFound)
	}
	if err := r.store.SetReceipts(kept); err != nil {
		return err
	}
	return r.store.Enqueue(dto.PushItem{
		EntityType:     dto.EntityReceipt,
		EntityID:       id,
		Operation:      dto.OpDelete,
		LocalTimestamp: time.Now().UTC(),
	})
}

// enqueueUpsert queues a create or update for the sync engine.
func enqueueUpsert(store *localstore.Store, entityType dto.EntityType, entityID string, entity any, created bool) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return err
	}
	op := dto.OpUpdate
	if created {
		op = dto.OpCreate
	}
	return store.Enqueue(dto.PushItem{
		EntityType:     entityType,
		EntityID:       entityID,
		Operation:      op,
		Data:           data,
		LocalTimestamp: time.Now().UTC(),
	})
}
