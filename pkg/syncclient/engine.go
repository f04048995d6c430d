package syncclient

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nuno2msilva/pocket-keeper/pkg/domain"
	"github.com/nuno2msilva/pocket-keeper/pkg/dto"
	"github.com/nuno2msilva/pocket-keeper/pkg/localstore"
)

// Engine runs the sync loop for one local store.
type Engine struct {
	store     *localstore.Store
	transport Transport
	logger    *slog.Logger
}

// NewEngine creates a sync engine over the given store and transport.
func NewEngine(store *localstore.Store, transport Transport, logger *slog.Logger) *Engine {
	return &Engine{store: store, transport: transport, logger: logger}
}

// Report summarizes one sync run.
type Report struct {
	Pushed   int
	Failed   []dto.PushResult
	Pulled   int
	PushOnly bool
}

// Sync drains the pending queue to the server, then pulls and merges the
// delta since the last watermark. Items the server rejected stay out of the
// queue; their errors are surfaced in the report. Server records always win
// a merge, so a failed push converges on the next pull.
func (e *Engine) Sync(ctx context.Context) (Report, error) {
	var report Report

	ops, err := e.store.PendingOps()
	if err != nil {
		return report, err
	}
	if len(ops) > 0 {
		items := make([]dto.PushItem, len(ops))
		for i, op := range ops {
			items[i] = op.PushItem
		}
		results, err := e.transport.Push(ctx, items)
		if err != nil {
			return report, fmt.Errorf("push: %w", err)
		}
		acked := make([]int64, 0, len(ops))
		for i, res := range results {
			if i >= len(ops) {
				break
			}
			acked = append(acked, ops[i].Seq)
			if !res.Success {
				report.Failed = append(report.Failed, res)
				e.logger.Warn("push rejected", "entity_id", res.EntityID, "error", res.Error)
				continue
			}
			report.Pushed++
			if res.ServerID != "" {
				if err := e.store.SetServerID(string(ops[i].EntityType), ops[i].EntityID, res.ServerID); err != nil {
					return report, err
				}
			}
		}
		if err := e.store.RemoveOps(acked); err != nil {
			return report, err
		}
	}

	since, err := e.store.LastSyncAt()
	if err != nil {
		return report, err
	}
	if since.IsZero() {
		return e.bootstrap(ctx, report)
	}

	resp, err := e.transport.Pull(ctx, since)
	if err != nil {
		return report, fmt.Errorf("pull: %w", err)
	}
	pulled, err := e.merge(resp)
	if err != nil {
		return report, err
	}
	report.Pulled = pulled
	return report, e.store.SetLastSyncAt(resp.SyncTimestamp)
}

// Bootstrap replaces the local collections with the server's full dataset.
// Used on first run or to recover a corrupted store.
func (e *Engine) Bootstrap(ctx context.Context) (Report, error) {
	return e.bootstrap(ctx, Report{})
}

func (e *Engine) bootstrap(ctx context.Context, report Report) (Report, error) {
	resp, err := e.transport.Full(ctx)
	if err != nil {
		return report, fmt.Errorf("full sync: %w", err)
	}

	categories := make([]domain.Category, len(resp.Categories))
	for i, c := range resp.Categories {
		categories[i] = c.Category
	}
	subcategories := make([]domain.Subcategory, len(resp.Subcategories))
	for i, sc := range resp.Subcategories {
		subcategories[i] = sc.Subcategory
	}
	merchants := make([]domain.Merchant, len(resp.Merchants))
	for i, m := range resp.Merchants {
		merchants[i] = m.Merchant
	}
	products := make([]domain.Product, len(resp.Products))
	for i, p := range resp.Products {
		products[i] = p.Product
	}
	receipts := make([]domain.Receipt, len(resp.Receipts))
	for i, r := range resp.Receipts {
		receipts[i] = r.Receipt
	}

	if err := e.store.SetCategories(categories); err != nil {
		return report, err
	}
	// subcategories before products so the cleanup sweep sees the full set
	if err := e.store.SetSubcategories(subcategories); err != nil {
		return report, err
	}
	if err := e.store.SetProducts(products); err != nil {
		return report, err
	}
	if err := e.store.SetMerchants(merchants); err != nil {
		return report, err
	}
	if err := e.store.SetReceipts(receipts); err != nil {
		return report, err
	}
	if err := e.recordServerIDs(resp); err != nil {
		return report, err
	}

	report.Pulled = len(categories) + len(subcategories) + len(merchants) + len(products) + len(receipts)
	return report, e.store.SetLastSyncAt(resp.SyncTimestamp)
}

// merge upserts pulled records into the local collections by id. Server
// records replace local ones wholesale.
func (e *Engine) merge(resp *dto.PullResponse) (int, error) {
	pulled := 0

	if len(resp.Categories) > 0 {
		existing, err := e.store.Categories()
		if err != nil {
			return pulled, err
		}
		for _, c := range resp.Categories {
			existing = upsertByID(existing, c.Category, func(v domain.Category) string { return v.ID })
			pulled++
		}
		if err := e.store.SetCategories(existing); err != nil {
			return pulled, err
		}
	}
	if len(resp.Subcategories) > 0 {
		existing, err := e.store.Subcategories()
		if err != nil {
			return pulled, err
		}
		for _, sc := range resp.Subcategories {
			existing = upsertByID(existing, sc.Subcategory, func(v domain.Subcategory) string { return v.ID })
			pulled++
		}
		if err := e.store.SetSubcategories(existing); err != nil {
			return pulled, err
		}
	}
	if len(resp.Merchants) > 0 {
		existing, err := e.store.Merchants()
		if err != nil {
			return pulled, err
		}
		for _, m := range resp.Merchants {
			existing = upsertByID(existing, m.Merchant, func(v domain.Merchant) string { return v.ID })
			pulled++
		}
		if err := e.store.SetMerchants(existing); err != nil {
			return pulled, err
		}
	}
	if len(resp.Products) > 0 {
		existing, err := e.store.Products()
		if err != nil {
			return pulled, err
		}
		for _, p := range resp.Products {
			existing = upsertByID(existing, p.Product, func(v domain.Product) string { return v.ID })
			pulled++
		}
		if err := e.store.SetProducts(existing); err != nil {
			return pulled, err
		}
	}
	if len(resp.Receipts) > 0 {
		existing, err := e.store.Receipts()
		if err != nil {
			return pulled, err
		}
		for _, r := range resp.Receipts {
			existing = upsertByID(existing, r.Receipt, func(v domain.Receipt) string { return v.ID })
			pulled++
		}
		if err := e.store.SetReceipts(existing); err != nil {
			return pulled, err
		}
	}

	return pulled, e.recordServerIDs(resp)
}

func (e *Engine) recordServerIDs(resp *dto.PullResponse) error {
	for _, c := range resp.Categories {
		if err := e.store.SetServerID(string(dto.EntityCategory), c.ID, c.ServerID); err != nil {
			return err
		}
	}
	for _, sc := range resp.Subcategories {
		if err := e.store.SetServerID(string(dto.EntitySubcategory), sc.ID, sc.ServerID); err != nil {
			return err
		}
	}
	for _, m := range resp.Merchants {
		if err := e.store.SetServerID(string(dto.EntityMerchant), m.ID, m.ServerID); err != nil {
			return err
		}
	}
	for _, p := range resp.Products {
		if err := e.store.SetServerID(string(dto.EntityProduct), p.ID, p.ServerID); err != nil {
			return err
		}
	}
	for _, r := range resp.Receipts {
		if err := e.store.SetServerID(string(dto.EntityReceipt), r.ID, r.ServerID); err != nil {
			return err
		}
	}
	return nil
}

// Status asks the server for per-collection counts without touching the
// local store.
func (e *Engine) Status(ctx context.Context) (dto.SyncStatus, error) {
	return e.transport.Status(ctx)
}

func upsertByID[T any](items []T, item T, id func(T) string) []T {
	key := id(item)
	for i := range items {
		if id(items[i]) == key {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}
