package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nuno2msilva/pocket-keeper/pkg/domain"
	"github.com/nuno2msilva/pocket-keeper/pkg/dto"
	"github.com/nuno2msilva/pocket-keeper/pkg/repository"
)

type syncRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewSyncRepository creates the server-side sync store over the given gorm
// session.
func NewSyncRepository(db *gorm.DB, logger *slog.Logger) repository.SyncRepository {
	return &syncRepository{db: db, logger: logger}
}

// UpsertCategory upserts by the (owner, name) natural key. On conflict the
// mutable fields (icon, color) are refreshed and the sync marker set.
func (r *syncRepository) UpsertCategory(ctx context.Context, ownerID uuid.UUID, localID string, c domain.Category) (repository.UpsertResult, error) {
	var existing Category
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND name = ?", ownerID, c.Name).
		First(&existing).Error
	if err == nil {
		err = r.db.WithContext(ctx).Model(&Category{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"icon":        c.Icon,
				"color":       c.Color,
				"sync_status": SyncStatusSynced,
			}).Error
		return repository.UpsertResult{ServerID: existing.ID}, err
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.UpsertResult{}, err
	}

	row := Category{
		SyncColumns: SyncColumns{
			ID:         uuid.New(),
			OwnerID:    ownerID,
			LocalID:    localID,
			SyncStatus: SyncStatusSynced,
		},
		Name:      c.Name,
		Icon:      c.Icon,
		Color:     c.Color,
		IsDefault: c.IsDefault,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return repository.UpsertResult{}, err
	}
	return repository.UpsertResult{ServerID: row.ID, Created: true}, nil
}

// UpsertSubcategory is keyed by (owner, local id); first writer wins. The
// parent category reference is resolved from the pushed local id.
func (r *syncRepository) UpsertSubcategory(ctx context.Context, ownerID uuid.UUID, localID string, sc domain.Subcategory) (repository.UpsertResult, error) {
	if existing, ok, err := r.lookup(ctx, &Subcategory{}, ownerID, localID); err != nil {
		return repository.UpsertResult{}, err
	} else if ok {
		return repository.UpsertResult{ServerID: existing}, nil
	}

	row := Subcategory{
		SyncColumns: SyncColumns{
			ID:         uuid.New(),
			OwnerID:    ownerID,
			LocalID:    localID,
			SyncStatus: SyncStatusSynced,
		},
		Name:             sc.Name,
		ParentCategoryID: r.resolve(ctx, &Category{}, ownerID, sc.ParentCategoryID),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return repository.UpsertResult{}, err
	}
	return repository.UpsertResult{ServerID: row.ID, Created: true}, nil
}

// UpsertMerchant is keyed by (owner, local id); first writer wins.
func (r *syncRepository) UpsertMerchant(ctx context.Context, ownerID uuid.UUID, localID string, m domain.Merchant) (repository.UpsertResult, error) {
	if existing, ok, err := r.lookup(ctx, &Merchant{}, ownerID, localID); err != nil {
		return repository.UpsertResult{}, err
	} else if ok {
		return repository.UpsertResult{ServerID: existing}, nil
	}

	row := Merchant{
		SyncColumns: SyncColumns{
			ID:         uuid.New(),
			OwnerID:    ownerID,
			LocalID:    localID,
			SyncStatus: SyncStatusSynced,
		},
		Name:         m.Name,
		NIF:          nullable(m.NIF),
		Address:      nullable(m.Address),
		IsSolidified: m.IsSolidified,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return repository.UpsertResult{}, err
	}
	return repository.UpsertResult{ServerID: row.ID, Created: true}, nil
}

// UpsertProduct is keyed by (owner, local id); first writer wins.
func (r *syncRepository) UpsertProduct(ctx context.Context, ownerID uuid.UUID, localID string, p domain.Product) (repository.UpsertResult, error) {
	if existing, ok, err := r.lookup(ctx, &Product{}, ownerID, localID); err != nil {
		return repository.UpsertResult{}, err
	} else if ok {
		return repository.UpsertResult{ServerID: existing}, nil
	}

	history, err := json.Marshal(p.PriceHistory)
	if err != nil {
		return repository.UpsertResult{}, err
	}
	row := Product{
		SyncColumns: SyncColumns{
			ID:         uuid.New(),
			OwnerID:    ownerID,
			LocalID:    localID,
			SyncStatus: SyncStatusSynced,
		},
		Name:                    p.Name,
		CategoryID:              r.resolve(ctx, &Category{}, ownerID, p.CategoryID),
		SubcategoryID:           r.resolve(ctx, &Subcategory{}, ownerID, p.SubcategoryID),
		DefaultPrice:            p.DefaultPrice,
		Barcode:                 nullable(p.Barcode),
		IsWeighted:              p.IsWeighted,
		ExcludeFromPriceHistory: p.ExcludeFromPriceHistory,
		IsSolidified:            p.IsSolidified,
		PriceHistory:            history,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return repository.UpsertResult{}, err
	}
	return repository.UpsertResult{ServerID: row.ID, Created: true}, nil
}

// UpsertReceipt is keyed by (owner, local id). Items are inserted only when
// the parent row was created, so a re-push never duplicates lines.
func (r *syncRepository) UpsertReceipt(ctx context.Context, ownerID uuid.UUID, localID string, rc domain.Receipt) (repository.UpsertResult, error) {
	if existing, ok, err := r.lookup(ctx, &Receipt{}, ownerID, localID); err != nil {
		return repository.UpsertResult{}, err
	} else if ok {
		return repository.UpsertResult{ServerID: existing}, nil
	}

	row := Receipt{
		SyncColumns: SyncColumns{
			ID:         uuid.New(),
			OwnerID:    ownerID,
			LocalID:    localID,
			SyncStatus: SyncStatusSynced,
		},
		MerchantID:     r.resolve(ctx, &Merchant{}, ownerID, rc.MerchantID),
		Date:           rc.Date,
		Time:           nullable(rc.Time),
		ReceiptNumber:  nullable(rc.ReceiptNumber),
		CustomerNIF:    nullable(rc.CustomerNIF),
		HasCustomerNIF: rc.HasCustomerNIF,
		Total:          rc.Total,
		Notes:          nullable(rc.Notes),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return repository.UpsertResult{}, err
	}
	for _, item := range rc.Items {
		line := ReceiptItem{
			ID:          uuid.New(),
			ReceiptID:   row.ID,
			LocalID:     item.ID,
			ProductID:   r.resolve(ctx, &Product{}, ownerID, item.ProductID),
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.Total,
		}
		if err := r.db.WithContext(ctx).Create(&line).Error; err != nil {
			return repository.UpsertResult{}, err
		}
	}
	return repository.UpsertResult{ServerID: row.ID, Created: true}, nil
}

// Delete removes the row scoped to (owner, local id). Idempotent. Receipt
// items go with their receipt.
func (r *syncRepository) Delete(ctx context.Context, ownerID uuid.UUID, entityType dto.EntityType, localID string) error {
	scoped := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Where("owner_id = ? AND local_id = ?", ownerID, localID)
	}
	switch entityType {
	case dto.EntityCategory:
		return scoped().Delete(&Category{}).Error
	case dto.EntitySubcategory:
		return scoped().Delete(&Subcategory{}).Error
	case dto.EntityMerchant:
		return scoped().Delete(&Merchant{}).Error
	case dto.EntityProduct:
		return scoped().Delete(&Product{}).Error
	case dto.EntityReceipt:
		err := r.db.WithContext(ctx).
			Where("receipt_id IN (?)", r.db.Model(&Receipt{}).Select("id").
				Where("owner_id = ? AND local_id = ?", ownerID, localID)).
			Delete(&ReceiptItem{}).Error
		if err != nil {
			return err
		}
		return scoped().Delete(&Receipt{}).Error
	default:
		return fmt.Errorf("unknown entity type %q: %w", entityType, domain.ErrValidation)
	}
}

// lookup finds an existing row by (owner, local id).
func (r *syncRepository) lookup(ctx context.Context, model any, ownerID uuid.UUID, localID string) (uuid.UUID, bool, error) {
	var row struct{ ID uuid.UUID }
	err := r.db.WithContext(ctx).Model(model).Select("id").
		Where("owner_id = ? AND local_id = ?", ownerID, localID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return row.ID, true, nil
}

// resolve maps a pushed local reference to a server id within the same
// owner's rows. A dangling reference resolves to NULL rather than failing.
func (r *syncRepository) resolve(ctx context.Context, model any, ownerID uuid.UUID, localID string) *uuid.UUID {
	if localID == "" {
		return nil
	}
	id, ok, err := r.lookup(ctx, model, ownerID, localID)
	if err != nil || !ok {
		if err != nil {
			r.logger.Warn("foreign key resolution failed", "local_id", localID, "error", err)
		}
		return nil
	}
	return &id
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// clientID prefers the local id the client knows the record by.
func clientID(localID string, serverID uuid.UUID) string {
	if localID != "" {
		return localID
	}
	return serverID.String()
}

// localIDFor maps a server-side reference back to the id the client knows.
func localIDFor(ids map[uuid.UUID]string, ref *uuid.UUID) string {
	if ref == nil {
		return ""
	}
	if local, ok := ids[*ref]; ok && local != "" {
		return local
	}
	return ref.String()
}

// localIDMap builds the server-id to local-id mapping for one collection.
func localIDMap[M any](ctx context.Context, db *gorm.DB, ownerID uuid.UUID) (map[uuid.UUID]string, error) {
	var rows []struct {
		ID      uuid.UUID
		LocalID string
	}
	var model M
	if err := db.WithContext(ctx).Model(&model).
		Select("id", "local_id").
		Where("owner_id = ?", ownerID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]string, len(rows))
	for _, row := range rows {
		out[row.ID] = row.LocalID
	}
	return out, nil
}

// scope applies the delta filter and ordering: incremental pulls replay in
// ascending updatedAt; full sync orders by name for first-run display.
func scope(db *gorm.DB, ownerID uuid.UUID, since *time.Time, fullOrder string) *gorm.DB {
	q := db.Where("owner_id = ?", ownerID)
	if since != nil {
		return q.Where("updated_at > ?", *since).Order("updated_at ASC")
	}
	return q.Order(fullOrder)
}

func (r *syncRepository) ListCategories(ctx context.Context, ownerID uuid.UUID, since *time.Time) ([]dto.SyncedCategory, error) {
	var rows []Category
	if err := scope(r.db.WithContext(ctx), ownerID, since, "name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]dto.SyncedCategory, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.SyncedCategory{
			Category: domain.Category{
				ID:        clientID(row.LocalID, row.ID),
				Name:      row.Name,
				Icon:      row.Icon,
				Color:     row.Color,
				IsDefault: row.IsDefault,
			},
			ServerID:  row.ID.String(),
			UpdatedAt: row.UpdatedAt,
		})
	}
	return out, nil
}

func (r *syncRepository) ListSubcategories(ctx context.Context, ownerID uuid.UUID, since *time.Time) ([]dto.SyncedSubcategory, error) {
	var rows []Subcategory
	if err := scope(r.db.WithContext(ctx), ownerID, since, "name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	categories, err := localIDMap[Category](ctx, r.db, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SyncedSubcategory, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.SyncedSubcategory{
			Subcategory: domain.Subcategory{
				ID:               clientID(row.LocalID, row.ID),
				Name:             row.Name,
				ParentCategoryID: localIDFor(categories, row.ParentCategoryID),
			},
			ServerID:  row.ID.String(),
			UpdatedAt: row.UpdatedAt,
		})
	}
	return out, nil
}

func (r *syncRepository) ListMerchants(ctx context.Context, ownerID uuid.UUID, since *time.Time) ([]dto.SyncedMerchant, error) {
	var rows []Merchant
	if err := scope(r.db.WithContext(ctx), ownerID, since, "name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]dto.SyncedMerchant, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.SyncedMerchant{
			Merchant: domain.Merchant{
				ID:           clientID(row.LocalID, row.ID),
				Name:         row.Name,
				NIF:          deref(row.NIF),
				Address:      deref(row.Address),
				IsSolidified: row.IsSolidified,
			},
			ServerID:  row.ID.String(),
			UpdatedAt: row.UpdatedAt,
		})
	}
	return out, nil
}

func (r *syncRepository) ListProducts(ctx context.Context, ownerID uuid.UUID, since *time.Time) ([]dto.SyncedProduct, error) {
	var rows []Product
	if err := scope(r.db.WithContext(ctx), ownerID, since, "name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	categories, err := localIDMap[Category](ctx, r.db, ownerID)
	if err != nil {
		return nil, err
	}
	subcategories, err := localIDMap[Subcategory](ctx, r.db, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SyncedProduct, 0, len(rows))
	for _, row := range rows {
		var history []domain.PricePoint
		if len(row.PriceHistory) > 0 {
			if err := json.Unmarshal(row.PriceHistory, &history); err != nil {
				r.logger.Warn("corrupt price history", "product", row.ID, "error", err)
			}
		}
		out = append(out, dto.SyncedProduct{
			Product: domain.Product{
				ID:                      clientID(row.LocalID, row.ID),
				Name:                    row.Name,
				CategoryID:              localIDFor(categories, row.CategoryID),
				SubcategoryID:           localIDFor(subcategories, row.SubcategoryID),
				DefaultPrice:            row.DefaultPrice,
				Barcode:                 deref(row.Barcode),
				IsWeighted:              row.IsWeighted,
				ExcludeFromPriceHistory: row.ExcludeFromPriceHistory,
				IsSolidified:            row.IsSolidified,
				PriceHistory:            history,
			},
			ServerID:  row.ID.String(),
			UpdatedAt: row.UpdatedAt,
		})
	}
	return out, nil
}

func (r *syncRepository) ListReceipts(ctx context.Context, ownerID uuid.UUID, since *time.Time) ([]dto.SyncedReceipt, error) {
	var rows []Receipt
	if err := scope(r.db.WithContext(ctx), ownerID, since, "date DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	merchants, err := localIDMap[Merchant](ctx, r.db, ownerID)
	if err != nil {
		return nil, err
	}
	products, err := localIDMap[Product](ctx, r.db, ownerID)
	if err != nil {
		return nil, err
	}

	receiptIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		receiptIDs = append(receiptIDs, row.ID)
	}
	itemsByReceipt := map[uuid.UUID][]ReceiptItem{}
	if len(receiptIDs) > 0 {
		var items []ReceiptItem
		if err := r.db.WithContext(ctx).
			Where("receipt_id IN ?", receiptIDs).
			Find(&items).Error; err != nil {
			return nil, err
		}
		for _, item := range items {
			itemsByReceipt[item.ReceiptID] = append(itemsByReceipt[item.ReceiptID], item)
		}
	}

	out := make([]dto.SyncedReceipt, 0, len(rows))
	for _, row := range rows {
		items := make([]domain.ReceiptItem, 0, len(itemsByReceipt[row.ID]))
		for _, item := range itemsByReceipt[row.ID] {
			items = append(items, domain.ReceiptItem{
				ID:          clientID(item.LocalID, item.ID),
				ProductID:   localIDFor(products, item.ProductID),
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				Total:       item.Total,
			})
		}
		out = append(out, dto.SyncedReceipt{
			Receipt: domain.Receipt{
				ID:             clientID(row.LocalID, row.ID),
				MerchantID:     localIDFor(merchants, row.MerchantID),
				Date:           row.Date,
				Time:           deref(row.Time),
				ReceiptNumber:  deref(row.ReceiptNumber),
				CustomerNIF:    deref(row.CustomerNIF),
				HasCustomerNIF: row.HasCustomerNIF,
				Items:          items,
				Total:          row.Total,
				Notes:          deref(row.Notes),
			},
			ServerID:  row.ID.String(),
			UpdatedAt: row.UpdatedAt,
		})
	}
	return out, nil
}

// Status reports per-collection row counts and the newest updatedAt, enough
// for a client to decide whether a pull is worthwhile.
func (r *syncRepository) Status(ctx context.Context, ownerID uuid.UUID) (dto.SyncStatus, error) {
	status := dto.SyncStatus{Collections: map[dto.EntityType]dto.CollectionStatus{}}
	collect := func(entityType dto.EntityType, model any) error {
		var row struct {
			Count int64
			Last  *time.Time
		}
		err := r.db.WithContext(ctx).Model(model).
			Select("COUNT(*) AS count, MAX(updated_at) AS last").
			Where("owner_id = ?", ownerID).
			Scan(&row).Error
		if err != nil {
			return err
		}
		status.Collections[entityType] = dto.CollectionStatus{Count: row.Count, LastUpdatedAt: row.Last}
		return nil
	}
	for entityType, model := range map[dto.EntityType]any{
		dto.EntityCategory:    &Category{},
		dto.EntitySubcategory: &Subcategory{},
		dto.EntityMerchant:    &Merchant{},
		dto.EntityProduct:     &Product{},
		dto.EntityReceipt:     &Receipt{},
	} {
		if err := collect(entityType, model); err != nil {
			return dto.SyncStatus{}, err
		}
	}
	return status, nil
}
