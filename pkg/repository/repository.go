// Package repository declares the persistence interfaces the services depend
// on. Implementations live in infra/repository; tests substitute fakes.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nuno2msilva/pocket-keeper/pkg/domain"
	"github.com/nuno2msilva/pocket-keeper/pkg/dto"
)

// UnitOfWork provides a transaction boundary and repository access in one
// abstraction, so every repository obtained inside Do shares the same
// database session.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error
	SyncRepository() (SyncRepository, error)
	CommunityRepository() (CommunityRepository, error)
	ProfileRepository() (ProfileRepository, error)
}

// UpsertResult reports where an upsert landed. Created is false when the
// natural key already existed and the write degraded to the documented no-op.
type UpsertResult struct {
	ServerID uuid.UUID
	Created  bool
}

// SyncRepository is the server store surface of the sync engine. Upserts are
// idempotent by natural key; foreign keys inside payloads are local ids and
// are resolved to server ids at write time, degrading to NULL when dangling.
type SyncRepository interface {
	UpsertCategory(ctx context.Context, ownerID uuid.UUID, localID string, c domain.Category) (UpsertResult, error)
	UpsertSubcategory(ctx context.Context, ownerID uuid.UUID, localID string, sc domain.Subcategory) (UpsertResult, error)
	UpsertMerchant(ctx context.Context, ownerID uuid.UUID, localID string, m domain.Merchant) (UpsertResult, error)
	UpsertProduct(ctx context.Context, ownerID uuid.UUID, localID string, p domain.Product) (UpsertResult, error)
	// UpsertReceipt fans out to the receipt's items only when the parent
	// row was actually created.
	UpsertReceipt(ctx context.Context, ownerID uuid.UUID, localID string, r domain.Receipt) (UpsertResult, error)
	// Delete is idempotent; removing an absent row is not an error.
	Delete(ctx context.Context, ownerID uuid.UUID, entityType dto.EntityType, localID string) error

	// List* return rows with updatedAt > since in ascending updatedAt order;
	// a nil since means the full-sync ordering (name, receipts by date desc).
	ListCategories(ctx context.Context, ownerID uuid.UUID, since *time.Time) ([]dto.SyncedCategory, error)
	ListSubcategories(ctx context.Context, ownerID uuid.UUID, since *time.Time) ([]dto.SyncedSubcategory, error)
	ListMerchants(ctx context.Context, ownerID uuid.UUID, since *time.Time) ([]dto.SyncedMerchant, error)
	ListProducts(ctx context.Context, ownerID uuid.UUID, since *time.Time) ([]dto.SyncedProduct, error)
	ListReceipts(ctx context.Context, ownerID uuid.UUID, since *time.Time) ([]dto.SyncedReceipt, error)

	Status(ctx context.Context, ownerID uuid.UUID) (dto.SyncStatus, error)
}

// CommunityRepository persists the global trust-scored directory. Trust
// increments are applied atomically at the row so concurrent contributions
// never lose updates.
type CommunityRepository interface {
	UpsertProduct(ctx context.Context, c dto.Contribution, increment int) (domain.CommunityProduct, error)
	UpsertMerchant(ctx context.Context, c dto.Contribution, increment int) (domain.CommunityMerchant, error)

	// Solidified rows of one owner, the inputs to a bulk share.
	ListSolidifiedProducts(ctx context.Context, ownerID uuid.UUID) ([]domain.Product, error)
	ListSolidifiedMerchants(ctx context.Context, ownerID uuid.UUID) ([]domain.Merchant, error)

	// Eligible* return trusted rows the owner has no case-insensitive name
	// match for, ordered by trustScore descending, capped at limit.
	EligibleProducts(ctx context.Context, ownerID uuid.UUID, minTrust, limit int) ([]domain.CommunityProduct, error)
	EligibleMerchants(ctx context.Context, ownerID uuid.UUID, minTrust, limit int) ([]domain.CommunityMerchant, error)

	ProductByBarcode(ctx context.Context, barcode string) (*domain.CommunityProduct, error)
	MerchantByNIF(ctx context.Context, nif string) (*domain.CommunityMerchant, error)

	// Top* return directory rows ordered by (trustScore desc,
	// contributionCount desc) as candidates for fuzzy name search.
	TopProducts(ctx context.Context, limit int) ([]domain.CommunityProduct, error)
	TopMerchants(ctx context.Context, limit int) ([]domain.CommunityMerchant, error)
}

// ProfileRepository reads owner profiles.
type ProfileRepository interface {
	Get(ctx context.Context, ownerID uuid.UUID) (*domain.Profile, error)
}
