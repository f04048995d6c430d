// Package sync implements the server half of the sync protocol: applying
// pushed batches of local mutations and answering pull, full-sync and status
// queries.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nuno2msilva/pocket-keeper/pkg/domain"
	"github.com/nuno2msilva/pocket-keeper/pkg/dto"
	"github.com/nuno2msilva/pocket-keeper/pkg/repository"
)

// Service applies sync operations against the server store.
type Service struct {
	uow    repository.UnitOfWork
	logger *slog.Logger
}

// New creates a sync Service.
func New(uow repository.UnitOfWork, logger *slog.Logger) *Service {
	return &Service{uow: uow, logger: logger}
}

// Push applies a batch of local mutations inside one transaction. Per-item
// failures (malformed payloads, unknown types) are captured in the result
// array without aborting the batch; only a storage-level failure rolls the
// whole transaction back. Results align to input order.
func (s *Service) Push(ctx context.Context, ownerID uuid.UUID, items []dto.PushItem) ([]dto.PushResult, error) {
	results := make([]dto.PushResult, len(items))
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.SyncRepository()
		if err != nil {
			return err
		}
		for i, item := range items {
			results[i] = s.apply(ctx, repo, ownerID, item)
			if !results[i].Success {
				s.logger.Warn("push item failed",
					"owner", ownerID,
					"entity_type", item.EntityType,
					"entity_id", item.EntityID,
					"error", results[i].Error,
				)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("push batch: %w", err)
	}
	return results, nil
}

func (s *Service) apply(ctx context.Context, repo repository.SyncRepository, ownerID uuid.UUID, item dto.PushItem) dto.PushResult {
	res := dto.PushResult{EntityID: item.EntityID}
	if !item.EntityType.Valid() {
		res.Error = fmt.Sprintf("unknown entity type %q", item.EntityType)
		return res
	}

	if item.Operation == dto.OpDelete {
		if err := repo.Delete(ctx, ownerID, item.EntityType, item.EntityID); err != nil {
			res.Error = err.Error()
			return res
		}
		res.Success = true
		return res
	}
	if item.Operation != dto.OpCreate && item.Operation != dto.OpUpdate {
		res.Error = fmt.Sprintf("unknown operation %q", item.Operation)
		return res
	}

	upserted, err := s.upsert(ctx, repo, ownerID, item)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.ServerID = upserted.ServerID.String()
	return res
}

// upsert decodes the payload for the item's entity type and dispatches to the
// matching repository upsert. Payloads are validated here, at the boundary,
// so untyped field access never leaks further in.
func (s *Service) upsert(ctx context.Context, repo repository.SyncRepository, ownerID uuid.UUID, item dto.PushItem) (repository.UpsertResult, error) {
	switch item.EntityType {
	case dto.EntityCategory:
		var c domain.Category
		if err := decode(item.Data, &c); err != nil {
			return repository.UpsertResult{}, err
		}
		return repo.UpsertCategory(ctx, ownerID, item.EntityID, c)
	case dto.EntitySubcategory:
		var sc domain.Subcategory
		if err := decode(item.Data, &sc); err != nil {
			return repository.UpsertResult{}, err
		}
		return repo.UpsertSubcategory(ctx, ownerID, item.EntityID, sc)
	case dto.EntityMerchant:
		var m domain.Merchant
		if err := decode(item.Data, &m); err != nil {
			return repository.UpsertResult{}, err
		}
		return repo.UpsertMerchant(ctx, ownerID, item.EntityID, m)
	case dto.EntityProduct:
		var p domain.Product
		if err := decode(item.Data, &p); err != nil {
			return repository.UpsertResult{}, err
		}
		return repo.UpsertProduct(ctx, ownerID, item.EntityID, p)
	case dto.EntityReceipt:
		var rc domain.Receipt
		if err := decode(item.Data, &rc); err != nil {
			return repository.UpsertResult{}, err
		}
		return repo.UpsertReceipt(ctx, ownerID, item.EntityID, rc)
	}
	return repository.UpsertResult{}, fmt.Errorf("unknown entity type %q: %w", item.EntityType, domain.ErrValidation)
}

func decode(data json.RawMessage, into any) error {
	if len(data) == 0 {
		return fmt.Errorf("missing payload: %w", domain.ErrValidation)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("malformed payload: %w", domain.ErrValidation)
	}
	return nil
}

// Pull returns every record changed after since, ascending by updatedAt
// within each collection so the client can replay deltas safely.
func (s *Service) Pull(ctx context.Context, ownerID uuid.UUID, since time.Time) (*dto.PullResponse, error) {
	return s.list(ctx, ownerID, &since)
}

// Full returns the complete dataset for first-run bootstrap, ordered by name
// (receipts by date descending).
func (s *Service) Full(ctx context.Context, ownerID uuid.UUID) (*dto.PullResponse, error) {
	return s.list(ctx, ownerID, nil)
}

func (s *Service) list(ctx context.Context, ownerID uuid.UUID, since *time.Time) (resp *dto.PullResponse, err error) {
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.SyncRepository()
		if err != nil {
			return err
		}
		out := &dto.PullResponse{SyncTimestamp: time.Now().UTC()}
		if out.Categories, err = repo.ListCategories(ctx, ownerID, since); err != nil {
			return err
		}
		if out.Subcategories, err = repo.ListSubcategories(ctx, ownerID, since); err != nil {
			return err
		}
		if out.Merchants, err = repo.ListMerchants(ctx, ownerID, since); err != nil {
			return err
		}
		if out.Products, err = repo.ListProducts(ctx, ownerID, since); err != nil {
			return err
		}
		if out.Receipts, err = repo.ListReceipts(ctx, ownerID, since); err != nil {
			return err
		}
		resp = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Status reports per-collection counts and high-water marks.
func (s *Service) Status(ctx context.Context, ownerID uuid.UUID) (status dto.SyncStatus, err error) {
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.SyncRepository()
		if err != nil {
			return err
		}
		status, err = repo.Status(ctx, ownerID)
		return err
	})
	return status, err
}
