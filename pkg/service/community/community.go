// Package community implements the opt-in crowd-sourced directory: sharing
// solidified entries into the pool, trust-gated pulls and directory search.
package community

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nuno2msilva/pocket-keeper/pkg/config"
	"github.com/nuno2msilva/pocket-keeper/pkg/domain"
	"github.com/nuno2msilva/pocket-keeper/pkg/dto"
	"github.com/nuno2msilva/pocket-keeper/pkg/fuzzy"
	"github.com/nuno2msilva/pocket-keeper/pkg/repository"
)

// topCandidates bounds how many directory rows a fuzzy search scans.
const topCandidates = 500

// Service mediates all access to the community directory. Every write path
// checks the owner's opt-in flag first.
type Service struct {
	uow    repository.UnitOfWork
	cfg    config.Community
	logger *slog.Logger
}

// New creates a community Service.
func New(uow repository.UnitOfWork, cfg config.Community, logger *slog.Logger) *Service {
	return &Service{uow: uow, cfg: cfg, logger: logger}
}

func (s *Service) requireOptIn(ctx context.Context, uow repository.UnitOfWork, ownerID uuid.UUID) error {
	profiles, err := uow.ProfileRepository()
	if err != nil {
		return err
	}
	profile, err := profiles.Get(ctx, ownerID)
	if err != nil {
		return err
	}
	if !profile.CommunityEnabled {
		return fmt.Errorf("community sharing is disabled for this account: %w", domain.ErrPermissionDenied)
	}
	return nil
}

// Contribute shares a single entry deliberately, which carries a larger trust
// increment than a bulk share.
func (s *Service) Contribute(ctx context.Context, ownerID uuid.UUID, c dto.Contribution) (result *dto.CommunitySearchResult, err error) {
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		if err := s.requireOptIn(ctx, uow, ownerID); err != nil {
			return err
		}
		repo, err := uow.CommunityRepository()
		if err != nil {
			return err
		}
		switch c.Kind {
		case dto.ContributeProduct:
			p, err := repo.UpsertProduct(ctx, c, s.cfg.ContributeIncrement)
			if err != nil {
				return err
			}
			result = &dto.CommunitySearchResult{Products: []domain.CommunityProduct{p}}
		case dto.ContributeMerchant:
			m, err := repo.UpsertMerchant(ctx, c, s.cfg.ContributeIncrement)
			if err != nil {
				return err
			}
			result = &dto.CommunitySearchResult{Merchants: []domain.CommunityMerchant{m}}
		default:
			return fmt.Errorf("unknown contribution kind %q: %w", c.Kind, domain.ErrValidation)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SyncContributions shares every solidified product and merchant of the owner
// in one pass, applying the smaller bulk increment per row. The summary counts
// every solidified row shared, whether it created a directory entry or only
// bumped an existing one.
func (s *Service) SyncContributions(ctx context.Context, ownerID uuid.UUID) (summary dto.ContributionSummary, err error) {
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		if err := s.requireOptIn(ctx, uow, ownerID); err != nil {
			return err
		}
		repo, err := uow.CommunityRepository()
		if err != nil {
			return err
		}

		products, err := repo.ListSolidifiedProducts(ctx, ownerID)
		if err != nil {
			return err
		}
		for _, p := range products {
			_, err := repo.UpsertProduct(ctx, dto.Contribution{
				Kind:         dto.ContributeProduct,
				Name:         p.Name,
				Barcode:      p.Barcode,
				CategoryHint: p.CategoryID,
			}, s.cfg.BulkIncrement)
			if err != nil {
				return err
			}
			summary.Products++
		}

		merchants, err := repo.ListSolidifiedMerchants(ctx, ownerID)
		if err != nil {
			return err
		}
		for _, m := range merchants {
			_, err := repo.UpsertMerchant(ctx, dto.Contribution{
				Kind:    dto.ContributeMerchant,
				Name:    m.Name,
				NIF:     m.NIF,
				Address: m.Address,
			}, s.cfg.BulkIncrement)
			if err != nil {
				return err
			}
			summary.Merchants++
		}
		return nil
	})
	if err != nil {
		return dto.ContributionSummary{}, err
	}
	s.logger.Info("bulk contribution applied",
		"owner", ownerID, "products", summary.Products, "merchants", summary.Merchants)
	return summary, nil
}

// Pull returns trusted directory entries the owner does not already have,
// ordered by trust score. The result is advisory; nothing is merged into the
// owner's data automatically.
func (s *Service) Pull(ctx context.Context, ownerID uuid.UUID) (pull dto.CommunityPull, err error) {
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		if err := s.requireOptIn(ctx, uow, ownerID); err != nil {
			return err
		}
		repo, err := uow.CommunityRepository()
		if err != nil {
			return err
		}
		if pull.Products, err = repo.EligibleProducts(ctx, ownerID, s.cfg.MinTrustScore, s.cfg.ProductPullLimit); err != nil {
			return err
		}
		pull.Merchants, err = repo.EligibleMerchants(ctx, ownerID, s.cfg.MinTrustScore, s.cfg.MerchantPullLimit)
		return err
	})
	if err != nil {
		return dto.CommunityPull{}, err
	}
	return pull, nil
}

// Search looks a product up by barcode or a merchant by NIF when the query
// carries one, falling back to a fuzzy name match over the highest-trust
// directory rows.
func (s *Service) Search(ctx context.Context, kind dto.ContributionKind, query, barcode, nif string) (result dto.CommunitySearchResult, err error) {
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.CommunityRepository()
		if err != nil {
			return err
		}
		switch kind {
		case dto.ContributeProduct:
			if barcode != "" {
				p, err := repo.ProductByBarcode(ctx, barcode)
				if err != nil {
					return err
				}
				if p != nil {
					result.Products = []domain.CommunityProduct{*p}
					return nil
				}
			}
			candidates, err := repo.TopProducts(ctx, topCandidates)
			if err != nil {
				return err
			}
			for _, p := range candidates {
				if len(result.Products) == s.cfg.SearchLimit {
					break
				}
				if fuzzy.Matches(query, p.Name) {
					result.Products = append(result.Products, p)
				}
			}
		case dto.ContributeMerchant:
			if nif != "" {
				m, err := repo.MerchantByNIF(ctx, nif)
				if err != nil {
					return err
				}
				if m != nil {
					result.Merchants = []domain.CommunityMerchant{*m}
					return nil
				}
			}
			candidates, err := repo.TopMerchants(ctx, topCandidates)
			if err != nil {
				return err
			}
			for _, m := range candidates {
				if len(result.Merchants) == s.cfg.SearchLimit {
					break
				}
				if fuzzy.Matches(query, m.Name) {
					result.Merchants = append(result.Merchants, m)
				}
			}
		default:
			return fmt.Errorf("unknown search kind %q: %w", kind, domain.ErrValidation)
		}
		return nil
	})
	if err != nil {
		return dto.CommunitySearchResult{}, err
	}
	return result, nil
}
