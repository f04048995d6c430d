// Package resolver implements the get-or-create and solidification lifecycle
// for merchants and products. Records typed into a receipt with no existing
// match are created in limbo (IsSolidified=false) so entry never blocks on
// classification; an explicit save through SolidifyMerchant/SolidifyProduct is
// the only way a record becomes canonical, and there is no way back.
package resolver

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/nuno2msilva/pocket-keeper/pkg/domain"
	"github.com/nuno2msilva/pocket-keeper/pkg/fuzzy"
	"github.com/nuno2msilva/pocket-keeper/pkg/localstore"
)

// Resolver resolves free-text entity references against a local store.
type Resolver struct {
	store  *localstore.Store
	logger *slog.Logger
}

// New creates a Resolver over the given store.
func New(store *localstore.Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// GetOrCreateMerchant returns the merchant matching nif (exact, when given)
// or name (case-insensitive exact), creating a limbo record otherwise.
// Existing records are returned unchanged; this never solidifies.
func (r *Resolver) GetOrCreateMerchant(name, nif string) (domain.Merchant, error) {
	merchants, err := r.store.Merchants()
	if err != nil {
		return domain.Merchant{}, err
	}
	if nif != "" {
		for _, m := range merchants {
			if m.NIF == nif {
				return m, nil
			}
		}
	}
	for _, m := range merchants {
		if strings.EqualFold(m.Name, name) {
			return m, nil
		}
	}

	m := domain.Merchant{
		ID:   r.store.GenerateID(),
		Name: name,
		NIF:  nif,
	}
	if err := r.store.SetMerchants(append(merchants, m)); err != nil {
		return domain.Merchant{}, err
	}
	r.logger.Info("created limbo merchant", "name", name, "id", m.ID)
	return m, enqueueUpsert(r.store, "merchant", m.ID, m, true)
}

// GetOrCreateProduct mirrors GetOrCreateMerchant with barcode as the exact
// key.
func (r *Resolver) GetOrCreateProduct(name, barcode string) (domain.Product, error) {
	products, err := r.store.Products()
	if err != nil {
		return domain.Product{}, err
	}
	if barcode != "" {
		for _, p := range products {
			if p.Barcode == barcode {
				return p, nil
			}
		}
	}
	for _, p := range products {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}

	p := domain.Product{
		ID:      r.store.GenerateID(),
		Name:    name,
		Barcode: barcode,
	}
	if err := r.store.SetProducts(append(products, p)); err != nil {
		return domain.Product{}, err
	}
	r.logger.Info("created limbo product", "name", name, "id", p.ID)
	return p, enqueueUpsert(r.store, "product", p.ID, p, true)
}

// MerchantUpdate carries the corrected fields of a merchant save. Nil fields
// are left untouched.
type MerchantUpdate struct {
	Name    *string
	NIF     *string
	Address *string
}

// SolidifyMerchant applies the corrected fields and marks the merchant
// canonical. Idempotent: re-solidifying only updates fields.
func (r *Resolver) SolidifyMerchant(id string, update MerchantUpdate) (domain.Merchant, error) {
	merchants, err := r.store.Merchants()
	if err != nil {
		return domain.Merchant{}, err
	}
	for i := range merchants {
		if merchants[i].ID != id {
			continue
		}
		m := &merchants[i]
		if update.Name != nil {
			m.Name = *update.Name
		}
		if update.NIF != nil {
			m.NIF = *update.NIF
		}
		if update.Address != nil {
			m.Address = *update.Address
		}
		m.IsSolidified = true
		if err := r.store.SetMerchants(merchants); err != nil {
			return domain.Merchant{}, err
		}
		return *m, enqueueUpsert(r.store, "merchant", m.ID, *m, false)
	}
	return domain.Merchant{}, fmt.Errorf("merchant %s: %w", id, domain.ErrNotFound)
}

// ProductUpdate carries the corrected fields of a product save. Nil fields
// are left untouched.
type ProductUpdate struct {
	Name                    *string
	CategoryID              *string
	SubcategoryID           *string
	DefaultPrice            *float64
	Barcode                 *string
	IsWeighted              *bool
	ExcludeFromPriceHistory *bool
}

// SolidifyProduct applies the corrected fields and marks the product
// canonical. Idempotent like SolidifyMerchant.
func (r *Resolver) SolidifyProduct(id string, update ProductUpdate) (domain.Product, error) {
	var solidified domain.Product
	found := false
	err := r.store.MutateProducts(func(products []domain.Product) []domain.Product {
		for i := range products {
			if products[i].ID != id {
				continue
			}
			p := &products[i]
			if update.Name != nil {
				p.Name = *update.Name
			}
			if update.CategoryID != nil {
				p.CategoryID = *update.CategoryID
			}
			if update.SubcategoryID != nil {
				p.SubcategoryID = *update.SubcategoryID
			}
			if update.DefaultPrice != nil {
				p.DefaultPrice = update.DefaultPrice
			}
			if update.Barcode != nil {
				p.Barcode = *update.Barcode
			}
			if update.IsWeighted != nil {
				p.IsWeighted = *update.IsWeighted
			}
			if update.ExcludeFromPriceHistory != nil {
				p.ExcludeFromPriceHistory = *update.ExcludeFromPriceHistory
			}
			p.IsSolidified = true
			solidified = *p
			found = true
			break
		}
		return products
	})
	if err != nil {
		return domain.Product{}, err
	}
	if !found {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	return solidified, enqueueUpsert(r.store, "product", id, solidified, false)
}

// RecordPrice prepends a price observation to the product's history unless
// the product opts out. Missing products are ignored; receipt entry must not
// fail on a pricing side effect.
func (r *Resolver) RecordPrice(productID, date string, price float64, merchantID string) error {
	return r.store.MutateProducts(func(products []domain.Product) []domain.Product {
		for i := range products {
			if products[i].ID != productID || products[i].ExcludeFromPriceHistory {
				continue
			}
			products[i].PriceHistory = append([]domain.PricePoint{{
				Date:       date,
				Price:      price,
				MerchantID: merchantID,
			}}, products[i].PriceHistory...)
		}
		return products
	})
}

// SuggestMerchants returns up to limit merchants fuzzily matching query, in
// collection order.
func (r *Resolver) SuggestMerchants(query string, limit int) ([]domain.Merchant, error) {
	merchants, err := r.store.Merchants()
	if err != nil {
		return nil, err
	}
	var out []domain.Merchant
	for _, m := range merchants {
		if fuzzy.Matches(query, m.Name) {
			out = append(out, m)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// SuggestProducts returns up to limit products fuzzily matching query, in
// collection order.
func (r *Resolver) SuggestProducts(query string, limit int) ([]domain.Product, error) {
	products, err := r.store.Products()
	if err != nil {
		return nil, err
	}
	var out []domain.Product
	for _, p := range products {
		if fuzzy.Matches(query, p.Name) {
			out = append(out, p)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
