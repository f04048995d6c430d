// Package backup moves a local store through the versioned export/import
// envelope. Partial backups are legal: a collection missing from the envelope
// leaves the stored collection untouched.
package backup

import (
	"fmt"
	"time"

	"github.com/nuno2msilva/pocket-keeper/pkg/domain"
	"github.com/nuno2msilva/pocket-keeper/pkg/dto"
	"github.com/nuno2msilva/pocket-keeper/pkg/localstore"
)

// Export snapshots every collection of the store into a backup envelope.
func Export(store *localstore.Store) (dto.Backup, error) {
	categories, err := store.Categories()
	if err != nil {
		return dto.Backup{}, err
	}
	subcategories, err := store.Subcategories()
	if err != nil {
		return dto.Backup{}, err
	}
	merchants, err := store.Merchants()
	if err != nil {
		return dto.Backup{}, err
	}
	products, err := store.Products()
	if err != nil {
		return dto.Backup{}, err
	}
	receipts, err := store.Receipts()
	if err != nil {
		return dto.Backup{}, err
	}
	return dto.Backup{
		Categories:    &categories,
		Subcategories: &subcategories,
		Merchants:     &merchants,
		Products:      &products,
		Receipts:      &receipts,
		ExportedAt:    time.Now().UTC(),
		Version:       dto.BackupVersion,
	}, nil
}

// Import applies a backup envelope to the store. The version must be present;
// each included collection replaces its stored counterpart independently.
// Subcategories are applied before products so the post-mutation sweep sees
// the imported set.
func Import(store *localstore.Store, b dto.Backup) error {
	if b.Version == "" {
		return fmt.Errorf("backup missing version: %w", domain.ErrValidation)
	}
	if b.Categories != nil {
		if err := store.SetCategories(*b.Categories); err != nil {
			return err
		}
	}
	if b.Subcategories != nil {
		if err := store.SetSubcategories(*b.Subcategories); err != nil {
			return err
		}
	}
	if b.Merchants != nil {
		if err := store.SetMerchants(*b.Merchants); err != nil {
			return err
		}
	}
	if b.Products != nil {
		if err := store.SetProducts(*b.Products); err != nil {
			return err
		}
	}
	if b.Receipts != nil {
		if err := store.SetReceipts(*b.Receipts); err != nil {
			return err
		}
	}
	return nil
}
