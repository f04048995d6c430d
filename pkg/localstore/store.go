// Package localstore is the client-side entity store of the tracker: one
// sqlite database per owner, holding each collection as a single JSON blob
// plus a queue of local mutations awaiting sync. The store is an explicit
// object with an Open/Close lifecycle and is passed by reference to every
// component that needs it.
package localstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nuno2msilva/pocket-keeper/pkg/domain"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS collections (
    name TEXT PRIMARY KEY,
    data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_queue (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    operation TEXT NOT NULL,
    data TEXT,
    local_ts TEXT NOT NULL
);
`

// Collection blob names.
const (
	colCategories    = "categories"
	colSubcategories = "subcategories"
	colMerchants     = "merchants"
	colProducts      = "products"
	colReceipts      = "receipts"

	metaServerIDs = "meta:server_ids"
	metaLastSync  = "meta:last_sync"
)

// Store is a single owner's local entity store.
type Store struct {
	db      *sql.DB
	ownerID string
}

// Open opens (creating if needed) the local store at path for the given owner.
func Open(path, ownerID string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init local store schema: %w", err)
	}
	return &Store{db: db, ownerID: ownerID}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// OwnerID returns the owner this store belongs to.
func (s *Store) OwnerID() string {
	return s.ownerID
}

// GenerateID mints a new opaque entity id.
func (s *Store) GenerateID() string {
	return uuid.NewString()
}

func getCollection[T any](s *Store, name string) ([]T, error) {
	var raw string
	err := s.db.QueryRow(`SELECT data FROM collections WHERE name = ?`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read collection %s: %w", name, err)
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode collection %s: %w", name, err)
	}
	return items, nil
}

func setCollection[T any](s *Store, name string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode collection %s: %w", name, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO collections (name, data) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data`, name, string(raw))
	if err != nil {
		return fmt.Errorf("write collection %s: %w", name, err)
	}
	return nil
}

// Categories returns the stored categories.
func (s *Store) Categories() ([]domain.Category, error) {
	return getCollection[domain.Category](s, colCategories)
}

// SetCategories replaces the stored categories.
func (s *Store) SetCategories(items []domain.Category) error {
	return setCollection(s, colCategories, items)
}

// Subcategories returns the stored subcategories.
func (s *Store) Subcategories() ([]domain.Subcategory, error) {
	return getCollection[domain.Subcategory](s, colSubcategories)
}

// SetSubcategories replaces the stored subcategories.
func (s *Store) SetSubcategories(items []domain.Subcategory) error {
	return setCollection(s, colSubcategories, items)
}

// Merchants returns the stored merchants.
func (s *Store) Merchants() ([]domain.Merchant, error) {
	return getCollection[domain.Merchant](s, colMerchants)
}

// SetMerchants replaces the stored merchants.
func (s *Store) SetMerchants(items []domain.Merchant) error {
	return setCollection(s, colMerchants, items)
}

// Products returns the stored products.
func (s *Store) Products() ([]domain.Product, error) {
	return getCollection[domain.Product](s, colProducts)
}

// SetProducts replaces the stored products and then prunes subcategories no
// product references anymore. Every product write funnels through here so the
// cleanup sweep is a guaranteed side effect of product mutation.
func (s *Store) SetProducts(items []domain.Product) error {
	if err := setCollection(s, colProducts, items); err != nil {
		return err
	}
	return s.pruneSubcategories(items)
}

// MutateProducts loads the products, applies fn and writes the result back,
// triggering the subcategory cleanup sweep.
func (s *Store) MutateProducts(fn func([]domain.Product) []domain.Product) error {
	products, err := s.Products()
	if err != nil {
		return err
	}
	return s.SetProducts(fn(products))
}

// Receipts returns the stored receipts.
func (s *Store) Receipts() ([]domain.Receipt, error) {
	return getCollection[domain.Receipt](s, colReceipts)
}

// SetReceipts replaces the stored receipts.
func (s *Store) SetReceipts(items []domain.Receipt) error {
	return setCollection(s, colReceipts, items)
}

// pruneSubcategories removes every stored subcategory not referenced by at
// least one product. Full recompute, not incremental.
func (s *Store) pruneSubcategories(products []domain.Product) error {
	referenced := make(map[string]struct{}, len(products))
	for _, p := range products {
		if p.SubcategoryID != "" {
			referenced[p.SubcategoryID] = struct{}{}
		}
	}
	subs, err := s.Subcategories()
	if err != nil {
		return err
	}
	kept := subs[:0]
	for _, sc := range subs {
		if _, ok := referenced[sc.ID]; ok {
			kept = append(kept, sc)
		}
	}
	if len(kept) == len(subs) {
		return nil
	}
	return s.SetSubcategories(kept)
}

// ServerIDs returns the known local-id to server-id mapping, keyed
// "entityType/localID".
func (s *Store) ServerIDs() (map[string]string, error) {
	var raw string
	err := s.db.QueryRow(`SELECT data FROM collections WHERE name = ?`, metaServerIDs).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read server ids: %w", err)
	}
	ids := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode server ids: %w", err)
	}
	return ids, nil
}

// SetServerID records the server id assigned to a local entity.
func (s *Store) SetServerID(entityType, localID, serverID string) error {
	ids, err := s.ServerIDs()
	if err != nil {
		return err
	}
	ids[entityType+"/"+localID] = serverID
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO collections (name, data) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data`, metaServerIDs, string(raw))
	return err
}

// LastSyncAt returns the pull watermark, zero when never synced.
func (s *Store) LastSyncAt() (time.Time, error) {
	var raw string
	err := s.db.QueryRow(`SELECT data FROM collections WHERE name = ?`, metaLastSync).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read watermark: %w", err)
	}
	return time.Parse(time.RFC3339Nano, raw)
}

// SetLastSyncAt advances the pull watermark.
func (s *Store) SetLastSyncAt(t time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO collections (name, data) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data`,
		metaLastSync, t.Format(time.RFC3339Nano))
	return err
}
