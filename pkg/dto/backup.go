package dto

import (
	"time"

	"github.com/nuno2msilva/pocket-keeper/pkg/domain"
)

// BackupVersion is stamped on every export.
const BackupVersion = "1"

// Backup is the export/import envelope for a local store. Collections are
// pointers so a partial backup can omit one; import leaves omitted
// collections untouched.
type Backup struct {
	Categories    *[]domain.Category    `json:"categories,omitempty"`
	Subcategories *[]domain.Subcategory `json:"subcategories,omitempty"`
	Merchants     *[]domain.Merchant    `json:"merchants,omitempty"`
	Products      *[]domain.Product     `json:"products,omitempty"`
	Receipts      *[]domain.Receipt     `json:"receipts,omitempty"`
	ExportedAt    time.Time             `json:"exportedAt"`
	Version       string                `json:"version"`
}
