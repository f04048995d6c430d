package dto

import "github.com/nuno2msilva/pocket-keeper/pkg/domain"

// ContributionKind selects which community directory a contribution targets.
type ContributionKind string

const (
	ContributeProduct  ContributionKind = "product"
	ContributeMerchant ContributionKind = "merchant"
)

// Contribution is one opt-in share into the community pool. Nullable fields
// only fill gaps on the existing row, they never overwrite populated values.
type Contribution struct {
	Kind         ContributionKind `json:"kind" validate:"required,oneof=product merchant"`
	Name         string           `json:"name" validate:"required"`
	Barcode      string           `json:"barcode,omitempty"`
	NIF          string           `json:"nif,omitempty"`
	CategoryHint string           `json:"categoryHint,omitempty"`
	Address      string           `json:"address,omitempty"`
}

// ContributionSummary counts the rows a bulk share touched. Every solidified
// row is counted, including ones that only bumped an existing community row.
type ContributionSummary struct {
	Products  int `json:"products"`
	Merchants int `json:"merchants"`
}

// CommunityPull is the advisory dataset offered to a user: trusted entries
// the user does not already have. It is never auto-merged into their store.
type CommunityPull struct {
	Products  []domain.CommunityProduct  `json:"products"`
	Merchants []domain.CommunityMerchant `json:"merchants"`
}

// CommunitySearchResult holds directory search hits, ordered by
// (trustScore desc, contributionCount desc).
type CommunitySearchResult struct {
	Products  []domain.CommunityProduct  `json:"products,omitempty"`
	Merchants []domain.CommunityMerchant `json:"merchants,omitempty"`
}
