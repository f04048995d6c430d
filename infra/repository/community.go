package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nuno2msilva/pocket-keeper/pkg/domain"
	"github.com/nuno2msilva/pocket-keeper/pkg/dto"
	"github.com/nuno2msilva/pocket-keeper/pkg/repository"
)

type communityRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewCommunityRepository creates the community directory store over the given
// gorm session.
func NewCommunityRepository(db *gorm.DB, logger *slog.Logger) repository.CommunityRepository {
	return &communityRepository{db: db, logger: logger}
}

// UpsertProduct applies one contribution atomically: the trust score and
// contribution count are bumped in SQL so concurrent contributors never lose
// updates, and nullable fields only fill gaps.
func (r *communityRepository) UpsertProduct(ctx context.Context, c dto.Contribution, increment int) (domain.CommunityProduct, error) {
	row := CommunityProduct{
		ID:                uuid.New(),
		Name:              c.Name,
		NameKey:           strings.ToLower(c.Name),
		Barcode:           nullable(c.Barcode),
		CategoryHint:      nullable(c.CategoryHint),
		TrustScore:        min(increment, 100),
		ContributionCount: 1,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name_key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"contribution_count": gorm.Expr("community_products.contribution_count + 1"),
			"trust_score":        gorm.Expr("LEAST(community_products.trust_score + ?, 100)", increment),
			"barcode":            gorm.Expr("COALESCE(community_products.barcode, EXCLUDED.barcode)"),
			"category_hint":      gorm.Expr("COALESCE(community_products.category_hint, EXCLUDED.category_hint)"),
			"updated_at":         time.Now().UTC(),
		}),
	}).Create(&row).Error
	if err != nil {
		return domain.CommunityProduct{}, err
	}

	var final CommunityProduct
	if err := r.db.WithContext(ctx).
		Where("name_key = ?", row.NameKey).
		First(&final).Error; err != nil {
		return domain.CommunityProduct{}, err
	}
	return toCommunityProduct(final), nil
}

// UpsertMerchant mirrors UpsertProduct for the (name, nif) key.
func (r *communityRepository) UpsertMerchant(ctx context.Context, c dto.Contribution, increment int) (domain.CommunityMerchant, error) {
	row := CommunityMerchant{
		ID:                uuid.New(),
		Name:              c.Name,
		NameKey:           strings.ToLower(c.Name),
		NIF:               nullable(c.NIF),
		NIFKey:            c.NIF,
		Address:           nullable(c.Address),
		TrustScore:        min(increment, 100),
		ContributionCount: 1,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name_key"}, {Name: "nif_key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"contribution_count": gorm.Expr("community_merchants.contribution_count + 1"),
			"trust_score":        gorm.Expr("LEAST(community_merchants.trust_score + ?, 100)", increment),
			"address":            gorm.Expr("COALESCE(community_merchants.address, EXCLUDED.address)"),
			"updated_at":         time.Now().UTC(),
		}),
	}).Create(&row).Error
	if err != nil {
		return domain.CommunityMerchant{}, err
	}

	var final CommunityMerchant
	if err := r.db.WithContext(ctx).
		Where("name_key = ? AND nif_key = ?", row.NameKey, row.NIFKey).
		First(&final).Error; err != nil {
		return domain.CommunityMerchant{}, err
	}
	return toCommunityMerchant(final), nil
}

func (r *communityRepository) ListSolidifiedProducts(ctx context.Context, ownerID uuid.UUID) ([]domain.Product, error) {
	var rows []Product
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_solidified", ownerID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Product{
			ID:           clientID(row.LocalID, row.ID),
			Name:         row.Name,
			Barcode:      deref(row.Barcode),
			IsSolidified: true,
		})
	}
	return out, nil
}

func (r *communityRepository) ListSolidifiedMerchants(ctx context.Context, ownerID uuid.UUID) ([]domain.Merchant, error) {
	var rows []Merchant
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_solidified", ownerID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Merchant, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Merchant{
			ID:           clientID(row.LocalID, row.ID),
			Name:         row.Name,
			NIF:          deref(row.NIF),
			Address:      deref(row.Address),
			IsSolidified: true,
		})
	}
	return out, nil
}

// EligibleProducts returns trusted directory rows the owner has no
// case-insensitive name match for.
func (r *communityRepository) EligibleProducts(ctx context.Context, ownerID uuid.UUID, minTrust, limit int) ([]domain.CommunityProduct, error) {
	var rows []CommunityProduct
	err := r.db.WithContext(ctx).
		Where("trust_score >= ?", minTrust).
		Where("name_key NOT IN (SELECT LOWER(name) FROM products WHERE owner_id = ?)", ownerID).
		Order("trust_score DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.CommunityProduct, 0, len(rows))
	for _, row := range rows {
		out = append(out, toCommunityProduct(row))
	}
	return out, nil
}

// EligibleMerchants mirrors EligibleProducts against the owner's merchants.
func (r *communityRepository) EligibleMerchants(ctx context.Context, ownerID uuid.UUID, minTrust, limit int) ([]domain.CommunityMerchant, error) {
	var rows []CommunityMerchant
	err := r.db.WithContext(ctx).
		Where("trust_score >= ?", minTrust).
		Where("name_key NOT IN (SELECT LOWER(name) FROM merchants WHERE owner_id = ?)", ownerID).
		Order("trust_score DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.CommunityMerchant, 0, len(rows))
	for _, row := range rows {
		out = append(out, toCommunityMerchant(row))
	}
	return out, nil
}

func (r *communityRepository) ProductByBarcode(ctx context.Context, barcode string) (*domain.CommunityProduct, error) {
	var row CommunityProduct
	err := r.db.WithContext(ctx).Where("barcode = ?", barcode).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p := toCommunityProduct(row)
	return &p, nil
}

func (r *communityRepository) MerchantByNIF(ctx context.Context, nif string) (*domain.CommunityMerchant, error) {
	var row CommunityMerchant
	err := r.db.WithContext(ctx).Where("nif = ?", nif).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m := toCommunityMerchant(row)
	return &m, nil
}

func (r *communityRepository) TopProducts(ctx context.Context, limit int) ([]domain.CommunityProduct, error) {
	var rows []CommunityProduct
	err := r.db.WithContext(ctx).
		Order("trust_score DESC, contribution_count DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.CommunityProduct, 0, len(rows))
	for _, row := range rows {
		out = append(out, toCommunityProduct(row))
	}
	return out, nil
}

func (r *communityRepository) TopMerchants(ctx context.Context, limit int) ([]domain.CommunityMerchant, error) {
	var rows []CommunityMerchant
	err := r.db.WithContext(ctx).
		Order("trust_score DESC, contribution_count DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.CommunityMerchant, 0, len(rows))
	for _, row := range rows {
		out = append(out, toCommunityMerchant(row))
	}
	return out, nil
}

func toCommunityProduct(row CommunityProduct) domain.CommunityProduct {
	return domain.CommunityProduct{
		ID:                row.ID.String(),
		Name:              row.Name,
		Barcode:           deref(row.Barcode),
		CategoryHint:      deref(row.CategoryHint),
		TrustScore:        row.TrustScore,
		ContributionCount: row.ContributionCount,
	}
}

func toCommunityMerchant(row CommunityMerchant) domain.CommunityMerchant {
	return domain.CommunityMerchant{
		ID:                row.ID.String(),
		Name:              row.Name,
		NIF:               deref(row.NIF),
		Address:           deref(row.Address),
		TrustScore:        row.TrustScore,
		ContributionCount: row.ContributionCount,
	}
}
