package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nuno2msilva/pocket-keeper/pkg/domain"
	"github.com/nuno2msilva/pocket-keeper/pkg/repository"
)

type profileRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewProfileRepository creates the profile store over the given gorm session.
func NewProfileRepository(db *gorm.DB, logger *slog.Logger) repository.ProfileRepository {
	return &profileRepository{db: db, logger: logger}
}

func (r *profileRepository) Get(ctx context.Context, ownerID uuid.UUID) (*domain.Profile, error) {
	var row Profile
	err := r.db.WithContext(ctx).Where("id = ?", ownerID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("profile %s: %w", ownerID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &domain.Profile{
		ID:               row.ID.String(),
		Username:         row.Username,
		CommunityEnabled: row.CommunityEnabled,
	}, nil
}
