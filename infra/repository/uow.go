package repository

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/nuno2msilva/pocket-keeper/pkg/repository"
)

// UoW provides the transaction boundary and repository access in one
// abstraction. Every repository obtained inside Do is bound to the
// transaction session, which is what makes a sync push all-or-nothing at the
// storage layer.
type UoW struct {
	db     *gorm.DB
	tx     *gorm.DB
	logger *slog.Logger
}

// NewUoW creates a UoW for the given *gorm.DB.
func NewUoW(db *gorm.DB, logger *slog.Logger) *UoW {
	return &UoW{db: db, logger: logger}
}

// Do runs fn inside a transaction, handing it a UoW bound to that
// transaction.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&UoW{db: u.db, tx: tx, logger: u.logger})
	})
}

// session returns the transaction when inside Do, the root handle otherwise.
func (u *UoW) session() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

// SyncRepository returns the sync store bound to the current session.
func (u *UoW) SyncRepository() (repository.SyncRepository, error) {
	return NewSyncRepository(u.session(), u.logger), nil
}

// CommunityRepository returns the community store bound to the current
// session.
func (u *UoW) CommunityRepository() (repository.CommunityRepository, error) {
	return NewCommunityRepository(u.session(), u.logger), nil
}

// ProfileRepository returns the profile store bound to the current session.
func (u *UoW) ProfileRepository() (repository.ProfileRepository, error) {
	return NewProfileRepository(u.session(), u.logger), nil
}
