// Package app wires configuration, storage and services into one unit the
// binaries can start from.
package app

import (
	"log/slog"

	"github.com/nuno2msilva/pocket-keeper/pkg/config"
	"github.com/nuno2msilva/pocket-keeper/pkg/repository"
	"github.com/nuno2msilva/pocket-keeper/pkg/service/community"
	syncsvc "github.com/nuno2msilva/pocket-keeper/pkg/service/sync"
)

// Deps contains the infrastructure dependencies the services run on.
type Deps struct {
	Uow    repository.UnitOfWork
	Logger *slog.Logger
}

// App is the assembled server application.
type App struct {
	Deps             *Deps
	Config           *config.App
	SyncService      *syncsvc.Service
	CommunityService *community.Service
}

// New builds the service layer on top of deps.
func New(deps *Deps, cfg *config.App) *App {
	return &App{
		Deps:             deps,
		Config:           cfg,
		SyncService:      syncsvc.New(deps.Uow, deps.Logger),
		CommunityService: community.New(deps.Uow, cfg.Community, deps.Logger),
	}
}
