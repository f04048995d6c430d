package main

import (
	"fmt"

	log "github.com/charmbracelet/log"

	"github.com/nuno2msilva/pocket-keeper/infra"
	infrarepo "github.com/nuno2msilva/pocket-keeper/infra/repository"
	"github.com/nuno2msilva/pocket-keeper/pkg/app"
	"github.com/nuno2msilva/pocket-keeper/pkg/config"
	"github.com/nuno2msilva/pocket-keeper/webapi"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}
	logger := config.SetupLogger(&cfg.Log)

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := infra.Migrate(db, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	application := app.New(&app.Deps{
		Uow:    infrarepo.NewUoW(db, logger),
		Logger: logger,
	}, cfg)

	fiberApp := webapi.NewApp(cfg, application.SyncService, application.CommunityService)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("starting server", "env", cfg.Env, "address", addr)
	return fiberApp.Listen(addr)
}
