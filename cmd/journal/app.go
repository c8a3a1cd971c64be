package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"substance-journal/internal/config"
	"substance-journal/internal/logging"
	"substance-journal/internal/repository"
	"substance-journal/internal/service"
	"substance-journal/internal/transfer"
)

// app holds the services every command shares.
type app struct {
	cfg         config.Config
	log         *zap.Logger
	db          *gorm.DB
	store       *repository.Store
	photos      *service.PhotoStore
	experiences *service.ExperienceService
	ingestions  *service.IngestionService
	suggestions *service.SuggestionService
	catalog     *service.CatalogService
	reminders   *service.ReminderService
	transfer    *transfer.Service
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL, logger, cfg.SlowQuery)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("db: %w", err)
	}
	store := repository.NewStore(db, repository.NewTracker())
	photos := service.NewPhotoStore(cfg.PhotoDir)

	return &app{
		cfg:         cfg,
		log:         logger,
		db:          db,
		store:       store,
		photos:      photos,
		experiences: service.NewExperienceService(store, photos, cfg.ConsumerName, logger),
		ingestions:  service.NewIngestionService(store),
		suggestions: service.NewSuggestionService(store, cfg.SuggestionLimit),
		catalog:     service.NewCatalogService(store),
		reminders:   service.NewReminderService(store, nil, nil, logger),
		transfer:    transfer.New(store, photos, cfg.MaxImportBytes, logger),
	}, nil
}

func (a *app) Close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.log.Sync()
}

type appKey struct{}

func fromContext(ctx context.Context) *app {
	return ctx.Value(appKey{}).(*app)
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "journal",
		Short:         "Substance journal: ingestion log, reminders, backups",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey{}).(*app); ok {
				a.Close()
			}
		},
	}
	root.AddCommand(
		serveCommand(),
		exportCommand(),
		importCommand(),
		importSubstancesCommand(),
		backupCommand(),
		suggestCommand(),
		remindersCommand(),
	)
	return root
}
