package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"substance-journal/internal/api"
	"substance-journal/internal/backup"
	"substance-journal/internal/notify"
	"substance-journal/internal/service"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, reminder scheduler, Telegram bot and daily backups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), fromContext(cmd.Context()))
		},
	}
}

func serve(ctx context.Context, a *app) error {
	scheduler := service.NewSchedulerService(time.Local)

	var (
		notifier service.Notifier = notify.NewLog(a.log)
		bot      *notify.Telegram
	)
	if a.cfg.TelegramEnabled() {
		var err error
		bot, err = notify.NewTelegram(a.cfg.TelegramToken, a.cfg.TelegramChatID, a.reminders, a.log.Named("telegram"))
		if err != nil {
			return err
		}
		notifier = bot
	}
	reminders := service.NewReminderService(a.store, scheduler, notifier, a.log.Named("reminders"))

	if a.cfg.DigestTime != "" {
		if _, err := scheduler.ScheduleDaily(a.cfg.DigestTime, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := sendDigest(jobCtx, reminders, notifier); err != nil {
				a.log.Error("daily digest", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if a.cfg.BackupEnabled() {
		client, err := backup.NewS3Client(ctx, a.cfg)
		if err != nil {
			return err
		}
		backups := backup.New(client, a.cfg.S3Bucket, a.cfg.BackupKeep, a.transfer, a.log)
		if _, err := scheduler.ScheduleDaily(a.cfg.BackupTime, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if _, err := backups.Run(jobCtx); err != nil {
				a.log.Error("daily backup", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	scheduler.Start()
	defer scheduler.Stop()

	server := api.New(api.Services{
		Experiences: a.experiences,
		Ingestions:  a.ingestions,
		Suggestions: a.suggestions,
		Catalog:     a.catalog,
		Reminders:   reminders,
		Transfer:    a.transfer,
	}, api.Options{APIKey: a.cfg.APIKey, Logger: a.log.Named("http")})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, a.cfg.HTTPAddr)
	})
	g.Go(func() error {
		if err := reminders.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if bot != nil {
		g.Go(func() error {
			return bot.Start(ctx)
		})
	}

	a.log.Info("journal started", zap.String("addr", a.cfg.HTTPAddr), zap.Bool("telegram", bot != nil))
	err := g.Wait()
	a.log.Info("shutdown complete")
	return err
}

func sendDigest(ctx context.Context, reminders *service.ReminderService, notifier service.Notifier) error {
	text, err := reminders.DailyDigest(ctx, time.Now())
	if err != nil {
		return err
	}
	return notifier.Notify(ctx, text)
}
