package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"wehabit/internal/bot"
	"wehabit/internal/config"
	"wehabit/internal/logger"
	"wehabit/internal/metrics"
	"wehabit/internal/repository"
	"wehabit/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "wehabit: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	l, err := logger.New(logger.Config{Debug: cfg.Debug, Dir: cfg.LogDir})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	loc, err := cfg.ReminderLocation()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	table, err := config.LoadAchievements(cfg.AchievementsFile)
	if err != nil {
		return fmt.Errorf("achievements: %w", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL, l)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	store := repository.NewStore(db)
	defer store.Close()

	clock := service.Clock(service.SystemClock)
	m := metrics.New()

	feedSvc := service.NewFeedService(store, clock, l)
	achievementSvc := service.NewAchievementService(store, table, feedSvc, l)
	userSvc := service.NewUserService(store)

	telegramBot, err := bot.New(cfg.TelegramToken, userSvc, achievementSvc, cfg.AppURL, l)
	if err != nil {
		return fmt.Errorf("bot: %w", err)
	}

	delivery := service.DeliveryConfig{
		AppURL:      cfg.AppURL,
		Batch:       cfg.DeliveryBatch,
		MaxAttempts: cfg.MaxDeliveryAttempts,
		RetryBase:   cfg.RetryBase,
		RetryMax:    cfg.RetryMax,
		Retention:   cfg.FeedRetention,
	}
	reminderSvc := service.NewReminderService(store, telegramBot, delivery.Button(), loc, clock, m, l)
	notifier := service.NewNotificationService(store, telegramBot, reminderSvc, table, delivery, loc, clock, m, l)

	scheduler := service.NewSchedulerService(loc, l)
	if _, err := scheduler.ScheduleInterval(cfg.PollInterval, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), cfg.PollInterval*5)
		defer cancel()
		notifier.RunCycle(jobCtx)
	}); err != nil {
		return fmt.Errorf("schedule poller: %w", err)
	}
	if _, err := scheduler.ScheduleDaily(cfg.CleanupTime, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := notifier.CleanupOldEvents(jobCtx); err != nil {
			l.Error("feed cleanup failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return telegramBot.Start(gctx)
	})
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(m), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			l.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	l.Info("wehabit started", "poll", cfg.PollInterval, "offset", cfg.ReminderUTCOffset)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	l.Info("shutdown complete")
	return nil
}

func metricsMux(m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}
