package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"tutormula/internal/api"
	"tutormula/internal/config"
	"tutormula/internal/conversation"
	"tutormula/internal/database"
	"tutormula/internal/lock"
	"tutormula/internal/logger"
	"tutormula/internal/logger/sl"
	"tutormula/internal/metrics"
	"tutormula/internal/repository"
	"tutormula/internal/scheduler"
	"tutormula/internal/security"
	"tutormula/internal/service"
	"tutormula/internal/telegram"
)

const dialogExpiryInterval = time.Hour

func main() {
	cfg := config.MustLoad()

	log := logger.Setup(cfg.Env)
	log.Info("starting tutormula", slog.String("env", cfg.Env), slog.String("database", cfg.DatabaseType))
	log.Debug("debug messages are enabled")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	applied, err := db.RunMigrations(ctx)
	if err != nil {
		log.Error("failed to run migrations", sl.Err(err))
		os.Exit(1)
	}
	log.Info("migrations completed", slog.Int("applied", len(applied)))
	if _, err := db.SeedDefaultSettings(ctx); err != nil {
		log.Error("failed to seed settings", sl.Err(err))
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var (
		locker      lock.Locker
		states      conversation.StateStore
		sqlStates   *conversation.SQLStore
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient, err = lock.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			log.Error("failed to init redis", sl.Err(err))
			os.Exit(1)
		}
		locker = lock.NewRedisLock(redisClient)
		states = conversation.NewRedisStore(redisClient, conversation.DefaultStateTTL)
		log.Info("using redis for dialog state and locks", slog.String("addr", cfg.RedisAddr))
	} else {
		locker = lock.NewLocalLock()
		sqlStates = conversation.NewSQLStore(repository.NewDialogRepository(db))
		states = sqlStates
	}

	mailer, err := service.NewEmailService(ctx, cfg.Email.AWSRegion, cfg.Email.FromEmail, cfg.Email.FromName, log)
	if err != nil {
		log.Error("failed to init email service", sl.Err(err))
		os.Exit(1)
	}

	var (
		client    *telegram.Client
		deliverer service.Deliverer = logDeliverer{log: log}
	)
	if cfg.BotEnabled() {
		client = telegram.NewClient(cfg.Telegram.APIURL, cfg.Telegram.Token, log)
		deliverer = client
	} else {
		log.Warn("TELEGRAM_TOKEN not set, chat transport disabled")
	}

	identity := service.NewIdentityService(db, log)
	enrollment := service.NewEnrollmentService(db, log)
	scheduling := service.NewSchedulingService(db, log)
	notify := service.NewNotifyService(db, deliverer, cfg.Scheduler.NotifyTimeout, m, log)
	reports := service.NewReportService(db, deliverer, mailer, cfg.Scheduler.NotifyTimeout, m, log)
	admin := service.NewAdminService(db, log)

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
			log.Info("component stopped", slog.String("component", name))
		}()
	}

	if client != nil {
		engine := conversation.NewEngine(conversation.Services{
			Identity:   identity,
			Enrollment: enrollment,
			Scheduling: scheduling,
			Notifier:   notify,
		}, states, m, log)

		chatLimiter := security.NewRateLimiter(cfg.Telegram.RateLimit, cfg.Telegram.RateWindow)
		defer chatLimiter.Stop()

		poller := telegram.NewPoller(client, engine, locker, chatLimiter, telegram.PollerConfig{
			Workers:     cfg.Telegram.Workers,
			PollTimeout: cfg.Telegram.PollTimeout,
		}, m, log)
		run("poller", func(ctx context.Context) {
			if err := poller.Run(ctx); err != nil {
				log.Error("poller stopped", sl.Err(err))
			}
		})
	}

	daily := scheduler.NewDaily(reports, cfg.Scheduler.Interval, cfg.Scheduler.RunTimeout, log)
	run("scheduler", daily.Run)

	if sqlStates != nil {
		run("dialog-expiry", func(ctx context.Context) {
			expireDialogs(ctx, log, sqlStates)
		})
	}

	tokenLimiter := security.NewRateLimiter(5, time.Minute)
	defer tokenLimiter.Stop()

	if !cfg.AdminAPIEnabled() {
		log.Warn("ADMIN_SECRET or JWT_SECRET not set, admin API disabled")
	}
	apiServer := api.NewServer(api.Services{
		Identity:   identity,
		Enrollment: enrollment,
		Scheduling: scheduling,
		Admin:      admin,
		Reports:    reports,
	}, cfg.Admin, tokenLimiter, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), log)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      apiServer.Router(),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	log.Info("shutting down HTTP server", slog.Duration("timeout", cfg.HTTPServer.ShutdownTimeout))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", sl.Err(err))
	}

	wg.Wait()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("failed to close redis", sl.Err(err))
		}
	}
	log.Info("shutdown finished")
}

// expireDialogs drops abandoned SQL dialog rows; redis expires its own keys
func expireDialogs(ctx context.Context, log *slog.Logger, store *conversation.SQLStore) {
	ticker := time.NewTicker(dialogExpiryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Expire(ctx, conversation.DefaultStateTTL)
			if err != nil {
				log.Error("failed to expire dialogs", sl.Err(err))
				continue
			}
			if n > 0 {
				log.Info("expired abandoned dialogs", slog.Int64("count", n))
			}
		}
	}
}

// logDeliverer stands in for the chat transport when no bot token is configured
type logDeliverer struct {
	log *slog.Logger
}

func (d logDeliverer) Deliver(_ context.Context, externalID int64, text string) error {
	d.log.Info("notification (chat disabled)", slog.Int64("external_id", externalID), slog.String("text", text))
	return nil
}
