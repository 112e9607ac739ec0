package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicshield/backend/internal/analysis"
	"civicshield/backend/internal/api/handler"
	"civicshield/backend/internal/authz"
	"civicshield/backend/internal/complaint"
	"civicshield/backend/internal/config"
	"civicshield/backend/internal/corpus"
	"civicshield/backend/internal/escalation"
	"civicshield/backend/internal/extract"
	"civicshield/backend/internal/localization"
	"civicshield/backend/internal/logger"
	"civicshield/backend/internal/metrics"
	"civicshield/backend/internal/notify"
	"civicshield/backend/internal/pipeline"
	"civicshield/backend/internal/statushub"
	"civicshield/backend/internal/storage"
	"civicshield/backend/internal/telegram"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func setupDependencies(ctx context.Context, cfg *config.Config, lg *zap.Logger) (*gorm.DB, *redis.Client) {
	db, err := storage.Open(cfg)
	if err != nil {
		lg.Fatal("failed to connect database", zap.Error(err))
	}
	if err := storage.AutoMigrate(db); err != nil {
		lg.Fatal("failed to run migrations", zap.Error(err))
	}

	if cfg.Redis.Addr == "" {
		lg.Warn("REDIS_ADDR not set; status events stay in-process and the escalation lock is disabled")
		return db, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		lg.Fatal("failed to connect redis", zap.Error(err))
	}

	lg.Info("database and redis connections established, migrations complete")
	return db, rdb
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	if cfg.Auth.JWTSecret == "" {
		lg.Fatal("JWT_SECRET is not set")
	}

	sentryEnabled := cfg.Sentry.DSN != ""
	if sentryEnabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			ServerName:  cfg.ServiceName,
		}); err != nil {
			lg.Fatal("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Storage
	db, rdb := setupDependencies(ctx, cfg, lg)
	store := storage.NewStorageService(db, rdb)
	if next, err := store.MigrateCounter(ctx); err != nil {
		lg.Fatal("failed to migrate complaint counter", zap.Error(err))
	} else {
		lg.Info("complaint counter ready", zap.Int64("next", next))
	}

	// 2. Policy, directory and message catalogue
	az, err := authz.New(ctx)
	if err != nil {
		lg.Fatal("failed to compile policy", zap.Error(err))
	}
	dir := config.DefaultDirectory()
	if cfg.DirectoryFile != "" {
		if dir, err = config.LoadDirectory(cfg.DirectoryFile); err != nil {
			lg.Fatal("failed to load directory", zap.Error(err))
		}
	}
	messages, err := localization.NewLocalizer(cfg.MessagesDir)
	if err != nil {
		lg.Fatal("failed to load message catalogue", zap.String("dir", cfg.MessagesDir), zap.Error(err))
	}
	lg.Info("message catalogue loaded", zap.Strings("languages", messages.Languages()))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 3. Analysis
	index := corpus.NewIndex(store, corpus.Options{
		TTL:           cfg.Embedding.TTL,
		VocabSize:     cfg.Embedding.VocabSize,
		ColdStartDims: cfg.Embedding.ColdStartDims,
		Threshold:     cfg.Embedding.Threshold,
		TopK:          cfg.Embedding.TopK,
	}, lg, m)

	var gen analysis.Generator
	gemini := analysis.NewGeminiClient(analysis.GeminiOptions{
		APIKey:        cfg.AI.APIKey,
		URL:           cfg.AI.URL,
		BaseDelay:     cfg.AI.BaseDelay,
		MaxRetries:    cfg.AI.MaxRetries,
		RatePerSecond: cfg.AI.RatePerSecond,
		Burst:         cfg.AI.Burst,
		Timeout:       cfg.AI.Timeout,
	}, lg, m)
	if gemini.Enabled() {
		gen = gemini
	} else {
		lg.Warn("GEMINI_API_KEY not set; using rule-based analysis only")
	}
	analyzer := analysis.NewAnalyzer(gen, lg, m)

	// 4. Notifications
	notifiers := []notify.Notifier{notify.NewLogMailer(lg)}
	var botAPI *tgbotapi.BotAPI
	if cfg.Telegram.Token != "" {
		if botAPI, err = telegram.NewBotAPI(cfg.Telegram.Token, lg); err != nil {
			lg.Fatal("failed to start telegram bot", zap.Error(err))
		}
		notifiers = append(notifiers, telegram.NewNotifier(botAPI, cfg.Telegram.ChatID, lg))
	}
	notifier := notify.NewMulti(lg, m, notifiers...)

	// 5. Lifecycle engine and background workers
	hub := statushub.NewHub(rdb, lg)
	svc := complaint.NewService(complaint.Deps{
		Storage:   store,
		Authz:     az,
		Directory: dir,
		Notifier:  notifier,
		Publisher: hub,
		Messages:  messages,
		Language:  cfg.HistoryLang,
		Deadline:  escalation.Deadline,
		Log:       lg,
		Metrics:   m,
	})

	runner := pipeline.NewRunner(pipeline.Deps{
		Engine:    svc,
		Store:     store,
		Index:     index,
		Analyst:   analyzer,
		Extractor: extract.NewLocal(cfg.Uploads.Dir, cfg.Uploads.Tesseract, lg),
		Log:       lg,
		Metrics:   m,
	}, pipeline.Options{
		Workers:           cfg.Pipeline.Workers,
		QueueSize:         cfg.Pipeline.QueueSize,
		StaleAfter:        cfg.Pipeline.StaleAfter,
		ReconcileInterval: cfg.Pipeline.ReconcileInterval,
	})
	svc.SetEnqueuer(runner)

	scheduler := escalation.NewScheduler(escalation.Deps{
		Store:     store,
		Escalator: svc,
		Locker:    store,
		Notifier:  notifier,
		Messages:  messages,
		Log:       lg,
		Metrics:   m,
		Interval:  cfg.Escalation.Interval,
		LockTTL:   cfg.Escalation.LockTTL,
	})

	// 6. HTTP
	auth, err := handler.NewAuthenticator(cfg.Auth.JWTSecret)
	if err != nil {
		lg.Fatal("authenticator", zap.Error(err))
	}
	gin.SetMode(gin.ReleaseMode)
	h := handler.NewHandler(svc, hub, dir, auth, lg)
	server := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: handler.NewRouter(h, handler.RouterOptions{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			Gatherer:       reg,
			Sentry:         sentryEnabled,
		}),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { hub.Run(gctx); return nil })
	g.Go(func() error { return runner.Start(gctx) })
	g.Go(func() error { return scheduler.Start(gctx) })
	g.Go(func() error {
		n, err := index.BackfillAll(gctx, cfg.Embedding.BackfillBatch)
		if err != nil && gctx.Err() == nil {
			lg.Warn("startup embedding backfill stopped", zap.Int("stored", n), zap.Error(err))
			return nil
		}
		lg.Info("startup embedding backfill done", zap.Int("stored", n))
		return nil
	})
	if botAPI != nil {
		bot := telegram.NewBotService(botAPI, botAPI, svc, cfg.Telegram.ChatID, lg)
		g.Go(func() error { bot.Run(gctx); return nil })
	}
	g.Go(func() error {
		lg.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		lg.Error("backend stopped with error", zap.Error(err))
		return
	}
	lg.Info("backend stopped")
}
