package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sifan077/linkbot/config"
	"github.com/sifan077/linkbot/internal/app/bot"
	appcache "github.com/sifan077/linkbot/internal/app/cache"
	"github.com/sifan077/linkbot/internal/app/conversation"
	apprepository "github.com/sifan077/linkbot/internal/app/repository"
	appserver "github.com/sifan077/linkbot/internal/app/server"
	appservice "github.com/sifan077/linkbot/internal/app/service"
	httpUtil "github.com/sifan077/linkbot/internal/http/util"
	"github.com/sifan077/linkbot/internal/infra/logger"
	infraNATS "github.com/sifan077/linkbot/internal/infra/nats"
	infraPostgres "github.com/sifan077/linkbot/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/linkbot/internal/infra/prometheus"
	infraRedis "github.com/sifan077/linkbot/internal/infra/redis"
	"github.com/sifan077/linkbot/internal/infra/tracing"
	"github.com/sifan077/linkbot/internal/infra/vkcc"
	"github.com/sifan077/linkbot/internal/telegram"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 30 * time.Second

	bloomExpectedItems = 1_000_000
	bloomFalsePositive = 0.001
	localCacheItems    = 10_000
)

func main() {
	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}
	log = logger.MustInit(logger.FromApp(cfg.Log, isDev, cfg.Bot.Token, cfg.Provider.Token))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Bot exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	log.Info("Bot stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("Configuration loaded successfully",
		zap.String("bot_mode", cfg.Bot.Mode),
		zap.Int("max_batch_size", cfg.Intake.MaxBatchSize),
		zap.Duration("session_ttl", cfg.Intake.SessionTTL),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
	)

	shutdownTracing, err := tracing.Init(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	if cfg.Prometheus.Enabled {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server", zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		infraPrometheus.Init()
	}

	// Link store: Postgres when configured, process memory otherwise.
	var (
		linkRepo  apprepository.LinkRepository
		eventRepo apprepository.LinkEventRepository
		pool      *pgxpool.Pool
	)
	if cfg.Postgres.Host != "" {
		gormDB, err := infraPostgres.NewGorm(cfg.Postgres, log)
		if err != nil {
			return err
		}
		sqlDB, err := gormDB.DB()
		if err != nil {
			return fmt.Errorf("access sql db: %w", err)
		}
		defer sqlDB.Close()

		if err := infraPostgres.Migrate(ctx, gormDB); err != nil {
			return err
		}

		pool, err = infraPostgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pool.Close()
		log.Info("Connected to Postgres successfully")

		filter := apprepository.NewDuplicateFilter(bloomExpectedItems, bloomFalsePositive)
		n, err := filter.Warm(ctx, gormDB)
		if err != nil {
			return fmt.Errorf("warm duplicate filter: %w", err)
		}
		log.Info("Duplicate filter warmed", zap.Int("links", n), zap.Uint32("approx_pairs", filter.Count()))
		if err := infraPrometheus.ObserveDuplicateFilter(filter.Count); err != nil {
			log.Warn("Failed to register duplicate filter gauge", zap.Error(err))
		}

		linkRepo = apprepository.NewLinkRepository(gormDB, filter)
		eventRepo = apprepository.NewLinkEventRepository(gormDB)
	} else {
		log.Warn("PG_HOST is not set, links are kept in memory and lost on restart")
		linkRepo = apprepository.NewMemoryLinkRepository()
	}

	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, running without stats cache L2 and throttle", zap.Error(err))
		} else {
			defer redisClient.Close()
			log.Info("Connected to Redis successfully")
		}
	}

	localCache, err := appcache.NewLocalCache(localCacheItems, cfg.Provider.StatsTTL)
	if err != nil {
		return fmt.Errorf("create local cache: %w", err)
	}
	statsCache := appcache.NewStatsCache(redisClient, localCache, cfg.Provider.StatsTTL, log)
	defer statsCache.Close()

	vk := vkcc.New(cfg.Provider, logger.Named("vkcc"))

	deps := appservice.LinkServiceDeps{
		Repo:   linkRepo,
		Stats:  vk,
		Cache:  statsCache,
		Logger: log,
	}

	var natsConn *nats.Conn
	if cfg.NATS.Enabled {
		conn, js, err := infraNATS.Connect(cfg.NATS, log)
		if err != nil {
			return err
		}
		natsConn = conn
		defer natsConn.Drain()
		log.Info("Connected to NATS successfully")

		publisher, err := appservice.NewEventPublisher(js)
		if err != nil {
			return err
		}
		deps.Events = publisher

		if eventRepo != nil {
			consumerCtx, stopConsumer := context.WithCancel(ctx)
			consumer := appservice.NewEventConsumer(js, log, eventRepo)
			if err := consumer.Start(consumerCtx); err != nil {
				stopConsumer()
				return err
			}
			defer func() {
				stopConsumer()
				<-consumer.Done()
			}()
		}
	}

	links := appservice.NewLinkService(deps)

	sessions := conversation.NewSessionStore()
	pipeline := conversation.NewPipeline(conversation.PipelineDeps{
		Sessions:     sessions,
		Links:        links,
		Shortener:    vk,
		MaxBatchSize: cfg.Intake.MaxBatchSize,
		Logger:       logger.Named("conversation"),
		LinkView:     bot.CardView,
	})

	reaper := appservice.NewSessionReaper(log, sessions, cfg.Intake.SessionTTL)
	reaper.Start()
	defer reaper.Stop()

	router := bot.NewRouter(bot.RouterDeps{
		Pipeline: pipeline,
		Links:    links,
		Limiter: bot.NewThrottle(redisClient, bot.ThrottleConfig{
			MaxUpdates: cfg.Intake.ThrottleLimit,
			Window:     cfg.Intake.ThrottleWindow,
		}, log),
		PageSize: cfg.Intake.PageSize,
		Logger:   logger.Named("bot"),
	})

	dispatcher := bot.NewDispatcher(telegram.Handler(router.Handle), bot.DispatcherConfig{
		IdleTimeout: cfg.Intake.LaneIdleTimeout,
	}, log)

	api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return fmt.Errorf("connect to telegram: %w", err)
	}
	api.Debug = cfg.Bot.Debug
	log.Info("Authorized on Telegram", zap.String("username", api.Self.UserName))

	dispatch := func(u tgbotapi.Update) bool {
		job, ok := telegram.Convert(u, api, log)
		if !ok {
			return false
		}
		return dispatcher.Dispatch(job)
	}

	serverDeps := appserver.Dependencies{
		Logger:   log,
		Postgres: pool,
		Redis:    redisClient,
		NATS:     natsConn,
	}

	if cfg.Bot.Mode == config.ModeWebhook {
		secret := cfg.Bot.WebhookSecret
		if secret == "" {
			secret = cfg.Bot.Token
		}
		signer := httpUtil.NewWebhookSigner([]byte(secret))
		token, err := signer.Token()
		if err != nil {
			return err
		}

		serverDeps.WebhookPath = cfg.HTTP.WebhookPath
		serverDeps.Signer = signer
		serverDeps.OnUpdate = dispatch

		hookURL := strings.TrimRight(cfg.Bot.WebhookURL, "/") + cfg.HTTP.WebhookPath + "/" + token
		if err := telegram.SetWebhook(api, hookURL); err != nil {
			return err
		}
		log.Info("Webhook registered", zap.String("path", cfg.HTTP.WebhookPath))
	}

	server := appserver.New(serverDeps)
	serverErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
		log.Info("Starting ops HTTP server", zap.String("addr", addr))
		serverErr <- server.Listen(addr)
	}()

	pollDone := make(chan error, 1)
	if cfg.Bot.Mode == config.ModePolling {
		poller := telegram.NewPoller(api, api, cfg.Bot.PollTimeout, dispatcher.Dispatch, log)
		go func() { pollDone <- poller.Run(ctx) }()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("ops server: %w", err)
	case err := <-pollDone:
		if err != nil {
			runErr = fmt.Errorf("polling: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to stop ops server", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn("Pending updates were not finished", zap.Error(err))
	}
	return runErr
}
