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

	"crosspost/domain/repository"
	"crosspost/infrastructure/cache"
	"crosspost/infrastructure/clients/platform"
	youtubeclient "crosspost/infrastructure/clients/youtube"
	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/metrics"
	"crosspost/infrastructure/persistence"
	"crosspost/infrastructure/pubsub"
	"crosspost/infrastructure/realtime"
	"crosspost/infrastructure/servicebus"
	httpHandler "crosspost/interfaces/http"
	"crosspost/server"
	"crosspost/usecase"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence)
	for _, f := range configuration.LoadEnvFromFile("config.env", ".env") {
		logger.GetLogger().WithField("file", f).Info("Loaded environment file")
	}
	configuration.Apply(&configuration.C)
	cfg := configuration.C
	app := cfg.App

	m := metrics.New()
	posts := InitiatePostStore()
	accounts := InitiateAccountStore()
	audit := InitiateAudit(ctx)
	snapshots := InitiateSnapshotCache(ctx)

	// Lifecycle events: SSE for connected clients, brokers through the relay.
	hub := realtime.NewPostHub()
	var publishers []repository.IEventPublisher
	pubSubClient, err := pubsub.NewPubSub(ctx, cfg.Pubsub.ProjectID)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("PubSub not available - post events will not be published there")
	} else if cfg.Pubsub.TopicID != "" {
		publisher := pubsub.NewPostEventPublisher(pubSubClient, cfg.Pubsub.TopicID)
		if err := publisher.EnsureTopic(ctx); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while ensuring PubSub topic")
		}
		defer publisher.Stop()
		publishers = append(publishers, publisher)
	}
	azServiceBusClient, err := servicebus.NewServiceBus(cfg.ServiceBus.Namespace)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - continuing without Service Bus features")
	} else if cfg.ServiceBus.Queue != "" {
		publishers = append(publishers, servicebus.NewPostEventSender(azServiceBusClient, cfg.ServiceBus.Queue))
	}
	relay := usecase.NewEventRelay(0, publishers...)

	registry := usecase.NewConstraintRegistry(cfg.Platforms.ConstraintOverrides())
	dispatcher := InitiateDispatcher(accounts)

	publishUsecase := usecase.NewPublishUsecase(posts, dispatcher, usecase.NewValidator(registry),
		usecase.WithAudit(audit),
		usecase.WithObserver(m),
		usecase.WithSendTimeout(cfg.Dispatch.SendTimeout),
		usecase.WithBroadcaster(hub.BroadcastPostEvent),
		usecase.WithBroadcaster(relay.Broadcast),
	)
	accountUsecase := usecase.NewAccountUsecase(accounts, dispatcher)
	reconcileUsecase := usecase.NewReconcileUsecase(publishUsecase, accountUsecase)

	analyticsOpts := []usecase.AnalyticsOption{usecase.WithSnapshotCache(snapshots, cfg.Analytics.CacheTTL)}
	if service, err := youtubeclient.NewService(ctx, cfg.OAuth.YouTube); err != nil {
		logger.GetLogger().WithField("error", err).Info("YouTube API credentials not configured - engagement refresh disabled")
	} else {
		analyticsOpts = append(analyticsOpts, usecase.WithEngagementSource(youtubeclient.NewEngagementSource(service)))
	}
	analyticsUsecase := usecase.NewAnalyticsUsecase(posts, analyticsOpts...)

	router := server.InitiateRouter(
		httpHandler.NewPostHandler(publishUsecase, analyticsUsecase),
		httpHandler.NewOfflineHandler(reconcileUsecase, m.ObserveReconciliation),
		httpHandler.NewAccountHandler(accountUsecase),
		httpHandler.NewAnalyticsHandler(analyticsUsecase),
		httpHandler.NewPlatformHandler(registry),
		server.Options{
			SecretKey:    app.SecretKey,
			AllowOrigins: app.AllowOrigins,
			Instrument:   m.Middleware(),
			Metrics:      gin.WrapH(m.Handler()),
			Stream:       hub.Serve,
		},
	)

	g.Go(func() error {
		return relay.Run(ctx)
	})

	// Scheduled posts whose time has come are dispatched by this loop.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Dispatch.SchedulerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				started, err := publishUsecase.ProcessDueScheduled(ctx, cfg.Dispatch.SchedulerBatch)
				if err != nil {
					logger.GetLogger().WithField("error", err).Error("Error while processing scheduled posts")
					continue
				}
				if started > 0 {
					logger.GetLogger().WithField("started", started).Info("Scheduled posts dispatched")
				}
			}
		}
	})

	port := app.Port
	logger.GetLogger().WithFields(map[string]interface{}{"port": port, "tls": app.TLSEnabled}).Info("Starting application")
	httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		if app.TLSEnabled {
			cert := app.TLSCertFile
			key := app.TLSKeyFile
			if cert != "" && key != "" {
				logger.GetLogger().WithFields(map[string]interface{}{"cert": cert, "key": key}).Info("Serving HTTPS")
				if err := httpServer.ListenAndServeTLS(cert, key); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			}
			logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
		}
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.GetLogger().WithField("error", err).Warn("HTTP server shutdown incomplete")
	}

	if err := g.Wait(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

// InitiatePostStore selects the post store: MSSQL in production or with
// DB_VENDOR=mssql, PostgreSQL locally, process memory when neither answers.
func InitiatePostStore() repository.IPost {
	env := os.Getenv("ENV")
	if os.Getenv("DB_VENDOR") == "mssql" || env == "production" || env == "prod" {
		db, err := persistence.NewMSSQLDB()
		if err == nil {
			if err := persistence.EnsurePostSchemaMSSQL(db); err != nil {
				logger.GetLogger().WithField("error", err).Error("failed ensuring social_posts schema (mssql)")
			}
			logger.GetLogger().Info("Post store: MSSQL")
			return persistence.NewPostRepositoryMSSQL(db)
		}
		logger.GetLogger().WithField("error", err).Error("Cannot connect to MSSQL")
	} else {
		db, err := persistence.NewPostgreSQLDB()
		if err == nil {
			if err := persistence.EnsurePostSchema(db); err != nil {
				logger.GetLogger().WithField("error", err).Error("failed ensuring social_posts schema")
			}
			logger.GetLogger().Info("Post store: PostgreSQL")
			return persistence.NewPostRepository(db)
		}
		logger.GetLogger().WithField("error", err).Warn("PostgreSQL not available")
	}
	logger.GetLogger().Warn("Post store: in-memory; posts will not survive a restart")
	return persistence.NewMemoryPostRepository()
}

func InitiateAccountStore() repository.IAccount {
	db, err := persistence.NewAccountDB()
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("MySQL not available - social accounts kept in memory")
		return persistence.NewMemoryAccountRepository()
	}
	if err := persistence.AutoMigrateAccounts(db); err != nil {
		logger.GetLogger().WithField("error", err).Error("failed migrating social_accounts")
	}
	return persistence.NewAccountRepository(db)
}

func InitiateAudit(ctx context.Context) repository.IDispatchAudit {
	mongoCfg := configuration.C.Database.Mongo
	client, err := persistence.NewMongoDb(mongoCfg.Host, mongoCfg.Port, mongoCfg.User, mongoCfg.Password)
	if err == nil {
		err = persistence.PingMongo(ctx, client)
	}
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB not available - dispatch audit kept in memory")
		return persistence.NewMemoryDispatchAudit()
	}
	name := mongoCfg.Name
	if name == "" {
		name = "crosspost"
	}
	audit := persistence.NewDispatchAuditRepository(client, name)
	if ensurer, ok := audit.(interface{ EnsureIndexes(context.Context) error }); ok {
		if err := ensurer.EnsureIndexes(ctx); err != nil {
			logger.GetLogger().WithField("error", err).Warn("failed ensuring dispatch audit indexes")
		}
	}
	logger.GetLogger().Info("MongoDB connected successfully")
	return audit
}

func InitiateSnapshotCache(ctx context.Context) repository.ISnapshotCache {
	client, err := cache.NewRedisClient(ctx, configuration.C.RedisClient)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available - analytics snapshots cached in memory")
		return cache.NewMemorySnapshotCache(nil)
	}
	logger.GetLogger().Info("Redis client initialized successfully.")
	return cache.NewRedisSnapshotCache(client)
}

// InitiateDispatcher registers a live sender for every platform listed in
// configuration; the rest go through the loopback sender.
func InitiateDispatcher(accounts repository.IAccount) *platform.Dispatcher {
	cfg := configuration.C
	client := &http.Client{Timeout: cfg.Dispatch.SendTimeout}
	opts := []platform.Option{
		platform.WithRateLimit(cfg.Dispatch.RatePerSecond, cfg.Dispatch.Burst),
		platform.WithFallback(func(p string) platform.Sender { return platform.NewLoopbackSender(p) }),
	}
	if cfg.Platforms.IsLive("facebook") {
		opts = append(opts, platform.WithSender("facebook",
			platform.NewFacebookSender(cfg.Platforms.FacebookGraph, cfg.OAuth.Facebook.ClientSecret, client)))
	}
	if cfg.Platforms.IsLive("twitter") {
		twitter := platform.NewTwitterSender(cfg.Platforms.TwitterAPI, &oauth2.Config{
			ClientID:     cfg.OAuth.Twitter.ClientID,
			ClientSecret: cfg.OAuth.Twitter.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.OAuth.Twitter.TokenURL},
		}, client)
		opts = append(opts, platform.WithSender("twitter", twitter), platform.WithSender("x", twitter))
	}
	if cfg.Platforms.IsLive("youtube") {
		opts = append(opts, platform.WithSender("youtube", youtubeclient.NewVideoSender(client, "")))
	}
	logger.GetLogger().WithField("live", cfg.Platforms.Live).Info("Platform senders configured")
	return platform.NewDispatcher(accounts, opts...)
}
