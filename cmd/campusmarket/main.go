package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	appchat "campusmarket/internal/app/chat"
	appmoderation "campusmarket/internal/app/moderation"
	domainchat "campusmarket/internal/domain/chat"
	domainlistings "campusmarket/internal/domain/listings"
	domainmoderation "campusmarket/internal/domain/moderation"
	"campusmarket/internal/infra/broker/kafka"
	rediscache "campusmarket/internal/infra/cache/redis"
	"campusmarket/internal/infra/config"
	"campusmarket/internal/infra/db/mongo"
	"campusmarket/internal/infra/db/scylla"
	ginserver "campusmarket/internal/infra/http/gin"
	"campusmarket/internal/infra/obs"
	"campusmarket/internal/infra/security"
	"campusmarket/internal/infra/storage/memory"
	"campusmarket/internal/infra/storage/s3"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("using fallback configuration", "error", err)
		cfg.Env = env
		cfg.HTTPAddr = getenv("HTTP_ADDR", ":8080")
		cfg.TokenSecret = getenv("TOKEN_SECRET", "dev-secret")
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	app, cleanup := buildApplication(ctx, cfg, logger)
	defer cleanup()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Probes: app.probes,
	}, app.handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	probes   map[string]func() error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (application, func()) {
	probes := make(map[string]func() error)
	closers := make([]func(), 0)

	chatStore := buildChatStore(cfg, logger, &closers)
	listingRepo, savedStore, moderationStore := buildStores(cfg, logger, probes, &closers)

	var cache appchat.UnreadCache
	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		cache = rediscache.NewUnreadCache(client, cfg.UnreadTTL)
		probes["redis"] = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx).Err()
		}
		closers = append(closers, func() { _ = client.Close() })
		logger.Info("redis unread cache enabled", "addr", cfg.RedisAddr)
	}

	hub := ginserver.NewSessionHub(chatStore, listingRepo, savedStore, cache, cfg.FetchTimeout, logger)

	var chatEvents ginserver.EventPublisher
	var auditPublisher appmoderation.AuditPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			logger.Warn("kafka producer unavailable", "error", err)
		} else {
			chatTopic := cfg.KafkaTopicPrefix + cfg.KafkaChatTopic
			auditTopic := cfg.KafkaTopicPrefix + cfg.KafkaAuditTopic
			chatEvents = kafka.NewChatEventPublisher(producer, chatTopic)
			auditPublisher = kafka.NewAuditPublisher(producer, auditTopic)
			closers = append(closers, func() { _ = producer.Close() })

			consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, kafka.NewChatEventHandler(hub), logger)
			if err != nil {
				logger.Warn("kafka consumer unavailable", "error", err)
			} else {
				closers = append(closers, func() { _ = consumer.Close() })
				go func() {
					if err := consumer.Run(ctx, []string{chatTopic}); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("kafka consumer stopped", "error", err)
					}
				}()
				logger.Info("kafka chat event consumer running", "topic", chatTopic, "group", cfg.KafkaGroupID)
			}
		}
	}

	workflow := appmoderation.NewWorkflow(moderationStore, listingRepo, auditPublisher, logger)

	var uploader s3.Uploader = s3.NoopUploader{}
	if client, err := s3.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicEndpoint, logger); err != nil {
		logger.Warn("s3 uploader unavailable", "error", err)
	} else {
		uploader = client
	}

	var authMW ginserver.AuthMiddleware
	verifier, err := security.NewTokenVerifier(cfg.TokenSecret)
	if err != nil {
		logger.Error("token verifier init failed", "error", err)
	} else {
		authMW = ginserver.AuthMiddleware{Verifier: verifier, Logger: logger}
	}

	handlers := ginserver.Handlers{
		Feed: ginserver.FeedHandler{Hub: hub, Logger: logger},
		Listing: ginserver.ListingHandler{
			Repo:     listingRepo,
			Workflow: workflow,
			Uploader: uploader,
			Logger:   logger,
		},
		Saved:          ginserver.SavedHandler{Hub: hub, Logger: logger},
		Chat:           ginserver.ChatHandler{Hub: hub, Events: chatEvents, Logger: logger},
		Admin:          ginserver.AdminHandler{Workflow: workflow, Logger: logger},
		AuthMiddleware: authMW.Handle,
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return application{handlers: handlers, probes: probes}, cleanup
}

func buildChatStore(cfg config.Config, logger *slog.Logger, closers *[]func()) domainchat.Store {
	if len(cfg.ScyllaHosts) == 0 {
		logger.Info("chat store: in-memory")
		return memory.NewChatStore()
	}
	session, err := scylla.NewSession(cfg.ScyllaHosts, cfg.ScyllaKeyspace, logger)
	if err != nil {
		logger.Warn("scylla unavailable, chat store falls back to memory", "error", err)
		return memory.NewChatStore()
	}
	*closers = append(*closers, session.Close)
	return scylla.NewStore(session, logger)
}

func buildStores(cfg config.Config, logger *slog.Logger, probes map[string]func() error, closers *[]func()) (domainlistings.Repository, domainlistings.SavedStore, domainmoderation.Store) {
	if cfg.MongoURI == "" {
		logger.Info("listing stores: in-memory")
		return memory.NewListingRepository(), memory.NewSavedStore(), memory.NewModerationStore()
	}
	client, err := mongo.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Warn("mongo unavailable, stores fall back to memory", "error", err)
		return memory.NewListingRepository(), memory.NewSavedStore(), memory.NewModerationStore()
	}
	probes["mongo"] = func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return client.Ping(pingCtx)
	}
	*closers = append(*closers, func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = client.Close(disconnectCtx)
	})
	logger.Info("mongo stores enabled", "database", cfg.MongoDB)
	return mongo.NewListingRepository(client.DB), mongo.NewSavedStore(client.DB), mongo.NewModerationStore(client.DB)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
