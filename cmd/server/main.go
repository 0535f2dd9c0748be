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

	"bmr/config"
	"bmr/internal/database"
	"bmr/internal/logging"
	"bmr/internal/repository"
	"bmr/internal/router"
	"bmr/internal/service"
	"bmr/internal/ws"
	"bmr/pkg/cloudinary"
	"bmr/pkg/fieldcrypt"

	"github.com/redis/go-redis/v9"
)

// devEncryptionKey is only used outside production when FIELD_ENCRYPTION_KEY is unset.
const devEncryptionKey = "bmr-development-only-field-key"

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}

func main() {
	cfg := config.Load()
	if _, err := logging.Setup(cfg.Logging); err != nil {
		fatal("logging", err)
	}

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		fatal("database", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		fatal("migrate", err)
	}
	if err := database.SeedStatuses(db); err != nil {
		fatal("seed statuses", err)
	}
	if err := database.SeedLookups(db); err != nil {
		fatal("seed lookups", err)
	}
	store := repository.NewStore(db)

	key := cfg.Encryption.Key
	if key == "" {
		if cfg.IsProduction() {
			fatal("field encryption", fieldcrypt.ErrNoKey)
		}
		slog.Warn("FIELD_ENCRYPTION_KEY not set; using development key")
		key = devEncryptionKey
	}
	codec, err := fieldcrypt.New(key, cfg.Encryption.PreviousKeys...)
	if err != nil {
		fatal("field encryption", err)
	}

	gateway, err := router.NewGateway(cfg)
	if err != nil {
		fatal("payment gateway", err)
	}

	deps := router.Deps{Store: store, Codec: codec, Gateway: gateway, Hub: ws.NewHub()}

	cloud, err := cloudinary.NewClientFromParams(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
	switch {
	case err == nil:
		deps.Uploader = cloud
	case errors.Is(err, cloudinary.ErrNotConfigured):
		slog.Info("cloudinary not configured; uploads disabled")
	default:
		fatal("cloudinary", err)
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		deps.Locker = service.NewRedisLocker(rdb, cfg.Redis.LockTTL)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := service.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		deps.Events = publisher
	}

	fcm := service.NewFCMService(cfg.Firebase.ServiceAccountPath)
	if fcm != nil {
		slog.Info("fcm push notifications enabled")
	}
	deps.Notifications = service.NewNotificationService(store, fcm, service.NewOneSignalClient(cfg.OneSignal.AppID, cfg.OneSignal.APIKey, cfg.OneSignal.APIURL))

	svc := router.NewServices(cfg, deps)
	engine, limiters := router.Setup(cfg, store, svc, deps.Hub)
	defer limiters.Stop()

	if cfg.Sweeper.Enabled {
		sweeper := service.NewPaymentSweeper(store, svc.Recon, cfg.Sweeper)
		if err := sweeper.Start(); err != nil {
			fatal("payment sweeper", err)
		}
		defer sweeper.Stop()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		slog.Info("server listening", "port", cfg.Server.Port, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("listen", err)
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown", "err", err)
	}
	slog.Info("server stopped")
}
