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

	"buskalo-bff/internal/action"
	"buskalo-bff/internal/api"
	"buskalo-bff/internal/auth"
	"buskalo-bff/internal/cache"
	"buskalo-bff/internal/catalog"
	"buskalo-bff/internal/config"
	"buskalo-bff/internal/geo"
	"buskalo-bff/internal/imaging"
	"buskalo-bff/internal/logger"
	"buskalo-bff/internal/media"
	"buskalo-bff/internal/services"
	"buskalo-bff/internal/session"

	"go.uber.org/zap"
)

const (
	serviceName    = "buskalo-bff"
	profileTimeout = 10 * time.Second
	sessionIdle    = 2 * time.Hour
	actionTTL      = 30 * time.Minute
)

func main() {
	cfg := config.NewConfig()

	log, err := logger.Init(cfg.LogLevel, cfg.Environment, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}
	trustedProxies, _ := cfg.ProxyPrefixes()

	log.Info("Starting API Gateway", cfg.Fields()...)

	var store cache.Store
	if cfg.RedisAddr != "" {
		redisClient, err := cache.NewClient(cfg.RedisAddr)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		log.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
		store = redisClient
	} else {
		log.Warn("REDIS_ADDR not set, using in-process store")
		store = cache.NewMemory(time.Minute)
	}
	defer store.Close()

	var host media.Host
	if cfg.CloudinaryURL != "" {
		cld, err := media.NewCloudinaryHost(cfg.CloudinaryURL, "buskalo/previews")
		if err != nil {
			log.Fatal("Failed to configure Cloudinary", zap.Error(err))
		}
		host = cld
	}

	serviceClient := services.NewServiceClient(cfg)

	sessions := session.NewRegistry(store, serviceClient, sessionIdle, cfg.SessionTTL, profileTimeout)
	defer sessions.Close()

	actions := action.NewTracker(actionTTL)
	defer actions.Close()

	handler := api.NewHandler(api.Deps{
		Services: serviceClient,
		Catalog:  catalog.New(serviceClient, store, cfg.CacheTTL, cfg.CategoryCacheTTL),
		Sessions: sessions,
		Media: media.NewStore(store, cfg.UploadTTL, imaging.Options{
			MaxBytes:     cfg.ImageMaxBytes,
			MaxDimension: cfg.ImageMaxDimension,
		}, host),
		Geo:            geo.NewClient(cfg, store),
		Actions:        actions,
		DropdownLimit:  cfg.DropdownLimit,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	sessionMiddleware := auth.NewMiddleware(auth.NewTickets(cfg.SessionSecret, cfg.SessionTTL), cfg.IsProduction())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.NewRouter(handler, store, sessionMiddleware, cfg.RateLimitPerMinute, trustedProxies),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Error("Server shutdown error", zap.Error(err))
		}
	}()

	log.Info("Server listening", zap.String("addr", server.Addr))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Server failed", zap.Error(err))
		os.Exit(1)
	}

	log.Info("Server stopped")
}
