/*
Package main is the entry point for the SixMarket API server.

It loads configuration, initializes the global logger, opens and migrates the database,
wires object storage and the asset issuer into the HTTP router, and shuts the server down
gracefully on SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sixmarket/internal/app/asset"
	"sixmarket/internal/app/db"
	"sixmarket/internal/app/listing"
	"sixmarket/internal/app/storage"
	"sixmarket/internal/app/user"
	"sixmarket/internal/configs"
	"sixmarket/internal/handler"
	"sixmarket/internal/pkg/logx"
)

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment(), cfg.LogLevel)
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("storage_driver", cfg.StorageDriver).
		Str("key_scheme", cfg.KeyScheme).
		Str("image_failure_policy", cfg.ImageFailurePolicy).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to open database")
	}
	defer pool.Close()

	store, err := storage.NewStorageService(ctx, storage.ServiceConfig{
		Driver:            cfg.StorageDriver,
		S3BucketName:      cfg.S3BucketName,
		S3Region:          cfg.S3Region,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
		S3SessionToken:    cfg.S3SessionToken,
		S3UsePathStyle:    cfg.S3UsePathStyle,
		MemoryBaseURL:     cfg.PublicBaseURL + "/_objects",
		MemorySecret:      cfg.JWTSecret,
	})
	if err != nil {
		logx.Fatal(err, "Failed to initialize object storage")
	}

	issuer := asset.NewIssuer(store, asset.NewKeyGenerator(cfg.KeyScheme, time.Now), asset.IssuerConfig{
		UploadTTL:   cfg.UploadURLTTL,
		DownloadTTL: cfg.DownloadURLTTL,
		CacheTTL:    cfg.DownloadURLCacheTTL,
		CacheSize:   cfg.DownloadURLCacheSize,
	})

	users := user.NewRepository(pool)
	deps := &handler.AppDeps{
		Config:   cfg,
		Issuer:   issuer,
		Listings: listing.NewService(listing.NewRepository(pool), users, issuer, cfg.ImageFailurePolicy),
		Users:    users,
	}
	memStore, _ := store.(*storage.MemoryStore)
	if memStore != nil {
		deps.ObjectStore = memStore
		logx.Warn("Serving objects from memory; uploads are lost on restart")
	}

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler.Router(ctx, deps),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("SixMarket API starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	if memStore != nil {
		logx.Warn("Discarding in-memory objects", "objects", memStore.Len())
	}

	logx.Info("Server gracefully stopped.")
}
