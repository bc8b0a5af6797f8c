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

	"go.uber.org/zap"

	"centropos/backend/internal/cache"
	"centropos/backend/internal/config"
	"centropos/backend/internal/domain"
	"centropos/backend/internal/excel"
	"centropos/backend/internal/httpapi"
	"centropos/backend/internal/inventory"
	"centropos/backend/internal/logging"
	"centropos/backend/internal/store"
	"centropos/backend/internal/store/memory"
	pgstore "centropos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("oracle server stopped", zap.Error(err))
	}
}

type backend interface {
	store.Catalog
	store.UserStore
}

func run(cfg config.Config, logger *zap.Logger) error {
	if err := validateSecurityConfig(cfg); err != nil {
		return fmt.Errorf("invalid security configuration: %w", err)
	}
	if cfg.ConfigFileUsed != "" {
		logger.Info("config file loaded", zap.String("path", cfg.ConfigFileUsed))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)
	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Warn("close failed", zap.Error(err))
			}
		}
	}()

	var repo backend
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		closers = append(closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		repo = pg
		logger.Info("repository: postgres")
	} else {
		seeded, err := memory.NewSeeded(logger)
		if err != nil {
			return fmt.Errorf("seed in-memory store: %w", err)
		}
		repo = seeded
		logger.Info("repository: in-memory")
	}

	if err := prepareCatalog(ctx, cfg, repo, logger); err != nil {
		return err
	}

	opts := inventory.Options{
		Timeout: cfg.OracleTimeout(),
		TTL:     cfg.InventoryCacheTTL(),
		Logger:  logger,
	}
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		uoms := cache.NewRedis[[]domain.UomDetail](client, "centropos:inventory:")
		if err := uoms.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, using noop cache", zap.Error(err))
			_ = client.Close()
		} else {
			opts.Uoms = uoms
			opts.Stock = cache.NewRedis[[]domain.LocationStock](client, "centropos:inventory:")
			opts.Locations = cache.NewRedis[string](client, "centropos:inventory:")
			closers = append(closers, client.Close)
			logger.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		logger.Info("cache: noop")
	}

	resolver := inventory.NewResolver(repo, opts)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo, logger)
	api := httpapi.New(resolver, auth, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("inventory oracle listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}

// prepareCatalog loads the seed workbook, if any, and falls back to the
// configured default location when the catalog has none.
func prepareCatalog(ctx context.Context, cfg config.Config, catalog store.Catalog, logger *zap.Logger) error {
	if cfg.SeedWorkbook != "" {
		file, err := os.Open(cfg.SeedWorkbook)
		if err != nil {
			return fmt.Errorf("open seed workbook: %w", err)
		}
		defer file.Close()

		seed, err := excel.ParseSeed(file)
		if err != nil {
			return fmt.Errorf("parse seed workbook: %w", err)
		}
		if err := seed.Apply(ctx, catalog); err != nil {
			return fmt.Errorf("apply seed workbook: %w", err)
		}
		logger.Info("seed workbook applied",
			zap.String("path", cfg.SeedWorkbook),
			zap.Int("items", len(seed.Items)),
			zap.Int("stock_rows", len(seed.Stock)))
	}

	if cfg.DefaultLocation == "" {
		return nil
	}
	_, err := catalog.DefaultLocation(ctx)
	if !errors.Is(err, store.ErrNoDefaultStore) {
		return err
	}
	logger.Info("default location set from config", zap.String("location", cfg.DefaultLocation))
	return catalog.SetDefaultLocation(ctx, cfg.DefaultLocation)
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
