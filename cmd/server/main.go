package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"salescalc/internal/cache"
	"salescalc/internal/config"
	"salescalc/internal/httpapi"
	"salescalc/internal/logger"
	"salescalc/internal/service"
	"salescalc/internal/stats"
	"salescalc/internal/store"
	"salescalc/internal/store/memory"
	pgstore "salescalc/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{
		Service: "salescalc",
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})
	if err := validateConfig(cfg); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", "error", err)
			os.Exit(1)
		}
		if cfg.MigrateOnStart {
			if err := pg.Migrate(ctx); err != nil {
				log.Error("schema migration failed", "error", err)
				_ = pg.Close()
				os.Exit(1)
			}
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info("repository selected", "kind", "postgres", "migrated", cfg.MigrateOnStart)
	} else {
		repo = memory.NewSeeded()
		log.Info("repository selected", "kind", "memory")
	}

	cacheStore := cache.StatsCache(cache.NoopStatsCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisStatsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("redis unavailable, using noop cache", "addr", cfg.RedisAddr, "error", err)
			_ = redisCache.Close()
		} else {
			cacheStore = redisCache
			closers = append(closers, redisCache.Close)
			log.Info("cache selected", "kind", "redis", "addr", cfg.RedisAddr)
		}
	} else {
		log.Info("cache selected", "kind", "noop")
	}

	aggregator := stats.NewAggregator(cacheStore, time.Duration(cfg.StatsCacheTTLSeconds)*time.Second)
	svc := service.New(repo, aggregator, service.Options{
		DefaultCartID: cfg.DefaultCartID,
		AllowOversell: cfg.AllowOversell,
		Logger:        log,
	})
	api := httpapi.New(svc, cfg.AllowedOrigin, log)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("salescalc listening", "addr", cfg.Address(), "default_cart", cfg.DefaultCartID, "allow_oversell", cfg.AllowOversell)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error("close error", "error", err)
		}
	}

	log.Info("server stopped")
}

func validateConfig(cfg config.Config) error {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535, got %q", cfg.Port)
	}
	if cfg.DefaultCartID == "" || strings.Contains(cfg.DefaultCartID, "/") {
		return fmt.Errorf("DEFAULT_CART_ID must be non-empty and must not contain '/'")
	}
	if cfg.AppEnv == "prod" && (cfg.AllowedOrigin == "" || cfg.AllowedOrigin == "*") {
		return fmt.Errorf("ALLOWED_ORIGIN must name a concrete origin in prod")
	}
	return nil
}
