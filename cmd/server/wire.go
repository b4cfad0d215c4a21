package main

import (
	"context"
	"database/sql"
	"delivery-tracker/internal/adapters/cache"
	"delivery-tracker/internal/adapters/deliveryapi"
	"delivery-tracker/internal/adapters/geolocation"
	"delivery-tracker/internal/adapters/repositories"
	"delivery-tracker/internal/adapters/telemetry"
	"delivery-tracker/internal/platform/config"
	"delivery-tracker/internal/platform/db"
	"delivery-tracker/internal/ports"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
)

type sources struct {
	deliveries ports.DeliveryRepository
	packages   ports.PackageRepository
	close      func()
}

// buildRepository selects the delivery source and wraps it in the Redis
// cache when one is configured. sources.close releases what was opened.
func buildRepository(ctx context.Context, cfg config.Config, userID string, logger *slog.Logger) (sources, error) {
	var (
		repo    ports.DeliveryRepository
		pkgs    ports.PackageRepository
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.DataSource {
	case config.SourceHTTP:
		client, err := deliveryapi.NewClient(cfg.APIBaseURL, cfg.AccessToken)
		if err != nil {
			return sources{}, err
		}
		repo, pkgs = client, client.Packages()

	case config.SourceSQLite:
		conn, err := db.OpenSQLite(cfg.DBPath)
		if err != nil {
			return sources{}, err
		}
		closers = append(closers, func() { conn.Close() })
		if err := initAndSeed(conn, repositories.SQLite, cfg.SeedPath, logger); err != nil {
			closeAll()
			return sources{}, err
		}
		repo = repositories.NewSqliteDeliveryRepository(conn)
		pkgs = repositories.NewSqlitePackageRepository(conn)

	case config.SourcePostgres:
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return sources{}, err
		}
		closers = append(closers, func() { conn.Close() })
		repo = repositories.NewSQLDeliveryRepository(conn)
		pkgs = repositories.NewSQLPackageRepository(conn)

	default:
		return sources{}, fmt.Errorf("unknown data source %q", cfg.DataSource)
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, cache reads will fall through", "addr", cfg.RedisAddr, "err", err)
		}
		closers = append(closers, func() { _ = client.Close() })

		cached, err := cache.NewRedisDeliveryCache(client, repo, cfg.CacheTTL, logger)
		if err != nil {
			closeAll()
			return sources{}, err
		}
		repo = cached
	}

	logger.Info("delivery source ready", "source", cfg.DataSource, "user_id", userID, "cache", cfg.RedisAddr != "")
	return sources{deliveries: repo, packages: pkgs, close: closeAll}, nil
}

func initAndSeed(conn *sql.DB, dialect repositories.Dialect, seedPath string, logger *slog.Logger) error {
	if err := repositories.InitSchema(conn); err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}

	if seedPath == "" {
		return nil
	}
	if _, err := os.Stat(seedPath); errors.Is(err, os.ErrNotExist) {
		logger.Info("no seed file, skipping", "path", seedPath)
		return nil
	}
	if err := repositories.SeedFromJSON(conn, dialect, seedPath); err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}
	return nil
}

func buildPublisher(cfg config.Config) (ports.PositionPublisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, nil
	}
	p, err := telemetry.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// buildPlatform returns the location platform and, in push mode, the feed
// the HTTP API forwards device reports to.
func buildPlatform(cfg config.Config) (ports.LocationPlatform, *geolocation.PushPlatform, error) {
	switch cfg.LocationSource {
	case config.LocationPush:
		p := geolocation.NewPushPlatform()
		return p, p, nil
	case config.LocationReplay:
		p, err := geolocation.NewReplayPlatform(cfg.ReplayTrackPath, cfg.ReplayInterval)
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown location source %q", cfg.LocationSource)
}
