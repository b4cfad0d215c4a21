package main

import (
	"context"
	"delivery-tracker/internal/adapters/eventchannel"
	"delivery-tracker/internal/api"
	"delivery-tracker/internal/platform/config"
	"delivery-tracker/internal/platform/identity"
	"delivery-tracker/internal/platform/otel"
	"delivery-tracker/internal/services"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// main is the application composition root.
// It wires concrete adapters (data source, event channel, location platform)
// behind ports, runs the dashboard loop and serves its HTTP surface.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("dashboard exited", "err", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	userID := "me"
	claims, err := identity.ParseToken(cfg.AccessToken)
	switch {
	case err == nil:
		userID = claims.UserID
		if claims.Expired(time.Now()) {
			logger.Warn("access token is expired", "expires_at", claims.ExpiresAt)
		}
	case cfg.DataSource != config.SourceHTTP:
		return err
	default:
		// The HTTP source scopes by token server-side; the id only labels logs.
		logger.Warn("access token subject unreadable", "err", err)
	}

	src, err := buildRepository(ctx, cfg, userID, logger)
	if err != nil {
		return err
	}
	defer src.close()

	publisher, err := buildPublisher(cfg)
	if err != nil {
		return err
	}
	if publisher != nil {
		defer publisher.Close()
	}

	platform, feed, err := buildPlatform(cfg)
	if err != nil {
		return err
	}

	channel, err := eventchannel.New(eventchannel.Options{
		URL:          cfg.EventsURL,
		Token:        cfg.AccessToken,
		Logger:       logger,
		ReconnectMin: cfg.LocationRestartMin,
		ReconnectMax: cfg.LocationRestartMax,
	})
	if err != nil {
		return err
	}

	deps := services.DashboardDeps{
		Deliveries: src.deliveries,
		Channel:    channel,
		Platform:   platform,
		Logger:     logger,
	}
	if publisher != nil {
		deps.Publisher = publisher
	}
	dash, err := services.NewDashboard(deps, services.DashboardConfig{
		UserID:                userID,
		ReassertInterval:      cfg.ReassertInterval,
		RestartMin:            cfg.LocationRestartMin,
		RestartMax:            cfg.LocationRestartMax,
		RefetchOnStatusChange: cfg.RefetchOnStatusChange,
	})
	if err != nil {
		return err
	}

	shutdownTracing, err := otel.Setup(ctx, otel.Settings{
		Endpoint:       cfg.OTelEndpoint,
		DataSource:     cfg.DataSource,
		LocationSource: cfg.LocationSource,
		SessionID:      dash.SessionID(),
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown failed", "err", err)
		}
	}()

	routerDeps := api.RouterDeps{
		Dashboard: dash,
		Packages:  src.packages,
		UserID:    userID,
		Logger:    logger,
	}
	if feed != nil {
		routerDeps.Feed = feed
	}
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(routerDeps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = channel.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = dash.Run(ctx)
	}()

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigint:
		case <-ctx.Done():
		}

		logger.Info("shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown failed", "err", err)
		}
		cancel()
	}()

	logger.Info("dashboard listening",
		"addr", cfg.ListenAddr,
		"session_id", dash.SessionID(),
		"data_source", cfg.DataSource,
		"location_source", cfg.LocationSource,
	)
	err = srv.ListenAndServe()
	cancel()
	wg.Wait()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
