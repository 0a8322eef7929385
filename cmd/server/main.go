package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/outreach-tracker/internal/api"
	"github.com/ignite/outreach-tracker/internal/config"
	"github.com/ignite/outreach-tracker/internal/geo"
	"github.com/ignite/outreach-tracker/internal/mailer"
	"github.com/ignite/outreach-tracker/internal/pkg/logger"
	"github.com/ignite/outreach-tracker/internal/repository/postgres"
	"github.com/ignite/outreach-tracker/internal/service/delivery"
	"github.com/ignite/outreach-tracker/internal/service/engagement"
	"github.com/ignite/outreach-tracker/internal/service/securelink"
	"github.com/ignite/outreach-tracker/internal/service/tracking"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")

	var cfg *config.Config
	var err error
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
	} else {
		cfg, err = config.LoadFromEnv(".env")
	}
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logger.DEBUG)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		log.Fatalf("ping database: %v", err)
	}
	cancel()

	var cache *redis.Client
	if cfg.Redis.Addr != "" {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer cache.Close()
	}

	sender, err := mailer.NewSESSender(context.Background(), cfg.SES)
	if err != nil {
		log.Fatalf("ses sender: %v", err)
	}

	geoResolver := geo.NewResolver(cfg.Geo, cache)

	deliveryRepo := postgres.NewDeliveryRepo(db)
	trackingRepo := postgres.NewTrackingRepo(db)
	engagementRepo := postgres.NewEngagementRepo(db)
	secureLinkRepo := postgres.NewSecureLinkRepo(db)

	engagementSvc := engagement.NewService(engagementRepo)
	trackingSvc := tracking.NewService(trackingRepo, engagementSvc, geoResolver,
		cfg.Tracking.BaseURL, cfg.Tracking.FallbackRedirectURL)
	secureLinkSvc := securelink.NewService(secureLinkRepo, deliveryRepo, engagementSvc, sender, securelink.Config{
		LinkTTL:          cfg.Tracking.LinkTTL(),
		OtpTTL:           cfg.Tracking.OtpTTL(),
		OtpMaxAttempts:   cfg.Tracking.OtpMaxAttempts,
		OtpLockout:       cfg.Tracking.OtpLockout(),
		OtpFallbackEmail: cfg.Tracking.OtpFallbackEmail,
		OtpOverrideEmail: cfg.Tracking.OtpOverrideEmail,
	})
	deliverySvc := delivery.NewService(deliveryRepo, engagementSvc, engagementSvc)

	server := api.NewServer(trackingSvc, secureLinkSvc, deliverySvc, engagementSvc, geoResolver)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}
