// README: Entry point; loads config, wires services, starts HTTP server and the response-timeout worker.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"lifelink/internal/config"
	httptransport "lifelink/internal/http"
	"lifelink/internal/infra"
	"lifelink/internal/maps"
	"lifelink/internal/metrics"
	"lifelink/internal/modules/cascade"
	"lifelink/internal/modules/donor"
	"lifelink/internal/modules/eligibility"
	"lifelink/internal/modules/hospital"
	"lifelink/internal/modules/location"
	"lifelink/internal/modules/matching"
	"lifelink/internal/modules/ranking"
	"lifelink/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := infra.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("lifelink-api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()

	donorStore := donor.NewStore(dbPool)
	hospitalStore := hospital.NewStore(dbPool)

	var donorGeo donor.GeoIndex
	var matchGeo matching.GeoIndex
	if redisClient != nil {
		defer redisClient.Close()
		geoStore := location.NewStore(redisClient)
		donorGeo, matchGeo = geoStore, geoStore
	} else {
		logger.Warn("redis not configured; geo index disabled, timeouts kept in process")
	}

	donorSvc := donor.NewService(donorStore, donorGeo, logger.Named("donor"))
	hospitalSvc := hospital.NewService(hospitalStore, logger.Named("hospital"))

	var notifier cascade.Notifier
	var escalator cascade.Escalator
	if cfg.Firebase.ProjectID != "" {
		msgClient, err := infra.NewMessaging(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			return err
		}
		fcm := notify.NewFCM(msgClient, notify.Config{AdminTopic: cfg.Firebase.AdminTopic}, logger.Named("fcm"))
		notifier, escalator = fcm, fcm
	} else {
		logger.Warn("LIFELINK_FIREBASE_PROJECT_ID not set; push notifications disabled")
	}

	var timers cascade.TimeoutScheduler
	var memTimers *cascade.MemoryScheduler
	var redisTimers *cascade.RedisScheduler
	if redisClient != nil {
		redisTimers = cascade.NewRedisScheduler(redisClient, cfg.Matching.TimeoutPollInterval, logger.Named("timeouts"))
		timers = redisTimers
	} else {
		memTimers = cascade.NewMemoryScheduler(ctx)
		defer memTimers.Stop()
		timers = memTimers
	}

	cascadeSvc := cascade.NewService(cascade.Deps{
		Store:     cascade.NewPgStore(dbPool),
		Donors:    donorStore,
		Notifier:  notifier,
		Escalator: escalator,
		Timers:    timers,
		Observer:  collector,
		Logger:    logger.Named("cascade"),
	}, cascade.Config{
		ResponseWindow:    cfg.Matching.ResponseWindow,
		PointsPerDonation: cfg.Matching.PointsPerDonation,
	})
	if memTimers != nil {
		memTimers.Bind(cascadeSvc.HandleTimeout)
	}

	var geocoder matching.Geocoder
	if cfg.Maps.APIKey != "" {
		gs, err := maps.NewGeocodeService(cfg.Maps.APIKey, cfg.Maps.Region)
		if err != nil {
			return err
		}
		geocoder = gs
	}

	ranker, err := ranking.NewRanker(ranking.Config{
		Weights:           cfg.Ranking.Weights,
		RecencyCapDays:    cfg.Ranking.RecencyCapDays,
		UnknownDistanceKm: cfg.Ranking.UnknownDistanceKm,
		Clock:             time.Now,
	})
	if err != nil {
		return err
	}

	matchingSvc, err := matching.NewService(matching.Deps{
		Donors:   donorStore,
		Requests: hospitalStore,
		Queue:    cascadeSvc,
		Filter:   eligibility.New(eligibility.Config{CooldownDays: cfg.Matching.CooldownDays, Clock: time.Now}),
		Ranker:   ranker,
		Priority: ranking.NewPriorityRanker(time.Now),
		Geo:      matchGeo,
		Geocoder: geocoder,
		Observer: collector,
		Logger:   logger.Named("matching"),
	}, matching.Config{
		BroadcastRadiusKm: cfg.Matching.BroadcastRadiusKm,
		DashboardRadiusKm: cfg.Matching.DashboardRadiusKm,
		FacilityRadiusKm:  cfg.Matching.FacilityRadiusKm,
		UseGeoIndex:       cfg.Matching.UseGeoIndex,
	})
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Hospital: hospitalSvc,
		Donors:   donorSvc,
		Matcher:  matchingSvc,
		Cascade:  cascadeSvc,
		Metrics:  collector,
		Logger:   logger.Named("http"),
	})
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	if redisTimers != nil {
		go redisTimers.Run(ctx, cascadeSvc.HandleTimeout)
	}
	if donorGeo != nil {
		go donorSvc.KeepIndexed(ctx, cfg.Matching.IndexCheckInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
