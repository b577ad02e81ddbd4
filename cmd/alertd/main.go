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
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/valkey-io/valkey-go"

	"github.com/heatwatch/wbgt-alert-service/internal/adapter/httpapi"
	kafkaadapter "github.com/heatwatch/wbgt-alert-service/internal/adapter/kafka"
	"github.com/heatwatch/wbgt-alert-service/internal/adapter/lineworks"
	"github.com/heatwatch/wbgt-alert-service/internal/adapter/memstore"
	"github.com/heatwatch/wbgt-alert-service/internal/adapter/valkeystore"
	"github.com/heatwatch/wbgt-alert-service/internal/adapter/wbgtsource"
	"github.com/heatwatch/wbgt-alert-service/internal/config"
	"github.com/heatwatch/wbgt-alert-service/internal/observability"
	"github.com/heatwatch/wbgt-alert-service/internal/pipeline"
	"github.com/heatwatch/wbgt-alert-service/internal/refdata"
)

const botAPITimeout = 10 * time.Second

// allReady reports ready once every worker has processed a message.
type allReady []httpapi.ReadinessChecker

func (a allReady) CheckReadiness(ctx context.Context) error {
	for _, c := range a {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// Reference data ships with the binary.
	points, err := refdata.Points()
	if err != nil {
		logger.Error("load points", "error", err)
		os.Exit(1)
	}
	regions, err := refdata.Regions()
	if err != nil {
		logger.Error("load regions", "error", err)
		os.Exit(1)
	}
	levels, err := refdata.AlertLevels()
	if err != nil {
		logger.Error("load alert levels", "error", err)
		os.Exit(1)
	}
	pointRepo := memstore.NewPointRepository(points)
	regionRepo := memstore.NewRegionRepository(regions)
	levelRepo := memstore.NewAlertLevelRepository(levels)

	valkeyClient, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.ValkeyAddr},
	})
	if err != nil {
		logger.Error("connect to valkey", "error", err)
		os.Exit(1)
	}
	store := valkeystore.New(valkeyClient, "wbgt")

	// Importer: forecast source to durable store, on a schedule.
	source := wbgtsource.NewClient(cfg.ForecastURL, cfg.ForecastTimeout, logger)
	importer := pipeline.NewImporter(source, pointRepo, store.Forecasts(), clock, logger, metrics)

	// Partitioner: subscribers to region batches, on a schedule.
	regionWriter := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.RegionBatchTopic, logger)
	partitioner := pipeline.NewPartitioner(store.Subscribers(), regionWriter, cfg.MaxRegionBatch, logger, metrics)

	// Decider: region batches in, notifications out.
	aggregator := pipeline.NewAggregator(store.Forecasts(), pointRepo, regionRepo, levelRepo)
	notificationWriter := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.NotificationTopic, logger)
	decider := pipeline.NewDecider(aggregator, regionRepo, levelRepo, notificationWriter,
		clock, cfg.Location, cfg.DayCutoffHour, logger, metrics)
	regionReader := kafkaadapter.NewReader(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.RegionBatchTopic, logger)
	deciderWorker := pipeline.NewWorker("decider", regionReader, decider, logger, metrics, cfg.BatchSize)

	// Deliverer: notifications in, bot messages out.
	authClient := lineworks.NewAuthClient(cfg.AuthBaseURL, botAPITimeout, clock, logger)
	botClient := lineworks.NewBotClient(cfg.BotAPIBaseURL, botAPITimeout,
		cfg.SendRate, cfg.SendMaxAttempts, clock, logger, metrics)
	deliverer := pipeline.NewDeliverer(store.AccessTokens(), store.ClientCredentials(),
		store.InstalledApps(), store.BotInfos(), authClient, botClient,
		cfg.BotID, clock, logger, metrics)
	notificationReader := kafkaadapter.NewReader(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.NotificationTopic, logger)
	deliveryWorker := pipeline.NewWorker("delivery", notificationReader, deliverer, logger, metrics, cfg.BatchSize)

	srv := httpapi.NewServer(cfg.HTTPAddr, httpapi.Deps{
		Subscribers: store.Subscribers(),
		Regions:     regionRepo,
		Levels:      levelRepo,
		Apps:        store.InstalledApps(),
		Bots:        store.BotInfos(),
		Tokens:      store.AccessTokens(),
		Greeter:     deliverer,
		BotID:       cfg.BotID,
		Ready:       allReady{deciderWorker, deliveryWorker},
		Logger:      logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ImportSchedule, func() {
		if err := importer.Run(ctx); err != nil {
			logger.Error("forecast import failed", "error", err)
		}
	}); err != nil {
		logger.Error("invalid import schedule", "schedule", cfg.ImportSchedule, "error", err)
		os.Exit(1)
	}
	if _, err := scheduler.AddFunc(cfg.FanoutSchedule, func() {
		if err := partitioner.Run(ctx); err != nil {
			logger.Error("subscriber fan-out failed", "error", err)
		}
	}); err != nil {
		logger.Error("invalid fan-out schedule", "schedule", cfg.FanoutSchedule, "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	go func() {
		if err := deciderWorker.Run(ctx); err != nil {
			logger.Error("decider worker error", "error", err)
		}
	}()
	go func() {
		if err := deliveryWorker.Run(ctx); err != nil {
			logger.Error("delivery worker error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	<-scheduler.Stop().Done()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := regionReader.Close(); err != nil {
		logger.Error("region batch reader close error", "error", err)
	}
	if err := notificationReader.Close(); err != nil {
		logger.Error("notification reader close error", "error", err)
	}
	if err := regionWriter.Close(); err != nil {
		logger.Error("region batch writer close error", "error", err)
	}
	if err := notificationWriter.Close(); err != nil {
		logger.Error("notification writer close error", "error", err)
	}
	valkeyClient.Close()

	logger.Info("shutdown complete")
}
