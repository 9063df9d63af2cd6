package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/rewired-gh/quakewatch/internal/bus"
	"github.com/rewired-gh/quakewatch/internal/config"
	"github.com/rewired-gh/quakewatch/internal/dispatch"
	"github.com/rewired-gh/quakewatch/internal/facebook"
	"github.com/rewired-gh/quakewatch/internal/feed"
	"github.com/rewired-gh/quakewatch/internal/geo"
	"github.com/rewired-gh/quakewatch/internal/heartbeat"
	"github.com/rewired-gh/quakewatch/internal/logger"
	"github.com/rewired-gh/quakewatch/internal/monitor"
	"github.com/rewired-gh/quakewatch/internal/observability"
	"github.com/rewired-gh/quakewatch/internal/pipeline"
	"github.com/rewired-gh/quakewatch/internal/render"
	"github.com/rewired-gh/quakewatch/internal/storage"
	"github.com/rewired-gh/quakewatch/internal/telegram"
	"github.com/rewired-gh/quakewatch/internal/webhook"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()
	local := cfg.Location()

	if cfg.LogForward.Enabled {
		hook := startLogForwarding(cfg.LogForward, metrics)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = hook.Close(ctx)
		}()
	}

	store, err := storage.Open(storage.Options{
		Driver:     cfg.Storage.Driver,
		DBPath:     cfg.Storage.DBPath,
		DSN:        cfg.Storage.DSN,
		TextLogDir: cfg.Storage.TextLogDir,
	})
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()
	logger.Info("Event store ready (driver: %s)", cfg.Storage.Driver)

	adapter, err := feed.NewAdapter(cfg.Feed.Format)
	if err != nil {
		logger.Fatal("Invalid feed format: %v", err)
	}
	poller := feed.NewPoller(feed.NewClient(feed.ClientConfig{
		URL:                cfg.Feed.URL,
		Timeout:            cfg.Feed.Timeout,
		MaxRetries:         cfg.Feed.MaxRetries,
		RetryDelay:         cfg.Feed.RetryDelay,
		InsecureSkipVerify: cfg.Feed.InsecureSkipVerify,
		UserAgent:          cfg.Feed.UserAgent,
	}), adapter)

	classifier := monitor.NewClassifier(monitor.ClassifierConfig{
		MinReportMagnitude:      cfg.Classifier.MinReportMagnitude,
		MinAlertMagnitudeGlobal: cfg.Classifier.MinAlertMagnitudeGlobal,
		RegionBBox: geo.BBox{
			MinLat: cfg.Classifier.RegionBBox.MinLat,
			MaxLat: cfg.Classifier.RegionBBox.MaxLat,
			MinLon: cfg.Classifier.RegionBBox.MinLon,
			MaxLon: cfg.Classifier.RegionBBox.MaxLon,
		},
		RegionKeywords: cfg.Classifier.RegionKeywords,
	})
	gate := monitor.NewGate(store, local, clock)

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(telegram.Config{
			BotToken:   cfg.Telegram.BotToken,
			ChatID:     cfg.Telegram.ChatID,
			OpsChatID:  cfg.Telegram.OpsChatID,
			LinkText:   cfg.Telegram.LinkText,
			MaxRetries: cfg.Telegram.MaxRetries,
			RetryDelay: cfg.Telegram.RetryDelay,
		})
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	dispatcher := newDispatcher(cfg, local, telegramClient, metrics)

	var publisher pipeline.Publisher
	if cfg.Kafka.Enabled {
		kafkaPublisher, err := bus.NewPublisher(bus.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		})
		if err != nil {
			logger.Fatal("Failed to initialize Kafka publisher: %v", err)
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		logger.Info("Publishing event records to Kafka topic %s", cfg.Kafka.Topic)
	}

	var notifier pipeline.Notifier
	if telegramClient != nil {
		notifier = telegramClient
	}

	beat := heartbeat.NewWriter(cfg.Heartbeat.Path, clock)
	p, err := pipeline.New(pipeline.Config{
		Interval:     cfg.Feed.PollInterval,
		AlertDelay:   cfg.Dispatch.AlertDelay,
		ArtifactPath: cfg.Errors.ArtifactPath,
	}, pipeline.Deps{
		Poller:     poller,
		Classifier: classifier,
		Recorder:   gate,
		Dispatcher: dispatcher,
		Publisher:  publisher,
		Heartbeat:  beat,
		Notifier:   notifier,
		Prefilter:  store,
	}, clock, metrics)
	if err != nil {
		logger.Fatal("Failed to build pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	status := pipeline.StatusReport{
		HeartbeatPath: cfg.Heartbeat.Path,
		Threshold:     cfg.Heartbeat.Threshold,
		Store:         store,
		Clock:         clock,
	}
	if telegramClient != nil && cfg.Telegram.Commands {
		telegramClient.ListenForCommands(ctx, status)
	}

	if cfg.HTTP.Enabled {
		srv := observability.NewServer(cfg.HTTP.Addr,
			observability.CheckerFunc(func(context.Context) error {
				res := heartbeat.Check(cfg.Heartbeat.Path, cfg.Heartbeat.Threshold, clock.Now())
				if !res.Healthy {
					return errors.New(res.Message)
				}
				return nil
			}),
			observability.CheckerFunc(p.CheckReadiness),
			nil,
		)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Ops HTTP server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("Starting quake monitor (feed: %s, format: %s, interval: %v)",
		cfg.Feed.URL, adapter.Name(), cfg.Feed.PollInterval)
	if err := p.Run(ctx); err != nil {
		logger.Error("Quake monitor stopped: %v", err)
	}
	logger.Info("Service stopped")
}

func startLogForwarding(cfg config.LogForwardConfig, metrics *observability.Metrics) *logger.ForwardHook {
	level, err := logrus.ParseLevel(cfg.MinLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	hook := logger.NewForwardHook(webhook.NewClient(cfg.WebhookURL, cfg.Timeout), logger.ForwardConfig{
		MinLevel:    level,
		Mention:     cfg.Mention,
		Suppress:    cfg.Suppress,
		QueueSize:   cfg.QueueSize,
		SendTimeout: cfg.Timeout,
		OnDrop:      metrics.LogForwardDropped.Inc,
		OnFailure:   metrics.LogForwardFailed.Inc,
	})
	logger.AddHook(hook)
	return hook
}

// newDispatcher wires the renderer and whichever channels are enabled.
// Disabled channels stay untyped nil so the dispatcher skips them.
func newDispatcher(cfg *config.Config, local *time.Location, telegramClient *telegram.Client, metrics *observability.Metrics) *dispatch.Dispatcher {
	locations, skipped, err := geo.LoadLocations(cfg.Dispatch.LocationsFile)
	if err != nil {
		logger.Warn("Failed to load locations, captions will not name a nearby place: %v", err)
	} else {
		logger.Info("Loaded %d locations (%d skipped)", len(locations), skipped)
	}

	renderer, err := render.New(render.Config{
		StaticMapURL: cfg.Render.StaticMapURL,
		APIKey:       cfg.Render.APIKey,
		Size:         cfg.Render.Size,
		Scale:        cfg.Render.Scale,
		MapType:      cfg.Render.MapType,
		OutputDir:    cfg.Render.OutputDir,
		Footer:       cfg.Render.Footer,
		Timeout:      cfg.Render.Timeout,
		Local:        local,
	})
	if err != nil {
		logger.Fatal("Failed to initialize renderer: %v", err)
	}

	var social dispatch.SocialPoster
	if cfg.Facebook.Enabled {
		fb, err := facebook.NewClient(facebook.Config{
			GraphURL:   cfg.Facebook.GraphURL,
			APIVersion: cfg.Facebook.APIVersion,
			PageID:     cfg.Facebook.PageID,
			PageToken:  cfg.Facebook.PageToken,
			Timeout:    cfg.Facebook.Timeout,
		})
		if err != nil {
			logger.Fatal("Failed to initialize Facebook client: %v", err)
		}
		social = fb
	} else {
		logger.Debug("Facebook posts disabled")
	}

	var messenger dispatch.Messenger
	if telegramClient != nil {
		messenger = telegramClient
	}

	d, err := dispatch.New(dispatch.Config{
		MinMessagingMagnitude: cfg.Dispatch.MinMessagingMagnitude,
		Unit:                  geo.Unit(cfg.Dispatch.Unit),
		Locations:             locations,
		Captions: dispatch.Captioner{
			Numerals: dispatch.Numerals(cfg.Dispatch.Numerals),
			Local:    local,
			Promo:    cfg.Dispatch.Promo,
		},
		StepTimeout: cfg.Dispatch.StepTimeout,
		KeepImages:  cfg.Dispatch.KeepImages,
	}, renderer, social, messenger, metrics)
	if err != nil {
		logger.Fatal("Failed to initialize dispatcher: %v", err)
	}
	return d
}
