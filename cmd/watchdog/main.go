package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rewired-gh/quakewatch/internal/config"
	"github.com/rewired-gh/quakewatch/internal/heartbeat"
	"github.com/rewired-gh/quakewatch/internal/logger"
	"github.com/rewired-gh/quakewatch/internal/webhook"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

// The watchdog runs once per invocation, typically from cron: it exits 0 when
// the heartbeat is fresh and 1 after reporting a stale or missing one.
func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	res := heartbeat.Check(cfg.Heartbeat.Path, cfg.Heartbeat.Threshold, time.Now())
	if res.Healthy {
		logger.Debug("Heartbeat is %v old", res.Age.Round(time.Second))
		return
	}

	logger.Warn("%s", res.Message)
	if cfg.Watchdog.WebhookURL == "" {
		logger.Warn("No watchdog webhook configured, alert not sent")
		os.Exit(1)
	}

	content := res.Message
	if cfg.Watchdog.Mention != "" {
		content = fmt.Sprintf("%s %s", cfg.Watchdog.Mention, res.Message)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Watchdog.Timeout+time.Second)
	defer cancel()
	if err := webhook.NewClient(cfg.Watchdog.WebhookURL, cfg.Watchdog.Timeout).Send(ctx, content); err != nil {
		logger.Error("Failed to send watchdog alert: %v", err)
	}
	cancel()
	os.Exit(1)
}
