// Package pipeline runs the poll, classify, record and dispatch loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/rewired-gh/quakewatch/internal/heartbeat"
	"github.com/rewired-gh/quakewatch/internal/logger"
	"github.com/rewired-gh/quakewatch/internal/models"
	"github.com/rewired-gh/quakewatch/internal/monitor"
	"github.com/rewired-gh/quakewatch/internal/observability"
)

type Poller interface {
	FetchQuakes(ctx context.Context) ([]models.Quake, error)
}

type Classifier interface {
	Classify(q models.Quake) models.Decision
}

type Recorder interface {
	TryRecord(ctx context.Context, q models.Quake, d models.Decision) (monitor.Outcome, *models.EventRecord, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, q models.Quake, rec *models.EventRecord) error
}

type Publisher interface {
	Publish(ctx context.Context, rec *models.EventRecord) error
}

type Heartbeat interface {
	Beat(status string) (models.HeartbeatRecord, error)
}

// Notifier announces the start and end of a streak of failed cycles.
type Notifier interface {
	SendError(ctx context.Context, err error) error
	SendRecovery(ctx context.Context, failureCount int) error
}

// Prefilter lets the loop skip already-seen ids without logging them.
type Prefilter interface {
	Exists(ctx context.Context, quakeID string) (bool, error)
}

type Config struct {
	Interval     time.Duration
	AlertDelay   time.Duration
	ArtifactPath string
	// SideTimeout bounds calls to the publisher and notifier.
	SideTimeout time.Duration
}

// Deps are the stages the loop drives. Dispatcher, Publisher, Notifier and
// Prefilter are optional.
type Deps struct {
	Poller     Poller
	Classifier Classifier
	Recorder   Recorder
	Dispatcher Dispatcher
	Publisher  Publisher
	Heartbeat  Heartbeat
	Notifier   Notifier
	Prefilter  Prefilter
}

// CycleResult summarises one cycle.
type CycleResult struct {
	Fetched  int
	Recorded int
	Alerted  int
	Skipped  int
}

// Pipeline runs one cycle at a time; nothing in it is safe for concurrent Run calls.
type Pipeline struct {
	config              Config
	deps                Deps
	clock               clockwork.Clock
	metrics             *observability.Metrics
	ready               atomic.Bool
	consecutiveFailures int
}

func New(config Config, deps Deps, clock clockwork.Clock, metrics *observability.Metrics) (*Pipeline, error) {
	if deps.Poller == nil || deps.Classifier == nil || deps.Recorder == nil || deps.Heartbeat == nil {
		return nil, errors.New("pipeline: poller, classifier, recorder and heartbeat are required")
	}
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.SideTimeout <= 0 {
		config.SideTimeout = 30 * time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	return &Pipeline{config: config, deps: deps, clock: clock, metrics: metrics}, nil
}

// CheckReadiness returns nil once at least one cycle has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no cycle has completed yet")
	}
	return nil
}

// Run executes cycles until ctx is cancelled, sleeping Interval between them.
func (p *Pipeline) Run(ctx context.Context) error {
	logger.Info("Quake monitor started, polling every %v", p.config.Interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for {
		p.RunOnce(ctx)

		if err := p.sleep(ctx, p.config.Interval); err != nil {
			logger.Info("Quake monitor stopping: %v", err)
			return nil
		}
	}
}

// RunOnce runs a single cycle, recovers from a panic inside it and writes
// the heartbeat whatever the outcome.
func (p *Pipeline) RunOnce(ctx context.Context) (CycleResult, error) {
	start := p.clock.Now()
	res, err := p.safeCycle(ctx)
	p.metrics.CycleDuration.Observe(p.clock.Since(start).Seconds())
	p.handleCycleResult(ctx, err)

	status := heartbeat.StatusHealthy
	if err != nil {
		status = heartbeat.StatusDegraded
	}
	if rec, hbErr := p.deps.Heartbeat.Beat(status); hbErr != nil {
		logger.Error("Failed to write heartbeat: %v", hbErr)
	} else {
		p.metrics.LastHeartbeat.Set(float64(rec.Time.Unix()))
	}
	p.ready.Store(true)
	return res, err
}

func (p *Pipeline) safeCycle(ctx context.Context) (res CycleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
			logger.Error("Unhandled panic in cycle: %v", r)
			if werr := writeArtifact(p.config.ArtifactPath, r); werr != nil {
				logger.Error("Failed to write error artifact: %v", werr)
			}
		}
	}()
	return p.cycle(ctx)
}

func (p *Pipeline) cycle(ctx context.Context) (CycleResult, error) {
	var res CycleResult
	log := logger.With(logrus.Fields{"cycle_id": uuid.NewString()})

	quakes, err := p.deps.Poller.FetchQuakes(ctx)
	if err != nil {
		p.metrics.FeedErrors.Inc()
		log.WithField("stage", "feed").Errorf("Failed to fetch quakes: %v", err)
		return res, err
	}
	res.Fetched = len(quakes)
	p.metrics.QuakesFetched.Add(float64(len(quakes)))
	log.Debugf("Fetched %d quakes", len(quakes))

	for _, q := range quakes {
		if ctx.Err() != nil {
			log.Info("Shutdown requested, leaving the rest of the batch")
			break
		}
		qlog := log.WithField("quake_id", q.ID)

		if p.deps.Prefilter != nil {
			if seen, err := p.deps.Prefilter.Exists(ctx, q.ID); err == nil && seen {
				res.Skipped++
				continue
			}
		}

		decision := p.deps.Classifier.Classify(q)
		p.metrics.Decisions.WithLabelValues(decision.String()).Inc()

		// Alerts wait out the delay before they are recorded.
		alerting := decision == models.Alert && p.deps.Dispatcher != nil
		if alerting && res.Alerted > 0 && p.config.AlertDelay > 0 {
			if err := p.sleep(ctx, p.config.AlertDelay); err != nil {
				log.Info("Shutdown requested, leaving the rest of the batch")
				break
			}
		}

		outcome, rec, err := p.deps.Recorder.TryRecord(ctx, q, decision)
		if err != nil {
			p.metrics.Records.WithLabelValues("error").Inc()
			qlog.WithField("stage", "gate").Warnf("Failed to record quake: %v", err)
			continue
		}
		p.metrics.Records.WithLabelValues(outcome.String()).Inc()
		if outcome == monitor.AlreadyExists {
			res.Skipped++
			qlog.WithField("stage", "gate").Debug("Quake already processed")
			continue
		}
		res.Recorded++
		p.publish(ctx, rec, qlog)

		switch decision {
		case models.Ignore:
			qlog.Infof("🟢 Magnitude %v earthquake ignored", q.Magnitude)
			continue
		case models.RecordOnly:
			qlog.Info("🟢 Small quake outside the region recorded. Skipping alerts.")
			continue
		}

		if !alerting {
			continue
		}
		qlog.Infof("🔔 Magnitude %v earthquake detected. Initiating alerts.", q.Magnitude)
		if err := p.deps.Dispatcher.Dispatch(ctx, q, rec); err != nil {
			qlog.WithField("stage", "dispatch").Warnf("Alert incomplete: %v", err)
		}
		res.Alerted++
	}

	if res.Alerted == 0 {
		log.Info("No earthquake detected. Waiting for the next check...")
	}
	return res, nil
}

func (p *Pipeline) publish(ctx context.Context, rec *models.EventRecord, log *logrus.Entry) {
	if p.deps.Publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.SideTimeout)
	defer cancel()
	if err := p.deps.Publisher.Publish(pubCtx, rec); err != nil {
		p.metrics.Step("bus", "error")
		log.WithField("channel", "bus").Warnf("Failed to publish event record: %v", err)
		return
	}
	p.metrics.Step("bus", "ok")
}

// handleCycleResult announces only the first failure of a streak and the
// recovery that ends it.
func (p *Pipeline) handleCycleResult(ctx context.Context, err error) {
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.SideTimeout)
	defer cancel()

	if err != nil {
		p.consecutiveFailures++
		if p.consecutiveFailures == 1 && p.deps.Notifier != nil {
			if sendErr := p.deps.Notifier.SendError(notifyCtx, err); sendErr != nil {
				logger.Warn("Failed to send error notification: %v", sendErr)
			}
		}
		return
	}
	if p.consecutiveFailures > 0 && p.deps.Notifier != nil {
		if sendErr := p.deps.Notifier.SendRecovery(notifyCtx, p.consecutiveFailures); sendErr != nil {
			logger.Warn("Failed to send recovery notification: %v", sendErr)
		}
	}
	p.consecutiveFailures = 0
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.clock.After(d):
		return nil
	}
}
