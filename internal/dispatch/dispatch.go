// Package dispatch fans a newly alerted quake out to its notification channels.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rewired-gh/quakewatch/internal/geo"
	"github.com/rewired-gh/quakewatch/internal/logger"
	"github.com/rewired-gh/quakewatch/internal/models"
	"github.com/rewired-gh/quakewatch/internal/observability"
)

// Renderer produces the alert image and returns its path.
type Renderer interface {
	Render(ctx context.Context, req models.RenderRequest) (string, error)
}

// SocialPoster publishes the image post and returns a reference to it.
type SocialPoster interface {
	PostImage(ctx context.Context, imagePath, caption string) (models.PostRef, error)
}

// Messenger sends the image to the messaging channel.
type Messenger interface {
	SendQuakePhoto(ctx context.Context, imagePath, caption, permalink string) error
}

type Config struct {
	MinMessagingMagnitude float64
	Unit                  geo.Unit
	Locations             []geo.Location
	Captions              Captioner
	// StepTimeout bounds each external call.
	StepTimeout time.Duration
	KeepImages  bool
}

// Dispatcher runs the alert steps for one quake at a time. social and
// messenger may be nil to disable a channel.
type Dispatcher struct {
	config    Config
	renderer  Renderer
	social    SocialPoster
	messenger Messenger
	metrics   *observability.Metrics
}

func New(config Config, renderer Renderer, social SocialPoster, messenger Messenger, metrics *observability.Metrics) (*Dispatcher, error) {
	if renderer == nil {
		return nil, errors.New("dispatch: a renderer is required")
	}
	if config.Unit == "" {
		config.Unit = geo.Miles
	}
	if config.StepTimeout <= 0 {
		config.StepTimeout = 2 * time.Minute
	}
	return &Dispatcher{
		config:    config,
		renderer:  renderer,
		social:    social,
		messenger: messenger,
		metrics:   metrics,
	}, nil
}

// RingRadius is the base shockwave radius in image pixels.
func RingRadius(mag, depthKm float64) int {
	return int(mag*20 + depthKm*0.5)
}

// Zoom coarsens the map for larger quakes so the felt area stays in frame.
func Zoom(mag float64) int {
	switch {
	case mag >= 6.0:
		return 7
	case mag >= 5.0:
		return 8
	default:
		return 9
	}
}

// Dispatch renders the alert image, posts it to the social channel and, for
// large enough quakes, to the messaging channel. Render and social failures
// abort the remaining steps and are returned; a messaging failure is only
// logged. The record stays alerted either way.
func (d *Dispatcher) Dispatch(ctx context.Context, q models.Quake, rec *models.EventRecord) error {
	log := logger.With(logrus.Fields{"quake_id": q.ID, "stage": "dispatch"})

	origin := rec.OriginUTC
	near, found := geo.Nearest(q.Latitude, q.Longitude, d.config.Locations, d.config.Unit)
	if !found {
		log.Warn("No reference location available, captions will omit it")
	}

	imagePath, err := d.render(ctx, q, origin)
	if err != nil {
		d.metrics.Step("render", "error")
		log.WithField("channel", "render").Errorf("Render failed, skipping alerts: %v", err)
		return err
	}
	d.metrics.Step("render", "ok")
	if !d.config.KeepImages {
		defer os.Remove(imagePath)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	permalink := ""
	if d.social == nil {
		d.metrics.Step("social", "skipped")
		log.Debug("Social channel disabled")
	} else {
		caption := d.config.Captions.Social(q, origin, near, found)
		ref, err := d.postSocial(ctx, imagePath, caption)
		if err != nil {
			d.metrics.Step("social", "error")
			log.WithField("channel", "social").Errorf("Social post failed, skipping messaging: %v", err)
			return err
		}
		d.metrics.Step("social", "ok")
		permalink = ref.Permalink()
		log.WithField("channel", "social").Infof("Posted to social channel: %s", permalink)
	}

	if q.Magnitude < d.config.MinMessagingMagnitude {
		d.metrics.Step("messaging", "skipped")
		log.Infof("Skipped messaging due to magnitude %v < %v", q.Magnitude, d.config.MinMessagingMagnitude)
		return nil
	}
	if d.messenger == nil {
		d.metrics.Step("messaging", "skipped")
		log.Debug("Messaging channel disabled")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	caption := d.config.Captions.Messaging(q, origin, near, found)
	if err := d.sendMessaging(ctx, imagePath, caption, permalink); err != nil {
		d.metrics.Step("messaging", "error")
		log.WithField("channel", "messaging").Errorf("Messaging post failed: %v", err)
		return nil
	}
	d.metrics.Step("messaging", "ok")
	log.Info("Alerts successfully sent to all platforms")
	return nil
}

// stepContext detaches from shutdown so an in-flight call can finish, but
// still bounds it with StepTimeout.
func (d *Dispatcher) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), d.config.StepTimeout)
}

func (d *Dispatcher) render(ctx context.Context, q models.Quake, origin time.Time) (string, error) {
	stepCtx, cancel := d.stepContext(ctx)
	defer cancel()

	path, err := d.renderer.Render(stepCtx, models.RenderRequest{
		QuakeID:    q.ID,
		Latitude:   q.Latitude,
		Longitude:  q.Longitude,
		Magnitude:  q.Magnitude,
		DepthKm:    q.DepthKm,
		OriginUTC:  origin,
		Zoom:       Zoom(q.Magnitude),
		RingRadius: RingRadius(q.Magnitude, q.DepthKm),
	})
	if err != nil {
		if !errors.Is(err, models.ErrRenderFailure) {
			err = fmt.Errorf("%w: %v", models.ErrRenderFailure, err)
		}
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: rendered image missing: %v", models.ErrRenderFailure, err)
	}
	return path, nil
}

func (d *Dispatcher) postSocial(ctx context.Context, imagePath, caption string) (models.PostRef, error) {
	stepCtx, cancel := d.stepContext(ctx)
	defer cancel()

	ref, err := d.social.PostImage(stepCtx, imagePath, caption)
	if err != nil {
		if !errors.Is(err, models.ErrChannelPost) {
			err = fmt.Errorf("%w: %v", models.ErrChannelPost, err)
		}
		return models.PostRef{}, err
	}
	if ref.Permalink() == "" {
		return models.PostRef{}, fmt.Errorf("%w: social post returned no id", models.ErrChannelPost)
	}
	return ref, nil
}

func (d *Dispatcher) sendMessaging(ctx context.Context, imagePath, caption, permalink string) error {
	stepCtx, cancel := d.stepContext(ctx)
	defer cancel()
	return d.messenger.SendQuakePhoto(stepCtx, imagePath, caption, permalink)
}
