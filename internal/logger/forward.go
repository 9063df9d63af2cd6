package logger

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Sender delivers one formatted log line to an external channel.
type Sender interface {
	Send(ctx context.Context, content string) error
}

// ForwardConfig controls which records are forwarded and how.
type ForwardConfig struct {
	MinLevel    logrus.Level
	Mention     string
	Suppress    []string
	QueueSize   int
	SendTimeout time.Duration

	// Optional observers, e.g. metrics counters.
	OnDrop    func()
	OnFailure func()
}

// ForwardHook is a logrus hook that copies records onto a bounded queue
// drained by a single consumer goroutine. A full queue drops the record
// instead of blocking the caller.
type ForwardHook struct {
	sender Sender
	cfg    ForwardConfig
	levels []logrus.Level

	mu     sync.RWMutex
	closed bool
	queue  chan string
	done   chan struct{}

	dropped atomic.Int64
	failed  atomic.Int64
	sent    atomic.Int64
}

// NewForwardHook starts the consumer and returns the hook.
func NewForwardHook(sender Sender, cfg ForwardConfig) *ForwardHook {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	var levels []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= cfg.MinLevel {
			levels = append(levels, l)
		}
	}
	h := &ForwardHook{
		sender: sender,
		cfg:    cfg,
		levels: levels,
		queue:  make(chan string, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *ForwardHook) Levels() []logrus.Level {
	return h.levels
}

func (h *ForwardHook) Fire(e *logrus.Entry) error {
	for _, s := range h.cfg.Suppress {
		if s != "" && strings.Contains(e.Message, s) {
			return nil
		}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil
	}

	select {
	case h.queue <- h.format(e):
	default:
		h.dropped.Add(1)
		if h.cfg.OnDrop != nil {
			h.cfg.OnDrop()
		}
	}
	return nil
}

func (h *ForwardHook) format(e *logrus.Entry) string {
	line := fmt.Sprintf("%s - %s - %s",
		e.Time.UTC().Format("2006-01-02 15:04:05"),
		strings.ToUpper(e.Level.String()),
		e.Message)

	if len(e.Data) > 0 {
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			line += fmt.Sprintf(" %s=%v", k, e.Data[k])
		}
	}

	if e.Level <= logrus.ErrorLevel {
		prefix := "**[ERROR]**\n"
		if h.cfg.Mention != "" {
			prefix = h.cfg.Mention + "\n" + prefix
		}
		return prefix + line
	}
	return "[LOG] " + line
}

func (h *ForwardHook) run() {
	defer close(h.done)
	for msg := range h.queue {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SendTimeout)
		err := h.sender.Send(ctx, msg)
		cancel()
		if err != nil {
			h.failed.Add(1)
			if h.cfg.OnFailure != nil {
				h.cfg.OnFailure()
			}
			// Not logged through logrus: the record would come straight back here.
			fmt.Fprintf(os.Stderr, "log forward failed: %v\n", err)
			continue
		}
		h.sent.Add(1)
	}
}

// Close stops accepting records and waits for the queue to drain or ctx to end.
func (h *ForwardHook) Close(ctx context.Context) error {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.queue)
	}
	h.mu.Unlock()

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns the number of records discarded because the queue was full.
func (h *ForwardHook) Dropped() int64 { return h.dropped.Load() }

// Failed returns the number of records the sender rejected.
func (h *ForwardHook) Failed() int64 { return h.failed.Load() }

// Sent returns the number of records delivered.
func (h *ForwardHook) Sent() int64 { return h.sent.Load() }
