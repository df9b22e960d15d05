// Package sender delivers outgoing Telegram calls from a bounded queue so
// handlers return without waiting on the Bot API.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/langbot/core/httpclient"
	"github.com/m3rciful/langbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("sender: queue closed")
	// ErrQueueFull is returned by Enqueue when every slot is taken.
	ErrQueueFull = errors.New("sender: queue full")

	tokenPattern = regexp.MustCompile(`bot\d+:[\w-]+`)
)

// Options tunes the queue. Zero values pick the defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds one job including its retries.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx    context.Context
	action string
	run    func() error
}

// Dispatcher runs queued sends on a fixed set of workers.
type Dispatcher struct {
	opts Options
	jobs chan job

	mu     sync.RWMutex
	closed bool
	group  errgroup.Group

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, jobs: make(chan job, opts.QueueSize)}
	for range opts.Workers {
		d.group.Go(func() error {
			for j := range d.jobs {
				d.deliver(j)
			}
			return nil
		})
	}
	return d
}

// Enqueue queues run without blocking. run may be called again on
// transient failures, so it must be safe to repeat.
func (d *Dispatcher) Enqueue(ctx context.Context, action string, run func() error) error {
	if run == nil {
		return errors.New("sender: nil job")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stats reports how many jobs were delivered and how many gave up.
func (d *Dispatcher) Stats() (sent, failed uint64) {
	return d.sent.Load(), d.failed.Load()
}

// Close stops accepting jobs and waits until the queued ones are done.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	_ = d.group.Wait()
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempt := 0
	var err error
	for {
		attempt++
		if err = j.run(); err == nil {
			break
		}
		wait, retry := d.backoff(err, attempt)
		if !retry {
			break
		}
		logger.Debug(j.ctx, "tg.sender", "send.retry",
			slog.String("action", j.action),
			slog.Int("attempts", attempt),
			slog.Int64("backoff_ms", wait.Milliseconds()),
		)
		if werr := httpclient.Sleep(ctx, wait); werr != nil {
			break
		}
	}

	if err != nil {
		d.failed.Add(1)
		logger.Error(j.ctx, "tg.sender", "send.fail",
			slog.String("status", "fail"),
			slog.String("action", j.action),
			slog.Int("attempts", attempt),
			slog.String("err_code", errorKind(err)),
			slog.String("err", redact(err)),
			slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
		)
		return
	}
	d.sent.Add(1)
	logger.Debug(j.ctx, "tg.sender", "send.ok",
		slog.String("status", "ok"),
		slog.String("action", j.action),
		slog.Int("attempts", attempt),
		slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
	)
}

// backoff decides whether attempt is followed by another one and after
// what pause. Flood control answers carry their own pause.
func (d *Dispatcher) backoff(err error, attempt int) (time.Duration, bool) {
	if attempt > d.opts.MaxRetries {
		return 0, false
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return time.Duration(flood.RetryAfter) * time.Second, true
	}
	if !httpclient.Transient(err) {
		return 0, false
	}
	return d.opts.RetryBackoff * time.Duration(attempt), true
}

func errorKind(err error) string {
	var (
		flood  tele.FloodError
		apiErr *tele.Error
		netErr net.Error
	)
	switch {
	case errors.As(err, &flood):
		return "flood"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case httpclient.Transient(err):
		return "network"
	case errors.As(err, &apiErr):
		return "api_" + strconv.Itoa(apiErr.Code)
	default:
		return "unknown"
	}
}

// redact hides bot tokens that net/http puts into request URLs.
func redact(err error) string {
	return tokenPattern.ReplaceAllString(logger.SanitizeLimit(err.Error(), 256), "bot<redacted>")
}
