// Functional options shared by LogRotator, LogDistributor and the
// background flusher.
package rotor

import (
	"log/slog"
	"time"
)

type options struct {
	log      *slog.Logger
	metrics  *Metrics
	relaxed  bool
	unlocked bool
	rotate   bool
	now      func() time.Time
}

func buildOptions(opts []Option) options {
	o := options{
		log: slog.New(slog.DiscardHandler),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a rotator, distributor or flusher.
type Option func(*options)

// WithLogger sends diagnostics to log. The default discards them.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithMetrics records rotation metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRelaxedRetention turns a failed segment deletion into a logged
// warning. Disk usage is then no longer bounded by the retention window.
func WithRelaxedRetention() Option {
	return func(o *options) { o.relaxed = true }
}

// WithoutLock skips the exclusive stream directory lock.
func WithoutLock() Option {
	return func(o *options) { o.unlocked = true }
}

// WithClock replaces time.Now for time trigger evaluation.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRotation makes a flusher also evaluate time triggers on each tick,
// for targets that implement Poller.
func WithRotation() Option {
	return func(o *options) { o.rotate = true }
}
