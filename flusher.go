// Background flushing.
//
// A flush task holds only weak pointers to its targets. Each tick it
// resolves them; a target that has been garbage collected, or that
// reports ErrClosed, is dropped. When no target remains the goroutine
// exits on its own, so a forgotten rotator or distributor never keeps a
// flusher alive and the flusher never keeps its target alive.
package rotor

import (
	"errors"
	"sync"
	"time"
	"weak"

	"golang.org/x/time/rate"
)

// Flusher is anything with buffered output, such as a LogRotator or a
// LogDistributor.
type Flusher interface {
	Flush() error
}

// Poller re-evaluates time triggers. LogRotator and LogDistributor
// implement it.
type Poller interface {
	Poll(now time.Time) error
}

// FlushTask is a running background flusher.
type FlushTask struct {
	done chan struct{}
	stop chan struct{}
	once sync.Once
}

// Done is closed when the task has exited.
func (t *FlushTask) Done() <-chan struct{} {
	return t.done
}

// Stop ends the task and waits for it to exit.
func (t *FlushTask) Stop() {
	t.once.Do(func() { close(t.stop) })
	<-t.done
}

// StartFlusher flushes target every interval until target is collected
// or closed. With WithRotation it also polls time triggers.
func StartFlusher[T any, P interface {
	*T
	Flusher
}](interval time.Duration, target P, opts ...Option) *FlushTask {
	return StartFlushers[T, P](interval, []P{target}, opts...)
}

// StartFlushers is StartFlusher over several targets. The task exits
// once every target is gone. A non-positive interval starts nothing and
// returns a task that is already done.
func StartFlushers[T any, P interface {
	*T
	Flusher
}](interval time.Duration, targets []P, opts ...Option) *FlushTask {
	o := buildOptions(opts)
	refs := make([]weak.Pointer[T], 0, len(targets))
	for _, p := range targets {
		if p != nil {
			refs = append(refs, weak.Make((*T)(p)))
		}
	}

	t := &FlushTask{
		done: make(chan struct{}),
		stop: make(chan struct{}),
	}
	if interval <= 0 {
		o.log.Warn("flusher not started: non-positive interval", "interval", interval)
		close(t.done)
		return t
	}
	go runFlusher(t, interval, refs, o, func(v *T) error {
		return tick(P(v), o)
	})
	return t
}

// tick optionally polls one resolved target, then flushes it.
func tick[P Flusher](p P, o options) error {
	var pollErr error
	if o.rotate {
		if poller, ok := any(p).(Poller); ok {
			pollErr = poller.Poll(o.now())
		}
	}
	return errors.Join(pollErr, p.Flush())
}

func runFlusher[T any](t *FlushTask, interval time.Duration, refs []weak.Pointer[T], o options, fn func(*T) error) {
	defer close(t.done)
	if len(refs) == 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// A poisoned target fails on every tick.
	warn := rate.Sometimes{Interval: time.Minute}

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
		}

		live := refs[:0]
		for _, ref := range refs {
			v := ref.Value()
			if v == nil {
				continue
			}
			err := fn(v)
			if errors.Is(err, ErrClosed) {
				continue
			}
			if err != nil {
				warn.Do(func() { o.log.Warn("background flush failed", "err", err) })
			}
			live = append(live, ref)
		}
		clear(refs[len(live):])
		refs = live

		if len(refs) == 0 {
			o.log.Debug("flusher exiting: no live targets")
			return
		}
	}
}
