// Rotation state machine for a single stream.
//
// LogRotator owns one stream directory. Construction resumes from the
// epoch marker: absent means epoch 0, a valid value E means E+1 (a fresh
// segment, never re-appended), and a corrupt value is deleted and treated
// as absent. Each increment evaluates both triggers. When either fires a
// new segment is opened at epoch+1, the marker is rewritten, and the
// segment that fell out of the retention window is deleted.
//
// Every public method holds the rotator's mutex for its whole duration,
// so a rotation never interleaves with a write on the same stream.
// Filesystem failures are returned as *IOError and are not retried. A
// failed rotation leaves the marker and the active segment out of step,
// so the rotator refuses every later operation with that same error and
// only Close remains.
package rotor

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RotationPolicy holds the thresholds for one stream. A policy is shared
// read-only by every rotator of a distributor; each rotator keeps its own
// TimePast around Trigger.
type RotationPolicy struct {
	MaxRecords uint64       // rotate once this many records were counted; 0 disables
	Trigger    TimeContains // rotate when a time boundary is crossed; nil disables
	MaxEpochs  uint64       // segments kept on disk, active one included
}

// Validate checks that the policy keeps at least the active segment.
func (p RotationPolicy) Validate() error {
	if p.MaxEpochs == 0 {
		return fmt.Errorf("%w: MaxEpochs must keep at least the active segment", ErrInvalidPolicy)
	}
	return nil
}

// Trigger names recorded on rotation.
const (
	TriggerRecords = "records"
	TriggerTime    = "time"
	TriggerManual  = "manual"
)

// LogRotator rotates the segments of one stream.
type LogRotator[W Writer] struct {
	mu     sync.Mutex
	dir    string
	stream string
	root   *os.Root
	lock   *dirLock
	format Format[W]
	policy RotationPolicy
	table  *Table[W]
	past   *TimePast
	opts   options
	log    *slog.Logger
	warn   rate.Sometimes
	closed bool
	failed error // first failed rotation; sticky
}

// NewLogRotator opens the stream in dir, creating it if needed, and
// resumes from its epoch marker.
func NewLogRotator[W Writer](dir string, policy RotationPolicy, format Format[W], opts ...Option) (*LogRotator[W], error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	stream := filepath.Base(dir)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, ioErr("mkdir", dir, err)
	}

	var lock *dirLock
	if !o.unlocked {
		l, err := lockDir(dir)
		if err != nil {
			return nil, err
		}
		lock = l
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		if lock != nil {
			lock.release()
		}
		return nil, ioErr("open", dir, err)
	}

	r := &LogRotator[W]{
		dir:    dir,
		stream: stream,
		root:   root,
		lock:   lock,
		format: format,
		policy: policy,
		opts:   o,
		log:    o.log.With("stream", stream),
		warn:   rate.Sometimes{Interval: time.Minute},
	}

	fail := func(err error) (*LogRotator[W], error) {
		root.Close()
		if lock != nil {
			lock.release()
		}
		return nil, err
	}

	last, ok, corrupt, err := readMarker(root)
	if err != nil {
		return fail(err)
	}
	var epoch uint64
	switch {
	case corrupt:
		r.log.Warn("discarded unreadable epoch marker", "path", r.markerPath())
	case ok:
		epoch = last + 1
	}

	w, err := r.open(epoch)
	if err != nil {
		return fail(err)
	}
	r.table = NewTable(w, epoch)

	if policy.Trigger != nil {
		r.past = NewTimePast(policy.Trigger)
		// Prime so a boundary crossed before the first record still counts.
		r.past.Poll(o.now())
	}

	if err := r.enforce(); err != nil {
		w.Close()
		return fail(err)
	}

	r.log.Debug("opened stream", "epoch", epoch, "resumed", ok)
	return r, nil
}

// open creates the parent directory and a clean segment for epoch.
func (r *LogRotator[W]) open(epoch uint64) (W, error) {
	path := r.Path(epoch)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		var zero W
		return zero, ioErr("mkdir", filepath.Dir(path), err)
	}
	w, err := r.format.Open(path)
	if err != nil {
		var zero W
		return zero, ioErr("open", path, err)
	}
	return w, nil
}

// enforce persists the active epoch, then prunes the segment that left the
// retention window. Called after every segment creation.
func (r *LogRotator[W]) enforce() error {
	epoch := r.table.Epoch()
	if err := writeMarker(r.root, epoch); err != nil {
		return err
	}
	r.opts.metrics.epoch(r.stream, epoch)

	expired := epoch - r.policy.MaxEpochs
	removed, err := removeSegment(r.root, segmentName(expired, r.format.Extension()))
	if err != nil {
		if !r.opts.relaxed {
			return err
		}
		r.warn.Do(func() {
			r.log.Warn("retention prune failed; disk usage is unbounded until it succeeds",
				"epoch", expired, "err", err)
		})
		return nil
	}
	if removed {
		r.opts.metrics.pruned(r.stream)
		r.log.Debug("pruned segment", "epoch", expired)
	}
	return nil
}

// usable reports why the rotator can no longer be used, if it can't.
func (r *LogRotator[W]) usable() error {
	if r.closed {
		return ErrClosed
	}
	return r.failed
}

// rotate replaces the active segment with a fresh one at epoch+1. A
// failure to open the segment or to persist the marker poisons the
// rotator.
func (r *LogRotator[W]) rotate(trigger string) error {
	prev := r.table.Epoch()
	w, err := r.open(prev + 1)
	if err != nil {
		r.failed = err
		return err
	}

	closeErr := r.table.Replace(w)
	if err := r.enforce(); err != nil {
		r.failed = err
		r.log.Error("rotation failed; stream refuses further writes",
			"epoch", r.table.Epoch(), "err", err)
		return err
	}
	r.opts.metrics.rotated(r.stream, trigger)
	r.log.Debug("rotated", "epoch", r.table.Epoch(), "trigger", trigger)

	if closeErr != nil {
		return ioErr("close", r.Path(prev), closeErr)
	}
	return nil
}

// increment counts a record and evaluates both triggers. The time trigger
// is always polled so its clock advances even when the count fires.
func (r *LogRotator[W]) increment() error {
	r.table.Increment()
	r.opts.metrics.record(r.stream)

	byCount := r.policy.MaxRecords > 0 && r.table.Records() >= r.policy.MaxRecords
	byTime := r.past != nil && r.past.Poll(r.opts.now())

	switch {
	case byCount:
		return r.rotate(TriggerRecords)
	case byTime:
		return r.rotate(TriggerTime)
	}
	return nil
}

// Writer returns the active segment writer. It must not be retained
// across Increment, which may replace it; concurrent callers should use
// Write instead.
func (r *LogRotator[W]) Writer() (W, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		var zero W
		return zero, err
	}
	return r.table.Writer(), nil
}

// Increment signals that one record was written and rotates if a trigger
// fires.
func (r *LogRotator[W]) Increment() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return err
	}
	return r.increment()
}

// Write calls fn with the active writer and then counts one record, all
// under the stream lock. If fn fails nothing is counted.
func (r *LogRotator[W]) Write(fn func(W) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return err
	}
	if err := fn(r.table.Writer()); err != nil {
		return err
	}
	return r.increment()
}

// Poll evaluates only the time trigger at now. The background flusher
// uses it so an idle stream still rotates on schedule.
func (r *LogRotator[W]) Poll(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return err
	}
	if r.past != nil && r.past.Poll(now) {
		return r.rotate(TriggerTime)
	}
	return nil
}

// Rotate forces a rotation regardless of the triggers.
func (r *LogRotator[W]) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return err
	}
	return r.rotate(TriggerManual)
}

// Flush flushes the active writer.
func (r *LogRotator[W]) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return err
	}
	if err := r.table.Flush(); err != nil {
		r.opts.metrics.flushFailed(r.stream)
		return ioErr("flush", r.Path(r.table.Epoch()), err)
	}
	return nil
}

// Close flushes and closes the active segment and releases the stream
// lock. The marker is left in place so the next open resumes after it.
func (r *LogRotator[W]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if err := r.table.Writer().Close(); err != nil {
		errs = append(errs, ioErr("close", r.Path(r.table.Epoch()), err))
	}
	if err := r.root.Close(); err != nil {
		errs = append(errs, ioErr("close", r.dir, err))
	}
	if r.lock != nil {
		if err := r.lock.release(); err != nil {
			errs = append(errs, ioErr("unlock", r.dir, err))
		}
	}
	return errors.Join(errs...)
}

// Epoch returns the active epoch.
func (r *LogRotator[W]) Epoch() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.Epoch()
}

// Records returns the records counted since the last rotation.
func (r *LogRotator[W]) Records() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.Records()
}

// Dir returns the stream directory.
func (r *LogRotator[W]) Dir() string {
	return r.dir
}

// Path returns the segment path for epoch, whether or not it exists.
func (r *LogRotator[W]) Path(epoch uint64) string {
	return filepath.Join(r.dir, segmentName(epoch, r.format.Extension()))
}

func (r *LogRotator[W]) markerPath() string {
	return filepath.Join(r.dir, MarkerName)
}
