// Stream multiplexing under one root directory.
//
// LogDistributor maps stream names to rotators, creating each one on the
// first Writer or Write call for its name. The registry only grows; a
// stream stays open until the distributor is closed. Rotators carry their
// own locks, so the registry lock is held just long enough to look up or
// insert, and independent streams write, flush and rotate concurrently.
package rotor

import (
	"errors"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// LogDistributor owns every stream under one root and one policy.
type LogDistributor[W Writer] struct {
	root     string
	policy   RotationPolicy
	format   Format[W]
	opts     []Option
	o        options
	mu       sync.RWMutex
	rotators map[string]*LogRotator[W]
	closed   bool
}

// NewLogDistributor prepares a distributor. No directory is touched until
// the first stream is used.
func NewLogDistributor[W Writer](root string, policy RotationPolicy, format Format[W], opts ...Option) (*LogDistributor[W], error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &LogDistributor[W]{
		root:     root,
		policy:   policy,
		format:   format,
		opts:     opts,
		o:        buildOptions(opts),
		rotators: make(map[string]*LogRotator[W]),
	}, nil
}

// validStream rejects names that would not map to a single directory
// directly under the root.
func validStream(name string) bool {
	return name != "" && name != "." && filepath.IsLocal(name) && !strings.ContainsAny(name, `/\`)
}

// lookup returns the rotator for name without creating it.
func (d *LogDistributor[W]) lookup(name string) (*LogRotator[W], bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, false, ErrClosed
	}
	r, ok := d.rotators[name]
	return r, ok, nil
}

// rotator returns the rotator for name, constructing it on first use.
// Construction happens under the registry write lock so one name never
// gets two rotators.
func (d *LogDistributor[W]) rotator(name string) (*LogRotator[W], error) {
	if r, ok, err := d.lookup(name); err != nil || ok {
		return r, err
	}
	if !validStream(name) {
		return nil, ErrInvalidStream
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if r, ok := d.rotators[name]; ok {
		return r, nil
	}
	r, err := NewLogRotator(filepath.Join(d.root, name), d.policy, d.format, d.opts...)
	if err != nil {
		return nil, err
	}
	d.rotators[name] = r
	d.o.log.Debug("registered stream", "stream", name)
	return r, nil
}

// Writer returns the active writer of stream name, creating the stream
// on first use. The writer must not be retained across Increment.
func (d *LogDistributor[W]) Writer(name string) (W, error) {
	r, err := d.rotator(name)
	if err != nil {
		var zero W
		return zero, err
	}
	return r.Writer()
}

// Write calls fn with the writer of stream name and counts one record,
// holding the stream lock throughout. The stream is created on first use.
func (d *LogDistributor[W]) Write(name string, fn func(W) error) error {
	r, err := d.rotator(name)
	if err != nil {
		return err
	}
	return r.Write(fn)
}

// Increment counts one record on stream name. A name that was never
// registered through Writer or Write is ignored.
func (d *LogDistributor[W]) Increment(name string) error {
	r, ok, err := d.lookup(name)
	if err != nil {
		return err
	}
	if !ok {
		d.o.log.Debug("increment on unknown stream ignored", "stream", name)
		return nil
	}
	return r.Increment()
}

// Flush flushes every stream concurrently. A failing stream does not
// stop the others; all failures are joined into the returned error.
func (d *LogDistributor[W]) Flush() error {
	return d.each(func(r *LogRotator[W]) error { return r.Flush() })
}

// Poll evaluates the time trigger of every stream at now.
func (d *LogDistributor[W]) Poll(now time.Time) error {
	return d.each(func(r *LogRotator[W]) error { return r.Poll(now) })
}

func (d *LogDistributor[W]) each(fn func(*LogRotator[W]) error) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrClosed
	}
	rotators := make([]*LogRotator[W], 0, len(d.rotators))
	for _, r := range d.rotators {
		rotators = append(rotators, r)
	}
	d.mu.RUnlock()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, r := range rotators {
		g.Go(func() error {
			if err := fn(r); err != nil {
				d.o.log.Warn("stream operation failed", "stream", r.stream, "err", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

// Streams returns the registered stream names in sorted order.
func (d *LogDistributor[W]) Streams() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.rotators))
	for name := range d.rotators {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Rotator returns the rotator of a registered stream.
func (d *LogDistributor[W]) Rotator(name string) (*LogRotator[W], bool) {
	r, ok, _ := d.lookup(name)
	return r, ok
}

// Close closes every stream. Later calls return ErrClosed from all
// operations except Close itself.
func (d *LogDistributor[W]) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	rotators := make([]*LogRotator[W], 0, len(d.rotators))
	for _, r := range d.rotators {
		rotators = append(rotators, r)
	}
	d.mu.Unlock()

	var errs []error
	for _, r := range rotators {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
