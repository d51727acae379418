package rotor

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"
)

type countingTarget struct {
	mu      sync.Mutex
	flushes int
	polls   int
	closed  bool
	name    *string
}

func (c *countingTarget) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.flushes++
	return nil
}

func (c *countingTarget) Poll(time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.polls++
	return nil
}

func (c *countingTarget) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *countingTarget) counts() (flushes, polls int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushes, c.polls
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func waitDone(t *testing.T, task *FlushTask) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("flusher did not exit")
	}
}

func TestFlusherFlushes(t *testing.T) {
	target := &countingTarget{}
	task := StartFlusher(5*time.Millisecond, target)
	defer task.Stop()

	waitFor(t, func() bool { f, _ := target.counts(); return f >= 3 })
	if _, polls := target.counts(); polls != 0 {
		t.Errorf("polled %d times without WithRotation", polls)
	}
}

func TestFlusherWithRotation(t *testing.T) {
	target := &countingTarget{}
	task := StartFlusher(5*time.Millisecond, target, WithRotation())
	defer task.Stop()

	waitFor(t, func() bool { _, p := target.counts(); return p >= 2 })
}

func TestFlusherStop(t *testing.T) {
	target := &countingTarget{}
	task := StartFlusher(time.Hour, target)
	task.Stop()
	waitDone(t, task)
	task.Stop()
}

func TestFlusherExitsOnClosed(t *testing.T) {
	target := &countingTarget{}
	task := StartFlusher(5*time.Millisecond, target)
	target.close()
	waitDone(t, task)
}

// TestFlusherDoesNotRetain drops the only strong reference to the target.
// The flusher must let it be collected and then exit.
func TestFlusherDoesNotRetain(t *testing.T) {
	task := func() *FlushTask {
		return StartFlusher(5*time.Millisecond, &countingTarget{})
	}()

	deadline := time.After(5 * time.Second)
	for {
		runtime.GC()
		select {
		case <-task.Done():
			return
		case <-deadline:
			t.Fatal("flusher kept running after its target became unreachable")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestFlushersExitAfterLastTarget(t *testing.T) {
	a, b := &countingTarget{}, &countingTarget{}
	task := StartFlushers(5*time.Millisecond, []*countingTarget{a, b})

	a.close()
	waitFor(t, func() bool { f, _ := b.counts(); return f >= 3 })
	select {
	case <-task.Done():
		t.Fatal("flusher exited while a target was still open")
	default:
	}

	b.close()
	waitDone(t, task)
}

func TestFlushersEmpty(t *testing.T) {
	task := StartFlushers[countingTarget](time.Millisecond, nil)
	waitDone(t, task)
}

func TestFlusherDistributor(t *testing.T) {
	root := t.TempDir()
	d, err := NewLogDistributor[*JSONLWriter](root, RotationPolicy{MaxEpochs: 2}, JSONL{})
	if err != nil {
		t.Fatalf("NewLogDistributor: %v", err)
	}
	task := StartFlusher(5*time.Millisecond, d)

	if err := d.Write("app", encode("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	seg := filepath.Join(root, "app", "0.jsonl")
	waitFor(t, func() bool {
		info, err := os.Stat(seg)
		return err == nil && info.Size() > 0
	})

	d.Close()
	waitDone(t, task)
}

func TestFlusherNonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		target := &countingTarget{}
		task := StartFlusher(interval, target)
		waitDone(t, task)
		task.Stop()
		if f, _ := target.counts(); f != 0 {
			t.Errorf("interval %v: flushed %d times", interval, f)
		}
	}
}
