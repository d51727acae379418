// OS-level stream locking for cross-process exclusion.
//
// A LogRotator takes an exclusive, non-blocking flock(2) on its stream
// directory for as long as it is open. A second rotator on the same
// directory, in this process or another, fails with ErrLocked instead of
// interleaving epochs. The lock lives on the directory handle itself, so
// the on-disk layout gains no extra file.
//
// The mutex is held for the entire duration of the flock syscall so that
// Fd() cannot race with release closing the same *os.File.
package rotor

import (
	"os"
	"sync"
)

// dirLock guards a stream directory for the lifetime of a rotator.
type dirLock struct {
	mu sync.Mutex
	f  *os.File
}

// lockDir opens dir and takes the exclusive lock. It returns ErrLocked
// when another handle already holds it.
func lockDir(dir string) (*dirLock, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, ioErr("lock", dir, err)
	}
	l := &dirLock{f: f}
	if err := l.tryLock(); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// release drops the lock and closes the handle. Further calls are no-ops.
func (l *dirLock) release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	l.unlock()
	err := l.f.Close()
	l.f = nil
	return err
}
