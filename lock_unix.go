//go:build unix

package rotor

import (
	"errors"

	"golang.org/x/sys/unix"
)

func (l *dirLock) tryLock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return ErrLocked
	}
	if err != nil {
		return ioErr("lock", l.f.Name(), err)
	}
	return nil
}

// unlock is called with l.mu held.
func (l *dirLock) unlock() error {
	return unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}
