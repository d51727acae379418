//go:build !unix

package rotor

// Directory handles cannot be byte-range locked here; exclusion is left
// to the host application.
func (l *dirLock) tryLock() error { return nil }

func (l *dirLock) unlock() error { return nil }
