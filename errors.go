// Package rotor rotates append-only log segments and bounds their disk
// usage. Each named stream lives in its own directory holding one file per
// rotation epoch plus a small marker file naming the active epoch:
//
//	output_dir/<stream>/epoch          decimal text of the active epoch
//	output_dir/<stream>/<epoch>.<ext>  one segment per retained epoch
//
// A LogRotator owns one stream. It rotates to a fresh segment when a record
// count or a time boundary is reached, rewrites the marker after the new
// segment exists, and deletes the segment that fell out of the retention
// window. On restart it resumes at marker+1 so a segment is never appended
// to twice. A LogDistributor multiplexes many streams under one root.
//
// The package also provides time-boundary triggers (TimePast and the
// TimeContains predicates) and an edge-triggered calendar matcher (Cron)
// that fires once per qualifying instant.
package rotor

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic handling. Callers can use errors.Is to
// distinguish misuse (ErrInvalidStream, ErrClosed) from I/O failures
// (ErrIO) and on-disk corruption (ErrCorruptRecord).
var (
	ErrIO             = errors.New("i/o failure")
	ErrClosed         = errors.New("rotator is closed")
	ErrLocked         = errors.New("stream is locked by another process")
	ErrInvalidStream  = errors.New("invalid stream name")
	ErrInvalidPolicy  = errors.New("invalid rotation policy")
	ErrInvalidTrigger = errors.New("invalid time trigger")
	ErrCorruptRecord  = errors.New("corrupt record")
	ErrDecompress     = errors.New("decompression failed")
	ErrArity          = errors.New("value count does not match matcher fields")
)

// IOError reports a filesystem operation that failed while creating,
// opening, marking or pruning a segment. It is never retried.
type IOError struct {
	Op   string // mkdir, open, mark, prune, read-marker, flush, close
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrIO) match any IOError.
func (e *IOError) Is(target error) bool { return target == ErrIO }

func ioErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}
