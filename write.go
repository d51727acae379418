// JSONL segment writer, the bundled Format.
//
// Records are marshalled with go-json, framed with a checksum (see
// record.go) and buffered. Nothing reaches the file until Flush or Close,
// so an unflushed record is lost on crash; only the epoch marker is
// crash-safe. With Compress set the buffered lines pass through a zstd
// encoder before reaching the file.
package rotor

import (
	"bufio"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

// JSONL configures newline-delimited JSON segments.
type JSONL struct {
	Checksum    int  // AlgXXHash3 (default), AlgFNV1a, AlgBlake2b or AlgNone
	Compress    bool // zstd-compress the segment (extension jsonl.zst)
	SyncOnFlush bool // fsync after every Flush
	BufferSize  int  // write buffer size (default 64KB)
}

func (f JSONL) alg() int {
	if f.Checksum == 0 {
		return AlgXXHash3
	}
	return f.Checksum
}

// Extension implements Format.
func (f JSONL) Extension() string {
	if f.Compress {
		return "jsonl.zst"
	}
	return "jsonl"
}

// Open implements Format. The file is created or truncated.
func (f JSONL) Open(path string) (*JSONLWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	size := f.BufferSize
	if size <= 0 {
		size = 64 * 1024
	}

	w := &JSONLWriter{file: file, alg: f.alg(), sync: f.SyncOnFlush}
	if f.Compress {
		zw, err := compressor(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("%w: zstd: %w", ErrIO, err)
		}
		w.zw = zw
		w.buf = bufio.NewWriterSize(zw, size)
	} else {
		w.buf = bufio.NewWriterSize(file, size)
	}
	return w, nil
}

// JSONLWriter appends records to one segment. It is not safe for
// concurrent use; the owning LogRotator serialises access.
type JSONLWriter struct {
	file    *os.File
	buf     *bufio.Writer
	zw      *zstd.Encoder // nil unless compressed
	alg     int
	sync    bool
	scratch []byte
}

// Encode marshals v and appends it as one line.
func (w *JSONLWriter) Encode(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.WriteRaw(data)
}

// WriteRaw appends an already-encoded compact JSON value as one line.
func (w *JSONLWriter) WriteRaw(record []byte) error {
	w.scratch = encodeLine(w.scratch[:0], record, w.alg)
	w.scratch = append(w.scratch, '\n')
	_, err := w.buf.Write(w.scratch)
	return err
}

// Flush pushes buffered lines to the file. For compressed segments the
// pending zstd block is emitted too.
func (w *JSONLWriter) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if w.zw != nil {
		if err := w.zw.Flush(); err != nil {
			return err
		}
	}
	if w.sync {
		return w.file.Sync()
	}
	return nil
}

// Close flushes, ends the zstd frame if any, and closes the file.
func (w *JSONLWriter) Close() error {
	var errs []error
	if err := w.buf.Flush(); err != nil {
		errs = append(errs, err)
	}
	if w.zw != nil {
		if err := w.zw.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if w.sync {
		if err := w.file.Sync(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Name returns the path of the segment being written.
func (w *JSONLWriter) Name() string {
	return w.file.Name()
}
