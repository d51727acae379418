// Read primitives for JSONL segments.
//
// Segments are read sequentially from the start. A trailing line without
// its newline is the tail of a write that never completed (unflushed at
// crash, or still buffered in the active writer) and is dropped silently.
// Every complete line is checksum-verified; a mismatch yields
// ErrCorruptRecord for that line and reading continues with the next.
package rotor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	json "github.com/goccy/go-json"
)

// Read yields the raw JSON of every record in the segment at path, in
// write order. Breaking out of the loop closes the file.
func (f JSONL) Read(path string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		file, err := os.Open(path)
		if err != nil {
			yield(nil, ioErr("open", path, err))
			return
		}
		defer file.Close()

		var r io.Reader = file
		if f.Compress {
			dec, err := decompressor(file)
			if err != nil {
				yield(nil, err)
				return
			}
			defer dec.Close()
			r = dec
		}

		reader := bufio.NewReaderSize(r, 64*1024)
		alg := f.alg()
		for {
			data, err := reader.ReadBytes('\n')
			if err != nil {
				if errors.Is(err, io.EOF) || truncated(err) {
					return
				}
				if f.Compress {
					yield(nil, fmt.Errorf("%w: zstd: %w", ErrDecompress, err))
				} else {
					yield(nil, ioErr("read", path, err))
				}
				return
			}

			data = data[:len(data)-1]
			if !valid(data) {
				continue
			}
			if !yield(decodeLine(data, alg)) {
				return
			}
		}
	}
}

// Decode reads every record of the segment at path into a T. It stops at
// the first corrupt record.
func Decode[T any](f JSONL, path string) ([]T, error) {
	var out []T
	for raw, err := range f.Read(path) {
		if err != nil {
			return out, err
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return out, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
		}
		out = append(out, v)
	}
	return out, nil
}
