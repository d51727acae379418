// Zstd framing for compressed segments.
//
// A compressed segment is a single zstd frame wrapping the same JSONL
// lines an uncompressed segment holds. Flush emits a complete zstd block
// so flushed records are decodable before the frame is closed; Close ends
// the frame. A reader that reaches the end of an unterminated frame (the
// active segment, or one cut short by a crash) stops at the last complete
// line instead of failing.
package rotor

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// compressor wraps w in a streaming encoder. Records are encoded on the
// write path, so the fastest level is used.
func compressor(w io.Writer) (*zstd.Encoder, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
}

// decompressor wraps r. The caller must Close the returned reader.
func decompressor(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %w", ErrDecompress, err)
	}
	return dec.IOReadCloser(), nil
}

// truncated reports whether err only signals an unterminated frame.
func truncated(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF)
}
