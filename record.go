// Line format for JSONL segments.
//
// Each record occupies one line with the checksum first so a torn or
// edited line is caught before the payload is handed to the caller:
//
//	{"_c":"0123456789abcdef","_r":{...record...}}
//
// The checksum covers the exact bytes of _r. With AlgNone the _c field is
// omitted and lines are accepted as-is.
package rotor

import (
	"bytes"

	json "github.com/goccy/go-json"
)

// line is the decoded form of one segment line.
type line struct {
	Checksum string          `json:"_c,omitempty"`
	Record   json.RawMessage `json:"_r"`
}

// encodeLine appends the framed record (without trailing newline) to dst.
// record must already be compact JSON.
func encodeLine(dst, record []byte, alg int) []byte {
	dst = append(dst, '{')
	if sum := checksum(record, alg); sum != "" {
		dst = append(dst, `"_c":"`...)
		dst = append(dst, sum...)
		dst = append(dst, `",`...)
	}
	dst = append(dst, `"_r":`...)
	dst = append(dst, record...)
	return append(dst, '}')
}

// decodeLine parses and verifies one line.
func decodeLine(data []byte, alg int) ([]byte, error) {
	var l line
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, ErrCorruptRecord
	}
	if len(l.Record) == 0 {
		return nil, ErrCorruptRecord
	}
	if alg != AlgNone && l.Checksum != checksum(l.Record, alg) {
		return nil, ErrCorruptRecord
	}
	return []byte(l.Record), nil
}

// valid checks if a line could hold a record (starts with '{').
func valid(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{'
}
