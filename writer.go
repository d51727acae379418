// Writer capability consumed by the rotator.
//
// The rotator never serialises records itself. It asks a Format to open a
// segment file, hands the resulting Writer to the caller, and flushes or
// closes it. JSONL is the bundled Format; any other serialiser only needs
// these two interfaces.
package rotor

// Writer is an open segment. Flush pushes buffered records to the file;
// Close flushes and releases the file. Close is called exactly once, when
// the writer is replaced by rotation or the rotator is closed.
type Writer interface {
	Flush() error
	Close() error
}

// Format opens segments of one encoding. Open must create or truncate the
// file at path; its parent directory already exists. Extension is appended
// to the epoch number to form the segment name and must not change over
// the lifetime of a stream.
type Format[W Writer] interface {
	Open(path string) (W, error)
	Extension() string
}
