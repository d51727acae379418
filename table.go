// Per-stream bookkeeping: active epoch, record counter and owned writer.
//
// Replace is the only place the epoch changes, and it resets the counter
// in the same step, so "records since rotation" is always relative to the
// writer currently installed.
package rotor

// Table tracks the active segment of one stream. It is not safe for
// concurrent use; LogRotator holds its lock around every call.
type Table[W Writer] struct {
	records uint64
	epoch   uint64
	writer  W
}

// NewTable installs writer as the segment for epoch.
func NewTable[W Writer](writer W, epoch uint64) *Table[W] {
	return &Table[W]{epoch: epoch, writer: writer}
}

// Writer returns the active writer for record serialisation.
func (t *Table[W]) Writer() W {
	return t.writer
}

// Increment counts one record. No upper bound is enforced here.
func (t *Table[W]) Increment() {
	t.records++
}

// Replace closes the old writer and installs w as the segment for the
// next epoch. The epoch wraps at the top of the uint64 range. The old
// writer's close error is returned after the swap has happened.
func (t *Table[W]) Replace(w W) error {
	old := t.writer
	t.writer = w
	t.epoch++
	t.records = 0
	return old.Close()
}

// Flush delegates to the writer.
func (t *Table[W]) Flush() error {
	return t.writer.Flush()
}

// Epoch returns the active epoch.
func (t *Table[W]) Epoch() uint64 {
	return t.epoch
}

// Records returns the number of records counted since the last rotation.
func (t *Table[W]) Records() uint64 {
	return t.records
}
