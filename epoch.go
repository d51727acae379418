// Epoch marker and segment naming.
//
// The marker is the only durable recovery signal. It is written to a
// .tmp file, synced, then renamed over the old marker, so a crash mid-write
// leaves either the previous epoch or the new one and never a torn value.
// A leftover .tmp is discarded on open. The marker is only ever written
// after the segment it names has been created.
package rotor

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// MarkerName is the file holding the active epoch inside a stream directory.
const MarkerName = "epoch"

// segmentName returns "<epoch>.<ext>".
func segmentName(epoch uint64, ext string) string {
	return strconv.FormatUint(epoch, 10) + "." + ext
}

func rootPath(root *os.Root, name string) string {
	return filepath.Join(root.Name(), name)
}

// readMarker returns the marker value. ok is false when the marker is
// absent. A marker that does not parse as an unsigned integer is deleted
// and reported as absent with corrupt set.
func readMarker(root *os.Root) (epoch uint64, ok, corrupt bool, err error) {
	// A .tmp left by a crash never replaced the marker; drop it.
	if err := root.Remove(MarkerName + ".tmp"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, false, false, ioErr("read-marker", rootPath(root, MarkerName+".tmp"), err)
	}

	data, err := root.ReadFile(MarkerName)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, ioErr("read-marker", rootPath(root, MarkerName), err)
	}

	epoch, perr := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if perr != nil {
		if err := root.Remove(MarkerName); err != nil {
			return 0, false, false, ioErr("read-marker", rootPath(root, MarkerName), err)
		}
		return 0, false, true, nil
	}
	return epoch, true, false, nil
}

// writeMarker durably replaces the marker with epoch.
func writeMarker(root *os.Root, epoch uint64) error {
	tmp := MarkerName + ".tmp"
	f, err := root.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return ioErr("mark", rootPath(root, tmp), err)
	}
	if _, err := f.WriteString(strconv.FormatUint(epoch, 10)); err != nil {
		f.Close()
		return ioErr("mark", rootPath(root, tmp), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return ioErr("mark", rootPath(root, tmp), err)
	}
	if err := f.Close(); err != nil {
		return ioErr("mark", rootPath(root, tmp), err)
	}
	if err := root.Rename(tmp, MarkerName); err != nil {
		return ioErr("mark", rootPath(root, MarkerName), err)
	}
	return nil
}

// removeSegment deletes a segment. A missing segment is not an error and
// reports removed=false.
func removeSegment(root *os.Root, name string) (removed bool, err error) {
	err = root.Remove(name)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, ioErr("prune", rootPath(root, name), err)
	}
	return true, nil
}
