package mapped

import (
	"encoding/binary"
	"log/slog"

	"golang.org/x/sys/unix"
)

var byteOrder = binary.LittleEndian

// Append writes b at logical position used_size and advances used_size.
// Expands the mapping synchronously when the write would not fit, and pokes
// the watchdog when the post-append free ratio falls below the threshold.
func (f *MappedFile) Append(b []byte) error {

	f.locker.Lock()
	defer f.locker.Unlock()

	if !f.isOpen() {
		return ErrNotOpen
	}
	if f.mode == ReadOnly {
		return ErrReadOnly
	}

	length := uint64(len(b))
	offset := f.usedSize

	if offset+length > f.size {
		f.expandIfNeeded(true)
		offset = f.usedSize
		if offset+length > f.size {
			slog.Error("append out of range", "path", f.path, "offset", offset, "len", length, "size", f.size)
			return ErrOutOfRange
		}
	}

	copy(f.data[offset:], b)
	f.usedSize += length

	freeRatio := 1.0 - float64(f.usedSize)/float64(f.size)
	if freeRatio < f.expandThreshold {
		f.signalWatchdog()
	}

	return nil
}

// WriteAt writes b at the given logical offset (relative to the data area,
// the preamble is added internally). used_size does not change; the target
// range must already sit inside the mapping.
func (f *MappedFile) WriteAt(b []byte, logicalOffset uint64) error {

	f.locker.Lock()
	defer f.locker.Unlock()

	if !f.isOpen() {
		return ErrNotOpen
	}
	if f.mode == ReadOnly {
		return ErrReadOnly
	}

	actualOffset := logicalOffset + PreambleSize
	if actualOffset+uint64(len(b)) > f.size {
		return ErrOutOfRange
	}

	copy(f.data[actualOffset:], b)

	return nil
}

// Read fills dst from the given logical offset.
func (f *MappedFile) Read(dst []byte, logicalOffset uint64) error {

	f.locker.Lock()
	defer f.locker.Unlock()

	if !f.isOpen() {
		return ErrNotOpen
	}

	actualOffset := logicalOffset + PreambleSize
	if actualOffset+uint64(len(dst)) > f.size {
		return ErrOutOfRange
	}

	copy(dst, f.data[actualOffset:actualOffset+uint64(len(dst))])

	return nil
}

// EnsureCapacity guarantees used_size + needed fits inside the mapping,
// expanding synchronously when it does not.
func (f *MappedFile) EnsureCapacity(needed uint64) bool {

	f.locker.Lock()
	defer f.locker.Unlock()

	if !f.isOpen() || f.mode == ReadOnly {
		return false
	}

	for f.usedSize+needed > f.size {
		before := f.size
		f.expandIfNeeded(true)
		if f.size == before {
			return false
		}
	}

	return true
}

// SetUsedSize rewrites used_size after a bulk region rewrite (online schema
// extension), persists it into the preamble and msyncs.
func (f *MappedFile) SetUsedSize(n uint64) error {

	f.locker.Lock()
	defer f.locker.Unlock()

	if !f.isOpen() {
		return ErrNotOpen
	}
	if f.mode == ReadOnly {
		return ErrReadOnly
	}
	if n < PreambleSize || n > f.size {
		return ErrOutOfRange
	}

	f.usedSize = n
	f.storeUsedSize()
	unix.Msync(f.data, unix.MS_SYNC)

	return nil
}

// Sync persists used_size into the preamble and flushes the mapping to disk.
func (f *MappedFile) Sync() error {

	f.locker.Lock()
	defer f.locker.Unlock()

	if !f.isOpen() {
		return ErrNotOpen
	}

	if f.mode != ReadOnly {
		f.storeUsedSize()
	}

	return unix.Msync(f.data, unix.MS_SYNC)
}
