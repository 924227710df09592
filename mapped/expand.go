package mapped

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

const expandChunk = 1 << 20

// expandIfNeeded grows the file and remaps it. Caller holds the mutex.
// When force is false the expansion only happens below the free-ratio
// threshold (the watchdog path). On remap failure the file is shrunk back
// so mapping and file size stay consistent.
func (f *MappedFile) expandIfNeeded(force bool) {

	if !f.isOpen() || f.mode == ReadOnly {
		return
	}

	freeRatio := 1.0 - float64(f.usedSize)/float64(f.size)
	if !force && freeRatio >= f.expandThreshold {
		return
	}

	newSize := f.size + f.size/4
	if f.size+expandChunk > newSize {
		newSize = f.size + expandChunk
	}

	if truncErr := f.file.Truncate(int64(newSize)); truncErr != nil {
		slog.Error("unable to expand file", "path", f.path, "new_size", newSize, "err", truncErr.Error())
		return
	}

	newMapping, remapErr := unix.Mremap(f.data, int(newSize), unix.MREMAP_MAYMOVE)
	if remapErr != nil {
		slog.Error("unable to remap file", "path", f.path, "new_size", newSize, "err", remapErr.Error())
		f.file.Truncate(int64(f.size))
		return
	}

	f.data = newMapping
	f.size = newSize

	slog.Info("expanded mapped file", "path", f.path, "new_size", newSize)
}
