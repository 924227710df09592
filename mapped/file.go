package mapped

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// PreambleSize is the reserved region at the start of every table file.
	// The magic sits at offset 0, used_size (little-endian u64) at offset 256,
	// the rest is zero. used_size counts the preamble itself.
	PreambleSize    = 1024
	MagicOffset     = 0
	UsedSizeOffset  = 256
	CopyrightNotice = "ISCADA Database File v1.0"

	DefaultExpandThreshold = 0.2
	DefaultCheckInterval   = 5 * time.Second
)

type OpenMode uint8

const (
	ReadOnly OpenMode = iota
	ReadWrite
	Create
)

func (m OpenMode) String() string {
	switch m {
	case ReadOnly:
		return "ReadOnly"
	case ReadWrite:
		return "ReadWrite"
	case Create:
		return "Create"
	default:
		return ""
	}
}

// MappedFile owns one file and one mmap region. All state mutations happen
// under a single mutex; a background watchdog grows the mapping when the
// free ratio drops below expandThreshold.
type MappedFile struct {
	path string
	file *os.File
	data []byte

	size     uint64
	usedSize uint64

	mode OpenMode

	expandThreshold float64
	checkInterval   time.Duration

	locker sync.Mutex

	running bool
	wakeCh  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func New() *MappedFile {
	return NewWithPolicy(DefaultExpandThreshold, DefaultCheckInterval)
}

func NewWithPolicy(expandThreshold float64, checkInterval time.Duration) *MappedFile {
	return &MappedFile{
		expandThreshold: expandThreshold,
		checkInterval:   checkInterval,
	}
}

func (f *MappedFile) isOpen() bool {
	return f.file != nil && f.data != nil
}

func (f *MappedFile) IsOpen() bool {
	f.locker.Lock()
	defer f.locker.Unlock()

	return f.isOpen()
}

func (f *MappedFile) Mode() OpenMode {
	f.locker.Lock()
	defer f.locker.Unlock()

	return f.mode
}

func (f *MappedFile) Size() uint64 {
	f.locker.Lock()
	defer f.locker.Unlock()

	return f.size
}

func (f *MappedFile) UsedSize() uint64 {
	f.locker.Lock()
	defer f.locker.Unlock()

	return f.usedSize
}

func (f *MappedFile) Path() string {
	f.locker.Lock()
	defer f.locker.Unlock()

	return f.path
}

// Open maps the file at path. Create mode requires initialSize >= PreambleSize
// and truncates; ReadWrite and ReadOnly require the magic to match exactly.
func (f *MappedFile) Open(path string, mode OpenMode, initialSize uint64) (topErr error) {

	f.locker.Lock()
	defer f.locker.Unlock()

	if f.isOpen() {
		return ErrAlreadyOpen
	}

	var flags int
	var prot int

	switch mode {
	case ReadOnly:
		flags = os.O_RDONLY
		prot = unix.PROT_READ
	case ReadWrite:
		flags = os.O_RDWR
		prot = unix.PROT_READ | unix.PROT_WRITE
	case Create:
		flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
		prot = unix.PROT_READ | unix.PROT_WRITE
	}

	file, openErr := os.OpenFile(path, flags, 0666)
	if openErr != nil {
		return fmt.Errorf("unable to open %s : %s", path, openErr.Error())
	}

	var size uint64

	if mode == Create {
		if initialSize < PreambleSize {
			file.Close()
			return ErrInvalidSize
		}
		size = initialSize
		if truncErr := file.Truncate(int64(size)); truncErr != nil {
			file.Close()
			return fmt.Errorf("unable to set file size : %s", truncErr.Error())
		}
	} else {
		stat, statErr := file.Stat()
		if statErr != nil {
			file.Close()
			return fmt.Errorf("unable to stat %s : %s", path, statErr.Error())
		}
		size = uint64(stat.Size())
		if size < PreambleSize {
			file.Close()
			return ErrInvalidMagic
		}
	}

	data, mmapErr := unix.Mmap(int(file.Fd()), 0, int(size), prot, unix.MAP_SHARED)
	if mmapErr != nil {
		file.Close()
		return fmt.Errorf("unable to create memory mapping : %s", mmapErr.Error())
	}

	f.path = path
	f.file = file
	f.data = data
	f.size = size
	f.mode = mode

	if mode == Create {
		copy(f.data[MagicOffset:], CopyrightNotice)
		f.usedSize = PreambleSize
		f.storeUsedSize()
		unix.Msync(f.data, unix.MS_SYNC)
		f.startWatchdog()
	} else {
		if string(f.data[MagicOffset:MagicOffset+len(CopyrightNotice)]) != CopyrightNotice {
			unix.Munmap(f.data)
			file.Close()
			f.file = nil
			f.data = nil
			return ErrInvalidMagic
		}
		f.usedSize = byteOrder.Uint64(f.data[UsedSizeOffset : UsedSizeOffset+8])

		if mode != ReadOnly {
			f.startWatchdog()
		}
	}

	slog.Debug("mapped file opened", "path", path, "mode", mode.String(), "size", f.size, "used", f.usedSize)

	return nil
}

// Close stops the watchdog, flushes used_size back into the preamble, msyncs,
// unmaps and closes the descriptor.
func (f *MappedFile) Close() {
	f.stopWatchdog()

	f.locker.Lock()
	defer f.locker.Unlock()

	if !f.isOpen() {
		return
	}

	if f.mode != ReadOnly {
		f.storeUsedSize()
		unix.Msync(f.data, unix.MS_SYNC)
	}

	unix.Munmap(f.data)
	f.data = nil

	f.file.Close()
	f.file = nil

	f.size = 0
	f.usedSize = 0
	f.path = ""
}

// storeUsedSize persists the in-memory used_size into preamble bytes 256..263.
// Caller holds the mutex.
func (f *MappedFile) storeUsedSize() {
	byteOrder.PutUint64(f.data[UsedSizeOffset:UsedSizeOffset+8], f.usedSize)
}
