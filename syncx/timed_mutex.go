// Package syncx holds the table's serialization primitives: a recursive
// mutex with owner identity and a bounded acquisition timeout. Table methods
// re-enter the same lock through helpers, so plain sync.Mutex would deadlock.
package syncx

import (
	"bytes"
	"errors"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"
)

var ErrLockTimeout = errors.New("lock acquisition timed out")

// LockTimeout bounds every acquisition attempt.
const LockTimeout = 5 * time.Second

type TimedMutex struct {
	sem chan struct{}

	owner atomic.Int64
	depth int
}

func NewTimedMutex() *TimedMutex {
	return &TimedMutex{
		sem: make(chan struct{}, 1),
	}
}

// TryLockFor acquires the lock within d, or reports failure. Re-acquisition
// by the owning goroutine always succeeds and only bumps the hold count.
func (m *TimedMutex) TryLockFor(d time.Duration) bool {

	gid := goroutineId()

	if m.owner.Load() == gid {
		m.depth++
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case m.sem <- struct{}{}:
		m.owner.Store(gid)
		m.depth = 1
		return true
	case <-timer.C:
		return false
	}
}

// TryLock acquires with the default 5 s bound.
func (m *TimedMutex) TryLock() bool {
	return m.TryLockFor(LockTimeout)
}

func (m *TimedMutex) Unlock() {

	gid := goroutineId()

	if m.owner.Load() != gid {
		panic("syncx: unlock by non-owner goroutine")
	}

	m.depth--
	if m.depth == 0 {
		m.owner.Store(0)
		<-m.sem
	}
}

var goroutinePrefix = []byte("goroutine ")

// goroutineId parses the current goroutine id out of the stack header.
// Depth bookkeeping needs owner identity and the runtime does not expose it.
func goroutineId() int64 {

	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)

	line := bytes.TrimPrefix(buf[:n], goroutinePrefix)
	idField := line[:bytes.IndexByte(line, ' ')]

	id, err := strconv.ParseInt(string(idField), 10, 64)
	if err != nil {
		panic("syncx: unable to parse goroutine id: " + err.Error())
	}

	return id
}
