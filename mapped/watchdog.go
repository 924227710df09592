package mapped

import (
	"log/slog"
	"time"
)

// startWatchdog launches the single background expansion worker. It sleeps
// with a bounded timeout, wakes on signal or timer, and runs the non-forced
// expansion check. Caller holds the mutex.
func (f *MappedFile) startWatchdog() {

	if f.running {
		return
	}

	f.running = true
	f.wakeCh = make(chan struct{}, 1)
	f.stopCh = make(chan struct{})
	f.doneCh = make(chan struct{})

	go f.watchdogLoop()
}

func (f *MappedFile) watchdogLoop() {

	slog.Debug("watchdog started", "path", f.path)
	defer close(f.doneCh)
	defer slog.Debug("watchdog stopped")

	timer := time.NewTimer(f.checkInterval)
	defer timer.Stop()

	for {
		select {
		case <-f.stopCh:
			return
		case <-f.wakeCh:
		case <-timer.C:
		}

		f.locker.Lock()
		if f.running {
			f.expandIfNeeded(false)
		}
		f.locker.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(f.checkInterval)
	}
}

// signalWatchdog wakes the worker without blocking. Caller holds the mutex.
func (f *MappedFile) signalWatchdog() {
	if !f.running {
		return
	}
	select {
	case f.wakeCh <- struct{}{}:
	default:
	}
}

// stopWatchdog terminates the worker and waits for it to exit. Must be
// called before unmapping; never called from the worker itself.
func (f *MappedFile) stopWatchdog() {

	f.locker.Lock()
	if !f.running {
		f.locker.Unlock()
		return
	}
	f.running = false
	f.locker.Unlock()

	close(f.stopCh)
	<-f.doneCh
}
