package dispatch

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/iscada/tabledb/table"
)

type readTask struct {
	id          uuid.UUID
	recordIndex uint64
	callback    func(success bool, record table.Record)
}

// SubmitReadTask schedules a record read; the callback receives the typed
// record on success.
func (m *Manager) SubmitReadTask(index uint64, callback func(bool, table.Record)) {
	m.submit(&readTask{
		id:          uuid.New(),
		recordIndex: index,
		callback:    callback,
	})
}

func (t *readTask) run(m *Manager) {

	defer m.decrementPendingTasks()

	var result table.Record
	success := false

	if m.IsReady() {
		if m.table.DataLock().TryLock() {
			record, readErr := m.table.ReadRecord(t.recordIndex)
			m.table.DataLock().Unlock()

			if readErr != nil {
				slog.Warn("read task failed", "task_id", t.id, "index", t.recordIndex, "err", readErr.Error())
			} else {
				result = record
				success = true
			}
		} else {
			slog.Warn("read task: data lock timeout", "task_id", t.id, "index", t.recordIndex)
		}
	}

	if t.callback != nil {
		cb := t.callback
		ok := success
		res := result
		m.postCallback(func() {
			cb(ok, res)
		})
	}

	slog.Debug("read task finished", "task_id", t.id, "index", t.recordIndex, "success", success)
}
