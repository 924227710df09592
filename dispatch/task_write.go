package dispatch

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/iscada/tabledb/table"
)

type writeTask struct {
	id       uuid.UUID
	recordId int32
	name     string
	score    float32
	callback func(success bool, recordId int32)
}

// SubmitWriteTask appends one row of the default {id,name,score} schema.
func (m *Manager) SubmitWriteTask(recordId int32, name string, score float32, callback func(bool, int32)) {
	m.submit(&writeTask{
		id:       uuid.New(),
		recordId: recordId,
		name:     name,
		score:    score,
		callback: callback,
	})
}

func (t *writeTask) run(m *Manager) {

	defer m.decrementPendingTasks()

	success := false

	if m.IsReady() {

		data := table.Record{}
		table.PackIntValue(data, "id", t.recordId)
		table.PackStringValue(data, "name", t.name)
		table.PackFloatValue(data, "score", t.score)

		success = m.writeLocked(t.id, data)
	}

	if t.callback != nil {
		cb := t.callback
		ok := success
		cbId := t.recordId
		m.postCallback(func() {
			cb(ok, cbId)
		})
	}

	slog.Debug("write task finished", "task_id", t.id, "record_id", t.recordId, "success", success)
}

type recordWriteTask struct {
	id       uuid.UUID
	data     table.Record
	callback func(success bool)
}

// SubmitRecordWriteTask appends one row supplied as a full DataValue map,
// for tables with a non-default schema.
func (m *Manager) SubmitRecordWriteTask(data table.Record, callback func(bool)) {
	m.submit(&recordWriteTask{
		id:       uuid.New(),
		data:     data,
		callback: callback,
	})
}

func (t *recordWriteTask) run(m *Manager) {

	defer m.decrementPendingTasks()

	success := false
	if m.IsReady() {
		success = m.writeLocked(t.id, t.data)
	}

	if t.callback != nil {
		cb := t.callback
		ok := success
		m.postCallback(func() {
			cb(ok)
		})
	}

	slog.Debug("record write task finished", "task_id", t.id, "success", success)
}

func (m *Manager) writeLocked(taskId uuid.UUID, data table.Record) bool {

	if !m.table.DataLock().TryLock() {
		slog.Warn("write task: data lock timeout", "task_id", taskId)
		return false
	}
	defer m.table.DataLock().Unlock()

	if writeErr := m.table.WriteRecord(data); writeErr != nil {
		slog.Warn("write task failed", "task_id", taskId, "err", writeErr.Error())
		return false
	}

	return true
}
