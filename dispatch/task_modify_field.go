package dispatch

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/iscada/tabledb/table"
)

type modifyFieldTask struct {
	id       uuid.UUID
	newField table.FieldDef
	callback func(success bool, fieldName string)
}

// SubmitModifyFieldTask schedules an online schema extension.
func (m *Manager) SubmitModifyFieldTask(field table.FieldDef, callback func(bool, string)) {
	m.submit(&modifyFieldTask{
		id:       uuid.New(),
		newField: field,
		callback: callback,
	})
}

func (t *modifyFieldTask) run(m *Manager) {

	defer m.decrementPendingTasks()

	success := false

	if m.IsReady() {
		if !m.table.MetaLock().TryLock() {
			slog.Warn("modify field task: meta lock timeout", "task_id", t.id, "field", t.newField.Name)
		} else {
			addErr := m.table.AddField(t.newField)
			m.table.MetaLock().Unlock()

			if addErr != nil {
				slog.Warn("modify field task failed", "task_id", t.id, "field", t.newField.Name, "err", addErr.Error())
			} else {
				success = true
			}
		}
	}

	if t.callback != nil {
		cb := t.callback
		ok := success
		name := t.newField.Name
		m.postCallback(func() {
			cb(ok, name)
		})
	}

	slog.Debug("modify field task finished", "task_id", t.id, "field", t.newField.Name, "success", success)
}
