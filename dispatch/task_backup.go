package dispatch

import (
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/iscada/tabledb/archive"
)

type backupTask struct {
	id         uuid.UUID
	backupPath string
	callback   func(success bool, path string)
}

// SubmitBackupTask compresses the table file into backupPath under the
// meta-lock, so the on-disk structure cannot shift mid-archive.
func (m *Manager) SubmitBackupTask(path string, callback func(bool, string)) {
	m.submit(&backupTask{
		id:         uuid.New(),
		backupPath: path,
		callback:   callback,
	})
}

func (t *backupTask) run(m *Manager) {

	defer m.decrementPendingTasks()

	success := false
	resultPath := ""

	if m.IsReady() {
		sourcePath := m.table.Path()

		if _, statErr := os.Stat(sourcePath); statErr != nil {
			slog.Error("backup task: source file unreadable", "task_id", t.id, "path", sourcePath)
		} else if !m.table.MetaLock().TryLock() {
			slog.Warn("backup task: meta lock timeout", "task_id", t.id, "path", t.backupPath)
		} else {
			// flush used_size so the archive carries an exact preamble
			m.table.Sync()
			compressErr := archive.CompressFile(sourcePath, t.backupPath)
			m.table.MetaLock().Unlock()

			if compressErr != nil {
				slog.Error("backup task failed", "task_id", t.id, "path", t.backupPath, "err", compressErr.Error())
			} else {
				success = true
				resultPath = t.backupPath
				color.Green(" +++ backup finished : %s", resultPath)
			}
		}
	}

	if t.callback != nil {
		cb := t.callback
		ok := success
		path := resultPath
		m.postCallback(func() {
			cb(ok, path)
		})
	}

	slog.Debug("backup task finished", "task_id", t.id, "path", t.backupPath, "success", success)
}
