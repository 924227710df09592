package dispatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/iscada/tabledb/table"
)

func newTestManager(t *testing.T, workers int) *Manager {
	t.Helper()

	path := filepath.Join(t.TempDir(), "db.tbl")

	m := New(ManagerConfig{Path: path, Workers: workers})
	if initErr := m.InitOrLoad(); initErr != nil {
		t.Fatalf("initOrLoad failed: %v", initErr)
	}

	t.Cleanup(m.Close)

	return m
}

func TestSingleWriteRead(t *testing.T) {

	m := newTestManager(t, 2)

	m.SubmitWriteTask(1, "test_single", 95.5, nil)
	m.WaitForAllTasks()

	done := make(chan struct{})
	m.SubmitReadTask(0, func(ok bool, record table.Record) {
		defer close(done)

		if !ok {
			t.Errorf("read task failed")
			return
		}
		if record["id"].IntVal != 1 {
			t.Errorf("expected id=1, got %d", record["id"].IntVal)
		}
		if record["name"].Str() != "test_single" {
			t.Errorf("expected name=test_single, got %q", record["name"].Str())
		}
		if record["score"].FloatVal != 95.5 {
			t.Errorf("expected score=95.5, got %v", record["score"].FloatVal)
		}
	})

	<-done
	m.WaitForAllTasks()
}

func TestConcurrentWriters(t *testing.T) {

	m := newTestManager(t, 4)

	var wg sync.WaitGroup
	for worker := 0; worker < 4; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := int32(worker*50 + i)
				m.SubmitWriteTask(id, fmt.Sprintf("row_%d", id), float32(id), nil)
			}
		}(worker)
	}
	wg.Wait()

	m.WaitForAllTasks()

	if count := m.Table().RecordCount(); count != 200 {
		t.Fatalf("expected 200 records, got %d", count)
	}

	// every written id must be readable exactly once
	seen := map[int32]bool{}
	for idx := uint64(0); idx < 200; idx++ {
		record, readErr := m.Table().ReadRecord(idx)
		if readErr != nil {
			t.Fatalf("read of %d failed: %v", idx, readErr)
		}

		id := record["id"].IntVal
		if seen[id] {
			t.Errorf("id %d appears twice", id)
		}
		seen[id] = true

		// a torn record would break the id/name correspondence
		if record["name"].Str() != fmt.Sprintf("row_%d", id) {
			t.Errorf("torn record at %d: id=%d name=%q", idx, id, record["name"].Str())
		}
	}

	if len(seen) != 200 {
		t.Errorf("expected 200 distinct ids, got %d", len(seen))
	}
}

func TestCryptoRoundTripAllIndices(t *testing.T) {

	m := newTestManager(t, 4)

	const rows = 200

	for i := int32(0); i < rows; i++ {
		m.SubmitWriteTask(i, fmt.Sprintf("name_%d", i), 80+float32(i%20), nil)
	}
	m.WaitForAllTasks()

	for i := uint64(0); i < rows; i++ {
		m.SubmitCryptoTask(i, Encrypt, func(ok bool, idx uint64) {
			if !ok {
				t.Errorf("encrypt of %d failed", idx)
			}
		})
	}
	m.WaitForAllTasks()

	// a crypto round must never append
	if count := m.Table().RecordCount(); count != rows {
		t.Fatalf("record count changed by encryption: %d", count)
	}

	record, _ := m.Table().ReadRecord(0)
	if record["name"].Str() == "name_0" {
		t.Errorf("record 0 still holds plaintext after encryption")
	}

	for i := uint64(0); i < rows; i++ {
		m.SubmitCryptoTask(i, Decrypt, func(ok bool, idx uint64) {
			if !ok {
				t.Errorf("decrypt of %d failed", idx)
			}
		})
	}
	m.WaitForAllTasks()

	if count := m.Table().RecordCount(); count != rows {
		t.Fatalf("record count changed by decryption: %d", count)
	}

	for i := uint64(0); i < rows; i++ {
		record, readErr := m.Table().ReadRecord(i)
		if readErr != nil {
			t.Fatalf("read of %d failed: %v", i, readErr)
		}

		expected := fmt.Sprintf("name_%d", i)
		if record["name"].Str() != expected {
			t.Errorf("index %d: expected %q, got %q", i, expected, record["name"].Str())
		}
		if record["id"].IntVal != int32(i) {
			t.Errorf("index %d: sibling field id damaged by crypto round: %d", i, record["id"].IntVal)
		}
	}
}

func TestWritesPastInitialMapping(t *testing.T) {

	m := newTestManager(t, 4)

	// the default schema packs 136 bytes per record; 9000 rows blow well
	// past the initial 1 MiB mapping
	const rows = 9000

	for i := int32(0); i < rows; i++ {
		m.SubmitWriteTask(i, "expansion_row", 1.0, func(ok bool, id int32) {
			if !ok {
				t.Errorf("write %d failed", id)
			}
		})
	}
	m.WaitForAllTasks()

	if count := m.Table().RecordCount(); count != rows {
		t.Fatalf("expected %d records after expansion, got %d", rows, count)
	}

	record, readErr := m.Table().ReadRecord(rows - 1)
	if readErr != nil {
		t.Fatalf("read of last record failed: %v", readErr)
	}
	if record["id"].IntVal != rows-1 {
		t.Errorf("last record damaged: %+v", record)
	}
}

func TestBackupTask(t *testing.T) {

	m := newTestManager(t, 2)

	m.SubmitWriteTask(1, "backed_up", 1.0, nil)
	m.WaitForAllTasks()

	backupPath := filepath.Join(t.TempDir(), "backups", "db.lz4")

	done := make(chan bool, 1)
	m.SubmitBackupTask(backupPath, func(ok bool, path string) {
		done <- ok && path == backupPath
	})

	if !<-done {
		t.Fatalf("backup task reported failure")
	}

	info, statErr := os.Stat(backupPath)
	if statErr != nil {
		t.Fatalf("archive not written: %v", statErr)
	}
	if info.Size() == 0 {
		t.Errorf("archive is empty")
	}
}

func TestModifyFieldTask(t *testing.T) {

	m := newTestManager(t, 2)

	m.SubmitWriteTask(1, "before_extend", 1.0, nil)
	m.WaitForAllTasks()

	done := make(chan bool, 1)
	newField := table.FieldDef{Type: table.IntFieldType, ValueLen: 4, Name: "age"}
	m.SubmitModifyFieldTask(newField, func(ok bool, name string) {
		done <- ok && name == "age"
	})

	if !<-done {
		t.Fatalf("modify field task reported failure")
	}

	if _, ok := m.Table().FieldDef("age"); !ok {
		t.Errorf("field not present after task")
	}
	if count := m.Table().RecordCount(); count != 1 {
		t.Errorf("record count changed by schema extension: %d", count)
	}
}

func TestCallbacksRunOnPoster(t *testing.T) {

	path := filepath.Join(t.TempDir(), "db.tbl")

	pump := make(chan func(), 16)
	m := New(ManagerConfig{
		Path:    path,
		Workers: 2,
		Poster:  func(fn func()) { pump <- fn },
	})
	if initErr := m.InitOrLoad(); initErr != nil {
		t.Fatalf("initOrLoad failed: %v", initErr)
	}
	defer m.Close()

	ran := false
	m.SubmitWriteTask(7, "posted", 1.0, func(ok bool, id int32) {
		ran = ok && id == 7
	})

	// the callback must not run on the worker; it arrives on the pump
	fn := <-pump
	if ran {
		t.Fatalf("callback ran before the dispatch context pumped it")
	}
	fn()

	if !ran {
		t.Errorf("callback did not run on the dispatch context")
	}

	m.WaitForAllTasks()
}

func TestReadBeyondCountFails(t *testing.T) {

	m := newTestManager(t, 2)

	done := make(chan bool, 1)
	m.SubmitReadTask(5, func(ok bool, record table.Record) {
		done <- ok
	})

	if <-done {
		t.Errorf("read beyond record count must fail")
	}
}

func TestGenericRecordWrite(t *testing.T) {

	m := newTestManager(t, 2)

	data := table.Record{}
	table.PackIntValue(data, "id", 11)
	table.PackStringValue(data, "name", "generic")
	table.PackFloatValue(data, "score", 3.25)

	done := make(chan bool, 1)
	m.SubmitRecordWriteTask(data, func(ok bool) {
		done <- ok
	})

	if !<-done {
		t.Fatalf("generic write failed")
	}

	record, readErr := m.Table().ReadRecord(0)
	if readErr != nil {
		t.Fatalf("read failed: %v", readErr)
	}
	if !strings.HasPrefix(record["name"].Str(), "generic") {
		t.Errorf("unexpected name %q", record["name"].Str())
	}
}
