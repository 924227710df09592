package dispatch

import (
	"bytes"
	"log/slog"

	"github.com/google/uuid"
	"github.com/iscada/tabledb/table"
)

type CryptoType uint8

const (
	Encrypt CryptoType = iota
	Decrypt
)

func (c CryptoType) String() string {
	if c == Encrypt {
		return "encrypt"
	}
	return "decrypt"
}

// cryptoField is the slot the crypto tasks transform in place.
const cryptoField = "name"

type cryptoTask struct {
	id          uuid.UUID
	recordIndex uint64
	cryptoType  CryptoType
	callback    func(success bool, recordIndex uint64)
}

// SubmitCryptoTask schedules an in-place transform of the record's name slot.
// The record count never changes: the result is written back at the same
// index and verified by an immediate read-back.
func (m *Manager) SubmitCryptoTask(index uint64, cryptoType CryptoType, callback func(bool, uint64)) {
	m.submit(&cryptoTask{
		id:          uuid.New(),
		recordIndex: index,
		cryptoType:  cryptoType,
		callback:    callback,
	})
}

func (t *cryptoTask) run(m *Manager) {

	defer m.decrementPendingTasks()

	success := t.process(m)

	if t.callback != nil {
		cb := t.callback
		ok := success
		idx := t.recordIndex
		m.postCallback(func() {
			cb(ok, idx)
		})
	}

	slog.Debug("crypto task finished", "task_id", t.id, "op", t.cryptoType.String(),
		"index", t.recordIndex, "success", success)
}

func (t *cryptoTask) process(m *Manager) bool {

	if !m.IsReady() {
		return false
	}

	// read phase: hold the data lock only for the record read
	if !m.table.DataLock().TryLock() {
		slog.Warn("crypto task: data lock timeout on read", "task_id", t.id, "index", t.recordIndex)
		return false
	}
	record, readErr := m.table.ReadRecord(t.recordIndex)
	m.table.DataLock().Unlock()

	if readErr != nil {
		slog.Warn("crypto task: record read failed", "task_id", t.id, "index", t.recordIndex, "err", readErr.Error())
		return false
	}

	val, ok := record[cryptoField]
	if !ok || val.Type != table.StringFieldType {
		slog.Warn("crypto task: record has no usable name field", "task_id", t.id, "index", t.recordIndex)
		return false
	}

	fieldDef, hasDef := m.table.FieldDef(cryptoField)
	targetLen := val.ValueLen
	if hasDef {
		targetLen = fieldDef.ValueLen
	}

	// transform exactly targetLen bytes into a borrowed scratch buffer; the
	// stored length must stay equal to the declared field length
	scratch, scratchId := m.scratch.Get()
	defer m.scratch.Return(scratchId)

	tmp := scratch[:targetLen]

	var out int
	var cryptoErr error
	if t.cryptoType == Encrypt {
		out, cryptoErr = m.cipher.Encrypt(tmp, val.StrVal[:targetLen])
	} else {
		out, cryptoErr = m.cipher.Decrypt(tmp, val.StrVal[:targetLen])
	}

	if cryptoErr != nil || out != int(targetLen) {
		slog.Error("crypto task: unexpected transform result", "task_id", t.id,
			"index", t.recordIndex, "produced", out, "expected", targetLen)
		return false
	}

	table.PackStringBytes(record, cryptoField, tmp, targetLen)

	// write phase: overwrite in place, then read back and verify before
	// releasing the lock
	if !m.table.DataLock().TryLock() {
		slog.Warn("crypto task: data lock timeout on write", "task_id", t.id, "index", t.recordIndex)
		return false
	}
	defer m.table.DataLock().Unlock()

	if writeErr := m.table.WriteRecordAt(t.recordIndex, record); writeErr != nil {
		slog.Warn("crypto task: write back failed", "task_id", t.id, "index", t.recordIndex, "err", writeErr.Error())
		return false
	}

	verify, verifyErr := m.table.ReadRecord(t.recordIndex)
	if verifyErr != nil {
		slog.Error("crypto task: verification read failed", "task_id", t.id, "index", t.recordIndex)
		return false
	}

	written := verify[cryptoField]
	if !bytes.Equal(written.StrVal[:targetLen], tmp) {
		slog.Error("crypto task: verification mismatch", "task_id", t.id, "index", t.recordIndex)
		return false
	}

	return true
}
