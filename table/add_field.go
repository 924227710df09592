package table

import (
	"fmt"
	"log/slog"

	"github.com/iscada/tabledb/mapped"
	"github.com/iscada/tabledb/syncx"
)

// AddField extends the schema online with one trailing field. The new header
// and every migrated record (zero-padded trailing slot) are rebuilt into a
// shadow buffer and committed with a single in-place write followed by a
// used_size update, so a failure before the commit leaves both the file and
// the in-memory schema untouched. Takes the meta-lock, then the data-lock.
func (t *DynamicTable) AddField(newField FieldDef) error {

	if !t.metaLock.TryLock() {
		return syncx.ErrLockTimeout
	}
	defer t.metaLock.Unlock()

	if !t.dataLock.TryLock() {
		return syncx.ErrLockTimeout
	}
	defer t.dataLock.Unlock()

	if !t.loaded {
		return ErrNotLoaded
	}
	if !newField.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidField, newField.Name)
	}
	if _, exists := t.fieldMap[newField.Name]; exists {
		return fmt.Errorf("%w: %s", ErrFieldExists, newField.Name)
	}

	oldHeaderLen := t.header.totalLen
	oldRecordSize := t.header.recordSize
	recordCount := t.RecordCount()

	newFields := make([]FieldDef, len(t.header.Fields), len(t.header.Fields)+1)
	copy(newFields, t.header.Fields)
	newFields = append(newFields, newField)

	newHeader := Header{Fields: newFields}
	newHeader.recalculate()

	newHeaderLen := newHeader.totalLen
	newRecordSize := newHeader.recordSize

	newUsed := mapped.PreambleSize + newHeaderLen + recordCount*newRecordSize

	if !t.fileOp.EnsureCapacity(newUsed - t.fileOp.UsedSize()) {
		return mapped.ErrCapacityExhausted
	}

	// shadow image of the whole data area under the new layout
	shadow := make([]byte, newHeaderLen+recordCount*newRecordSize)
	copy(shadow, newHeader.Bytes())

	// migrate from last to first; each record keeps its old bytes and gains
	// a zeroed trailing slot
	recordBuf := make([]byte, oldRecordSize)
	for i := recordCount; i > 0; i-- {
		idx := i - 1

		oldOffset := oldHeaderLen + idx*oldRecordSize
		if readErr := t.fileOp.Read(recordBuf, oldOffset); readErr != nil {
			return fmt.Errorf("unable to read record %d during migration: %s", idx, readErr.Error())
		}

		newOffset := newHeaderLen + idx*newRecordSize
		copy(shadow[newOffset:], recordBuf)
	}

	if writeErr := t.fileOp.WriteAt(shadow, 0); writeErr != nil {
		return fmt.Errorf("unable to commit migrated region: %s", writeErr.Error())
	}

	if sizeErr := t.fileOp.SetUsedSize(newUsed); sizeErr != nil {
		return fmt.Errorf("unable to update used size: %s", sizeErr.Error())
	}

	t.header = newHeader
	t.fieldMap[newField.Name] = newField

	slog.Info("field added", "name", newField.Name, "type", newField.Type.String(),
		"record_size", newRecordSize, "records_migrated", recordCount)

	return nil
}
