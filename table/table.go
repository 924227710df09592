package table

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	"github.com/fatih/color"
	"github.com/iscada/tabledb/bits"
	"github.com/iscada/tabledb/mapped"
	"github.com/iscada/tabledb/syncx"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const initialTableSize = 1024 * 1024

// DynamicTable is a typed fixed-width record store over one mapped file.
// Records are append-only; the schema may grow a field online but never
// shrinks. The two locks are recursive: public methods guard themselves and
// may also run under a caller already holding the same lock.
type DynamicTable struct {
	fileOp   *mapped.MappedFile
	header   Header
	fieldMap map[string]FieldDef

	loaded bool

	dataLock *syncx.TimedMutex
	metaLock *syncx.TimedMutex
}

func NewDynamicTable() *DynamicTable {
	return &DynamicTable{
		fileOp:   mapped.New(),
		fieldMap: map[string]FieldDef{},
		dataLock: syncx.NewTimedMutex(),
		metaLock: syncx.NewTimedMutex(),
	}
}

// DataLock serializes the record plane; MetaLock serializes schema and
// backup work. Acquisition order when both are needed: meta, then data.
func (t *DynamicTable) DataLock() *syncx.TimedMutex { return t.dataLock }
func (t *DynamicTable) MetaLock() *syncx.TimedMutex { return t.metaLock }

func (t *DynamicTable) Loaded() bool {
	return t.loaded
}

func (t *DynamicTable) Path() string {
	return t.fileOp.Path()
}

// Header returns a copy of the current field table.
func (t *DynamicTable) Header() Header {

	fields := make([]FieldDef, len(t.header.Fields))
	copy(fields, t.header.Fields)

	return Header{
		Fields:     fields,
		totalLen:   t.header.totalLen,
		recordSize: t.header.recordSize,
	}
}

func (t *DynamicTable) FieldDef(name string) (FieldDef, bool) {
	field, ok := t.fieldMap[name]
	return field, ok
}

// Init creates a fresh table file and appends the serialized header as its
// first payload bytes. The table stays open.
func (t *DynamicTable) Init(path string, fields []FieldDef) error {

	if !t.metaLock.TryLock() {
		return syncx.ErrLockTimeout
	}
	defer t.metaLock.Unlock()

	for _, field := range fields {
		if !field.Valid() {
			return fmt.Errorf("%w: %s", ErrInvalidField, field.Name)
		}
	}

	if openErr := t.fileOp.Open(path, mapped.Create, initialTableSize); openErr != nil {
		return openErr
	}

	t.header = Header{Fields: fields}
	t.header.recalculate()

	if appendErr := t.fileOp.Append(t.header.Bytes()); appendErr != nil {
		t.fileOp.Close()
		return fmt.Errorf("unable to write header: %s", appendErr.Error())
	}

	maps.Clear(t.fieldMap)
	for _, field := range fields {
		t.fieldMap[field.Name] = field
	}

	t.loaded = true

	color.Green(" +++ created table %s, %d fields, record size %d bytes", path, len(fields), t.header.recordSize)

	return nil
}

// Load opens an existing table file and parses its header.
func (t *DynamicTable) Load(path string) error {

	if !t.metaLock.TryLock() {
		return syncx.ErrLockTimeout
	}
	defer t.metaLock.Unlock()

	if openErr := t.fileOp.Open(path, mapped.ReadWrite, 0); openErr != nil {
		return openErr
	}

	header, parseErr := parseHeader(t.fileOp)
	if parseErr != nil {
		t.fileOp.Close()
		return fmt.Errorf("unable to parse header of %s: %s", path, parseErr.Error())
	}

	header.recalculate()
	t.header = header

	maps.Clear(t.fieldMap)
	for _, field := range header.Fields {
		t.fieldMap[field.Name] = field
	}

	t.loaded = true

	slog.Info("table loaded", "path", path, "fields", len(header.Fields), "records", t.RecordCount())

	return nil
}

// RecordCount derives the row count from used_size.
func (t *DynamicTable) RecordCount() uint64 {

	if !t.loaded || t.header.recordSize == 0 {
		return 0
	}

	dataSize := t.fileOp.UsedSize() - mapped.PreambleSize - t.header.totalLen
	return dataSize / t.header.recordSize
}

// ReadRecord reads the record at idx into a typed Record.
func (t *DynamicTable) ReadRecord(idx uint64) (Record, error) {

	if !t.dataLock.TryLock() {
		return nil, syncx.ErrLockTimeout
	}
	defer t.dataLock.Unlock()

	if !t.loaded {
		return nil, ErrNotLoaded
	}

	recordSize := t.header.recordSize
	recordOffset := t.header.totalLen + idx*recordSize

	if recordOffset+recordSize > t.fileOp.UsedSize()-mapped.PreambleSize {
		return nil, mapped.ErrOutOfRange
	}

	raw := make([]byte, recordSize)
	if readErr := t.fileOp.Read(raw, recordOffset); readErr != nil {
		return nil, readErr
	}

	result := Record{}
	fieldOffset := uint64(0)

	for _, field := range t.header.Fields {

		val := DataValue{
			Type:     field.Type,
			ValueLen: field.ValueLen,
		}

		slot := raw[fieldOffset : fieldOffset+field.ValueLen]

		switch field.Type {
		case IntFieldType:
			val.IntVal = int32(binary.LittleEndian.Uint32(slot))
		case FloatFieldType:
			val.FloatVal = float32FromBytes(slot)
		case StringFieldType:
			copy(val.StrVal[:], slot)
		default:
			return nil, ErrInvalidField
		}

		result[field.Name] = val
		fieldOffset += field.ValueLen
	}

	return result, nil
}

// WriteRecord appends one record. A missing field or a type/length mismatch
// aborts the whole record and nothing is appended.
func (t *DynamicTable) WriteRecord(data Record) error {

	if !t.dataLock.TryLock() {
		return syncx.ErrLockTimeout
	}
	defer t.dataLock.Unlock()

	if !t.loaded {
		return ErrNotLoaded
	}

	buffer, packErr := t.packRecord(data)
	if packErr != nil {
		return packErr
	}

	if !t.fileOp.EnsureCapacity(t.header.recordSize) {
		slog.Warn("write would exceed file bounds",
			"used", t.fileOp.UsedSize(), "len", t.header.recordSize, "file_size", t.fileOp.Size())
		return mapped.ErrCapacityExhausted
	}

	return t.fileOp.Append(buffer)
}

// WriteRecordAt overwrites the record at idx in place. The index must refer
// to an existing record.
func (t *DynamicTable) WriteRecordAt(idx uint64, data Record) error {

	if !t.dataLock.TryLock() {
		return syncx.ErrLockTimeout
	}
	defer t.dataLock.Unlock()

	if !t.loaded {
		return ErrNotLoaded
	}

	recordSize := t.header.recordSize
	recordOffset := t.header.totalLen + idx*recordSize

	if recordOffset+recordSize > t.fileOp.UsedSize()-mapped.PreambleSize {
		return mapped.ErrOutOfRange
	}

	buffer, packErr := t.packRecord(data)
	if packErr != nil {
		return packErr
	}

	return t.fileOp.WriteAt(buffer, recordOffset)
}

// packRecord assembles the contiguous S-byte image of one record in header
// field order.
func (t *DynamicTable) packRecord(data Record) ([]byte, error) {

	buffer := make([]byte, t.header.recordSize)
	bw := bits.NewEncodeBuffer(buffer, binary.LittleEndian)

	for _, field := range t.header.Fields {

		val, ok := data[field.Name]
		if !ok {
			supplied := maps.Keys(data)
			slices.Sort(supplied)
			return nil, fmt.Errorf("missing field '%s' (supplied: %v)", field.Name, supplied)
		}

		if val.Type != field.Type || val.ValueLen != field.ValueLen {
			return nil, fmt.Errorf("type/length mismatch for field '%s' (expected type=%s len=%d, got type=%s len=%d)",
				field.Name, field.Type.String(), field.ValueLen, val.Type.String(), val.ValueLen)
		}

		switch field.Type {
		case IntFieldType:
			bw.PutInt32(val.IntVal)
		case FloatFieldType:
			bw.PutFloat32(val.FloatVal)
		case StringFieldType:
			bw.Write(val.StrVal[:field.ValueLen])
		default:
			return nil, ErrInvalidField
		}
	}

	return bw.Bytes(), nil
}

// Sync flushes used_size and record bytes to disk without closing.
func (t *DynamicTable) Sync() error {
	if !t.loaded {
		return ErrNotLoaded
	}
	return t.fileOp.Sync()
}

// Close flushes used_size and unmaps. Safe to call twice.
func (t *DynamicTable) Close() {
	if t.loaded {
		t.fileOp.Close()
		t.loaded = false
	}
}

func float32FromBytes(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
