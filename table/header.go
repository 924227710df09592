package table

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/iscada/tabledb/bits"
	"github.com/iscada/tabledb/mapped"
)

var (
	ErrInvalidHeader  = errors.New("invalid table header")
	ErrInvalidField   = errors.New("invalid field definition")
	ErrSchemaMismatch = errors.New("table fields disagree with configuration")
	ErrNotLoaded      = errors.New("table not loaded")
	ErrFieldExists    = errors.New("field already exists")
)

// Header is the field-definition block immediately following the preamble.
// On disk (little-endian): u64 totalLen, u8 fieldCount, then per field
// u8 type, u64 valueLen, u8 nameLen, nameLen bytes of UTF-8 name.
type Header struct {
	Fields []FieldDef

	totalLen   uint64
	recordSize uint64
}

func (h *Header) TotalLen() uint64 {
	return h.totalLen
}

// RecordSize is S: the packed byte size of one record.
func (h *Header) RecordSize() uint64 {
	return h.recordSize
}

func (h *Header) recalculate() {
	h.totalLen = headerLen(h.Fields)

	h.recordSize = 0
	for _, field := range h.Fields {
		h.recordSize += field.ValueLen
	}
}

func headerLen(fields []FieldDef) uint64 {
	total := uint64(8 + 1)
	for _, field := range fields {
		total += 1 + 8 + 1 + uint64(len(field.Name))
	}
	return total
}

// Bytes serializes the header, totalLen prefix included.
func (h *Header) Bytes() []byte {

	buf := make([]byte, h.totalLen)
	bw := bits.NewEncodeBuffer(buf, binary.LittleEndian)

	bw.PutUint64(h.totalLen)
	bw.WriteByte(uint8(len(h.Fields)))

	for _, field := range h.Fields {
		bw.WriteByte(uint8(field.Type))
		bw.PutUint64(field.ValueLen)
		bw.WriteByte(uint8(len(field.Name)))
		bw.PutStringBytes(field.Name)
	}

	return bw.Bytes()
}

// parseHeader reads and validates the header off the data area of fileOp.
// The consumed byte count must equal the declared total length.
func parseHeader(fileOp *mapped.MappedFile) (header Header, topErr error) {

	lenBuf := make([]byte, 8)
	if readErr := fileOp.Read(lenBuf, 0); readErr != nil {
		return header, fmt.Errorf("unable to read header length: %s", readErr.Error())
	}

	totalLen := binary.LittleEndian.Uint64(lenBuf)
	if totalLen < 9 || totalLen > fileOp.UsedSize()-mapped.PreambleSize {
		return header, ErrInvalidHeader
	}

	raw := make([]byte, totalLen)
	if readErr := fileOp.Read(raw, 0); readErr != nil {
		return header, fmt.Errorf("unable to read header: %s", readErr.Error())
	}

	reader := bits.NewReader(bytes.NewReader(raw), binary.LittleEndian)

	header.totalLen = reader.MustReadU64()

	fieldCount, countErr := reader.ReadU8()
	if countErr != nil {
		return header, fmt.Errorf("unable to decode field count: %s", countErr.Error())
	}

	for i := uint8(0); i < fieldCount; i++ {

		typeRaw, typeErr := reader.ReadU8()
		if typeErr != nil {
			return header, fmt.Errorf("unable to decode field type: %s", typeErr.Error())
		}

		valueLen, lenErr := reader.ReadU64()
		if lenErr != nil {
			return header, fmt.Errorf("unable to decode field value length: %s", lenErr.Error())
		}

		nameLen, nameLenErr := reader.ReadU8()
		if nameLenErr != nil {
			return header, fmt.Errorf("unable to decode field name length: %s", nameLenErr.Error())
		}

		name, nameErr := reader.ReadString(int(nameLen))
		if nameErr != nil {
			return header, fmt.Errorf("unable to decode field name: %s", nameErr.Error())
		}

		field := FieldDef{
			Type:     FieldType(typeRaw),
			ValueLen: valueLen,
			Name:     name,
		}

		if !field.Valid() {
			spew.Dump(field)
			return header, ErrInvalidField
		}

		header.Fields = append(header.Fields, field)
		header.recordSize += valueLen
	}

	if uint64(reader.Consumed()) != totalLen {
		return header, ErrInvalidHeader
	}

	return header, nil
}
