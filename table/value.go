package table

// DataValue is the tagged record value: exactly one of the three variants is
// meaningful, selected by Type. ValueLen always equals the declared field
// length, never the logical string length.
type DataValue struct {
	Type     FieldType
	ValueLen uint64

	IntVal   int32
	FloatVal float32
	StrVal   [FixedStringLength]byte
}

// Record maps field names to their values for one row.
type Record map[string]DataValue

// Str returns the string slot trimmed of zero padding.
func (v DataValue) Str() string {
	raw := v.StrVal[:v.ValueLen]
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}
	return string(raw[:end])
}

// StrBytes returns the full declared-length slot, padding included.
func (v DataValue) StrBytes() []byte {
	return v.StrVal[:v.ValueLen]
}

func PackIntValue(data Record, key string, value int32) {
	data[key] = DataValue{
		Type:     IntFieldType,
		ValueLen: 4,
		IntVal:   value,
	}
}

func PackFloatValue(data Record, key string, value float32) {
	data[key] = DataValue{
		Type:     FloatFieldType,
		ValueLen: 4,
		FloatVal: value,
	}
}

// PackStringValue stores value zero-padded into a full FSL slot. Longer
// input is truncated to the slot.
func PackStringValue(data Record, key string, value string) {
	PackStringValueLen(data, key, value, FixedStringLength)
}

// PackStringValueLen stores value into a slot of the given declared length.
func PackStringValueLen(data Record, key string, value string, valueLen uint64) {
	val := DataValue{
		Type:     StringFieldType,
		ValueLen: valueLen,
	}
	copy(val.StrVal[:valueLen], value)
	data[key] = val
}

// PackStringBytes stores raw slot bytes (used by the crypto write-back path,
// where the payload is not valid UTF-8).
func PackStringBytes(data Record, key string, value []byte, valueLen uint64) {
	val := DataValue{
		Type:     StringFieldType,
		ValueLen: valueLen,
	}
	copy(val.StrVal[:valueLen], value)
	data[key] = val
}
