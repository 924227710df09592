package table

// FixedStringLength is the upper bound for string field capacity (FSL).
const FixedStringLength = 128

type FieldType uint8

const (
	IntFieldType    FieldType = 0
	FloatFieldType  FieldType = 1
	StringFieldType FieldType = 2

	InvalidFieldType FieldType = 0xFF
)

func (f FieldType) String() string {
	switch f {
	case IntFieldType:
		return "Int32"
	case FloatFieldType:
		return "Float32"
	case StringFieldType:
		return "String"
	default:
		return ""
	}
}

// FieldDef describes one fixed-width record slot.
type FieldDef struct {
	Type     FieldType
	ValueLen uint64
	Name     string
}

func (f FieldDef) Valid() bool {

	if f.Type == InvalidFieldType {
		return false
	}
	if f.Name == "" || len(f.Name) > 255 {
		return false
	}

	switch f.Type {
	case IntFieldType, FloatFieldType:
		return f.ValueLen == 4
	case StringFieldType:
		return f.ValueLen >= 1 && f.ValueLen <= FixedStringLength
	default:
		return false
	}
}

// Equal compares every declared property, not just the name. The initializer
// uses element-for-element equality when validating an existing file against
// its configuration.
func (f FieldDef) Equal(other FieldDef) bool {
	return f.Type == other.Type && f.ValueLen == other.ValueLen && f.Name == other.Name
}
