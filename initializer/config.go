package initializer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/iscada/tabledb/table"
)

var ErrNoTables = errors.New("configuration has no valid tables array")

// FieldSpec mirrors one field entry of the configuration document.
type FieldSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	ValueLen uint64 `json:"valueLen"`
}

// TableSpec declares one table: name for logging, alias as the filename
// under the database root.
type TableSpec struct {
	Name   string      `json:"name"`
	Alias  string      `json:"alias"`
	Fields []FieldSpec `json:"fields"`
}

type Config struct {
	Tables []TableSpec `json:"tables"`
}

func LoadConfig(path string) (Config, error) {

	var config Config

	fullContent, contentErr := os.ReadFile(path)
	if contentErr != nil {
		return config, fmt.Errorf("unable to read config file: %s", contentErr.Error())
	}

	if unmarshalErr := json.Unmarshal(fullContent, &config); unmarshalErr != nil {
		return config, fmt.Errorf("unable to parse config file: %s", unmarshalErr.Error())
	}

	if config.Tables == nil {
		return config, ErrNoTables
	}

	return config, nil
}

// FieldDef converts the config entry into a typed definition.
func (f FieldSpec) FieldDef() (table.FieldDef, error) {

	field := table.FieldDef{
		Name:     f.Name,
		ValueLen: f.ValueLen,
	}

	switch f.Type {
	case "int":
		field.Type = table.IntFieldType
	case "float":
		field.Type = table.FloatFieldType
	case "string":
		field.Type = table.StringFieldType
	default:
		return field, fmt.Errorf("%w: unknown type '%s' for field '%s'", table.ErrInvalidField, f.Type, f.Name)
	}

	if !field.Valid() {
		return field, fmt.Errorf("%w: %s", table.ErrInvalidField, f.Name)
	}

	return field, nil
}

func (t TableSpec) fieldDefs() ([]table.FieldDef, error) {

	fields := make([]table.FieldDef, 0, len(t.Fields))
	for _, spec := range t.Fields {
		field, fieldErr := spec.FieldDef()
		if fieldErr != nil {
			return nil, fieldErr
		}
		fields = append(fields, field)
	}

	return fields, nil
}
