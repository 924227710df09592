package table

import (
	"errors"
	"testing"
)

func TestAddFieldOnEmptyTable(t *testing.T) {

	tbl, path := newTestTable(t)

	newField := FieldDef{Type: IntFieldType, ValueLen: 4, Name: "age"}
	if addErr := tbl.AddField(newField); addErr != nil {
		t.Fatalf("addField failed: %v", addErr)
	}

	header := tbl.Header()
	if len(header.Fields) != 4 {
		t.Fatalf("expected 4 fields, got %d", len(header.Fields))
	}
	if !header.Fields[3].Equal(newField) {
		t.Errorf("trailing field mismatch: %+v", header.Fields[3])
	}

	// the extended header must survive a reload
	tbl.Close()
	again := NewDynamicTable()
	if loadErr := again.Load(path); loadErr != nil {
		t.Fatalf("load after addField failed: %v", loadErr)
	}
	defer again.Close()

	if len(again.Header().Fields) != 4 {
		t.Errorf("extended header lost across reload")
	}
	if again.RecordCount() != 0 {
		t.Errorf("empty table gained records: %d", again.RecordCount())
	}
}

func TestAddFieldMigratesRecords(t *testing.T) {

	tbl, path := newTestTable(t)

	tbl.WriteRecord(makeRecord(1, "alpha", 1.5))
	tbl.WriteRecord(makeRecord(2, "beta", 2.5))

	oldHeader := tbl.Header()
	oldRecordSize := oldHeader.RecordSize()

	newField := FieldDef{Type: StringFieldType, ValueLen: 16, Name: "tag"}
	if addErr := tbl.AddField(newField); addErr != nil {
		t.Fatalf("addField failed: %v", addErr)
	}

	newHeader := tbl.Header()
	if newHeader.RecordSize() != oldRecordSize+16 {
		t.Fatalf("record size not extended: %d", newHeader.RecordSize())
	}

	if tbl.RecordCount() != 2 {
		t.Fatalf("record count changed by migration: %d", tbl.RecordCount())
	}

	// old values intact, new slot zeroed
	record, readErr := tbl.ReadRecord(0)
	if readErr != nil {
		t.Fatalf("read after migration failed: %v", readErr)
	}
	if record["id"].IntVal != 1 || record["name"].Str() != "alpha" || record["score"].FloatVal != 1.5 {
		t.Errorf("record 0 corrupted by migration: %+v", record)
	}
	if record["tag"].Str() != "" {
		t.Errorf("new slot must read as empty, got %q", record["tag"].Str())
	}

	record, _ = tbl.ReadRecord(1)
	if record["id"].IntVal != 2 || record["name"].Str() != "beta" {
		t.Errorf("record 1 corrupted by migration: %+v", record)
	}

	// writes against the extended schema work
	extended := makeRecord(3, "gamma", 3.5)
	PackStringValueLen(extended, "tag", "hot", 16)
	if writeErr := tbl.WriteRecord(extended); writeErr != nil {
		t.Fatalf("write with extended schema failed: %v", writeErr)
	}

	// and everything persists
	tbl.Close()
	again := NewDynamicTable()
	if loadErr := again.Load(path); loadErr != nil {
		t.Fatalf("load after migration failed: %v", loadErr)
	}
	defer again.Close()

	if again.RecordCount() != 3 {
		t.Fatalf("expected 3 records after reload, got %d", again.RecordCount())
	}
	record, _ = again.ReadRecord(2)
	if record["tag"].Str() != "hot" {
		t.Errorf("extended slot lost across reload: %q", record["tag"].Str())
	}
}

func TestAddFieldRejectsDuplicate(t *testing.T) {

	tbl, _ := newTestTable(t)
	defer tbl.Close()

	tbl.WriteRecord(makeRecord(1, "row", 1))

	countBefore := tbl.RecordCount()
	headerBeforeVal := tbl.Header()
	headerBefore := headerBeforeVal.TotalLen()

	addErr := tbl.AddField(FieldDef{Type: IntFieldType, ValueLen: 4, Name: "id"})
	if !errors.Is(addErr, ErrFieldExists) {
		t.Fatalf("expected ErrFieldExists, got %v", addErr)
	}

	headerAfterVal := tbl.Header()
	if tbl.RecordCount() != countBefore || headerAfterVal.TotalLen() != headerBefore {
		t.Errorf("failed addField must leave the table unchanged")
	}

	record, _ := tbl.ReadRecord(0)
	if record["name"].Str() != "row" {
		t.Errorf("record corrupted by rejected addField")
	}
}

func TestAddFieldRejectsInvalid(t *testing.T) {

	tbl, _ := newTestTable(t)
	defer tbl.Close()

	addErr := tbl.AddField(FieldDef{Type: StringFieldType, ValueLen: 0, Name: "empty"})
	if !errors.Is(addErr, ErrInvalidField) {
		t.Errorf("expected ErrInvalidField, got %v", addErr)
	}
}
