package bits

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWriterReaderRoundTrip(t *testing.T) {

	buf := make([]byte, 64)
	bw := NewEncodeBuffer(buf, binary.LittleEndian)

	bw.PutUint64(0xDEADBEEF)
	bw.WriteByte(3)
	bw.PutInt32(-42)
	bw.PutFloat32(95.5)
	bw.PutStringBytes("name")

	r := NewReader(bytes.NewReader(bw.Bytes()), binary.LittleEndian)

	if v := r.MustReadU64(); v != 0xDEADBEEF {
		t.Errorf("expected 0xDEADBEEF, got %x", v)
	}
	if v := r.MustReadU8(); v != 3 {
		t.Errorf("expected 3, got %d", v)
	}
	if v, _ := r.ReadI32(); v != -42 {
		t.Errorf("expected -42, got %d", v)
	}
	if v, _ := r.ReadF32(); v != 95.5 {
		t.Errorf("expected 95.5, got %v", v)
	}
	if s, _ := r.ReadString(4); s != "name" {
		t.Errorf("expected name, got %q", s)
	}

	if r.Consumed() != bw.Position() {
		t.Errorf("consumed %d but written %d", r.Consumed(), bw.Position())
	}
}

func TestWriterGrows(t *testing.T) {

	bw := NewEncodeBuffer(make([]byte, 2), binary.LittleEndian)
	bw.EnableGrowing()

	for i := 0; i < 100; i++ {
		bw.PutUint64(uint64(i))
	}

	if len(bw.Bytes()) != 800 {
		t.Errorf("expected 800 bytes, got %d", len(bw.Bytes()))
	}
}

func TestReaderShortInput(t *testing.T) {

	r := NewReader(bytes.NewReader([]byte{1, 2}), binary.LittleEndian)

	if _, err := r.ReadU64(); err == nil {
		t.Errorf("expected error on short input")
	}
}
