package dbcrypto

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {

	c := NewDefault()

	src := make([]byte, 128)
	copy(src, "some record name")

	enc := make([]byte, 128)
	n, encErr := c.Encrypt(enc, src)
	if encErr != nil || n != len(src) {
		t.Fatalf("encrypt failed: n=%d err=%v", n, encErr)
	}

	if bytes.Equal(enc, src) {
		t.Fatalf("ciphertext equals plaintext")
	}

	dec := make([]byte, 128)
	n, decErr := c.Decrypt(dec, enc)
	if decErr != nil || n != len(src) {
		t.Fatalf("decrypt failed: n=%d err=%v", n, decErr)
	}

	if !bytes.Equal(dec, src) {
		t.Errorf("round trip mismatch")
	}
}

func TestLengthPreserved(t *testing.T) {

	c := NewDefault()

	for _, size := range []int{1, 7, 16, 33, 128} {
		src := make([]byte, size)
		dst := make([]byte, size)

		n, encErr := c.Encrypt(dst, src)
		if encErr != nil {
			t.Fatalf("encrypt of %d bytes failed: %v", size, encErr)
		}
		if n != size {
			t.Errorf("expected %d output bytes, got %d", size, n)
		}
	}
}

func TestDeterministicKeystream(t *testing.T) {

	// fixed key and zero IV: the same input always produces the same output
	c := NewDefault()

	src := []byte("stable input")
	a := make([]byte, len(src))
	b := make([]byte, len(src))

	c.Encrypt(a, src)
	c.Encrypt(b, src)

	if !bytes.Equal(a, b) {
		t.Errorf("keystream must be deterministic for compatibility")
	}
}

func TestRejectsBadKey(t *testing.T) {

	if _, err := New([]byte("short")); err != ErrBadKey {
		t.Errorf("expected ErrBadKey, got %v", err)
	}
}
