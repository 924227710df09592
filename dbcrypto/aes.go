// Package dbcrypto wraps the field-level AES-128-CTR transform. The key is a
// configured constant and the IV is all zero, so every record slot uses the
// same keystream: this is format-compatible obfuscation, not confidentiality,
// and carries no authentication. Output length always equals input length.
package dbcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

// DefaultKey matches the key baked into deployed table files. Changing it
// makes previously encrypted slots unreadable.
var DefaultKey = []byte("0123456789abcdef")

var ErrBadKey = errors.New("aes key must be 16 bytes")

type Cipher struct {
	key []byte
}

func New(key []byte) (*Cipher, error) {
	if len(key) != 16 {
		return nil, ErrBadKey
	}
	return &Cipher{key: key}, nil
}

func NewDefault() *Cipher {
	c, _ := New(DefaultKey)
	return c
}

// transform runs the CTR keystream over src. CTR encryption and decryption
// are the same operation.
func (c *Cipher) transform(dst, src []byte) error {

	block, blockErr := aes.NewCipher(c.key)
	if blockErr != nil {
		return blockErr
	}

	iv := make([]byte, aes.BlockSize)
	cipher.NewCTR(block, iv).XORKeyStream(dst, src)

	return nil
}

// Encrypt writes exactly len(src) transformed bytes into dst.
func (c *Cipher) Encrypt(dst, src []byte) (int, error) {
	if len(dst) < len(src) {
		return 0, errors.New("dst too small")
	}
	if transformErr := c.transform(dst[:len(src)], src); transformErr != nil {
		return 0, transformErr
	}
	return len(src), nil
}

// Decrypt writes exactly len(src) transformed bytes into dst.
func (c *Cipher) Decrypt(dst, src []byte) (int, error) {
	return c.Encrypt(dst, src)
}
