package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
)

// Sealer encrypts records at rest with AES-GCM. The key is derived from a
// passphrase, so operators are not forced to manage raw 32-byte keys.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a key from the passphrase and prepares the cipher.
func NewSealer(passphrase string) (*Sealer, error) {
	if len(passphrase) < 16 {
		return nil, fmt.Errorf("passphrase must be >= 16 bytes, got %d", len(passphrase))
	}
	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts data. The nonce is prepended to the ciphertext.
func (s *Sealer) Seal(data []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, data, nil), nil
}

// Open decrypts data produced by Seal.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	ns := s.aead.NonceSize()
	if len(data) < ns {
		return nil, fmt.Errorf("ciphertext too short")
	}
	return s.aead.Open(nil, data[:ns], data[ns:], nil)
}
