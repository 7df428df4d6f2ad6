package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

var (
	// ErrKeyRequired is returned when an encryption key is missing.
	ErrKeyRequired = errors.New("AES key bytes required for encryption")

	// ErrInvalidPadding is returned when decrypted data does not end in valid PKCS#7 padding.
	ErrInvalidPadding = errors.New("invalid PKCS#7 padding")
)

// EncryptionManagerInterface defines encryption and decryption methods.
type EncryptionManagerInterface interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// EncryptionManager implements AES-ECB encryption with PKCS#7 padding, the scheme
// the miner firmware uses for encrypted command parameters.
type EncryptionManager struct {
	block cipher.Block
}

// NewEncryptionManager caches the AES block cipher for key.
// A 32-byte key selects AES-256.
func NewEncryptionManager(key []byte) (*EncryptionManager, error) {
	if len(key) == 0 {
		return nil, ErrKeyRequired
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher block: %w", err)
	}

	return &EncryptionManager{block: block}, nil
}

// Encrypt pads plaintext and encrypts it block by block without an IV.
func (a *EncryptionManager) Encrypt(plaintext []byte) ([]byte, error) {
	if a.block == nil {
		return nil, errors.New("encryption manager not initialized")
	}

	size := a.block.BlockSize()
	padded := Pad(plaintext, size)
	ciphertext := make([]byte, len(padded))
	for start := 0; start < len(padded); start += size {
		a.block.Encrypt(ciphertext[start:start+size], padded[start:start+size])
	}

	return ciphertext, nil
}

// Decrypt reverses Encrypt and strips the padding.
func (a *EncryptionManager) Decrypt(ciphertext []byte) ([]byte, error) {
	if a.block == nil {
		return nil, errors.New("encryption manager not initialized")
	}

	size := a.block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%size != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}

	plaintext := make([]byte, len(ciphertext))
	for start := 0; start < len(ciphertext); start += size {
		a.block.Decrypt(plaintext[start:start+size], ciphertext[start:start+size])
	}

	return Unpad(plaintext, size)
}

// Pad appends PKCS#7 padding. The pad length is always between 1 and blockSize.
func Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	out := make([]byte, len(data), len(data)+padLen)
	copy(out, data)
	return append(out, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

// Unpad removes PKCS#7 padding.
func Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrInvalidPadding
	}

	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize {
		return nil, ErrInvalidPadding
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, ErrInvalidPadding
		}
	}

	return data[:len(data)-padLen], nil
}
