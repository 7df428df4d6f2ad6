package encryption

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// CanonicalJSON serializes v in compact form without HTML escaping, so that
// non-ASCII text stays literal UTF-8. Values passed as json.RawMessage keep
// their original key order.
func CanonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}

	// Encode always terminates the value with a newline.
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// EncryptParam encrypts the canonical JSON form of value with AES-256-ECB under key
// and returns the ciphertext as standard base64.
func EncryptParam(value any, key []byte) (string, error) {
	if len(key) == 0 {
		return "", ErrKeyRequired
	}

	plaintext, err := CanonicalJSON(value)
	if err != nil {
		return "", fmt.Errorf("failed to serialize param: %w", err)
	}

	manager, err := NewEncryptionManager(key)
	if err != nil {
		return "", err
	}

	ciphertext, err := manager.Encrypt(plaintext)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt param: %w", err)
	}

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
