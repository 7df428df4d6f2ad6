package encryption

import (
	"crypto/sha256"
	"encoding/base64"
	"strconv"
)

// TokenLength is the number of base64 characters the miner expects in the token field.
const TokenLength = 8

// Digest returns the SHA-256 digest of the UTF-8 bytes of s.
func Digest(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}

// DeriveToken computes the authentication token and the AES key for a mutating command.
// The key is sha256(cmd + password + salt + ts) and the token is the first eight
// characters of its standard base64 encoding.
func DeriveToken(cmd, password, salt string, ts int64) (string, []byte) {
	key := Digest(cmd + password + salt + strconv.FormatInt(ts, 10))
	encoded := base64.StdEncoding.EncodeToString(key)
	return encoded[:TokenLength], key
}
