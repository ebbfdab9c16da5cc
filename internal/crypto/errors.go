package crypto

import "errors"

var (
	// ErrKeySize is returned when the key is not KeySize bytes.
	ErrKeySize = errors.New("crypto: key must be 32 bytes")

	// ErrDecrypt is returned for any ciphertext that fails to open.
	ErrDecrypt = errors.New("crypto: decryption failed")
)
