// Package crypto implements the payload envelope cipher shared with door
// controllers.
//
// Ciphertext is XChaCha20-Poly1305 under a 32-byte pre-shared key. The wire
// form is base64 (standard alphabet) of:
//
//	[Nonce: 24 bytes (random)] [Ciphertext+Tag: N+16 bytes]
//
// A tampered payload, a payload sealed with a different key, or a
// truncated string all fail with ErrDecrypt.
package crypto
