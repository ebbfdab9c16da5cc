package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func testKey(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, KeySize)
}

func TestNew_KeySize(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
	}{
		{"valid", testKey(1), false},
		{"short", make([]byte, 16), true},
		{"long", make([]byte, 33), true},
		{"nil", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrKeySize) {
				t.Errorf("New() error = %v, want ErrKeySize", err)
			}
		})
	}
}

func TestCipher_EncryptDecrypt(t *testing.T) {
	c, err := New(testKey(7))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	plaintext := []byte(`{"cardId":"AABBCC","doorId":"door-1"}`)
	sealed, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	opened, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("Decrypt() = %q, want %q", opened, plaintext)
	}
}

func TestCipher_NonceIsRandom(t *testing.T) {
	c, _ := New(testKey(7))

	a, _ := c.Encrypt([]byte("same"))
	b, _ := c.Encrypt([]byte("same"))
	if a == b {
		t.Error("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestCipher_DecryptFailures(t *testing.T) {
	c, _ := New(testKey(7))
	other, _ := New(testKey(8))

	sealed, err := c.Encrypt([]byte("unlock"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name   string
		cipher *Cipher
		input  string
	}{
		{"wrong key", other, sealed},
		{"tampered", c, tampered},
		{"not base64", c, "%%%not-base64%%%"},
		{"truncated", c, base64.StdEncoding.EncodeToString([]byte("short"))},
		{"empty", c, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cipher.Decrypt(tt.input)
			if !errors.Is(err, ErrDecrypt) {
				t.Errorf("Decrypt() error = %v, want ErrDecrypt", err)
			}
		})
	}
}
