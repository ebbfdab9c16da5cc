package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Cipher is the envelope collaborator. *crypto.Cipher satisfies it.
type Cipher interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertext string) ([]byte, error)
}

// Codec decodes inbound device frames and encodes outbound commands.
// A Codec without a cipher passes plaintext frames and rejects envelopes.
type Codec struct {
	cipher Cipher
}

// New creates a Codec. cipher may be nil.
func New(cipher Cipher) *Codec {
	return &Codec{cipher: cipher}
}

// ParseTopic splits device/{id}/{type}. Unrecognised type segments yield
// MessageTypeUnknown with a nil error.
func ParseTopic(topic string) (string, MessageType, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "device" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrNotDeviceTopic, topic)
	}
	return parts[1], ParseMessageType(parts[2]), nil
}

// Decode parses a device frame. A zero-length payload decodes as {}.
func (c *Codec) Decode(topic string, payload []byte) (Message, error) {
	deviceID, msgType, err := ParseTopic(topic)
	if err != nil {
		return Message{}, err
	}

	body, encrypted, err := c.openPayload(payload)
	if err != nil {
		return Message{}, err
	}

	return Message{
		DeviceID:  deviceID,
		Type:      msgType,
		Topic:     topic,
		Body:      body,
		Encrypted: encrypted,
	}, nil
}

// openPayload validates the outer object and unwraps the envelope if
// present.
func (c *Codec) openPayload(payload []byte) (json.RawMessage, bool, error) {
	outer, err := object(payload)
	if err != nil {
		return nil, false, err
	}

	var env struct {
		Encrypted bool            `json:"encrypted"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(outer, &env); err != nil {
		return nil, false, wrapMalformed(err)
	}
	if !env.Encrypted {
		return outer, false, nil
	}

	var sealed string
	if err := json.Unmarshal(env.Data, &sealed); err != nil {
		return nil, true, fmt.Errorf("%w: envelope data is not a string", ErrMalformedPayload)
	}
	if c.cipher == nil {
		return nil, true, fmt.Errorf("%w: %w", ErrDecryptFailed, ErrNoCipher)
	}

	plaintext, err := c.cipher.Decrypt(sealed)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %w", ErrDecryptFailed, err)
	}

	inner, err := object(plaintext)
	if err != nil {
		return nil, true, err
	}
	return inner, true, nil
}

// Encode serialises v, sealing it in an envelope when encrypt is set.
func (c *Codec) Encode(v any, encrypt bool) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshalling payload: %w", err)
	}
	if !encrypt {
		return plaintext, nil
	}
	if c.cipher == nil {
		return nil, ErrNoCipher
	}

	sealed, err := c.cipher.Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypting payload: %w", err)
	}

	out, err := json.Marshal(Envelope{Encrypted: true, Data: sealed})
	if err != nil {
		return nil, fmt.Errorf("marshalling envelope: %w", err)
	}
	return out, nil
}

// object returns b if it is a single JSON object. Empty input becomes {}.
func object(b []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return json.RawMessage("{}"), nil
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedPayload)
	}
	return json.RawMessage(trimmed), nil
}

func wrapMalformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
}
