package codec

import "errors"

var (
	// ErrNotDeviceTopic is returned for topics outside device/{id}/{type}.
	ErrNotDeviceTopic = errors.New("codec: not a device topic")

	// ErrMalformedPayload is returned when a payload is not a JSON object
	// or does not match the expected message shape.
	ErrMalformedPayload = errors.New("codec: malformed payload")

	// ErrDecryptFailed is returned when an encrypted envelope cannot be opened.
	ErrDecryptFailed = errors.New("codec: decrypt failed")

	// ErrNoCipher is returned when encryption is requested but no cipher
	// was configured.
	ErrNoCipher = errors.New("codec: no cipher configured")
)
