// Package codec turns MQTT frames from door controllers into typed messages
// and back.
//
// Device topics have the form device/{id}/{type}. Payloads are JSON objects,
// optionally wrapped in an encryption envelope:
//
//	{"encrypted": true, "data": "<base64 ciphertext of the inner JSON>"}
//
// Decode never panics. Anything it cannot make sense of comes back as one of
// the sentinel errors in errors.go so the caller can log and drop the frame.
package codec
