package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/doorgate-core/internal/codec"
	"github.com/nerrad567/doorgate-core/internal/device"
	"github.com/nerrad567/doorgate-core/internal/infrastructure/clock"
	"github.com/nerrad567/doorgate-core/internal/infrastructure/mqtt"
)

// Command names understood by door controllers.
const (
	Unlock         = "unlock"
	Lock           = "lock"
	Restart        = "restart"
	FirmwareUpdate = "firmware_update"

	// AccessDenied tells the reader to signal a refusal; data carries the reason.
	AccessDenied = "access_denied"
)

// commandQoS is at-least-once. Devices drop redeliveries by command ID.
const commandQoS byte = 1

var known = map[string]struct{}{
	Unlock:         {},
	Lock:           {},
	Restart:        {},
	FirmwareUpdate: {},
	AccessDenied:   {},
}

// Publisher hands a payload to the transport without waiting for delivery.
type Publisher interface {
	PublishAsync(topic string, payload []byte, qos byte) error
}

// Capabilities resolves whether a device expects encrypted commands.
type Capabilities interface {
	EncryptionEnabled(ctx context.Context, deviceID string) (bool, error)
}

// Encoder serialises a payload, optionally inside the encrypted envelope.
type Encoder interface {
	Encode(v any, encrypt bool) ([]byte, error)
}

// Logger defines the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Dispatcher sends commands to devices. Each Send is one publish with no
// retry, await or acknowledgement tracking.
type Dispatcher struct {
	pub    Publisher
	caps   Capabilities
	enc    Encoder
	clock  clock.Clock
	topics mqtt.Topics
	logger Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(pub Publisher, caps Capabilities, enc Encoder, clk clock.Clock) *Dispatcher {
	return &Dispatcher{
		pub:    pub,
		caps:   caps,
		enc:    enc,
		clock:  clk,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Send publishes one command to device/{id}/command and returns its ID.
//
// A device unknown to the registry is sent plaintext with a warning. Any
// other capability lookup failure aborts the send rather than risk a
// plaintext command to a device that expects the envelope.
func (d *Dispatcher) Send(ctx context.Context, deviceID, command string, data map[string]any) (string, error) {
	if deviceID == "" {
		return "", ErrNoDevice
	}
	if _, ok := known[command]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}

	encrypt, err := d.caps.EncryptionEnabled(ctx, deviceID)
	if err != nil {
		if !errors.Is(err, device.ErrDeviceNotFound) {
			return "", fmt.Errorf("resolving device capability: %w", err)
		}
		d.logger.Warn("command to unknown device sent unencrypted",
			"device_id", deviceID,
			"command", command,
		)
		encrypt = false
	}

	if data == nil {
		data = map[string]any{}
	}
	payload := codec.CommandPayload{
		ID:        uuid.NewString(),
		Command:   command,
		Data:      data,
		Timestamp: codec.EpochMillis(d.clock.Now()),
	}

	body, err := d.enc.Encode(payload, encrypt)
	if err != nil {
		return "", fmt.Errorf("encoding %s command: %w", command, err)
	}

	topic := d.topics.DeviceCommand(deviceID)
	if err := d.pub.PublishAsync(topic, body, commandQoS); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	d.logger.Debug("command sent",
		"device_id", deviceID,
		"command", command,
		"command_id", payload.ID,
		"encrypted", encrypt,
	)
	return payload.ID, nil
}
