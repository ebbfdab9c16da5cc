package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/doorgate-core/internal/codec"
	"github.com/nerrad567/doorgate-core/internal/crypto"
	"github.com/nerrad567/doorgate-core/internal/device"
	"github.com/nerrad567/doorgate-core/internal/infrastructure/clock"
)

type published struct {
	topic   string
	payload []byte
	qos     byte
}

// fakePublisher records publishes instead of sending them.
type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (p *fakePublisher) PublishAsync(topic string, payload []byte, qos byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{topic: topic, payload: payload, qos: qos})
	return nil
}

// fakeCapabilities answers from a fixed map.
type fakeCapabilities struct {
	encrypted map[string]bool
	err       error
}

func (c fakeCapabilities) EncryptionEnabled(_ context.Context, id string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	enc, ok := c.encrypted[id]
	if !ok {
		return false, device.ErrDeviceNotFound
	}
	return enc, nil
}

type warnCounter struct {
	noopLogger
	warns int
}

func (w *warnCounter) Warn(string, ...any) { w.warns++ }

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestDispatcher(t *testing.T, pub Publisher, caps Capabilities) (*Dispatcher, *codec.Codec) {
	t.Helper()
	cipher, err := crypto.New(testKey)
	if err != nil {
		t.Fatalf("crypto.New() error = %v", err)
	}
	c := codec.New(cipher)
	clk := clock.Fake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	return NewDispatcher(pub, caps, c, clk), c
}

func decodeCommand(t *testing.T, c *codec.Codec, p published) (codec.CommandPayload, bool) {
	t.Helper()
	msg, err := c.Decode(p.topic, p.payload)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	var cmd codec.CommandPayload
	if err := msg.Bind(&cmd); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	return cmd, msg.Encrypted
}

func TestSend_PlaintextDevice(t *testing.T) {
	pub := &fakePublisher{}
	d, c := newTestDispatcher(t, pub, fakeCapabilities{encrypted: map[string]bool{"reader-1": false}})

	id, err := d.Send(context.Background(), "reader-1", Unlock,
		map[string]any{"door_id": "door-1", "auto_lock": true, "auto_lock_delay": 5})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(pub.sent) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.sent))
	}
	p := pub.sent[0]
	if p.topic != "device/reader-1/command" {
		t.Errorf("topic = %q, want device/reader-1/command", p.topic)
	}
	if p.qos != 1 {
		t.Errorf("qos = %d, want 1", p.qos)
	}

	cmd, encrypted := decodeCommand(t, c, p)
	if encrypted {
		t.Error("payload encrypted for plaintext device")
	}
	if cmd.ID != id || cmd.ID == "" {
		t.Errorf("command ID = %q, want %q", cmd.ID, id)
	}
	if cmd.Command != Unlock {
		t.Errorf("command = %q, want unlock", cmd.Command)
	}
	if cmd.Data["auto_lock_delay"] != float64(5) || cmd.Data["door_id"] != "door-1" {
		t.Errorf("data = %v", cmd.Data)
	}
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC).UnixMilli()
	if cmd.Timestamp != want {
		t.Errorf("timestamp = %d, want %d", cmd.Timestamp, want)
	}
}

func TestSend_EncryptedDevice(t *testing.T) {
	pub := &fakePublisher{}
	d, c := newTestDispatcher(t, pub, fakeCapabilities{encrypted: map[string]bool{"reader-enc": true}})

	if _, err := d.Send(context.Background(), "reader-enc", Lock, nil); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	cmd, encrypted := decodeCommand(t, c, pub.sent[0])
	if !encrypted {
		t.Error("payload not encrypted for encryption-enabled device")
	}
	if cmd.Command != Lock {
		t.Errorf("command = %q, want lock", cmd.Command)
	}
	if cmd.Data == nil {
		t.Error("nil data should be sent as {}")
	}
}

func TestSend_UnknownDeviceFallsBackToPlaintext(t *testing.T) {
	pub := &fakePublisher{}
	log := &warnCounter{}
	d, c := newTestDispatcher(t, pub, fakeCapabilities{encrypted: map[string]bool{}})
	d.SetLogger(log)

	if _, err := d.Send(context.Background(), "reader-ghost", Restart, nil); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if log.warns != 1 {
		t.Errorf("warnings = %d, want 1", log.warns)
	}
	if _, encrypted := decodeCommand(t, c, pub.sent[0]); encrypted {
		t.Error("unknown device command should be plaintext")
	}
}

func TestSend_UniqueIDs(t *testing.T) {
	pub := &fakePublisher{}
	d, _ := newTestDispatcher(t, pub, fakeCapabilities{encrypted: map[string]bool{"reader-1": false}})

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		id, err := d.Send(context.Background(), "reader-1", Unlock, nil)
		if err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate command ID %q", id)
		}
		seen[id] = true
	}
}

func TestSend_Errors(t *testing.T) {
	storeDown := errors.New("database is locked")

	tests := []struct {
		name     string
		deviceID string
		command  string
		caps     fakeCapabilities
		pubErr   error
		wantErr  error
	}{
		{name: "no device", deviceID: "", command: Unlock, wantErr: ErrNoDevice},
		{name: "unknown command", deviceID: "reader-1", command: "self_destruct", wantErr: ErrUnknownCommand},
		{name: "capability lookup failure", deviceID: "reader-1", command: Unlock,
			caps: fakeCapabilities{err: storeDown}, wantErr: storeDown},
		{name: "transport refuses", deviceID: "reader-1", command: Unlock,
			caps: fakeCapabilities{encrypted: map[string]bool{"reader-1": false}},
			pubErr: errors.New("not connected"), wantErr: ErrSendFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{err: tt.pubErr}
			d, _ := newTestDispatcher(t, pub, tt.caps)

			_, err := d.Send(context.Background(), tt.deviceID, tt.command, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Send() error = %v, want %v", err, tt.wantErr)
			}
			if len(pub.sent) != 0 {
				t.Errorf("published %d messages, want 0", len(pub.sent))
			}
		})
	}
}
