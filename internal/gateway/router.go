package gateway

import (
	"context"
	"errors"

	"github.com/nerrad567/doorgate-core/internal/codec"
)

// handlerFunc processes one decoded device frame. A returned error is
// logged; it never reaches the transport.
type handlerFunc func(ctx context.Context, msg codec.Message) error

// HandleMessage is the broker message handler. Every frame is decoded
// first; frames that fail to decode are logged and dropped, and topics
// outside device/{id}/{type} go to the system handler. It always returns
// nil so the transport never sees per-frame failures.
func (g *Gateway) HandleMessage(topic string, payload []byte) error {
	msg, err := g.codec.Decode(topic, payload)
	switch {
	case errors.Is(err, codec.ErrNotDeviceTopic):
		g.handleSystem(topic, payload)
		return nil
	case err != nil:
		g.logger.Warn("dropping undecodable frame",
			"topic", topic,
			"bytes", len(payload),
			"error", err,
		)
		return nil
	}

	handle, ok := g.routes[msg.Type]
	if !ok {
		g.logger.Debug("ignoring unknown message type", "topic", topic)
		return nil
	}

	if err := handle(g.ctx, msg); err != nil {
		g.logger.Warn("failed to handle frame",
			"topic", topic,
			"device_id", msg.DeviceID,
			"error", err,
		)
	}
	return nil
}

func (g *Gateway) handleSystem(topic string, payload []byte) {
	g.logger.Debug("system message", "topic", topic, "bytes", len(payload))
}
