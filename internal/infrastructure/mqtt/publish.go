package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outbound payloads (1MB).
const maxPayloadSize = 1 << 20

func validatePublish(topic string, payload []byte, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	return nil
}

// Publish sends a message and waits for the broker to acknowledge it.
//
// QoS Levels:
//   - 0: At most once
//   - 1: At least once (may duplicate)
//   - 2: Exactly once
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validatePublish(topic, payload, qos); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishAsync hands a non-retained message to the transport and returns
// without waiting for the broker. A delivery failure is only logged.
func (c *Client) PublishAsync(topic string, payload []byte, qos byte) error {
	if err := validatePublish(topic, payload, qos); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, false, payload)
	go func() {
		var err error
		switch {
		case !token.WaitTimeout(defaultPublishTimeout):
			err = fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
		case token.Error() != nil:
			err = fmt.Errorf("%w: %w", ErrPublishFailed, token.Error())
		}
		if err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("async publish failed", "topic", topic, "error", err)
			}
		}
	}()
	return nil
}
