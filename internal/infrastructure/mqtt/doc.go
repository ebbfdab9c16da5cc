// Package mqtt provides the broker session used to talk to door controllers.
//
// This package manages:
//   - A single connection attempt per Connect call (the gateway owns the
//     retry schedule for initial connects)
//   - Transport auto-reconnect for sessions lost after they were established
//   - Subscriptions tracked and restored on reconnect
//   - Blocking and fire-and-forget publishing
//   - Last Will and Testament on system/gateway/status
//
// Inbound messages are delivered on their own goroutine (order does not
// matter), so a slow handler never stalls the network loop.
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT)
//	if err := client.Connect(ctx); err != nil {
//	    // schedule a retry
//	}
//	defer client.Close()
//
//	err := client.Subscribe(mqtt.Topics{}.AllDeviceAccess(), 1,
//	    func(topic string, payload []byte) error {
//	        return router.Route(ctx, topic, payload)
//	    })
//
//	client.PublishAsync(mqtt.Topics{}.DeviceCommand("reader-1"), payload, 1)
//
// Payload confidentiality beyond TLS is handled by the codec's envelope.
package mqtt
