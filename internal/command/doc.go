// Package command sends commands to door controllers.
//
// Send resolves whether the target expects the encrypted envelope (through
// the cached device registry), encodes a {id, command, data, timestamp}
// payload and hands it to the transport as one asynchronous QoS 1 publish on
// device/{id}/command. The per-command UUID lets devices discard duplicate
// deliveries.
package command
