package mqtt

import "fmt"

// Topic roots for the door access network.
const (
	// TopicPrefixDevice is the root for per-device topics:
	// device/{id}/{type}.
	TopicPrefixDevice = "device"

	// TopicPrefixSystem is the root for broker-wide system topics.
	TopicPrefixSystem = "system"
)

// Inbound device message suffixes.
const (
	suffixStatus    = "status"
	suffixHeartbeat = "heartbeat"
	suffixAccess    = "access"
	suffixEvent     = "event"
	suffixCommand   = "command"
)

// Topics provides builders for door access MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.DeviceCommand("reader-1") // "device/reader-1/command"
type Topics struct{}

// DeviceStatus returns the topic a device reports its status on.
func (Topics) DeviceStatus(deviceID string) string {
	return deviceTopic(deviceID, suffixStatus)
}

// DeviceHeartbeat returns the topic a device publishes heartbeats on.
func (Topics) DeviceHeartbeat(deviceID string) string {
	return deviceTopic(deviceID, suffixHeartbeat)
}

// DeviceAccess returns the topic a device publishes card reads on.
func (Topics) DeviceAccess(deviceID string) string {
	return deviceTopic(deviceID, suffixAccess)
}

// DeviceEvent returns the topic a device publishes events on.
func (Topics) DeviceEvent(deviceID string) string {
	return deviceTopic(deviceID, suffixEvent)
}

// DeviceCommand returns the topic commands are sent to a device on.
//
// Example: device/reader-1/command
func (Topics) DeviceCommand(deviceID string) string {
	return deviceTopic(deviceID, suffixCommand)
}

// GatewayStatus returns the retained topic for the gateway's own status.
//
// Example: system/gateway/status
func (Topics) GatewayStatus() string {
	return fmt.Sprintf("%s/gateway/status", TopicPrefixSystem)
}

// AllDeviceStatus matches status reports from every device.
func (Topics) AllDeviceStatus() string { return deviceTopic("+", suffixStatus) }

// AllDeviceHeartbeats matches heartbeats from every device.
func (Topics) AllDeviceHeartbeats() string { return deviceTopic("+", suffixHeartbeat) }

// AllDeviceAccess matches access requests from every device.
func (Topics) AllDeviceAccess() string { return deviceTopic("+", suffixAccess) }

// AllDeviceEvents matches events from every device.
func (Topics) AllDeviceEvents() string { return deviceTopic("+", suffixEvent) }

// AllSystem matches every system topic.
//
// Pattern: system/#
func (Topics) AllSystem() string {
	return TopicPrefixSystem + "/#"
}

// GatewaySubscriptions is the fixed set of patterns the gateway listens on.
func (t Topics) GatewaySubscriptions() []string {
	return []string{
		t.AllDeviceStatus(),
		t.AllDeviceHeartbeats(),
		t.AllDeviceAccess(),
		t.AllDeviceEvents(),
		t.AllSystem(),
	}
}

func deviceTopic(deviceID, suffix string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixDevice, deviceID, suffix)
}
