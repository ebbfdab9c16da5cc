package gateway

import "github.com/nerrad567/doorgate-core/internal/alert"

// Device event types.
const (
	EventDoorForced      = alert.TypeDoorForced
	EventTamperDetected  = alert.TypeTamperDetected
	EventDoorLeftOpen    = alert.TypeDoorLeftOpen
	EventPowerIssue      = alert.TypePowerIssue
	EventDoorOpened      = "door_opened"
	EventDoorClosed      = "door_closed"
	EventDoorLocked      = "door_locked"
	EventFirmwareUpdated = "firmware_updated"
)

// alarmEvents raise an alert as well as an access log entry.
var alarmEvents = map[string]string{
	EventDoorForced:     "Door forced open",
	EventTamperDetected: "Controller tamper detected",
	EventDoorLeftOpen:   "Door left open",
	EventPowerIssue:     "Controller power issue",
}
