package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/doorgate-core/internal/access"
	"github.com/nerrad567/doorgate-core/internal/alert"
	"github.com/nerrad567/doorgate-core/internal/audit"
	"github.com/nerrad567/doorgate-core/internal/codec"
	"github.com/nerrad567/doorgate-core/internal/device"
	"github.com/nerrad567/doorgate-core/internal/door"
)

func (g *Gateway) handleHeartbeat(ctx context.Context, msg codec.Message) error {
	var hb codec.HeartbeatPayload
	if err := msg.Bind(&hb); err != nil {
		return err
	}

	now := g.clock.Now()
	newlyTracked := g.liveness.Touch(msg.DeviceID)

	if !g.persistStatus(ctx, msg.DeviceID, device.StatusOnline, now) {
		return nil
	}
	if newlyTracked {
		g.logger.Info("device online", "device_id", msg.DeviceID)
		g.telemetry.RecordDeviceStatus(msg.DeviceID, string(device.StatusOnline), now)
	}
	g.telemetry.RecordHeartbeat(msg.DeviceID, hb.Stats, now)
	return nil
}

func (g *Gateway) handleStatus(ctx context.Context, msg codec.Message) error {
	var st codec.StatusPayload
	if err := msg.Bind(&st); err != nil {
		return err
	}

	now := g.clock.Now()
	switch st.Status {
	case codec.StatusOnline, codec.StatusError:
		g.liveness.Touch(msg.DeviceID)
		if !g.persistStatus(ctx, msg.DeviceID, device.Status(st.Status), now) {
			return nil
		}
		if version, ok := codec.DetailString(st.Details, "firmwareVersion"); ok {
			g.setFirmware(ctx, msg.DeviceID, version)
		}

	case codec.StatusOffline:
		g.liveness.Forget(msg.DeviceID)
		if !g.persistStatus(ctx, msg.DeviceID, device.StatusOffline, time.Time{}) {
			return nil
		}

	default:
		return fmt.Errorf("%w: unknown status %q", codec.ErrMalformedPayload, st.Status)
	}

	g.logger.Info("device status", "device_id", msg.DeviceID, "status", st.Status)
	g.telemetry.RecordDeviceStatus(msg.DeviceID, st.Status, now)
	return nil
}

// persistStatus writes a device status. It reports false when the device
// is not registered, in which case it is no longer tracked.
func (g *Gateway) persistStatus(ctx context.Context, deviceID string, status device.Status, seen time.Time) bool {
	err := g.devices.SetStatus(ctx, deviceID, status, seen)
	switch {
	case err == nil:
		return true
	case errors.Is(err, device.ErrDeviceNotFound):
		g.liveness.Forget(deviceID)
		g.logger.Warn("frame from unregistered device", "device_id", deviceID)
		return false
	default:
		g.logger.Error("failed to persist device status",
			"device_id", deviceID,
			"status", status,
			"error", err,
		)
		return true
	}
}

func (g *Gateway) setFirmware(ctx context.Context, deviceID, version string) {
	if err := g.devices.SetFirmware(ctx, deviceID, version); err != nil {
		g.logger.Error("failed to record firmware version",
			"device_id", deviceID,
			"version", version,
			"error", err,
		)
	}
}

func (g *Gateway) handleAccess(ctx context.Context, msg codec.Message) error {
	var req codec.AccessRequestPayload
	if err := msg.Bind(&req); err != nil {
		return err
	}
	if strings.TrimSpace(req.CardID) == "" {
		return fmt.Errorf("%w: cardId is required", codec.ErrMalformedPayload)
	}

	doorID := req.DoorID
	if doorID == "" {
		doorID = g.doorFor(ctx, msg.DeviceID)
	}

	// Decisions use the gateway clock; a device clock cannot move a card
	// inside its schedule window.
	g.access.Decide(ctx, access.Attempt{
		CardUID:  req.CardID,
		DoorID:   doorID,
		DeviceID: msg.DeviceID,
		At:       g.clock.Now(),
	})
	return nil
}

func (g *Gateway) handleEvent(ctx context.Context, msg codec.Message) error {
	var ev codec.EventPayload
	if err := msg.Bind(&ev); err != nil {
		return err
	}
	if ev.EventType == "" {
		return fmt.Errorf("%w: eventType is required", codec.ErrMalformedPayload)
	}

	now := g.clock.Now()
	doorID := g.doorFor(ctx, msg.DeviceID)
	reported := codec.TimeOr(ev.Timestamp, now)

	g.logger.Info("device event",
		"device_id", msg.DeviceID,
		"door_id", doorID,
		"event", ev.EventType,
	)

	if title, ok := alarmEvents[ev.EventType]; ok {
		g.alerts.Emit(ctx, ev.EventType,
			fmt.Sprintf("%s at door %s (device %s)", title, orUnknown(doorID), msg.DeviceID),
			alert.SeverityFor(ev.EventType),
			alert.Related{DeviceID: msg.DeviceID, DoorID: doorID, Details: ev.Details},
		)
		g.appendEvent(ctx, msg.DeviceID, doorID, ev, now, reported)
		return nil
	}

	switch ev.EventType {
	case EventDoorOpened, EventDoorClosed:
		g.appendEvent(ctx, msg.DeviceID, doorID, ev, now, reported)

	case EventDoorLocked:
		if doorID != "" {
			if err := g.doors.SetStatus(ctx, doorID, door.StatusLocked, msg.DeviceID, now); err != nil {
				g.logger.Error("failed to record door lock",
					"door_id", doorID,
					"device_id", msg.DeviceID,
					"error", err,
				)
			}
		}
		g.appendEvent(ctx, msg.DeviceID, doorID, ev, now, reported)

	case EventFirmwareUpdated:
		version, ok := codec.DetailString(ev.Details, "version")
		if !ok {
			return fmt.Errorf("%w: firmware_updated without details.version", codec.ErrMalformedPayload)
		}
		g.setFirmware(ctx, msg.DeviceID, version)

	default:
		g.alerts.Emit(ctx, alert.TypeDeviceEvent,
			fmt.Sprintf("Device %s reported unrecognised event %q", msg.DeviceID, ev.EventType),
			alert.SeverityLow,
			alert.Related{
				DeviceID: msg.DeviceID,
				DoorID:   doorID,
				Details: map[string]any{
					"event_type": ev.EventType,
					"details":    ev.Details,
				},
			},
		)
	}
	return nil
}

// appendEvent records a device event in the access log, attributed to the device.
func (g *Gateway) appendEvent(ctx context.Context, deviceID, doorID string, ev codec.EventPayload, at, reported time.Time) {
	details := map[string]any{"reported_at": reported.UTC().Format(time.RFC3339)}
	for k, v := range ev.Details {
		details[k] = v
	}

	entry := &audit.Entry{
		Timestamp: at,
		Actor:     deviceID,
		DoorID:    doorID,
		DeviceID:  deviceID,
		Action:    ev.EventType,
		Details:   details,
	}
	if err := g.log.Append(ctx, entry); err != nil {
		g.logger.Error("failed to write access log",
			"device_id", deviceID,
			"action", ev.EventType,
			"error", err,
		)
	}
}

// doorFor returns the door bound to a device, or "" when there is none.
func (g *Gateway) doorFor(ctx context.Context, deviceID string) string {
	d, err := g.doors.GetByDeviceID(ctx, deviceID)
	if err != nil {
		if !errors.Is(err, door.ErrDoorNotFound) {
			g.logger.Error("failed to resolve door for device",
				"device_id", deviceID,
				"error", err,
			)
		}
		return ""
	}
	return d.ID
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
