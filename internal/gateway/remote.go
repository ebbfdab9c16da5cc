package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/doorgate-core/internal/access"
	"github.com/nerrad567/doorgate-core/internal/audit"
	"github.com/nerrad567/doorgate-core/internal/command"
	"github.com/nerrad567/doorgate-core/internal/door"
)

// CheckAccess decides whether a user may pass a door, through the same
// engine as a card read. No controller is involved, so a grant unlocks the
// door in storage only.
func (g *Gateway) CheckAccess(ctx context.Context, userID, doorID string) (access.Decision, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(doorID) == "" {
		return access.Decision{}, fmt.Errorf("%w: user and door are required", ErrInvalidRequest)
	}
	return g.access.Decide(ctx, access.Attempt{UserID: userID, DoorID: doorID}), nil
}

// RemoteUnlock unlocks a door on behalf of an operator and tells its
// controller, if bound, to release the lock.
func (g *Gateway) RemoteUnlock(ctx context.Context, actor, doorID string) error {
	return g.remoteSet(ctx, actor, doorID, door.StatusUnlocked)
}

// RemoteLock locks a door on behalf of an operator.
func (g *Gateway) RemoteLock(ctx context.Context, actor, doorID string) error {
	return g.remoteSet(ctx, actor, doorID, door.StatusLocked)
}

func (g *Gateway) remoteSet(ctx context.Context, actor, doorID string, status door.Status) error {
	if strings.TrimSpace(actor) == "" || strings.TrimSpace(doorID) == "" {
		return fmt.Errorf("%w: actor and door are required", ErrInvalidRequest)
	}

	d, err := g.doors.GetByID(ctx, doorID)
	if err != nil {
		return fmt.Errorf("loading door %s: %w", doorID, err)
	}

	now := g.clock.Now()
	if err := g.doors.SetStatus(ctx, d.ID, status, actor, now); err != nil {
		return fmt.Errorf("setting door %s %s: %w", d.ID, status, err)
	}

	action, cmd := audit.ActionRemoteLock, command.Lock
	data := map[string]any{"door_id": d.ID}
	if status == door.StatusUnlocked {
		action, cmd = audit.ActionRemoteUnlock, command.Unlock
		data["auto_lock"] = d.AutoLock
		data["auto_lock_delay"] = d.AutoLockDelay
	}

	var deviceID string
	if d.DeviceID != nil {
		deviceID = *d.DeviceID
	}

	entry := &audit.Entry{
		Timestamp: now,
		Actor:     actor,
		DoorID:    d.ID,
		DeviceID:  deviceID,
		Action:    action,
	}
	if err := g.log.Append(ctx, entry); err != nil {
		g.logger.Error("failed to write access log",
			"door_id", d.ID,
			"action", action,
			"error", err,
		)
	}

	g.logger.Info("remote door change",
		"door_id", d.ID,
		"status", status,
		"actor", actor,
	)

	if deviceID == "" {
		return nil
	}
	if _, err := g.commands.Send(ctx, deviceID, cmd, data); err != nil {
		return fmt.Errorf("sending %s to %s: %w", cmd, deviceID, err)
	}
	return nil
}

// RestartDevice tells a registered controller to restart. It returns the
// command ID.
func (g *Gateway) RestartDevice(ctx context.Context, deviceID string) (string, error) {
	if _, err := g.devices.GetDevice(ctx, deviceID); err != nil {
		return "", fmt.Errorf("loading device %s: %w", deviceID, err)
	}
	return g.commands.Send(ctx, deviceID, command.Restart, nil)
}

// UpdateFirmware tells a registered controller to fetch and install a
// firmware image. The device reports the result with a firmware_updated
// event.
func (g *Gateway) UpdateFirmware(ctx context.Context, deviceID, url, version string) (string, error) {
	if strings.TrimSpace(url) == "" || strings.TrimSpace(version) == "" {
		return "", fmt.Errorf("%w: firmware url and version are required", ErrInvalidRequest)
	}
	if _, err := g.devices.GetDevice(ctx, deviceID); err != nil {
		return "", fmt.Errorf("loading device %s: %w", deviceID, err)
	}
	return g.commands.Send(ctx, deviceID, command.FirmwareUpdate, map[string]any{
		"url":     url,
		"version": version,
	})
}
