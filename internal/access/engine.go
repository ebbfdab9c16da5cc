package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/doorgate-core/internal/alert"
	"github.com/nerrad567/doorgate-core/internal/audit"
	"github.com/nerrad567/doorgate-core/internal/auth"
	"github.com/nerrad567/doorgate-core/internal/command"
	"github.com/nerrad567/doorgate-core/internal/door"
	"github.com/nerrad567/doorgate-core/internal/infrastructure/clock"
)

// DoorStore reads doors and records lock transitions.
type DoorStore interface {
	GetByID(ctx context.Context, id string) (*door.Door, error)
	SetStatus(ctx context.Context, id string, status door.Status, actor string, at time.Time) error
}

// UserStore resolves card holders.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*auth.User, error)
	GetByCardUID(ctx context.Context, cardUID string) (*auth.User, error)
}

// PermissionStore resolves the grant a user holds on a door.
type PermissionStore interface {
	Get(ctx context.Context, userID, doorID string) (*auth.Permission, error)
}

// AccessLog appends access log entries.
type AccessLog interface {
	Append(ctx context.Context, entry *audit.Entry) error
}

// AlertEmitter raises alerts. *alert.Emitter satisfies it.
type AlertEmitter interface {
	Emit(ctx context.Context, alertType, message string, severity alert.Severity, rel alert.Related) alert.Alert
}

// CommandSender dispatches commands to door controllers.
type CommandSender interface {
	Send(ctx context.Context, deviceID, cmd string, data map[string]any) (string, error)
}

// Telemetry receives every decision.
type Telemetry interface {
	RecordAccessDecision(doorID, deviceID string, granted bool, reason string, at time.Time)
}

// Logger defines the logging interface used by the Engine.
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

type noopTelemetry struct{}

func (noopTelemetry) RecordAccessDecision(string, string, bool, string, time.Time) {}

// Deps holds the collaborators of the Engine. Commands may be nil, in which
// case no device is ever instructed.
type Deps struct {
	Doors       DoorStore
	Users       UserStore
	Permissions PermissionStore
	Log         AccessLog
	Alerts      AlertEmitter
	Commands    CommandSender
	Clock       clock.Clock

	// Location is the site time zone for schedule windows. Nil means UTC.
	Location *time.Location
}

// Engine authorises access attempts and carries out their side effects.
type Engine struct {
	doors     DoorStore
	users     UserStore
	perms     PermissionStore
	log       AccessLog
	alerts    AlertEmitter
	commands  CommandSender
	clock     clock.Clock
	location  *time.Location
	telemetry Telemetry
	logger    Logger
}

// NewEngine creates an Engine. Every dependency except Commands and
// Location is required.
func NewEngine(deps Deps) (*Engine, error) {
	switch {
	case deps.Doors == nil:
		return nil, fmt.Errorf("door store is required")
	case deps.Users == nil:
		return nil, fmt.Errorf("user store is required")
	case deps.Permissions == nil:
		return nil, fmt.Errorf("permission store is required")
	case deps.Log == nil:
		return nil, fmt.Errorf("access log is required")
	case deps.Alerts == nil:
		return nil, fmt.Errorf("alert emitter is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	}

	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Engine{
		doors:     deps.Doors,
		users:     deps.Users,
		perms:     deps.Permissions,
		log:       deps.Log,
		alerts:    deps.Alerts,
		commands:  deps.Commands,
		clock:     deps.Clock,
		location:  loc,
		telemetry: noopTelemetry{},
		logger:    noopLogger{},
	}, nil
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// SetTelemetry sets the sink that records every decision.
func (e *Engine) SetTelemetry(t Telemetry) {
	e.telemetry = t
}

// Decide evaluates one attempt and applies its consequences. Exactly one
// access log entry is written per call. Unknown credentials also raise a
// medium unauthorized_access alert. A grant unlocks the door and, when a
// controller is involved, tells it to release the lock.
//
// Failures to write the log, the alert or the door state are logged and
// never change the returned decision.
func (e *Engine) Decide(ctx context.Context, a Attempt) Decision {
	if a.At.IsZero() {
		a.At = e.clock.Now()
	}
	if a.CardUID != "" {
		a.CardUID = auth.NormalizeCardUID(a.CardUID)
	}

	in := e.resolve(ctx, a)
	d := Evaluate(in)
	if d.DoorID == "" {
		d.DoorID = a.DoorID
	}

	e.record(ctx, a, d)

	if d.Reason == ReasonUnauthorizedCard {
		e.alertUnknownCredential(ctx, a)
	}

	if d.Granted {
		e.unlock(ctx, a, d, in.Door)
	} else {
		e.notifyDenied(ctx, a, d)
	}

	e.telemetry.RecordAccessDecision(d.DoorID, a.DeviceID, d.Granted, d.Reason, a.At)

	e.logger.Info("access decision",
		"door_id", d.DoorID,
		"user_id", d.UserID,
		"device_id", a.DeviceID,
		"granted", d.Granted,
		"reason", d.Reason,
	)
	return d
}

// resolve looks up what Evaluate needs, stopping at the first miss. Storage
// errors count as misses.
func (e *Engine) resolve(ctx context.Context, a Attempt) Inputs {
	in := Inputs{At: a.At, Location: e.location}

	dr, err := e.doors.GetByID(ctx, a.DoorID)
	if err != nil {
		e.lookupFailed("door", a.DoorID, err, door.ErrDoorNotFound)
		return in
	}
	in.Door = dr

	var user *auth.User
	switch {
	case a.CardUID != "":
		user, err = e.users.GetByCardUID(ctx, a.CardUID)
		if err != nil {
			e.lookupFailed("card", a.CardUID, err, auth.ErrUserNotFound)
			return in
		}
	case a.UserID != "":
		user, err = e.users.GetByID(ctx, a.UserID)
		if err != nil {
			e.lookupFailed("user", a.UserID, err, auth.ErrUserNotFound)
			return in
		}
	default:
		return in
	}
	in.User = user

	perm, err := e.perms.Get(ctx, user.ID, dr.ID)
	if err != nil {
		e.lookupFailed("permission", user.ID+"/"+dr.ID, err, auth.ErrPermissionNotFound)
		return in
	}
	in.Permission = perm
	return in
}

func (e *Engine) lookupFailed(what, key string, err, notFound error) {
	if errors.Is(err, notFound) {
		return
	}
	e.logger.Error("access lookup failed, denying",
		"lookup", what,
		"key", key,
		"error", err,
	)
}

func (e *Engine) record(ctx context.Context, a Attempt, d Decision) {
	entry := &audit.Entry{
		Timestamp: a.At,
		Actor:     actorFor(a, d),
		UserID:    d.UserID,
		CardUID:   a.CardUID,
		DoorID:    d.DoorID,
		DeviceID:  a.DeviceID,
		Action:    audit.ActionAccessDenied,
		Reason:    d.Reason,
	}
	if d.Granted {
		entry.Action = audit.ActionAccessGranted
	}

	if err := e.log.Append(ctx, entry); err != nil {
		e.logger.Error("failed to write access log",
			"door_id", d.DoorID,
			"action", entry.Action,
			"error", err,
		)
	}
}

func (e *Engine) alertUnknownCredential(ctx context.Context, a Attempt) {
	credential := a.CardUID
	msg := fmt.Sprintf("Unknown card %s presented at door %s", a.CardUID, a.DoorID)
	switch {
	case credential != "":
	case a.UserID != "":
		credential = a.UserID
		msg = fmt.Sprintf("Unknown user %s requested door %s", a.UserID, a.DoorID)
	default:
		credential = unknownActor
		msg = fmt.Sprintf("Unreadable credential presented at door %s", a.DoorID)
	}

	e.alerts.Emit(ctx, alert.TypeUnauthorizedAccess, msg,
		alert.SeverityFor(alert.TypeUnauthorizedAccess),
		alert.Related{
			DeviceID: a.DeviceID,
			DoorID:   a.DoorID,
			Details:  map[string]any{"credential": credential},
		},
	)
}

func (e *Engine) unlock(ctx context.Context, a Attempt, d Decision, dr *door.Door) {
	if err := e.doors.SetStatus(ctx, dr.ID, door.StatusUnlocked, d.UserID, a.At); err != nil {
		e.logger.Error("failed to record door unlock",
			"door_id", dr.ID,
			"error", err,
		)
	}

	if a.DeviceID == "" {
		return
	}
	e.send(ctx, a.DeviceID, command.Unlock, map[string]any{
		"door_id":         dr.ID,
		"auto_lock":       dr.AutoLock,
		"auto_lock_delay": dr.AutoLockDelay,
	})
}

func (e *Engine) notifyDenied(ctx context.Context, a Attempt, d Decision) {
	if a.DeviceID == "" {
		return
	}
	e.send(ctx, a.DeviceID, command.AccessDenied, map[string]any{
		"door_id": d.DoorID,
		"reason":  d.Reason,
	})
}

func (e *Engine) send(ctx context.Context, deviceID, cmd string, data map[string]any) {
	if e.commands == nil {
		return
	}
	if _, err := e.commands.Send(ctx, deviceID, cmd, data); err != nil {
		e.logger.Warn("failed to send command",
			"device_id", deviceID,
			"command", cmd,
			"error", err,
		)
	}
}

// actorFor names who the entry is attributed to: the resolved user, else
// the presented card, else the requested user id.
// unknownActor is recorded when an attempt carries no usable credential.
const unknownActor = "unknown"

func actorFor(a Attempt, d Decision) string {
	switch {
	case d.UserID != "":
		return d.UserID
	case a.CardUID != "":
		return audit.CardActor(a.CardUID)
	case a.UserID != "":
		return a.UserID
	default:
		return unknownActor
	}
}
