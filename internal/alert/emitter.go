package alert

import (
	"context"
	"time"

	"github.com/nerrad567/doorgate-core/internal/infrastructure/clock"
)

// Logger defines the logging interface used by the Emitter.
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

// Telemetry receives one point per emitted alert.
type Telemetry interface {
	RecordAlert(alertType, severity string, at time.Time)
}

type noopTelemetry struct{}

func (noopTelemetry) RecordAlert(string, string, time.Time) {}

// Emitter creates and persists alerts. Emit never fails: a persistence
// error is logged and the alert is still returned to the caller.
type Emitter struct {
	repo      Repository
	clock     clock.Clock
	logger    Logger
	telemetry Telemetry
}

// NewEmitter creates an Emitter writing to repo and stamping alerts with clk.
func NewEmitter(repo Repository, clk clock.Clock) *Emitter {
	return &Emitter{
		repo:      repo,
		clock:     clk,
		logger:    noopLogger{},
		telemetry: noopTelemetry{},
	}
}

// SetLogger sets the logger for the emitter.
func (e *Emitter) SetLogger(logger Logger) {
	e.logger = logger
}

// SetTelemetry sets the telemetry sink for emitted alerts.
func (e *Emitter) SetTelemetry(t Telemetry) {
	e.telemetry = t
}

// Emit records one alert of the given type. An unknown severity falls back
// to the type's fixed severity.
func (e *Emitter) Emit(ctx context.Context, alertType, message string, severity Severity, rel Related) Alert {
	if !severity.Valid() {
		severity = SeverityFor(alertType)
	}

	a := Alert{
		ID:        NewID(),
		Type:      alertType,
		Severity:  severity,
		Message:   message,
		Resolved:  false,
		DeviceID:  rel.DeviceID,
		DoorID:    rel.DoorID,
		UserID:    rel.UserID,
		Details:   rel.Details,
		Timestamp: e.clock.Now().UTC(),
	}

	if err := e.repo.Create(ctx, &a); err != nil {
		e.logger.Error("failed to persist alert",
			"alert_id", a.ID,
			"type", alertType,
			"error", err,
		)
	}

	e.log(a)
	e.telemetry.RecordAlert(a.Type, string(a.Severity), a.Timestamp)
	return a
}

func (e *Emitter) log(a Alert) {
	args := []any{
		"alert_id", a.ID,
		"type", a.Type,
		"severity", a.Severity,
		"message", a.Message,
	}
	if a.DeviceID != "" {
		args = append(args, "device_id", a.DeviceID)
	}
	if a.DoorID != "" {
		args = append(args, "door_id", a.DoorID)
	}

	switch a.Severity {
	case SeverityCritical, SeverityHigh:
		e.logger.Error("alert raised", args...)
	case SeverityWarning, SeverityMedium:
		e.logger.Warn("alert raised", args...)
	default:
		e.logger.Info("alert raised", args...)
	}
}
