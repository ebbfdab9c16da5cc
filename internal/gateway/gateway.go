package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/doorgate-core/internal/access"
	"github.com/nerrad567/doorgate-core/internal/alert"
	"github.com/nerrad567/doorgate-core/internal/audit"
	"github.com/nerrad567/doorgate-core/internal/codec"
	"github.com/nerrad567/doorgate-core/internal/device"
	"github.com/nerrad567/doorgate-core/internal/door"
	"github.com/nerrad567/doorgate-core/internal/infrastructure/clock"
)

// Decoder turns raw frames into messages. *codec.Codec satisfies it.
type Decoder interface {
	Decode(topic string, payload []byte) (codec.Message, error)
}

// DeviceStore is the device registry view the gateway needs.
// *device.Registry satisfies it.
type DeviceStore interface {
	GetDevice(ctx context.Context, id string) (*device.Device, error)
	SetStatus(ctx context.Context, id string, status device.Status, seen time.Time) error
	SetFirmware(ctx context.Context, id, version string) error
}

// DoorStore reads doors and records lock transitions.
type DoorStore interface {
	GetByID(ctx context.Context, id string) (*door.Door, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*door.Door, error)
	SetStatus(ctx context.Context, id string, status door.Status, actor string, at time.Time) error
}

// AccessLog appends access log entries.
type AccessLog interface {
	Append(ctx context.Context, entry *audit.Entry) error
}

// AlertEmitter raises alerts. *alert.Emitter satisfies it.
type AlertEmitter interface {
	Emit(ctx context.Context, alertType, message string, severity alert.Severity, rel alert.Related) alert.Alert
}

// Authorizer decides access attempts. *access.Engine satisfies it.
type Authorizer interface {
	Decide(ctx context.Context, a access.Attempt) access.Decision
}

// Liveness tracks device heartbeats. *liveness.Monitor satisfies it.
type Liveness interface {
	Touch(deviceID string) bool
	Forget(deviceID string) bool
	Seed(ctx context.Context) (int, error)
	Start(ctx context.Context)
	Stop()
}

// CommandSender dispatches commands to devices. *command.Dispatcher satisfies it.
type CommandSender interface {
	Send(ctx context.Context, deviceID, cmd string, data map[string]any) (string, error)
}

// Telemetry receives device health samples.
type Telemetry interface {
	RecordHeartbeat(deviceID string, stats map[string]any, at time.Time)
	RecordDeviceStatus(deviceID, status string, at time.Time)
}

// Logger defines the logging interface used by the gateway.
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

func (noopTelemetry) RecordHeartbeat(string, map[string]any, time.Time) {}
func (noopTelemetry) RecordDeviceStatus(string, string, time.Time)      {}

// Deps holds the dependencies of the gateway.
type Deps struct {
	Session   Session
	Codec     Decoder
	Devices   DeviceStore
	Doors     DoorStore
	Log       AccessLog
	Alerts    AlertEmitter
	Access    Authorizer
	Liveness  Liveness
	Commands  CommandSender
	Clock     clock.Clock
	Reconnect ReconnectConfig
	Logger    Logger    // optional
	Telemetry Telemetry // optional
}

// Gateway connects door controllers to the access engine. It owns the
// broker connection and routes every inbound frame by message type.
type Gateway struct {
	conn      *ConnectionManager
	codec     Decoder
	devices   DeviceStore
	doors     DoorStore
	log       AccessLog
	alerts    AlertEmitter
	access    Authorizer
	liveness  Liveness
	commands  CommandSender
	clock     clock.Clock
	telemetry Telemetry
	logger    Logger

	routes map[codec.MessageType]handlerFunc

	// ctx scopes handler work; cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc

	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
}

// New creates a gateway. Logger and Telemetry are optional; everything else
// is required. The gateway does nothing until Start.
func New(deps Deps) (*Gateway, error) {
	switch {
	case deps.Session == nil:
		return nil, fmt.Errorf("broker session is required")
	case deps.Codec == nil:
		return nil, fmt.Errorf("codec is required")
	case deps.Devices == nil:
		return nil, fmt.Errorf("device store is required")
	case deps.Doors == nil:
		return nil, fmt.Errorf("door store is required")
	case deps.Log == nil:
		return nil, fmt.Errorf("access log is required")
	case deps.Alerts == nil:
		return nil, fmt.Errorf("alert emitter is required")
	case deps.Access == nil:
		return nil, fmt.Errorf("access engine is required")
	case deps.Liveness == nil:
		return nil, fmt.Errorf("liveness monitor is required")
	case deps.Commands == nil:
		return nil, fmt.Errorf("command dispatcher is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	g := &Gateway{
		codec:     deps.Codec,
		devices:   deps.Devices,
		doors:     deps.Doors,
		log:       deps.Log,
		alerts:    deps.Alerts,
		access:    deps.Access,
		liveness:  deps.Liveness,
		commands:  deps.Commands,
		clock:     deps.Clock,
		telemetry: deps.Telemetry,
		logger:    deps.Logger,
		ctx:       ctx,
		cancel:    cancel,
	}
	if g.telemetry == nil {
		g.telemetry = noopTelemetry{}
	}
	if g.logger == nil {
		g.logger = noopLogger{}
	}

	g.routes = map[codec.MessageType]handlerFunc{
		codec.MessageTypeHeartbeat: g.handleHeartbeat,
		codec.MessageTypeStatus:    g.handleStatus,
		codec.MessageTypeAccess:    g.handleAccess,
		codec.MessageTypeEvent:     g.handleEvent,
	}

	g.conn = NewConnectionManager(deps.Session, g.HandleMessage, deps.Alerts, deps.Clock, deps.Reconnect)
	g.conn.SetLogger(g.logger)
	return g, nil
}

// Start seeds and starts the liveness monitor and connects to the broker.
// An unreachable broker is not an error: the connection manager keeps
// retrying in the background.
func (g *Gateway) Start(ctx context.Context) error {
	g.startMu.Lock()
	defer g.startMu.Unlock()
	if g.started {
		return ErrAlreadyStarted
	}
	g.started = true

	// Frames only arrive once connected, so handlers never see the old context.
	g.cancel()
	g.ctx, g.cancel = context.WithCancel(ctx)

	if _, err := g.liveness.Seed(ctx); err != nil {
		g.logger.Error("failed to seed liveness monitor", "error", err)
	}
	g.liveness.Start(g.ctx)

	if err := g.conn.Connect(g.ctx); err != nil {
		g.logger.Warn("broker unavailable at startup, retrying in background", "error", err)
	}

	g.logger.Info("gateway started")
	return nil
}

// Stop halts liveness sweeps, cancels pending reconnects and closes the
// broker session. Safe to call more than once.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		g.liveness.Stop()
		if err := g.conn.Disconnect(); err != nil {
			g.logger.Error("failed to close broker session", "error", err)
		}
		g.cancel()
		g.logger.Info("gateway stopped")
	})
}

// Connection returns the broker connection manager.
func (g *Gateway) Connection() *ConnectionManager {
	return g.conn
}

// HealthCheck reports whether the broker session is up.
func (g *Gateway) HealthCheck(ctx context.Context) error {
	return g.conn.HealthCheck(ctx)
}
