package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/doorgate-core/internal/alert"
	"github.com/nerrad567/doorgate-core/internal/infrastructure/clock"
	"github.com/nerrad567/doorgate-core/internal/infrastructure/config"
	"github.com/nerrad567/doorgate-core/internal/infrastructure/mqtt"
)

// Reconnect defaults.
const (
	DefaultReconnectDelay = 5 * time.Second
	DefaultMaxAttempts    = 5

	subscribeQoS = 1
)

// Session is the broker session the manager drives. *mqtt.Client satisfies it.
type Session interface {
	Connect(ctx context.Context) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
	HealthCheck(ctx context.Context) error
	Close() error
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
	SetOnReconnecting(callback func())
}

// ReconnectConfig controls retries of failed connects.
type ReconnectConfig struct {
	// Delay between a failed attempt and the next one.
	Delay time.Duration

	// MaxAttempts is the number of consecutive failures that raise the
	// MQTT_CONNECTION_FAILED alert.
	MaxAttempts int

	// Policy is config.ReconnectPolicyContinue or config.ReconnectPolicyStop.
	Policy string
}

// ConnectionState is a snapshot for health checks.
type ConnectionState struct {
	Connected bool `json:"connected"`
	Attempts  int  `json:"attempts"`
	Alerted   bool `json:"alerted"`
}

// ConnectionManager owns the broker session: it connects, subscribes the
// gateway topics and retries failed connects on a fixed delay.
//
// Consecutive failures are counted. When the count reaches MaxAttempts one
// critical alert is raised and counting stops until the next successful
// connect. With the stop policy no retry is scheduled after that alert.
// Retries of a lost session are the transport's own; they feed the same
// counter through the reconnecting callback.
type ConnectionManager struct {
	session Session
	handler mqtt.MessageHandler
	alerts  AlertEmitter
	clock   clock.Clock
	cfg     ReconnectConfig
	logger  Logger

	mu       sync.Mutex
	attempts int
	alerted  bool
	timer    clock.Timer
	closed   bool
}

// NewConnectionManager creates a manager and registers its session callbacks.
// Every inbound frame is passed to handler.
func NewConnectionManager(session Session, handler mqtt.MessageHandler, alerts AlertEmitter, clk clock.Clock, cfg ReconnectConfig) *ConnectionManager {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultReconnectDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Policy == "" {
		cfg.Policy = config.ReconnectPolicyContinue
	}

	m := &ConnectionManager{
		session: session,
		handler: handler,
		alerts:  alerts,
		clock:   clk,
		cfg:     cfg,
		logger:  noopLogger{},
	}

	session.SetOnConnect(m.handleConnect)
	session.SetOnDisconnect(m.handleDisconnect)
	session.SetOnReconnecting(m.handleReconnecting)
	return m
}

// SetLogger sets the logger for the manager.
func (m *ConnectionManager) SetLogger(logger Logger) {
	m.logger = logger
}

// Connect makes one attempt to establish the session and subscribe the
// gateway topics. On failure the attempt is counted and a retry is
// scheduled per the reconnect policy; the error is still returned.
func (m *ConnectionManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.timer = nil
	m.mu.Unlock()

	if err := m.session.Connect(ctx); err != nil {
		m.failed(ctx, err)
		return err
	}
	if err := m.subscribe(); err != nil {
		m.failed(ctx, err)
		return err
	}

	m.reset()
	m.logger.Info("connected to broker")
	return nil
}

func (m *ConnectionManager) subscribe() error {
	for _, topic := range (mqtt.Topics{}).GatewaySubscriptions() {
		if err := m.session.Subscribe(topic, subscribeQoS, m.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}
	return nil
}

func (m *ConnectionManager) failed(ctx context.Context, err error) {
	exhausted, attempts := m.countAttempt()

	m.logger.Warn("broker connection failed",
		"attempt", attempts,
		"max_attempts", m.cfg.MaxAttempts,
		"error", err,
	)
	if exhausted {
		m.raiseExhausted(ctx, attempts, err)
	}
	m.scheduleRetry(ctx)
}

// countAttempt records one failed attempt. It reports whether this attempt
// exhausted the budget, which happens once per outage.
func (m *ConnectionManager) countAttempt() (bool, int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.alerted {
		return false, m.attempts
	}
	m.attempts++
	if m.attempts >= m.cfg.MaxAttempts {
		m.alerted = true
		return true, m.attempts
	}
	return false, m.attempts
}

func (m *ConnectionManager) raiseExhausted(ctx context.Context, attempts int, cause error) {
	details := map[string]any{"attempts": attempts}
	if cause != nil {
		details["error"] = cause.Error()
	}
	m.alerts.Emit(ctx, alert.TypeMQTTConnectionFailed,
		fmt.Sprintf("Broker unreachable after %d attempts", attempts),
		alert.SeverityCritical,
		alert.Related{Details: details},
	)
}

func (m *ConnectionManager) scheduleRetry(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || ctx.Err() != nil {
		return
	}
	if m.alerted && m.cfg.Policy == config.ReconnectPolicyStop {
		m.logger.Error("giving up on broker connection", "attempts", m.attempts)
		return
	}

	m.timer = m.clock.AfterFunc(m.cfg.Delay, func() {
		m.Connect(ctx) //nolint:errcheck // counted and logged by Connect
	})
}

func (m *ConnectionManager) reset() {
	m.mu.Lock()
	m.attempts = 0
	m.alerted = false
	m.mu.Unlock()
}

func (m *ConnectionManager) handleConnect() {
	m.reset()
}

func (m *ConnectionManager) handleDisconnect(err error) {
	m.logger.Warn("broker connection lost", "error", err)
}

func (m *ConnectionManager) handleReconnecting() {
	exhausted, attempts := m.countAttempt()
	m.logger.Info("reconnecting to broker", "attempt", attempts)
	if exhausted {
		m.raiseExhausted(context.Background(), attempts, nil)
	}
}

// Disconnect cancels any pending retry and closes the session. Further
// calls do nothing.
func (m *ConnectionManager) Disconnect() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()

	if err := m.session.Close(); err != nil {
		return fmt.Errorf("closing broker session: %w", err)
	}
	m.logger.Info("disconnected from broker")
	return nil
}

// State returns the current connection state.
func (m *ConnectionManager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ConnectionState{
		Connected: m.session.IsConnected(),
		Attempts:  m.attempts,
		Alerted:   m.alerted,
	}
}

// HealthCheck reports whether the broker session is up.
func (m *ConnectionManager) HealthCheck(ctx context.Context) error {
	return m.session.HealthCheck(ctx)
}
