package liveness

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/doorgate-core/internal/alert"
	"github.com/nerrad567/doorgate-core/internal/device"
	"github.com/nerrad567/doorgate-core/internal/infrastructure/clock"
)

// Default timings.
const (
	DefaultInterval = time.Minute
	thresholdFactor = 3
)

// DeviceStore persists device status transitions. *device.Registry satisfies it.
type DeviceStore interface {
	SetStatus(ctx context.Context, id string, status device.Status, seen time.Time) error
	ListByStatus(ctx context.Context, status device.Status) ([]device.Device, error)
}

// AlertEmitter raises alerts. *alert.Emitter satisfies it.
type AlertEmitter interface {
	Emit(ctx context.Context, alertType, message string, severity alert.Severity, rel alert.Related) alert.Alert
}

// Telemetry receives status transitions.
type Telemetry interface {
	RecordDeviceStatus(deviceID, status string, at time.Time)
}

// Logger defines the logging interface used by the Monitor.
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

func (noopTelemetry) RecordDeviceStatus(string, string, time.Time) {}

// Config holds the sweep timings. Zero values take the defaults.
type Config struct {
	// Interval between sweeps.
	Interval time.Duration

	// Threshold is the heartbeat age after which a device is offline.
	// Defaults to three intervals.
	Threshold time.Duration
}

// Monitor tracks the last heartbeat of every live device and marks devices
// offline once they fall silent for longer than the threshold.
//
// A device is tracked from its first heartbeat or status frame until a
// sweep finds it stale or it announces itself offline. A stale device
// raises exactly one device_offline alert; the next heartbeat tracks it
// again.
type Monitor struct {
	store     DeviceStore
	alerts    AlertEmitter
	clock     clock.Clock
	telemetry Telemetry
	logger    Logger

	interval  time.Duration
	threshold time.Duration

	mu   sync.Mutex
	seen map[string]time.Time

	timerMu sync.Mutex
	timer   clock.Timer
	running bool
	gen     uint64
}

// New creates a Monitor. It does not sweep until Start is called.
func New(store DeviceStore, alerts AlertEmitter, clk clock.Clock, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = thresholdFactor * cfg.Interval
	}
	return &Monitor{
		store:     store,
		alerts:    alerts,
		clock:     clk,
		telemetry: noopTelemetry{},
		logger:    noopLogger{},
		interval:  cfg.Interval,
		threshold: cfg.Threshold,
		seen:      make(map[string]time.Time),
	}
}

// SetLogger sets the logger for the monitor.
func (m *Monitor) SetLogger(logger Logger) {
	m.logger = logger
}

// SetTelemetry sets the telemetry sink for offline transitions.
func (m *Monitor) SetTelemetry(t Telemetry) {
	m.telemetry = t
}

// Touch records a sign of life from a device at the clock's current time.
// It reports whether the device was not tracked before, so the caller can
// restore its online status.
func (m *Monitor) Touch(deviceID string) bool {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	_, tracked := m.seen[deviceID]
	m.seen[deviceID] = now
	return !tracked
}

// Forget stops tracking a device that went offline on its own. It reports
// whether the device was tracked.
func (m *Monitor) Forget(deviceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, tracked := m.seen[deviceID]
	delete(m.seen, deviceID)
	return tracked
}

// Tracked returns a snapshot of tracked devices and their last heartbeat.
func (m *Monitor) Tracked() map[string]time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]time.Time, len(m.seen))
	for id, at := range m.seen {
		out[id] = at
	}
	return out
}

// Seed tracks every device stored as online, from its stored last
// heartbeat, so a device that died while the gateway was down is still
// swept. An online device with no recorded heartbeat is tracked from now.
func (m *Monitor) Seed(ctx context.Context) (int, error) {
	devices, err := m.store.ListByStatus(ctx, device.StatusOnline)
	if err != nil {
		return 0, fmt.Errorf("loading online devices: %w", err)
	}

	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	seeded := 0
	for _, d := range devices {
		if _, tracked := m.seen[d.ID]; tracked {
			continue
		}
		last := now
		if d.LastHeartbeat != nil {
			last = *d.LastHeartbeat
		}
		m.seen[d.ID] = last
		seeded++
	}

	m.logger.Info("liveness seeded", "devices", seeded)
	return seeded, nil
}

// Sweep marks every device whose last heartbeat is older than the
// threshold as offline, raises one alert per device and stops tracking it.
// It returns the IDs marked offline, sorted.
func (m *Monitor) Sweep(ctx context.Context) []string {
	now := m.clock.Now()

	type stale struct {
		id   string
		last time.Time
	}
	var expired []stale

	m.mu.Lock()
	for id, last := range m.seen {
		if now.Sub(last) > m.threshold {
			expired = append(expired, stale{id: id, last: last})
			delete(m.seen, id)
		}
	}
	m.mu.Unlock()

	sort.Slice(expired, func(i, j int) bool { return expired[i].id < expired[j].id })

	ids := make([]string, 0, len(expired))
	for _, s := range expired {
		// A heartbeat since the scan tracks the device again.
		if m.isTracked(s.id) {
			continue
		}

		if err := m.store.SetStatus(ctx, s.id, device.StatusOffline, time.Time{}); err != nil {
			m.logger.Error("failed to mark device offline",
				"device_id", s.id,
				"error", err,
			)
		}
		if at, ok := m.lastSeen(s.id); ok {
			// The heartbeat landed during the write; its online status wins.
			if err := m.store.SetStatus(ctx, s.id, device.StatusOnline, at); err != nil {
				m.logger.Error("failed to restore device online",
					"device_id", s.id,
					"error", err,
				)
			}
			continue
		}

		ids = append(ids, s.id)
		m.telemetry.RecordDeviceStatus(s.id, string(device.StatusOffline), now)

		silent := now.Sub(s.last).Round(time.Second)
		m.alerts.Emit(ctx, alert.TypeDeviceOffline,
			fmt.Sprintf("Device %s has not sent a heartbeat for %s", s.id, silent),
			alert.SeverityFor(alert.TypeDeviceOffline),
			alert.Related{
				DeviceID: s.id,
				Details: map[string]any{
					"last_heartbeat": s.last.UTC().Format(time.RFC3339),
				},
			},
		)
	}

	if len(ids) > 0 {
		m.logger.Warn("devices marked offline", "count", len(ids), "devices", ids)
	}
	return ids
}

func (m *Monitor) isTracked(deviceID string) bool {
	_, ok := m.lastSeen(deviceID)
	return ok
}

func (m *Monitor) lastSeen(deviceID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.seen[deviceID]
	return at, ok
}

// Start schedules a sweep every interval until Stop. Calling Start on a
// running monitor does nothing.
func (m *Monitor) Start(ctx context.Context) {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()

	if m.running {
		return
	}
	m.running = true
	m.gen++
	m.scheduleLocked(ctx, m.gen)

	m.logger.Info("liveness monitor started",
		"interval", m.interval.String(),
		"threshold", m.threshold.String(),
	)
}

// Stop cancels the pending sweep.
func (m *Monitor) Stop() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()

	if !m.running {
		return
	}
	m.running = false
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.logger.Info("liveness monitor stopped")
}

// Running reports whether sweeps are scheduled.
func (m *Monitor) Running() bool {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	return m.running
}

// scheduleLocked arms the next sweep for generation gen. A Stop or a
// restart while the sweep runs bumps the generation and ends this chain.
func (m *Monitor) scheduleLocked(ctx context.Context, gen uint64) {
	m.timer = m.clock.AfterFunc(m.interval, func() {
		m.Sweep(ctx)

		m.timerMu.Lock()
		defer m.timerMu.Unlock()
		if m.running && m.gen == gen {
			m.scheduleLocked(ctx, gen)
		}
	})
}
