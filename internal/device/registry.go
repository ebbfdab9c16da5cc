package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache of the devices this
// gateway has seen. Devices are provisioned outside the gateway, so the
// cache is populated on startup via RefreshCache() and refreshed by
// lookups and the status writes below.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	// Might be a device provisioned after the last refresh.
	device, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = device.DeepCopy()
	r.cacheMu.Unlock()

	return device, nil
}

// EncryptionEnabled reports whether commands to the device must be sent
// inside the encrypted envelope. The flag is read from storage on every
// call so a change made by provisioning applies to the next command. The
// cached value is used only when storage cannot be read.
func (r *Registry) EncryptionEnabled(ctx context.Context, id string) (bool, error) {
	d, err := r.repo.GetByID(ctx, id)
	switch {
	case err == nil:
		r.cacheMu.Lock()
		r.cache[id] = d.DeepCopy()
		r.cacheMu.Unlock()
		return d.EncryptionEnabled, nil
	case errors.Is(err, ErrDeviceNotFound):
		r.cacheMu.Lock()
		delete(r.cache, id)
		r.cacheMu.Unlock()
		return false, err
	}

	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if !ok {
		return false, err
	}
	r.logger.Warn("using cached encryption flag",
		"device_id", id,
		"error", err,
	)
	return cached.EncryptionEnabled, nil
}

// ListByStatus retrieves all devices with the given status from storage.
// Storage is authoritative here since liveness seeding runs before any
// traffic has warmed the cache.
func (r *Registry) ListByStatus(ctx context.Context, status Status) ([]Device, error) {
	return r.repo.ListByStatus(ctx, status)
}

// SetStatus persists a status transition. A non-zero seen time also
// becomes the device's last heartbeat.
func (r *Registry) SetStatus(ctx context.Context, id string, status Status, seen time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if err := r.repo.UpdateStatus(ctx, id, status, seen); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		updated.Status = status
		if !seen.IsZero() {
			s := seen.UTC()
			updated.LastHeartbeat = &s
		}
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device status updated", "id", id, "status", status)
	return nil
}

// SetFirmware records the firmware version a device reported.
func (r *Registry) SetFirmware(ctx context.Context, id, version string) error {
	if err := r.repo.UpdateFirmware(ctx, id, version); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		updated.FirmwareVersion = version
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Info("device firmware updated", "id", id, "version", version)
	return nil
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
