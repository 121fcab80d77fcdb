package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultPairingTTL           = 15 * time.Minute
	DefaultOnlineThreshold      = 5 * time.Minute
	DefaultClaimedCodeRetention = 24 * time.Hour

	// maxCodeAttempts bounds BeginPairing before it gives up.
	maxCodeAttempts = 8

	// maxIDAttempts bounds device ID regeneration on collision.
	maxIDAttempts = 3
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

// Notifier receives registry events after the mutation committed.
// Implementations must not block for long; they run on the caller's goroutine.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event Event)

// Notify calls f(ctx, event).
func (f NotifierFunc) Notify(ctx context.Context, event Event) {
	f(ctx, event)
}

// Options tunes registry timing. Zero fields take the package defaults.
type Options struct {
	PairingTTL           time.Duration
	OnlineThreshold      time.Duration
	ClaimedCodeRetention time.Duration
}

// Registry manages devices and the pairing lifecycle.
//
// All public methods are thread-safe.
type Registry struct {
	repo   Repository
	opts   Options
	logger Logger

	now     func() time.Time
	newID   func() string
	newCode func() (string, error)

	notifiersMu sync.RWMutex
	notifiers   []Notifier
}

// NewRegistry creates a new device registry backed by repo.
func NewRegistry(repo Repository, opts Options) *Registry {
	if opts.PairingTTL <= 0 {
		opts.PairingTTL = DefaultPairingTTL
	}
	if opts.OnlineThreshold <= 0 {
		opts.OnlineThreshold = DefaultOnlineThreshold
	}
	if opts.ClaimedCodeRetention <= 0 {
		opts.ClaimedCodeRetention = DefaultClaimedCodeRetention
	}
	return &Registry{
		repo:    repo,
		opts:    opts,
		logger:  noopLogger{},
		now:     time.Now,
		newID:   GenerateID,
		newCode: GenerateCode,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetClock overrides the time source. Used by tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// SetIDGenerator overrides device ID generation. Used by tests.
func (r *Registry) SetIDGenerator(gen func() string) {
	r.newID = gen
}

// SetCodeGenerator overrides pairing code generation. Used by tests.
func (r *Registry) SetCodeGenerator(gen func() (string, error)) {
	r.newCode = gen
}

// AddNotifier registers n to receive every subsequent event.
func (r *Registry) AddNotifier(n Notifier) {
	r.notifiersMu.Lock()
	defer r.notifiersMu.Unlock()
	r.notifiers = append(r.notifiers, n)
}

// OnlineThreshold returns the heartbeat age under which a device is online.
func (r *Registry) OnlineThreshold() time.Duration {
	return r.opts.OnlineThreshold
}

// BeginPairing allocates a fresh pending code.
// Returns ErrPairingUnavailable when no code could be stored.
func (r *Registry) BeginPairing(ctx context.Context) (*PairingCode, error) {
	var lastErr error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := r.newCode()
		if err != nil {
			lastErr = err
			continue
		}

		now := r.now().UTC()
		p := &PairingCode{
			Code:      code,
			CreatedAt: now,
			ExpiresAt: now.Add(r.opts.PairingTTL),
		}
		err = r.repo.CreatePairing(ctx, p, now)
		if err == nil {
			r.logger.Debug("pairing code issued", "expires_at", p.ExpiresAt)
			r.emit(ctx, Event{Kind: EventPairingBegun, Code: p.Code})
			return p, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrPairingUnavailable, ctx.Err())
		}
		lastErr = err
	}

	r.logger.Warn("pairing code allocation failed", "attempts", maxCodeAttempts, "error", lastErr)
	return nil, fmt.Errorf("%w: %w", ErrPairingUnavailable, lastErr)
}

// PollPairing reports the state of a code to the display showing it.
// Returns ErrCodeInvalid for unknown or malformed codes.
func (r *Registry) PollPairing(ctx context.Context, code string) (*PairingStatus, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, ErrCodeInvalid
	}

	p, err := r.repo.GetPairing(ctx, normalized)
	if err != nil {
		return nil, err
	}

	status := &PairingStatus{
		Code:      p.Code,
		Paired:    !p.Pending(),
		Expired:   p.Expired(r.now()),
		ExpiresAt: p.ExpiresAt,
	}
	if p.DeviceID != nil {
		status.DeviceID = *p.DeviceID
	}
	return status, nil
}

// Claim turns a pending code into a device.
//
// A blank name defaults to "Display " plus the last four characters of the
// new ID. Returns ErrCodeInvalid, ErrCodeExpired or ErrCodeAlreadyClaimed
// when the code cannot be claimed.
func (r *Registry) Claim(ctx context.Context, code, name string) (*Device, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, ErrCodeInvalid
	}

	var err error
	if name, err = claimName(name); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		now := r.now().UTC()
		id := r.newID()
		d := &Device{
			ID:        id,
			Name:      name,
			Mode:      ModeAuto,
			PairedAt:  &now,
			Status:    map[string]any{},
			Metrics:   map[string]any{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if d.Name == "" {
			d.Name = defaultName(id)
		}

		err = r.repo.ClaimPairing(ctx, normalized, d, now)
		if errors.Is(err, ErrDeviceExists) {
			r.logger.Warn("generated device id collided", "device_id", id)
			continue
		}
		if err != nil {
			return nil, err
		}

		d.Presence = PresenceNeverSeen
		r.logger.Info("device paired", "device_id", d.ID, "name", d.Name)
		r.emit(ctx, Event{Kind: EventDevicePaired, DeviceID: d.ID, Code: normalized, Name: d.Name, Mode: d.Mode})
		return d, nil
	}
	return nil, err
}

// claimName validates an optional claim name; "" means use the default.
func claimName(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", nil
	}
	return ValidateName(name)
}

// GetDevice retrieves a device by ID with presence derived at call time.
// Returns ErrInvalidDevice for a malformed ID and ErrDeviceNotFound when
// no such device exists.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	normalized := NormalizeID(id)
	if normalized == "" {
		return nil, ErrInvalidDevice
	}
	d, err := r.repo.GetByID(ctx, normalized)
	if err != nil {
		return nil, err
	}
	r.derive(d, r.now())
	return d, nil
}

// ListDevices returns every device with presence derived against now.
func (r *Registry) ListDevices(ctx context.Context, now time.Time) ([]Device, error) {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	for i := range devices {
		r.derive(&devices[i], now)
	}
	return devices, nil
}

// PendingPairings lists codes that are unclaimed and unexpired.
func (r *Registry) PendingPairings(ctx context.Context) ([]PairingCode, error) {
	codes, err := r.repo.ListPendingPairings(ctx, r.now())
	if err != nil {
		return nil, fmt.Errorf("listing pending pairings: %w", err)
	}
	return codes, nil
}

// Rename changes a device's display name.
func (r *Registry) Rename(ctx context.Context, id, name string) (*Device, error) {
	trimmed, err := ValidateName(name)
	if err != nil {
		return nil, err
	}
	return r.mutate(ctx, id, func(d *Device) (Event, error) {
		d.Name = trimmed
		return Event{Kind: EventDeviceRenamed, Name: trimmed}, nil
	})
}

// SetMode switches a device between auto and override.
func (r *Registry) SetMode(ctx context.Context, id string, mode string) (*Device, error) {
	parsed, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}
	return r.mutate(ctx, id, func(d *Device) (Event, error) {
		d.Mode = parsed
		return Event{Kind: EventModeChanged, Mode: parsed}, nil
	})
}

// SetOverrides stores per-device overrides.
//
// A schedule override must pass the schedule shape check; a settings
// override must be an object. Either failure returns
// ErrInvalidOverrideShape and nothing is stored.
func (r *Registry) SetOverrides(ctx context.Context, id string, patch OverridesPatch) (*Device, error) {
	var schedule, settings json.RawMessage
	var err error

	if patch.Schedule != nil && !isNull(patch.Schedule) {
		if schedule, err = normalizeScheduleOverride(patch.Schedule); err != nil {
			return nil, err
		}
	}
	if patch.Settings != nil && !isNull(patch.Settings) {
		if settings, err = normalizeSettingsOverride(patch.Settings); err != nil {
			return nil, err
		}
	}

	return r.mutate(ctx, id, func(d *Device) (Event, error) {
		if patch.Schedule != nil {
			d.Overrides.Schedule = schedule
		}
		if patch.Settings != nil {
			d.Overrides.Settings = settings
		}
		return Event{Kind: EventOverridesSet}, nil
	})
}

// ClearOverrides removes both overrides. The mode is left unchanged.
func (r *Registry) ClearOverrides(ctx context.Context, id string) (*Device, error) {
	return r.mutate(ctx, id, func(d *Device) (Event, error) {
		d.Overrides = Overrides{}
		return Event{Kind: EventOverridesCleared}, nil
	})
}

// Unpair deletes a device and its history. Heartbeats from it are
// ignored afterwards.
func (r *Registry) Unpair(ctx context.Context, id string) error {
	normalized := NormalizeID(id)
	if normalized == "" {
		return ErrInvalidDevice
	}
	if err := r.repo.Delete(ctx, normalized); err != nil {
		return err
	}

	r.logger.Info("device unpaired", "device_id", normalized)
	r.emit(ctx, Event{Kind: EventDeviceUnpaired, DeviceID: normalized})
	return nil
}

// PurgeExpired removes pending codes past their TTL and resolved codes
// older than the retention window.
func (r *Registry) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := r.repo.PurgePairings(ctx, now, now.Add(-r.opts.ClaimedCodeRetention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.Debug("purged pairing codes", "count", n)
	}
	return n, nil
}

// RunJanitor calls PurgeExpired every interval until ctx is cancelled.
// Failures are logged and retried on the next tick.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.PurgeExpired(ctx, r.now()); err != nil && ctx.Err() == nil {
				r.logger.Warn("pairing janitor failed", "error", err)
			}
		}
	}
}

// mutate applies fn to a device, bumps updated_at and persists it in one
// transaction.
func (r *Registry) mutate(ctx context.Context, id string, fn func(d *Device) (Event, error)) (*Device, error) {
	normalized := NormalizeID(id)
	if normalized == "" {
		return nil, ErrInvalidDevice
	}

	var event Event
	d, err := r.repo.Modify(ctx, normalized, func(d *Device) error {
		var err error
		if event, err = fn(d); err != nil {
			return err
		}

		now := r.now().UTC()
		if !now.After(d.UpdatedAt) {
			// Keep updated_at strictly increasing under a coarse clock.
			now = d.UpdatedAt.Add(time.Microsecond)
		}
		d.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.derive(d, r.now())
	event.DeviceID = d.ID
	if event.Name == "" {
		event.Name = d.Name
	}
	if event.Mode == "" {
		event.Mode = d.Mode
	}
	r.logger.Debug("device updated", "device_id", d.ID, "event", event.Kind)
	r.emit(ctx, event)
	return d, nil
}

func (r *Registry) derive(d *Device, now time.Time) {
	var lastSeen time.Time
	if d.LastSeenAt != nil {
		lastSeen = *d.LastSeenAt
	}
	d.Presence = Presence(lastSeen, now, r.opts.OnlineThreshold)
}

func (r *Registry) emit(ctx context.Context, event Event) {
	if event.Time.IsZero() {
		event.Time = r.now().UTC()
	}

	r.notifiersMu.RLock()
	notifiers := make([]Notifier, len(r.notifiers))
	copy(notifiers, r.notifiers)
	r.notifiersMu.RUnlock()

	for _, n := range notifiers {
		n.Notify(ctx, event)
	}
}
