package live

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/kiosk-fleet-core/internal/device"
	"github.com/nerrad567/kiosk-fleet-core/internal/document"
	"github.com/nerrad567/kiosk-fleet-core/internal/resolver"
)

// Registry is the device registry surface streams read.
// *device.Registry implements it.
type Registry interface {
	GetDevice(ctx context.Context, id string) (*device.Device, error)
	ListDevices(ctx context.Context, now time.Time) ([]device.Device, error)
	PendingPairings(ctx context.Context) ([]device.PairingCode, error)
	PollPairing(ctx context.Context, code string) (*device.PairingStatus, error)
}

// Documents fingerprints global documents. *document.Store implements it.
type Documents interface {
	Fingerprint(ctx context.Context, t document.Type) (document.Fingerprint, error)
}

// Resolver builds effective configuration. *resolver.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, deviceID string) (*resolver.Result, error)
	Globals(ctx context.Context) (resolver.Globals, error)
}

// Sources are the read-only collaborators every stream uses.
type Sources struct {
	Registry  Registry
	Documents Documents
	Resolver  Resolver
}

// State is the body of a state event.
type State struct {
	Devices         []device.Device          `json:"devices"`
	Pairings        []device.PairingCode     `json:"pairings"`
	Schedule        map[string]any           `json:"schedule"`
	Settings        map[string]any           `json:"settings"`
	ScheduleVersion int                      `json:"scheduleVersion"`
	SettingsVersion int                      `json:"settingsVersion"`
	Fingerprints    map[document.Type]string `json:"fingerprints"`
}

// DeviceConfig is the body of a device event. It carries no telemetry, so
// heartbeats alone never produce one.
type DeviceConfig struct {
	DeviceID string         `json:"deviceId"`
	Name     string         `json:"name"`
	Mode     device.Mode    `json:"mode"`
	Schedule map[string]any `json:"schedule"`
	Settings map[string]any `json:"settings"`
	Meta     resolver.Meta  `json:"meta"`
}

// watcher observes one scope.
type watcher interface {
	// fingerprint reports the scope's current fingerprint.
	fingerprint(ctx context.Context) (document.Fingerprint, error)

	// snapshot builds the event for the state last fingerprinted.
	snapshot(ctx context.Context) (string, any, error)
}

// dedupKeyer is implemented by watchers whose payload carries fields that
// can move without changing what the client renders. A snapshot is sent
// only when its key differs from the last one sent.
type dedupKeyer interface {
	dedupKey(data any) any
}

func newWatcher(scope Scope, src Sources, now func() time.Time) watcher {
	switch scope.Kind {
	case ScopeDevice:
		return &deviceWatcher{src: src, id: scope.DeviceID}
	case ScopePairing:
		return &pairingWatcher{src: src, code: scope.Code}
	default:
		return &globalWatcher{src: src, now: now}
	}
}

// documentFingerprints returns the fingerprint of every global document
// and the newest modification time among them.
func documentFingerprints(ctx context.Context, docs Documents) (map[document.Type]string, time.Time, error) {
	hashes := make(map[document.Type]string, len(document.Types))
	var latest time.Time
	for _, t := range document.Types {
		fp, err := docs.Fingerprint(ctx, t)
		if err != nil {
			return nil, time.Time{}, err
		}
		hashes[t] = fp.Hash
		latest = laterOf(latest, fp.ModTime)
	}
	return hashes, latest, nil
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// globalWatcher hashes the full state it would send, so presence
// transitions with no write behind them are still picked up.
type globalWatcher struct {
	src Sources
	now func() time.Time

	state *State
}

func (w *globalWatcher) fingerprint(ctx context.Context) (document.Fingerprint, error) {
	state, mod, err := w.build(ctx)
	if err != nil {
		return document.Fingerprint{}, err
	}
	hash, err := document.HashValue(state)
	if err != nil {
		return document.Fingerprint{}, err
	}
	w.state = state
	return document.Fingerprint{ModTime: mod, Hash: hash}, nil
}

func (w *globalWatcher) snapshot(ctx context.Context) (string, any, error) {
	if w.state == nil {
		state, _, err := w.build(ctx)
		if err != nil {
			return "", nil, err
		}
		w.state = state
	}
	return EventState, w.state, nil
}

func (w *globalWatcher) build(ctx context.Context) (*State, time.Time, error) {
	devices, err := w.src.Registry.ListDevices(ctx, w.now())
	if err != nil {
		return nil, time.Time{}, err
	}
	pairings, err := w.src.Registry.PendingPairings(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	fingerprints, mod, err := documentFingerprints(ctx, w.src.Documents)
	if err != nil {
		return nil, time.Time{}, err
	}
	globals, err := w.src.Resolver.Globals(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}

	for i := range devices {
		mod = laterOf(mod, devices[i].UpdatedAt)
		if devices[i].LastSeenAt != nil {
			mod = laterOf(mod, *devices[i].LastSeenAt)
		}
	}
	for i := range pairings {
		mod = laterOf(mod, pairings[i].CreatedAt)
	}

	return &State{
		Devices:         devices,
		Pairings:        pairings,
		Schedule:        globals.Schedule,
		Settings:        globals.Settings,
		ScheduleVersion: globals.ScheduleVersion,
		SettingsVersion: globals.SettingsVersion,
		Fingerprints:    fingerprints,
	}, mod, nil
}

// deviceWatcher fingerprints only what feeds the device's effective
// configuration: its name, mode and overrides plus the global documents.
type deviceWatcher struct {
	src Sources
	id  string
}

func (w *deviceWatcher) fingerprint(ctx context.Context) (document.Fingerprint, error) {
	d, err := w.src.Registry.GetDevice(ctx, w.id)
	if err != nil {
		return document.Fingerprint{}, err
	}
	docs, mod, err := documentFingerprints(ctx, w.src.Documents)
	if err != nil {
		return document.Fingerprint{}, err
	}

	hash, err := document.HashValue(map[string]any{
		"name":      d.Name,
		"mode":      d.Mode,
		"overrides": d.Overrides,
		"documents": docs,
	})
	if err != nil {
		return document.Fingerprint{}, err
	}
	return document.Fingerprint{ModTime: laterOf(mod, d.UpdatedAt), Hash: hash}, nil
}

func (w *deviceWatcher) snapshot(ctx context.Context) (string, any, error) {
	res, err := w.src.Resolver.Resolve(ctx, w.id)
	if err != nil {
		return "", nil, err
	}
	return EventDevice, DeviceConfig{
		DeviceID: res.Device.ID,
		Name:     res.Device.Name,
		Mode:     res.Device.Mode,
		Schedule: res.Schedule,
		Settings: res.Settings,
		Meta:     res.Meta,
	}, nil
}

// dedupKey covers the effective output only. Meta versions are left out:
// a global settings edit that an override masks bumps the version but
// not the ETag.
func (w *deviceWatcher) dedupKey(data any) any {
	cfg, ok := data.(DeviceConfig)
	if !ok {
		return data
	}
	return struct {
		DeviceID string
		Name     string
		Mode     device.Mode
		ETag     string
	}{cfg.DeviceID, cfg.Name, cfg.Mode, cfg.Meta.ETag}
}

type pairingWatcher struct {
	src  Sources
	code string

	status *device.PairingStatus
}

func (w *pairingWatcher) fingerprint(ctx context.Context) (document.Fingerprint, error) {
	status, err := w.src.Registry.PollPairing(ctx, w.code)
	if err != nil {
		return document.Fingerprint{}, err
	}
	hash, err := document.HashValue(status)
	if err != nil {
		return document.Fingerprint{}, err
	}
	w.status = status
	return document.Fingerprint{Hash: hash}, nil
}

func (w *pairingWatcher) snapshot(ctx context.Context) (string, any, error) {
	if w.status == nil {
		if _, err := w.fingerprint(ctx); err != nil {
			return "", nil, err
		}
	}
	return EventPair, w.status, nil
}

// terminal maps errors that end a stream to the code sent to the client.
func terminal(err error) (string, bool) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound), errors.Is(err, device.ErrInvalidDevice):
		return CodeDeviceNotFound, true
	case errors.Is(err, device.ErrCodeInvalid):
		return CodeCodeInvalid, true
	default:
		return "", false
	}
}
