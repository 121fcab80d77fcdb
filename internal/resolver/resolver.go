package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/kiosk-fleet-core/internal/device"
	"github.com/nerrad567/kiosk-fleet-core/internal/document"
)

// Source says where an effective document came from.
type Source string

// Document sources reported in Meta.
const (
	SourceGlobal   Source = "global"
	SourceOverride Source = "override"
	SourceMerged   Source = "merged"
	SourceDefault  Source = "default"
)

// Logger defines the logging interface used by the Resolver.
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

// DeviceSource looks devices up by ID. *device.Registry implements it.
type DeviceSource interface {
	GetDevice(ctx context.Context, id string) (*device.Device, error)
}

// DocumentSource returns active global documents. *document.Store implements it.
type DocumentSource interface {
	Active(ctx context.Context, t document.Type) (*document.Document, error)
}

// Meta describes how a Result was produced.
type Meta struct {
	Mode            device.Mode `json:"mode"`
	ScheduleSource  Source      `json:"scheduleSource"`
	SettingsSource  Source      `json:"settingsSource"`
	ScheduleVersion int         `json:"scheduleVersion"`
	SettingsVersion int         `json:"settingsVersion"`

	// ETag is a content hash of the effective schedule and settings.
	ETag string `json:"etag"`
}

// Result is the effective configuration of one device.
type Result struct {
	Device   *device.Device `json:"device"`
	Schedule map[string]any `json:"schedule"`
	Settings map[string]any `json:"settings"`
	Meta     Meta           `json:"meta"`
}

// Globals are the decoded global documents a resolution starts from.
type Globals struct {
	Schedule        map[string]any
	ScheduleSource  Source
	ScheduleVersion int

	Settings        map[string]any
	SettingsSource  Source
	SettingsVersion int
}

// Resolver merges global documents with device overrides.
type Resolver struct {
	devices DeviceSource
	docs    DocumentSource
	logger  Logger
}

// New creates a resolver.
func New(devices DeviceSource, docs DocumentSource) *Resolver {
	return &Resolver{devices: devices, docs: docs, logger: noopLogger{}}
}

// SetLogger sets the logger for the resolver.
func (r *Resolver) SetLogger(logger Logger) {
	r.logger = logger
}

// Resolve returns the effective configuration of deviceID.
//
// device.ErrInvalidDevice and device.ErrDeviceNotFound are returned
// unchanged; any other failure wraps ErrResolveFailed.
func (r *Resolver) Resolve(ctx context.Context, deviceID string) (*Result, error) {
	d, err := r.devices.GetDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, device.ErrInvalidDevice) || errors.Is(err, device.ErrDeviceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: loading device: %w", ErrResolveFailed, err)
	}

	globals, err := r.Globals(ctx)
	if err != nil {
		return nil, err
	}
	return Effective(d, globals), nil
}

// Globals loads and repairs the active global documents.
func (r *Resolver) Globals(ctx context.Context) (Globals, error) {
	var g Globals

	schedule, err := r.active(ctx, document.TypeSchedule)
	if err != nil {
		return g, err
	}
	g.Schedule, g.ScheduleSource, g.ScheduleVersion = r.globalSchedule(schedule)

	settings, err := r.active(ctx, document.TypeSettings)
	if err != nil {
		return g, err
	}
	g.Settings, g.SettingsSource, g.SettingsVersion = r.globalSettings(settings)

	return g, nil
}

// active returns nil without error when no document of type t exists.
func (r *Resolver) active(ctx context.Context, t document.Type) (*document.Document, error) {
	doc, err := r.docs.Active(ctx, t)
	if errors.Is(err, document.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s: %w", ErrResolveFailed, t, err)
	}
	return doc, nil
}

func (r *Resolver) globalSchedule(doc *document.Document) (map[string]any, Source, int) {
	if doc == nil {
		return document.DefaultSchedule(1), SourceDefault, 1
	}

	v, err := doc.Decode()
	if err == nil && document.ValidSchedule(v) {
		return v.(map[string]any), SourceGlobal, doc.Version
	}

	version := document.ScheduleVersion(v)
	r.logger.Warn("global schedule is corrupt, substituting default",
		"stored_version", doc.Version, "recovered_version", version)
	return document.DefaultSchedule(version), SourceDefault, version
}

func (r *Resolver) globalSettings(doc *document.Document) (map[string]any, Source, int) {
	if doc == nil {
		return document.DefaultSettings(), SourceDefault, 0
	}

	v, err := doc.Decode()
	if obj, ok := v.(map[string]any); err == nil && ok {
		return obj, SourceGlobal, doc.Version
	}

	r.logger.Warn("global settings are corrupt, substituting empty settings",
		"stored_version", doc.Version)
	return document.DefaultSettings(), SourceDefault, 0
}

// Effective applies d's mode and overrides to g. It does no I/O.
func Effective(d *device.Device, g Globals) *Result {
	res := &Result{
		Device:   d,
		Schedule: cloneMap(g.Schedule),
		Settings: cloneMap(g.Settings),
		Meta: Meta{
			Mode:            d.Mode,
			ScheduleSource:  g.ScheduleSource,
			SettingsSource:  g.SettingsSource,
			ScheduleVersion: g.ScheduleVersion,
			SettingsVersion: g.SettingsVersion,
		},
	}

	if d.Mode == device.ModeOverride {
		if schedule, ok := scheduleOverride(d.Overrides.Schedule); ok {
			res.Schedule = schedule
			res.Meta.ScheduleSource = SourceOverride
			res.Meta.ScheduleVersion = document.ScheduleVersion(schedule)
		}
		if settings, ok := settingsOverride(d.Overrides.Settings); ok {
			res.Settings = DeepMerge(res.Settings, settings)
			res.Meta.SettingsSource = SourceMerged
		}
	}

	res.Meta.ETag = ETag(res.Schedule, res.Settings)
	return res
}

// ETag hashes an effective schedule and settings pair.
func ETag(schedule, settings map[string]any) string {
	tag, err := document.HashValue(map[string]any{
		"schedule": schedule,
		"settings": settings,
	})
	if err != nil {
		// Decoded JSON always re-encodes.
		return ""
	}
	return tag
}

func scheduleOverride(raw json.RawMessage) (map[string]any, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || !document.ValidSchedule(v) {
		return nil, false
	}
	return v.(map[string]any), true
}

func settingsOverride(raw json.RawMessage) (map[string]any, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return cloneValue(m).(map[string]any)
}
