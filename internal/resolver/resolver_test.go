package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/kiosk-fleet-core/internal/device"
	"github.com/nerrad567/kiosk-fleet-core/internal/document"
	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/database/dbtest"
	"github.com/nerrad567/kiosk-fleet-core/internal/telemetry"
)

const testID = "dev_0123456789ab"

type fakeDevices struct {
	devices map[string]*device.Device
	err     error
}

func (f *fakeDevices) GetDevice(_ context.Context, id string) (*device.Device, error) {
	if f.err != nil {
		return nil, f.err
	}
	normalized := device.NormalizeID(id)
	if normalized == "" {
		return nil, device.ErrInvalidDevice
	}
	d, ok := f.devices[normalized]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

type fakeDocs struct {
	docs map[document.Type]*document.Document
	err  error
}

func (f *fakeDocs) Active(_ context.Context, t document.Type) (*document.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.docs[t]
	if !ok {
		return nil, document.ErrNotFound
	}
	return doc, nil
}

const globalSchedule = `{"autoPlay":true,"presets":{"monday":[{"start":"08:00","preset":"welcome"}]},"version":3}`
const globalSettings = `{"display":{"brightness":80,"theme":{"accent":"blue","font":"sans"}},"playlist":["a","b"],"volume":40}`

func newFixture(d *device.Device) (*Resolver, *fakeDevices, *fakeDocs) {
	devices := &fakeDevices{devices: map[string]*device.Device{d.ID: d}}
	docs := &fakeDocs{docs: map[document.Type]*document.Document{
		document.TypeSchedule: {Type: document.TypeSchedule, Version: 7, Data: json.RawMessage(globalSchedule), IsActive: true},
		document.TypeSettings: {Type: document.TypeSettings, Version: 2, Data: json.RawMessage(globalSettings), IsActive: true},
	}}
	return New(devices, docs), devices, docs
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("decoding %s: %v", s, err)
	}
	return m
}

const overrideSchedule = `{"autoPlay":false,"presets":{"friday":[{"start":"17:00","preset":"closing"}]},"version":9}`

func TestResolve_AutoModeIgnoresOverrides(t *testing.T) {
	d := &device.Device{
		ID:   testID,
		Mode: device.ModeAuto,
		Overrides: device.Overrides{
			Schedule: json.RawMessage(overrideSchedule),
			Settings: json.RawMessage(`{"volume":5}`),
		},
	}
	r, _, _ := newFixture(d)

	res, err := r.Resolve(context.Background(), testID)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !reflect.DeepEqual(res.Schedule, decode(t, globalSchedule)) {
		t.Errorf("schedule = %v, want global", res.Schedule)
	}
	if !reflect.DeepEqual(res.Settings, decode(t, globalSettings)) {
		t.Errorf("settings = %v, want global", res.Settings)
	}
	want := Meta{
		Mode:            device.ModeAuto,
		ScheduleSource:  SourceGlobal,
		SettingsSource:  SourceGlobal,
		ScheduleVersion: 7,
		SettingsVersion: 2,
		ETag:            res.Meta.ETag,
	}
	if res.Meta != want {
		t.Errorf("meta = %+v, want %+v", res.Meta, want)
	}
	if res.Meta.ETag == "" {
		t.Error("etag is empty")
	}
}

func TestResolve_OverrideMode(t *testing.T) {
	d := &device.Device{
		ID:   testID,
		Mode: device.ModeOverride,
		Overrides: device.Overrides{
			Schedule: json.RawMessage(overrideSchedule),
			Settings: json.RawMessage(`{"display":{"theme":{"accent":"red"}},"playlist":["z"]}`),
		},
	}
	r, _, _ := newFixture(d)

	res, err := r.Resolve(context.Background(), testID)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !reflect.DeepEqual(res.Schedule, decode(t, overrideSchedule)) {
		t.Errorf("schedule = %v, want override verbatim", res.Schedule)
	}
	wantSettings := decode(t, `{"display":{"brightness":80,"theme":{"accent":"red","font":"sans"}},"playlist":["z"],"volume":40}`)
	if !reflect.DeepEqual(res.Settings, wantSettings) {
		t.Errorf("settings = %v, want %v", res.Settings, wantSettings)
	}
	if res.Meta.ScheduleSource != SourceOverride || res.Meta.ScheduleVersion != 9 {
		t.Errorf("schedule meta = %s v%d", res.Meta.ScheduleSource, res.Meta.ScheduleVersion)
	}
	if res.Meta.SettingsSource != SourceMerged {
		t.Errorf("settings source = %s, want merged", res.Meta.SettingsSource)
	}
}

func TestResolve_OverrideModeFallbacks(t *testing.T) {
	tests := []struct {
		name      string
		overrides device.Overrides
	}{
		{name: "no overrides"},
		{
			name:      "invalid schedule shape",
			overrides: device.Overrides{Schedule: json.RawMessage(`{"presets":[]}`)},
		},
		{
			name:      "non-object settings",
			overrides: device.Overrides{Settings: json.RawMessage(`[1,2]`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &device.Device{ID: testID, Mode: device.ModeOverride, Overrides: tt.overrides}
			r, _, _ := newFixture(d)

			res, err := r.Resolve(context.Background(), testID)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if !reflect.DeepEqual(res.Schedule, decode(t, globalSchedule)) {
				t.Errorf("schedule = %v, want global", res.Schedule)
			}
			if !reflect.DeepEqual(res.Settings, decode(t, globalSettings)) {
				t.Errorf("settings = %v, want global", res.Settings)
			}
			if res.Meta.ScheduleSource != SourceGlobal || res.Meta.SettingsSource != SourceGlobal {
				t.Errorf("sources = %s/%s", res.Meta.ScheduleSource, res.Meta.SettingsSource)
			}
		})
	}
}

func TestResolve_CorruptGlobals(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantVersion int
	}{
		{name: "missing presets keeps version", schedule: `{"version":5,"presets":"oops"}`, wantVersion: 5},
		{name: "string version recovered", schedule: `{"version":"4"}`, wantVersion: 4},
		{name: "not an object", schedule: `[1,2,3]`, wantVersion: 1},
		{name: "not json", schedule: `{broken`, wantVersion: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, docs := newFixture(&device.Device{ID: testID, Mode: device.ModeAuto})
			docs.docs[document.TypeSchedule].Data = json.RawMessage(tt.schedule)
			docs.docs[document.TypeSettings].Data = json.RawMessage(`"nope"`)

			res, err := r.Resolve(context.Background(), testID)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}

			want := decode(t, mustJSON(t, document.DefaultSchedule(tt.wantVersion)))
			got := decode(t, mustJSON(t, res.Schedule))
			if !reflect.DeepEqual(got, want) {
				t.Errorf("schedule = %v, want %v", got, want)
			}
			if res.Schedule["autoPlay"] != false {
				t.Error("default schedule must not auto play")
			}
			if len(res.Settings) != 0 {
				t.Errorf("settings = %v, want empty", res.Settings)
			}
			if res.Meta.ScheduleSource != SourceDefault || res.Meta.SettingsSource != SourceDefault {
				t.Errorf("sources = %s/%s, want default", res.Meta.ScheduleSource, res.Meta.SettingsSource)
			}
			if res.Meta.ScheduleVersion != tt.wantVersion {
				t.Errorf("schedule version = %d, want %d", res.Meta.ScheduleVersion, tt.wantVersion)
			}
		})
	}
}

func TestResolve_MissingGlobals(t *testing.T) {
	r, _, docs := newFixture(&device.Device{ID: testID, Mode: device.ModeAuto})
	docs.docs = map[document.Type]*document.Document{}

	res, err := r.Resolve(context.Background(), testID)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Meta.ScheduleVersion != 1 || res.Meta.ScheduleSource != SourceDefault {
		t.Errorf("meta = %+v", res.Meta)
	}
	if len(res.Settings) != 0 {
		t.Errorf("settings = %v, want empty", res.Settings)
	}
}

func TestResolve_Errors(t *testing.T) {
	storageErr := errors.New("disk gone")

	t.Run("unknown device", func(t *testing.T) {
		r, _, _ := newFixture(&device.Device{ID: testID})
		_, err := r.Resolve(context.Background(), "dev_ffffffffffff")
		if !errors.Is(err, device.ErrDeviceNotFound) {
			t.Errorf("error = %v, want ErrDeviceNotFound", err)
		}
		if errors.Is(err, ErrResolveFailed) {
			t.Error("not-found must not be reported as a resolve failure")
		}
	})

	t.Run("malformed device", func(t *testing.T) {
		r, _, _ := newFixture(&device.Device{ID: testID})
		_, err := r.Resolve(context.Background(), "lobby")
		if !errors.Is(err, device.ErrInvalidDevice) {
			t.Errorf("error = %v, want ErrInvalidDevice", err)
		}
	})

	t.Run("device storage failure", func(t *testing.T) {
		r, devices, _ := newFixture(&device.Device{ID: testID})
		devices.err = storageErr
		_, err := r.Resolve(context.Background(), testID)
		if !errors.Is(err, ErrResolveFailed) || !errors.Is(err, storageErr) {
			t.Errorf("error = %v, want ErrResolveFailed wrapping cause", err)
		}
	})

	t.Run("document storage failure", func(t *testing.T) {
		r, _, docs := newFixture(&device.Device{ID: testID})
		docs.err = storageErr
		_, err := r.Resolve(context.Background(), testID)
		if !errors.Is(err, ErrResolveFailed) || !errors.Is(err, storageErr) {
			t.Errorf("error = %v, want ErrResolveFailed wrapping cause", err)
		}
	})
}

func TestEffective_ETagStable(t *testing.T) {
	g := Globals{
		Schedule:       decode(t, globalSchedule),
		ScheduleSource: SourceGlobal,
		Settings:       decode(t, globalSettings),
		SettingsSource: SourceGlobal,
	}

	auto := Effective(&device.Device{ID: testID, Mode: device.ModeAuto}, g)
	again := Effective(&device.Device{ID: "dev_ba9876543210", Mode: device.ModeAuto}, g)
	if auto.Meta.ETag != again.Meta.ETag {
		t.Error("identical effective output produced different etags")
	}

	// An override that merges to the same settings keeps the etag.
	same := Effective(&device.Device{
		ID:        testID,
		Mode:      device.ModeOverride,
		Overrides: device.Overrides{Settings: json.RawMessage(`{"volume":40}`)},
	}, g)
	if same.Meta.ETag != auto.Meta.ETag {
		t.Error("no-op override changed the etag")
	}

	changed := Effective(&device.Device{
		ID:        testID,
		Mode:      device.ModeOverride,
		Overrides: device.Overrides{Settings: json.RawMessage(`{"volume":41}`)},
	}, g)
	if changed.Meta.ETag == auto.Meta.ETag {
		t.Error("different settings produced the same etag")
	}

	// Effective must not write through to the globals.
	changed.Settings["display"].(map[string]any)["brightness"] = 1.0
	if g.Settings["display"].(map[string]any)["brightness"] != 80.0 {
		t.Error("result aliases global settings")
	}
}

// TestResolve_PairTouchResolve walks a display from pairing to its first
// resolution against a real database.
func TestResolve_PairTouchResolve(t *testing.T) {
	ctx := context.Background()
	db := dbtest.OpenSQL(t)
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	registry := device.NewRegistry(device.NewSQLiteRepository(db), device.Options{})
	registry.SetClock(func() time.Time { return now })
	registry.SetCodeGenerator(func() (string, error) { return "482193", nil })
	registry.SetIDGenerator(func() string { return "dev_1a2b3c4d5e6f" })

	store := document.NewStore(db)
	if _, _, err := store.Save(ctx, document.TypeSchedule, json.RawMessage(globalSchedule)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.Save(ctx, document.TypeSettings, json.RawMessage(globalSettings)); err != nil {
		t.Fatal(err)
	}

	code, err := registry.BeginPairing(ctx)
	if err != nil {
		t.Fatalf("BeginPairing() error = %v", err)
	}
	if code.Code != "482193" {
		t.Fatalf("code = %q", code.Code)
	}

	d, err := registry.Claim(ctx, "482193", "Lobby Display")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if d.ID != "dev_1a2b3c4d5e6f" || d.Mode != device.ModeAuto || d.PairedAt == nil || !d.PairedAt.Equal(now) {
		t.Fatalf("claimed device = %+v", d)
	}

	recorder := telemetry.NewRecorder(db, 0)
	seen := now.Add(30 * time.Second)
	payload := telemetry.ExtractPayload(map[string]any{"metrics": map[string]any{"cpuLoad": "55.4"}})
	if ok, err := recorder.Touch(ctx, d.ID, seen, payload); err != nil || !ok {
		t.Fatalf("Touch() = %v, %v", ok, err)
	}

	res, err := New(registry, store).Resolve(ctx, d.ID)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Device.LastSeen != seen.Unix() {
		t.Errorf("lastSeen = %d, want %d", res.Device.LastSeen, seen.Unix())
	}
	if res.Device.Metrics["cpuLoad"] != 55.4 {
		t.Errorf("cpuLoad = %v, want 55.4", res.Device.Metrics["cpuLoad"])
	}
	if !reflect.DeepEqual(res.Schedule, decode(t, globalSchedule)) {
		t.Errorf("schedule = %v, want global", res.Schedule)
	}
	if !reflect.DeepEqual(res.Settings, decode(t, globalSettings)) {
		t.Errorf("settings = %v, want global", res.Settings)
	}
	if res.Meta.Mode != device.ModeAuto || res.Meta.ScheduleVersion != 1 || res.Meta.SettingsVersion != 1 {
		t.Errorf("meta = %+v", res.Meta)
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
