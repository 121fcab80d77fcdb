// Package telemetry ingests device heartbeats.
//
// A heartbeat arrives as loosely shaped JSON. ExtractPayload finds the
// status, metrics, errors and offline flag wherever the client put them;
// Sanitize then applies a declarative Schema (aliases, types, clamp
// ranges, rounding, trimming) so that one bad field never rejects the
// whole heartbeat. The same Schema values are printed by kioskctl for
// client authors.
//
// Recorder.Touch writes one heartbeat in a single transaction against a
// single device row: last_seen is set, status is merged field-by-field
// with SQLite json_patch, metrics are replaced, and a history entry is
// appended with FIFO eviction beyond the configured cap. Heartbeats from
// unknown devices return false and write nothing.
package telemetry
