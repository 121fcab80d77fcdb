// Package device provides the Device Registry for the kiosk fleet.
//
// The registry owns the pairing state machine that turns an anonymous
// display into a managed device, and every configuration mutation on a
// device afterwards (rename, mode, overrides, unpair).
//
// # Pairing
//
// A display asks for a six digit code (BeginPairing) and shows it on
// screen while polling (PollPairing). An operator claims the code with a
// name (Claim). Claiming creates the device and resolves the code in one
// transaction; the resolving update only matches a code that is still
// unclaimed, so two concurrent claims can never both succeed.
//
//	pending ──claim──▶ resolved ──retention──▶ purged
//	   │
//	   └──ttl──▶ expired ──janitor──▶ purged
//
// # Presence
//
// Presence (online, offline, never-seen) is derived from the last
// heartbeat at read time and never stored.
//
// # Events
//
// Every mutation is reported to registered Notifiers. The audit trail and
// the MQTT fleet publisher are wired this way in cmd/kioskd.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo, device.Options{PairingTTL: 15 * time.Minute})
//	registry.SetLogger(log)
//
//	code, _ := registry.BeginPairing(ctx)
//	dev, err := registry.Claim(ctx, code.Code, "Lobby Display")
//
// # Thread Safety
//
// The Registry is safe for concurrent use. It holds no device cache; the
// database is the single source of truth.
package device
