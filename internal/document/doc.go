// Package document stores the versioned global documents every kiosk renders.
//
// Two document types exist: "schedule" (per-weekday presets plus playback
// flags) and "settings" (free-form presentation settings). Each save of
// changed content creates a new version row and, in the same transaction,
// deactivates the previous one, so readers always see exactly one active
// row per type. A partial unique index backs this at the database level.
//
// Content is stored in canonical JSON form (sorted keys, no insignificant
// whitespace). The SHA-256 of the canonical bytes is the document's
// fingerprint; it doubles as the HTTP ETag and as the change signal for
// the live channel. Re-saving identical content keeps the version and
// fingerprint and only bumps updated_at.
//
// Usage:
//
//	store := document.NewStore(db.DB)
//	if err := store.EnsureDefaults(ctx); err != nil {
//	    return err
//	}
//	doc, created, err := store.Save(ctx, document.TypeSettings, raw)
package document
