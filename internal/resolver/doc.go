// Package resolver computes the effective configuration of a display.
//
// A device in auto mode receives the global schedule and settings exactly
// as stored. A device in override mode receives its own schedule when one
// is set and passes the shape check, and settings produced by deep-merging
// its partial settings over the global ones.
//
// Corrupt or missing global documents never surface as errors: a broken
// schedule is replaced by [document.DefaultSchedule] carrying whatever
// version could be recovered, and broken settings become an empty object.
//
// The resolver only reads. It holds no cache; every call observes the
// current database state.
package resolver
