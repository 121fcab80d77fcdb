package device

import "time"

// PresenceState is a device's derived liveness.
type PresenceState string

// Presence states.
const (
	PresenceOnline    PresenceState = "online"
	PresenceOffline   PresenceState = "offline"
	PresenceNeverSeen PresenceState = "never-seen"
)

// Presence derives liveness from the last heartbeat. A zero lastSeen means
// no heartbeat was ever recorded. Heartbeats from the future count as online.
func Presence(lastSeen, now time.Time, threshold time.Duration) PresenceState {
	if lastSeen.IsZero() {
		return PresenceNeverSeen
	}
	if now.Sub(lastSeen) <= threshold {
		return PresenceOnline
	}
	return PresenceOffline
}

// CountPresence tallies devices by their derived presence. Every state is
// present in the result, zero when no device is in it.
func CountPresence(devices []Device) map[string]int {
	counts := map[string]int{
		string(PresenceOnline):    0,
		string(PresenceOffline):   0,
		string(PresenceNeverSeen): 0,
	}
	for _, d := range devices {
		counts[string(d.Presence)]++
	}
	return counts
}
