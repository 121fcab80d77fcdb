// Package live pushes fleet state to long-lived client connections.
//
// Each connection watches exactly one scope:
//
//   - global: the whole fleet (devices, pending pairings, global documents)
//   - device: the effective configuration of one display
//   - pairing: the claim status of one pairing code
//
// A [Stream] drives one connection. It sends a ready event and an initial
// snapshot, then re-fingerprints its scope on a fixed interval. Only a
// change of content hash produces an event; a rewrite that leaves content
// unchanged moves the fingerprint's ModTime and is ignored. Device scope
// additionally drops a rebuilt payload that equals the last one sent.
// A ping is sent whenever the connection has been idle for the ping
// interval.
//
// Streams share nothing mutable. The [Hub] only counts them. Transports
// implement [Emitter]: [SSEEmitter] for Server-Sent Events and [WSEmitter]
// for WebSocket.
package live
