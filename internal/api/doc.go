// Package api implements the HTTP REST API and live push endpoints for the
// kiosk fleet core.
//
// This package provides:
//   - Kiosk-facing endpoints for pairing, heartbeats, configuration
//     resolution and the live channel (unauthenticated)
//   - Operator endpoints for fleet management, documents and audit
//     (JWT bearer tokens, role capabilities)
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for production deployments
//
// # Errors
//
// Every failure is returned as {status, code, message}. Domain sentinel
// errors map to stable codes such as "device-not-found" or "code-expired";
// see errors.go for the full table.
//
// # Live channel
//
// GET /api/v1/live streams Server-Sent Events; GET /api/v1/live/ws carries
// the same events over WebSocket. Both accept ?device=ID or ?pair=CODE.
package api
