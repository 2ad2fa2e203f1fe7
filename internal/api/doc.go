// Package api implements the HTTP REST API and WebSocket server for
// heliplan.
//
// This package provides:
//   - Read endpoints for the live schedule and variable namespaces
//   - Operator endpoints to re-evaluate the plan and fire the closest
//     schedule entry on demand
//   - WebSocket hub streaming activation records and schedule updates
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The server sits beside the plan engine and shares its WebSocket hub:
//
//	engine ──Broadcast──▶ Hub ──▶ subscribed WebSocket clients
//	   ▲                   ▲
//	   │ Enqueue           │ upgrade /ws
//	   └── POST /plan/reevaluate, GET /schedule, ...
//
// Mutating endpoints never call into the engine synchronously; plan
// re-evaluation is queued and handled by the engine's own goroutine, so
// a slow rebuild cannot stall request handling.
//
// # Security
//
// Operators authenticate with POST /auth/login against the statically
// configured credential list and receive a short-lived HS256 token.
// WebSocket connections use single-use tickets to keep tokens out of
// URLs.
package api
