// Package api implements the HTTP REST API and WebSocket server.
//
// This package provides:
//   - REST endpoints to assign shows to player slots and clear them
//   - REST endpoints for show library CRUD and playback history
//   - A WebSocket hub relaying program events (and optionally ticks)
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Routes
//
//	GET    /api/v1/health
//	GET    /api/v1/metrics
//	GET    /api/v1/programs
//	GET    /api/v1/programs/{key}
//	PUT    /api/v1/programs/{key}        {"show": "idle-blink", "options": {...}}
//	DELETE /api/v1/programs/{key}
//	GET    /api/v1/shows
//	POST   /api/v1/shows
//	GET    /api/v1/shows/{id}            id or slug
//	PATCH  /api/v1/shows/{id}
//	DELETE /api/v1/shows/{id}
//	GET    /api/v1/shows/{id}/playbacks
//	GET    /api/v1/ws
//
// # Graceful Degradation
//
// The server operates without MQTT. Slots are still driven through the REST
// API and events still reach WebSocket clients.
package api
