// Package api implements the HTTP REST API and WebSocket server for the AVR
// bridge.
//
// This package provides:
//   - REST endpoints to list, read, and write receiver states
//   - A WebSocket hub streaming every state write on "state.changed"
//   - SSDP discovery of receivers on demand
//   - Prometheus exposition of the bridge counters on /metrics
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Architecture
//
// The server sits beside the bridge loop. Host writes arrive on
// PUT /api/v1/states/{id}; they are stored unacknowledged through
// state.ApplyHostWrite and submitted to the bridge, which encodes them as
// receiver commands. Values confirmed by the receiver flow back through the
// store's watcher and out to WebSocket subscribers.
//
// # Graceful Degradation
//
// History, discovery, metrics, and the WebSocket relay are optional
// dependencies. Endpoints whose dependency is absent answer 503 (or 404 for
// /metrics) while the rest of the API keeps working.
package api
