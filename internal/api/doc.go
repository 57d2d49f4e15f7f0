// Package api implements the HTTP REST API and WebSocket server for the keg
// monitor core.
//
// This package provides:
//   - REST endpoints for device registration, lookup and measurements
//   - Device commands (RPC) and manufacturer info routed through the provider registry
//   - The status callback firmware uses to report its state and latest reading
//   - Each device's activity trail of state changes and deletion
//   - User accounts and their API keys
//   - A WebSocket hub that relays device events to subscribed clients
//
// # Authentication
//
// Every protected route resolves a principal once per request. Callers pass a
// base64 principal token ("{kind}|{key}") or a session JWT from
// POST /auth/login, either as a Bearer header or the api_key query parameter.
// Unusable credentials leave the request anonymous and the route answers 401.
// WebSocket connections use single-use tickets so no credential appears in
// the URL.
//
// # Graceful Degradation
//
// Device cloud outages never fail reads: a provider with no answer yields a
// null outcome and the fields it would fill are omitted.
package api
