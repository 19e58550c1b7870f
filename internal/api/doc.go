// Package api provides the HTTP client for the REST API (Oprish) and the
// file server (Effis).
//
// Default endpoints:
//   - REST: https://api.eludris.gay
//   - CDN:  https://cdn.eludris.gay
//
// Non-2xx responses are returned as *HTTPError carrying the response body.
// Only GET requests are retried.
package api
