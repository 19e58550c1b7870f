// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Gateway connects, session closes and events by kind
//   - Heartbeats sent and malformed inbound frames
//   - REST/CDN requests by route and status class
//   - Archive rows written, conflicts and flush failures
package metrics
