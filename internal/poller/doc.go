// Package poller periodically fetches instance information over REST.
//
// The poller:
//   - Fetches the instance info (with rate limits) on start and every interval
//   - Keeps the latest successful result for health reporting
//   - Passes each result to an optional handler
package poller
