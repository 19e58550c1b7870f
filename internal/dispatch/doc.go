// Package dispatch delivers gateway events to registered handlers.
//
// A Dispatcher runs one goroutine that reads the gateway's event channel and
// invokes handlers sequentially, in arrival order. A handler that panics is
// logged and skipped; later handlers and events are still delivered.
package dispatch
