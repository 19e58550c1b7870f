package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/evangeline-go/evangeline/internal/connection"
)

// ErrAlreadyStarted is returned by Start on a running Dispatcher.
var ErrAlreadyStarted = errors.New("dispatcher already started")

// Handler signatures, one per event kind.
type (
	ReadyHandler         func(connection.ReadyEvent)
	MessageCreateHandler func(connection.MessageCreateEvent)
	ErrorHandler         func(error)
	CloseHandler         func(code int, reason string)
)

// Stats contains runtime statistics.
type Stats struct {
	Dispatched    int64
	Ready         int64
	MessageCreate int64
	Errors        int64
	Closed        int64
	Panics        int64
}

// Dispatcher fans gateway events out to handlers. Registration is safe at any
// time; a handler registered while an event is being delivered sees the next one.
type Dispatcher struct {
	logger *slog.Logger

	hmu      sync.RWMutex
	ready    []ReadyHandler
	messages []MessageCreateHandler
	errs     []ErrorHandler
	closes   []CloseHandler

	// Lifecycle
	lmu     sync.Mutex
	events  <-chan connection.Event
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	smu   sync.Mutex
	stats Stats
}

// New creates a Dispatcher with no handlers.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger}
}

// OnReady registers a handler for ReadyEvent.
func (d *Dispatcher) OnReady(fn ReadyHandler) {
	d.hmu.Lock()
	d.ready = append(d.ready, fn)
	d.hmu.Unlock()
}

// OnMessageCreate registers a handler for MessageCreateEvent.
func (d *Dispatcher) OnMessageCreate(fn MessageCreateHandler) {
	d.hmu.Lock()
	d.messages = append(d.messages, fn)
	d.hmu.Unlock()
}

// OnError registers a handler for ErrorEvent.
func (d *Dispatcher) OnError(fn ErrorHandler) {
	d.hmu.Lock()
	d.errs = append(d.errs, fn)
	d.hmu.Unlock()
}

// OnClose registers a handler for ClosedEvent.
func (d *Dispatcher) OnClose(fn CloseHandler) {
	d.hmu.Lock()
	d.closes = append(d.closes, fn)
	d.hmu.Unlock()
}

// Start begins delivering events from the channel.
func (d *Dispatcher) Start(ctx context.Context, events <-chan connection.Event) error {
	d.lmu.Lock()
	defer d.lmu.Unlock()

	if d.running {
		return ErrAlreadyStarted
	}

	var loopCtx context.Context
	loopCtx, d.cancel = context.WithCancel(ctx)
	d.events = events
	d.running = true

	d.wg.Add(1)
	go d.loop(loopCtx)

	d.logger.Debug("event dispatcher started")
	return nil
}

// Stop ends the delivery loop, then delivers any events already buffered in
// the channel. It must not be called from a handler.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.lmu.Lock()
	if !d.running {
		d.lmu.Unlock()
		return nil
	}
	d.running = false
	d.cancel()
	events := d.events
	d.lmu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		d.logger.Warn("event dispatcher stop timed out")
		return ctx.Err()
	}

	d.drain(events)
	d.logger.Debug("event dispatcher stopped")
	return nil
}

// Stats returns current statistics.
func (d *Dispatcher) Stats() Stats {
	d.smu.Lock()
	defer d.smu.Unlock()
	return d.stats
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-d.events:
			if !ok {
				return
			}
			d.Dispatch(ev)
		}
	}
}

func (d *Dispatcher) drain(events <-chan connection.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.Dispatch(ev)
		default:
			return
		}
	}
}

// Dispatch delivers one event to its handlers on the calling goroutine.
func (d *Dispatcher) Dispatch(ev connection.Event) {
	d.hmu.RLock()
	var calls []func()
	switch e := ev.(type) {
	case connection.ReadyEvent:
		for _, fn := range d.ready {
			fn := fn
			calls = append(calls, func() { fn(e) })
		}
	case connection.MessageCreateEvent:
		for _, fn := range d.messages {
			fn := fn
			calls = append(calls, func() { fn(e) })
		}
	case connection.ErrorEvent:
		for _, fn := range d.errs {
			fn := fn
			calls = append(calls, func() { fn(e.Err) })
		}
	case connection.ClosedEvent:
		for _, fn := range d.closes {
			fn := fn
			calls = append(calls, func() { fn(e.Code, e.Reason) })
		}
	default:
		d.logger.Debug("ignoring unknown event", "type", fmt.Sprintf("%T", ev))
	}
	d.hmu.RUnlock()

	d.count(ev)

	for _, call := range calls {
		d.invoke(ev, call)
	}
}

func (d *Dispatcher) invoke(ev connection.Event, call func()) {
	defer func() {
		if r := recover(); r != nil {
			d.smu.Lock()
			d.stats.Panics++
			d.smu.Unlock()
			d.logger.Error("event handler panicked", "kind", ev.Kind(), "panic", r)
		}
	}()
	call()
}

func (d *Dispatcher) count(ev connection.Event) {
	d.smu.Lock()
	defer d.smu.Unlock()

	d.stats.Dispatched++
	switch ev.(type) {
	case connection.ReadyEvent:
		d.stats.Ready++
	case connection.MessageCreateEvent:
		d.stats.MessageCreate++
	case connection.ErrorEvent:
		d.stats.Errors++
	case connection.ClosedEvent:
		d.stats.Closed++
	}
}
