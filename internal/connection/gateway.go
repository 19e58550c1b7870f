package connection

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/evangeline-go/evangeline/internal/auth"
	"github.com/evangeline-go/evangeline/internal/metrics"
	"github.com/evangeline-go/evangeline/internal/model"
)

var errMissingPayload = errors.New("missing d payload")

// Gateway is a single gateway connection. It is safe for concurrent use.
type Gateway struct {
	cfg    Config
	logger *slog.Logger
	dialer *websocket.Dialer

	// Lives across sessions; the session read loop is the only producer.
	events chan Event

	mu    sync.Mutex
	state State
	sess  *session // the Open (or Closing) session
	last  *session // most recent session, used to order reconnects

	heartbeats atomic.Int32 // running heartbeat goroutines
}

// session is one socket from dial to close.
type session struct {
	id   uuid.UUID
	conn *websocket.Conn

	writeMu sync.Mutex

	hbStop chan struct{}
	hbDone chan struct{}
	hbOnce sync.Once

	done chan struct{} // closed when the read loop exits

	closedByClient bool        // guarded by Gateway.mu
	open           atomic.Bool // for the open-sessions gauge
}

// NewGateway creates a Gateway in the Idle state. Nothing is dialed until Connect.
func NewGateway(cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	return &Gateway{
		cfg:    cfg,
		logger: logger,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		events: make(chan Event, cfg.EventBuffer),
		state:  StateIdle,
	}
}

// Events returns the channel every session's events are delivered on, in arrival order.
// The channel is never closed. Emission blocks while the channel is full.
func (g *Gateway) Events() <-chan Event {
	return g.events
}

// State returns the current lifecycle state.
func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SessionID returns the ID of the Open session, or uuid.Nil.
func (g *Gateway) SessionID() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sess == nil {
		return uuid.Nil
	}
	return g.sess.id
}

// Done returns a channel closed once the most recent session's read loop has
// exited and emitted its ClosedEvent. It is already closed before the first Connect.
func (g *Gateway) Done() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.last == nil {
		return closedChan
	}
	return g.last.done
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Identity returns the configured identity.
func (g *Gateway) Identity() string {
	return g.cfg.Identity
}

// Connect dials the gateway. It fails with an *InvalidIdentityError before any
// network activity if the identity is out of bounds, and with ErrAlreadyConnected
// while a session is Connecting or Open.
func (g *Gateway) Connect(ctx context.Context) error {
	if !g.cfg.SkipIdentityCheck {
		if err := ValidateIdentity(g.cfg.Identity); err != nil {
			metrics.GatewayConnects.WithLabelValues("rejected").Inc()
			return err
		}
	}

	g.mu.Lock()
	switch g.state {
	case StateConnecting, StateOpen:
		g.mu.Unlock()
		return ErrAlreadyConnected
	case StateClosing:
		g.mu.Unlock()
		return ErrClosing
	}
	prevState := g.state
	g.state = StateConnecting
	prev := g.last
	g.mu.Unlock()

	// The previous session's ClosedEvent must be emitted before this session's ReadyEvent.
	if prev != nil {
		select {
		case <-prev.done:
		case <-ctx.Done():
			g.setState(prevState)
			return ctx.Err()
		}
	}

	creds := &auth.Credentials{Token: g.cfg.Token}
	conn, _, err := g.dialer.DialContext(ctx, g.cfg.URL, creds.Header())
	if err != nil {
		g.setState(StateClosed)
		metrics.GatewayConnects.WithLabelValues("error").Inc()
		return &TransportError{Op: "dial", Err: err}
	}

	s := &session{
		id:     uuid.New(),
		conn:   conn,
		hbStop: make(chan struct{}),
		hbDone: make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.open.Store(true)

	g.mu.Lock()
	g.state = StateOpen
	g.sess = s
	g.last = s
	g.mu.Unlock()

	metrics.GatewayConnects.WithLabelValues("ok").Inc()
	metrics.GatewayOpen.Inc()

	g.heartbeats.Add(1)
	go g.heartbeatLoop(s)
	go g.readLoop(s)

	g.logger.Info("gateway connected",
		"url", g.cfg.URL,
		"session_id", s.id,
		"heartbeat_interval", g.cfg.HeartbeatInterval,
	)

	return nil
}

// Close sends a normal close frame and releases the socket. It is a no-op
// unless the gateway is Open. The session's ClosedEvent is emitted by the read loop.
func (g *Gateway) Close() error {
	g.mu.Lock()
	if g.state != StateOpen || g.sess == nil {
		g.mu.Unlock()
		return nil
	}
	s := g.sess
	s.closedByClient = true
	g.state = StateClosing
	g.mu.Unlock()

	s.stopHeartbeat()

	err := s.writeControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		g.cfg.WriteTimeout,
	)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		g.logger.Debug("failed to send close frame", "session_id", s.id, "error", err)
	}
	s.release()

	g.mu.Lock()
	if g.sess == s {
		g.sess = nil
	}
	g.state = StateClosed
	g.mu.Unlock()

	g.logger.Info("gateway closed", "session_id", s.id)
	return nil
}

func (g *Gateway) setState(st State) {
	g.mu.Lock()
	g.state = st
	g.mu.Unlock()
}

// isOpen reports whether s is the gateway's Open session.
func (g *Gateway) isOpen(s *session) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == StateOpen && g.sess == s
}

func (g *Gateway) emit(ev Event) {
	metrics.GatewayEvents.WithLabelValues(string(ev.Kind())).Inc()
	g.events <- ev
}

// readLoop reads frames until the socket fails, then tears the session down.
func (g *Gateway) readLoop(s *session) {
	defer close(s.done)

	g.emit(ReadyEvent{SessionID: s.id})

	for {
		_, data, err := s.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			g.handleDrop(s, err)
			return
		}

		g.handleFrame(s, data, receivedAt)
	}
}

// handleFrame decodes one envelope. Unknown ops are ignored.
func (g *Gateway) handleFrame(s *session, data []byte, receivedAt time.Time) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		g.dropMalformed(s, &MalformedEventError{Data: data, Err: err})
		return
	}

	switch env.Op {
	case OpMessageCreate:
		if len(env.D) == 0 || string(env.D) == "null" {
			g.dropMalformed(s, &MalformedEventError{Op: env.Op, Data: data, Err: errMissingPayload})
			return
		}
		var msg model.Message
		if err := json.Unmarshal(env.D, &msg); err != nil {
			g.dropMalformed(s, &MalformedEventError{Op: env.Op, Data: data, Err: err})
			return
		}
		g.emit(MessageCreateEvent{
			Message:    msg,
			SessionID:  s.id,
			ReceivedAt: receivedAt,
		})

	case OpPong:
		// heartbeat reply

	default:
		g.logger.Debug("ignoring gateway op", "op", env.Op, "session_id", s.id)
	}
}

func (g *Gateway) dropMalformed(s *session, err *MalformedEventError) {
	metrics.MalformedFrames.Inc()
	g.logger.Warn("dropping malformed gateway frame",
		"session_id", s.id,
		"op", err.Op,
		"bytes", len(err.Data),
		"error", err.Err,
	)
	g.emit(ErrorEvent{Err: err})
}

// handleDrop runs once per session when the read loop ends.
func (g *Gateway) handleDrop(s *session, err error) {
	g.mu.Lock()
	byClient := s.closedByClient
	if !byClient && g.sess == s {
		g.sess = nil
		g.state = StateClosed
	}
	g.mu.Unlock()

	if !byClient {
		s.stopHeartbeat()
		s.release()
	}

	var ce *websocket.CloseError
	switch {
	case byClient:
		g.emit(ClosedEvent{Code: websocket.CloseNormalClosure, Reason: "closed by client"})

	case errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure:
		g.logger.Info("gateway closed by server",
			"session_id", s.id,
			"code", ce.Code,
			"reason", ce.Text,
		)
		g.emit(ClosedEvent{Code: ce.Code, Reason: ce.Text})

	default:
		g.logger.Warn("gateway connection lost", "session_id", s.id, "error", err)
		g.emit(ErrorEvent{Err: &TransportError{Op: "read", Err: err}})
		g.emit(ClosedEvent{Code: websocket.CloseAbnormalClosure, Reason: err.Error()})
	}
}

// heartbeatLoop writes a PING frame every interval while s is Open.
func (g *Gateway) heartbeatLoop(s *session) {
	defer func() {
		g.heartbeats.Add(-1)
		close(s.hbDone)
	}()

	ticker := time.NewTicker(g.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.hbStop:
			return
		case <-ticker.C:
			if !g.isOpen(s) {
				return
			}
			if err := s.write(pingFrame, g.cfg.WriteTimeout); err != nil {
				g.logger.Debug("failed to send heartbeat", "session_id", s.id, "error", err)
				continue
			}
			metrics.HeartbeatsSent.Inc()
		}
	}
}

// stopHeartbeat stops the heartbeat goroutine and waits for it to exit.
func (s *session) stopHeartbeat() {
	s.hbOnce.Do(func() { close(s.hbStop) })
	<-s.hbDone
}

// release closes the socket once.
func (s *session) release() {
	if s.open.CompareAndSwap(true, false) {
		metrics.GatewayOpen.Dec()
		s.conn.Close()
	}
}

func (s *session) write(data []byte, timeout time.Duration) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(timeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) writeControl(messageType int, data []byte, timeout time.Duration) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.conn.WriteControl(messageType, data, time.Now().Add(timeout))
}
