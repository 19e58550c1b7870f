package connection

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/evangeline-go/evangeline/internal/model"
)

// State is the lifecycle state of a Gateway.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Gateway ops.
const (
	OpMessageCreate = "MESSAGE_CREATE"
	OpPing          = "PING"
	OpPong          = "PONG"
)

// Envelope is the gateway frame format in both directions.
type Envelope struct {
	Op string          `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
}

// pingFrame is written on every heartbeat tick.
var pingFrame = []byte(`{"op":"PING"}`)

// -----------------------------------------------------------------------------
// Events
// -----------------------------------------------------------------------------

// EventKind names an Event variant.
type EventKind string

const (
	KindReady         EventKind = "ready"
	KindMessageCreate EventKind = "messageCreate"
	KindError         EventKind = "error"
	KindClosed        EventKind = "close"
)

// Event is one of ReadyEvent, MessageCreateEvent, ErrorEvent or ClosedEvent.
type Event interface {
	Kind() EventKind
}

// ReadyEvent is emitted once per session, before any other event of that session.
type ReadyEvent struct {
	SessionID uuid.UUID
}

// MessageCreateEvent carries a MESSAGE_CREATE payload.
type MessageCreateEvent struct {
	Message    model.Message
	SessionID  uuid.UUID
	ReceivedAt time.Time // local time the frame was read
}

// ErrorEvent reports a non-fatal fault: a transport failure (followed by a
// ClosedEvent) or a dropped MalformedEventError.
type ErrorEvent struct {
	Err error
}

// ClosedEvent is the last event of a session.
type ClosedEvent struct {
	Code   int
	Reason string
}

func (ReadyEvent) Kind() EventKind         { return KindReady }
func (MessageCreateEvent) Kind() EventKind { return KindMessageCreate }
func (ErrorEvent) Kind() EventKind         { return KindError }
func (ClosedEvent) Kind() EventKind        { return KindClosed }

// -----------------------------------------------------------------------------
// Config
// -----------------------------------------------------------------------------

// DefaultGatewayURL is used when Config.URL is empty.
const DefaultGatewayURL = "wss://ws.eludris.gay/"

// Config configures a Gateway.
type Config struct {
	URL               string        // gateway URL (ws:// or wss://)
	Identity          string        // author name; validated by Connect unless SkipIdentityCheck
	SkipIdentityCheck bool          // accept identities outside [MinIdentityLength, MaxIdentityLength]
	Token             string        // optional Authorization header for the handshake
	HeartbeatInterval time.Duration // PING interval while Open
	WriteTimeout      time.Duration // write deadline for frames
	HandshakeTimeout  time.Duration // dial handshake timeout
	EventBuffer       int           // Events() channel capacity
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:               DefaultGatewayURL,
		HeartbeatInterval: 45 * time.Second,
		WriteTimeout:      5 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		EventBuffer:       256,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.URL == "" {
		c.URL = d.URL
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = d.EventBuffer
	}
	return c
}
