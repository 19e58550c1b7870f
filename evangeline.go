// Package evangeline is a client SDK for Eludris-style chat instances.
//
// A Bot connects to the gateway (Pandemonium) over a WebSocket, delivers
// inbound events to registered handlers, and sends messages and attachments
// through the REST API (Oprish) and the file server (Effis).
//
//	bot := evangeline.New("evangeline")
//	bot.OnMessageCreate(func(m evangeline.Message) {
//		if m.Content == "!ping" {
//			bot.SendMessage(context.Background(), "pong")
//		}
//	})
//	if err := bot.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// Reconnecting is manual: after OnClose fires, call Connect again.
package evangeline

import (
	"github.com/evangeline-go/evangeline/internal/api"
	"github.com/evangeline-go/evangeline/internal/connection"
	"github.com/evangeline-go/evangeline/internal/model"
)

// Payload types.
type (
	Message       = model.Message
	MessageCreate = model.MessageCreate
	ID            = model.ID
	User          = model.User
	Session       = model.Session
	FileData      = model.FileData
	InstanceInfo  = model.InstanceInfo
)

// Gateway types.
type (
	State              = connection.State
	Event              = connection.Event
	MessageCreateEvent = connection.MessageCreateEvent
)

// REST types.
type (
	RESTClient = api.Client
	Upload     = api.Upload
)

// Connection states.
const (
	StateIdle       = connection.StateIdle
	StateConnecting = connection.StateConnecting
	StateOpen       = connection.StateOpen
	StateClosing    = connection.StateClosing
	StateClosed     = connection.StateClosed
)

// Errors returned by Bot methods. Match with errors.Is or errors.As.
var (
	ErrInvalidIdentity  = connection.ErrInvalidIdentity
	ErrAlreadyConnected = connection.ErrAlreadyConnected
	ErrClosing          = connection.ErrClosing
)

type (
	InvalidIdentityError = connection.InvalidIdentityError
	TransportError       = connection.TransportError
	MalformedEventError  = connection.MalformedEventError
	HTTPError            = api.HTTPError
)

// ValidateIdentity reports whether identity is 2-32 characters long.
func ValidateIdentity(identity string) error {
	return connection.ValidateIdentity(identity)
}
