package evangeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/evangeline-go/evangeline/internal/api"
	"github.com/evangeline-go/evangeline/internal/auth"
	"github.com/evangeline-go/evangeline/internal/config"
	"github.com/evangeline-go/evangeline/internal/connection"
	"github.com/evangeline-go/evangeline/internal/dispatch"
	"github.com/evangeline-go/evangeline/internal/model"
)

// ErrEmptyContent is returned by SendMessage for an empty message.
var ErrEmptyContent = errors.New("message content is empty")

// Bot is a gateway connection plus a REST client sharing one identity.
// Handlers run sequentially on a single goroutine, in event order.
type Bot struct {
	identity string
	logger   *slog.Logger

	gateway    *connection.Gateway
	rest       *api.Client
	dispatcher *dispatch.Dispatcher

	mu         sync.Mutex
	dispatched bool

	// connMu serialises Connect and the start of Shutdown so a dial in
	// progress finishes before Shutdown closes it.
	connMu       sync.Mutex
	shuttingDown bool
}

// New creates a Bot. The identity is the author name on sent messages; it is
// validated on Connect, not here.
func New(identity string, opts ...Option) *Bot {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.gateway.Identity = identity

	return &Bot{
		identity:   identity,
		logger:     o.logger,
		gateway:    connection.NewGateway(o.gateway, o.logger),
		rest:       api.NewClient(o.restURL, o.cdnURL, o.apiOptions()...),
		dispatcher: dispatch.New(o.logger),
	}
}

// NewFromConfig creates a Bot from a loaded configuration. A token file is
// read when no inline token is set.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Bot, error) {
	opts := []Option{
		WithLogger(logger),
		WithGatewayURL(cfg.API.GatewayURL),
		WithRESTURL(cfg.API.RestURL),
		WithCDNURL(cfg.API.CDNURL),
		WithHTTPTimeout(cfg.API.Timeout),
		WithRetries(cfg.API.MaxRetries, api.DefaultRetryBackoff),
		WithHeartbeatInterval(cfg.Gateway.HeartbeatInterval),
		WithEventBuffer(cfg.Gateway.EventBuffer),
		func(o *options) {
			o.gateway.WriteTimeout = cfg.Gateway.WriteTimeout
			o.gateway.HandshakeTimeout = cfg.Gateway.HandshakeTimeout
		},
	}
	if cfg.Bot.SkipIdentityCheck {
		opts = append(opts, WithoutIdentityCheck())
	}

	creds, err := auth.LoadCredentials(cfg.Bot.Token, cfg.Bot.TokenFile)
	switch {
	case errors.Is(err, auth.ErrNoToken):
	case err != nil:
		return nil, err
	default:
		opts = append(opts, WithToken(creds.Token))
	}

	return New(cfg.Bot.Identity, opts...), nil
}

// Identity returns the bot's author name.
func (b *Bot) Identity() string { return b.identity }

// State returns the gateway connection state.
func (b *Bot) State() State { return b.gateway.State() }

// REST returns the underlying REST and CDN client.
func (b *Bot) REST() *RESTClient { return b.rest }

// OnReady registers a handler called when a gateway session opens.
func (b *Bot) OnReady(fn func()) {
	b.dispatcher.OnReady(func(connection.ReadyEvent) { fn() })
}

// OnMessageCreate registers a handler for inbound messages.
func (b *Bot) OnMessageCreate(fn func(Message)) {
	b.dispatcher.OnMessageCreate(func(ev connection.MessageCreateEvent) { fn(ev.Message) })
}

// OnMessageEvent registers a handler for inbound messages that also receives
// the session ID and receive time.
func (b *Bot) OnMessageEvent(fn func(MessageCreateEvent)) {
	b.dispatcher.OnMessageCreate(fn)
}

// OnError registers a handler for transport failures and malformed frames.
func (b *Bot) OnError(fn func(error)) {
	b.dispatcher.OnError(fn)
}

// OnClose registers a handler called when a gateway session ends.
func (b *Bot) OnClose(fn func(code int, reason string)) {
	b.dispatcher.OnClose(fn)
}

// Connect opens a gateway session. It fails with an *InvalidIdentityError
// before any network activity if the identity is out of bounds, and with
// ErrAlreadyConnected while a session is open. Call it again after OnClose
// to reconnect. It fails with ErrClosing while Shutdown is in progress.
func (b *Bot) Connect(ctx context.Context) error {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	if b.shuttingDown {
		return ErrClosing
	}
	if err := b.gateway.Connect(ctx); err != nil {
		return err
	}
	return b.startDispatch()
}

// Run connects and blocks until ctx is done, then shuts down. It returns the
// Connect error, if any.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.Connect(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return b.Shutdown(context.Background())
}

// Close ends the gateway session. It is a no-op unless connected and is safe
// to call from a handler.
func (b *Bot) Close() error {
	return b.gateway.Close()
}

// Shutdown closes the gateway, waits for the session's final events to reach
// the handlers, and stops dispatching. A Connect in progress is allowed to
// finish and is then closed. It must not be called from a handler.
func (b *Bot) Shutdown(ctx context.Context) error {
	b.connMu.Lock()
	b.shuttingDown = true
	err := b.gateway.Close()
	b.connMu.Unlock()

	defer func() {
		b.connMu.Lock()
		b.shuttingDown = false
		b.connMu.Unlock()
	}()

	if err != nil {
		return err
	}

	select {
	case <-b.gateway.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	b.mu.Lock()
	started := b.dispatched
	b.dispatched = false
	b.mu.Unlock()

	if !started {
		return nil
	}
	if err := b.dispatcher.Stop(ctx); err != nil {
		return err
	}
	b.logger.Debug("bot shut down", "identity", b.identity)
	return nil
}

// SendMessage posts content as the bot's identity and returns the message
// echoed by the server.
func (b *Bot) SendMessage(ctx context.Context, content string) (*Message, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	return b.rest.CreateMessage(ctx, model.MessageCreate{
		Author:  b.identity,
		Content: content,
	})
}

// UploadAttachment uploads content to the attachments bucket.
func (b *Bot) UploadAttachment(ctx context.Context, name string, content io.Reader, spoiler bool) (*FileData, error) {
	if name == "" {
		return nil, errors.New("upload attachment: empty file name")
	}
	return b.rest.UploadAttachment(ctx, api.Upload{
		Name:    name,
		Content: content,
		Spoiler: spoiler,
	})
}

// AttachmentURL returns the public URL of an uploaded attachment.
func (b *Bot) AttachmentURL(id ID) string {
	return b.rest.AttachmentURL(id)
}

func (b *Bot) startDispatch() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dispatched {
		return nil
	}
	if err := b.dispatcher.Start(context.Background(), b.gateway.Events()); err != nil {
		return err
	}
	b.dispatched = true
	return nil
}
