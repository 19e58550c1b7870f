package evangeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evangeline-go/evangeline/internal/config"
)

func mockGateway(t *testing.T, handler func(*websocket.Conn)) (*httptest.Server, *atomic.Int32) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	var upgrades atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		upgrades.Add(1)
		defer conn.Close()
		handler(conn)
	}))
	return server, &upgrades
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func readUntilClosed(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestBot_SendMessage(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/messages" {
			t.Errorf("request = %s %s, want POST /messages", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write(body)
	}))
	defer server.Close()

	bot := New("evangeline", WithRESTURL(server.URL))

	msg, err := bot.SendMessage(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if gotBody != `{"author":"evangeline","content":"hello"}` {
		t.Errorf("body = %s", gotBody)
	}
	if msg.Author != "evangeline" || msg.Content != "hello" {
		t.Errorf("echoed message = %+v", msg)
	}
}

func TestBot_SendMessage_Empty(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	bot := New("evangeline", WithRESTURL(server.URL))
	if _, err := bot.SendMessage(context.Background(), ""); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("err = %v, want ErrEmptyContent", err)
	}
	if n := requests.Load(); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestBot_SendMessage_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer server.Close()

	bot := New("evangeline", WithRESTURL(server.URL))
	_, err := bot.SendMessage(context.Background(), "hello")

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want *HTTPError", err)
	}
	if string(httpErr.Body) != "slow down" {
		t.Errorf("Body = %q, want slow down", httpErr.Body)
	}
}

func TestBot_InvalidIdentity(t *testing.T) {
	server, upgrades := mockGateway(t, readUntilClosed)
	defer server.Close()

	bot := New("a", WithGatewayURL(wsURL(server)))

	err := bot.Connect(context.Background())
	if !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("err = %v, want ErrInvalidIdentity", err)
	}
	var idErr *InvalidIdentityError
	if !errors.As(err, &idErr) || idErr.Length != 1 {
		t.Errorf("err = %#v, want *InvalidIdentityError with length 1", err)
	}
	if bot.State() != StateIdle {
		t.Errorf("State = %v, want idle", bot.State())
	}
	if n := upgrades.Load(); n != 0 {
		t.Errorf("upgrades = %d, want 0", n)
	}

	if err := bot.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestBot_EndToEnd(t *testing.T) {
	server, upgrades := mockGateway(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"HELLO"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"MESSAGE_CREATE","d":{"author":"a","content":"hi"}}`))
		readUntilClosed(conn)
	})
	defer server.Close()

	bot := New("evangeline", WithGatewayURL(wsURL(server)))

	var mu sync.Mutex
	var log []string
	record := func(s string) {
		mu.Lock()
		log = append(log, s)
		mu.Unlock()
	}
	received := make(chan Message, 1)

	bot.OnReady(func() { record("ready") })
	bot.OnMessageCreate(func(m Message) {
		record("message")
		received <- m
	})
	bot.OnError(func(err error) { record("error: " + err.Error()) })
	bot.OnClose(func(code int, reason string) {
		if code != websocket.CloseNormalClosure {
			t.Errorf("close code = %d, want 1000", code)
		}
		record("close")
	})

	if err := bot.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := bot.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect err = %v, want ErrAlreadyConnected", err)
	}

	select {
	case m := <-received:
		if m.Content != "hi" || m.Author != "a" {
			t.Errorf("message = %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := bot.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	if bot.State() != StateClosed {
		t.Errorf("State = %v, want closed", bot.State())
	}
	if n := upgrades.Load(); n != 1 {
		t.Errorf("upgrades = %d, want 1", n)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"ready", "message", "close"}
	if strings.Join(log, ",") != strings.Join(want, ",") {
		t.Errorf("handler order = %v, want %v", log, want)
	}
}

func TestBot_CloseFromHandler(t *testing.T) {
	server, _ := mockGateway(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"MESSAGE_CREATE","d":{"author":"a","content":"!quit"}}`))
		readUntilClosed(conn)
	})
	defer server.Close()

	bot := New("evangeline", WithGatewayURL(wsURL(server)))

	closed := make(chan int, 1)
	bot.OnMessageCreate(func(m Message) {
		if m.Content == "!quit" {
			bot.Close()
		}
	})
	bot.OnClose(func(code int, reason string) { closed <- code })

	if err := bot.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case code := <-closed:
		if code != websocket.CloseNormalClosure {
			t.Errorf("code = %d, want 1000", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for close")
	}

	bot.Shutdown(context.Background())
}

func TestBot_Run(t *testing.T) {
	server, _ := mockGateway(t, readUntilClosed)
	defer server.Close()

	bot := New("evangeline", WithGatewayURL(wsURL(server)))
	ready := make(chan struct{})
	bot.OnReady(func() { close(ready) })

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- bot.Run(ctx) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for ready")
	}
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestBot_RunFailureStopsDispatch(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(server)
	server.Close()

	tests := []struct {
		name     string
		identity string
		url      string
	}{
		{name: "invalid identity", identity: "a", url: url},
		{name: "dial failure", identity: "evangeline", url: url},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := New(tt.identity, WithGatewayURL(tt.url))

			if err := bot.Run(context.Background()); err == nil {
				t.Fatal("Run() error = nil, want failure")
			}

			bot.mu.Lock()
			dispatched := bot.dispatched
			bot.mu.Unlock()
			if dispatched {
				t.Error("dispatcher left running after failed Run")
			}
		})
	}
}

func TestBot_ShutdownWhileConnecting(t *testing.T) {
	release := make(chan struct{})
	serverDone := make(chan struct{})
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		readUntilClosed(conn)
		close(serverDone)
	}))
	defer server.Close()

	bot := New("evangeline", WithGatewayURL(wsURL(server)))
	closed := make(chan int, 1)
	bot.OnClose(func(code int, reason string) { closed <- code })

	connErr := make(chan error, 1)
	go func() { connErr <- bot.Connect(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for bot.State() != StateConnecting && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if bot.State() != StateConnecting {
		t.Fatalf("State = %v, want connecting", bot.State())
	}

	shutErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutErr <- bot.Shutdown(ctx)
	}()

	select {
	case err := <-shutErr:
		t.Fatalf("Shutdown returned %v before the dial finished", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	if err := <-connErr; err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	select {
	case err := <-shutErr:
		if err != nil {
			t.Fatalf("Shutdown failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown did not return")
	}

	if bot.State() != StateClosed {
		t.Errorf("State = %v, want closed", bot.State())
	}
	select {
	case code := <-closed:
		if code != websocket.CloseNormalClosure {
			t.Errorf("close code = %d, want 1000", code)
		}
	default:
		t.Error("OnClose not called before Shutdown returned")
	}
	select {
	case <-serverDone:
	case <-time.After(2 * time.Second):
		t.Error("server socket left open after Shutdown")
	}
}

func TestBot_ConnectDuringShutdown(t *testing.T) {
	server, upgrades := mockGateway(t, readUntilClosed)
	defer server.Close()

	bot := New("evangeline", WithGatewayURL(wsURL(server)))
	bot.connMu.Lock()
	bot.shuttingDown = true
	bot.connMu.Unlock()

	if err := bot.Connect(context.Background()); !errors.Is(err, ErrClosing) {
		t.Errorf("Connect err = %v, want ErrClosing", err)
	}
	if n := upgrades.Load(); n != 0 {
		t.Errorf("upgrades = %d, want 0", n)
	}
}

func TestBot_UploadAttachment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/attachments" {
			t.Errorf("path = %q, want /attachments", r.URL.Path)
		}
		if r.FormValue("spoiler") != "false" {
			t.Errorf("spoiler = %q, want false", r.FormValue("spoiler"))
		}
		w.Write([]byte(`{"id":99,"name":"a.txt","bucket":"attachments","metadata":{"type":"text"}}`))
	}))
	defer server.Close()

	bot := New("evangeline", WithCDNURL(server.URL))

	fd, err := bot.UploadAttachment(context.Background(), "a.txt", strings.NewReader("data"), false)
	if err != nil {
		t.Fatalf("UploadAttachment failed: %v", err)
	}
	if got, want := bot.AttachmentURL(fd.ID), server.URL+"/attachments/99"; got != want {
		t.Errorf("AttachmentURL = %q, want %q", got, want)
	}

	if _, err := bot.UploadAttachment(context.Background(), "", strings.NewReader("x"), false); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestNewFromConfig(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token")
	if err := os.WriteFile(tokenPath, []byte("file-token\n"), 0600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"author":"evangeline","content":"x"}`))
	}))
	defer server.Close()

	cfg := &config.Config{
		Bot: config.BotConfig{Identity: "evangeline", TokenFile: tokenPath},
		API: config.APIConfig{RestURL: server.URL},
	}
	cfg.ApplyDefaults()

	bot, err := NewFromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	if bot.Identity() != "evangeline" {
		t.Errorf("Identity = %q", bot.Identity())
	}
	if _, err := bot.SendMessage(context.Background(), "x"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if gotAuth != "file-token" {
		t.Errorf("Authorization = %q, want file-token", gotAuth)
	}

	cfg.Bot.TokenFile = filepath.Join(dir, "missing")
	if _, err := NewFromConfig(cfg, nil); err == nil {
		t.Error("expected error for missing token file")
	}
}
