package poller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/evangeline-go/evangeline/internal/api"
	"github.com/evangeline-go/evangeline/internal/model"
)

func instanceServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			t.Errorf("path = %q, want /", r.URL.Path)
		}
		if !r.URL.Query().Has("rate_limits") {
			t.Error("rate_limits query not set")
		}
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"instance_name":   "EmreLand",
			"version":         "0.3.3",
			"message_limit":   2048,
			"oprish_url":      "https://example.com",
			"pandemonium_url": "wss://example.com",
			"effis_url":       "https://cdn.example.com",
			"rate_limits":     map[string]any{"oprish": map[string]any{}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestPoller_Poll(t *testing.T) {
	server := instanceServer(t, nil)
	client := api.NewClient(server.URL, "", api.WithTimeout(5*time.Second))

	var got model.InstanceInfo
	handler := InfoHandlerFunc(func(info model.InstanceInfo) error {
		got = info
		return nil
	})

	p := New(Config{Interval: time.Hour, Timeout: 5 * time.Second, RateLimits: true}, client, handler, nil)

	if _, _, ok := p.Latest(); ok {
		t.Fatal("Latest() ok before any poll")
	}

	p.poll()

	if got.InstanceName != "EmreLand" {
		t.Errorf("handler InstanceName = %q, want EmreLand", got.InstanceName)
	}
	info, at, ok := p.Latest()
	if !ok {
		t.Fatal("Latest() not ok after poll")
	}
	if info.Version != "0.3.3" || info.MessageLimit != 2048 {
		t.Errorf("Latest() = %+v", info)
	}
	if at.IsZero() {
		t.Error("Latest() time is zero")
	}
	if len(info.RateLimits) == 0 {
		t.Error("rate limits not decoded")
	}
	if s := p.Stats(); s.Polls != 1 || s.Errors != 0 {
		t.Errorf("Stats() = %+v, want 1 poll 0 errors", s)
	}
}

func TestPoller_StartStop(t *testing.T) {
	var hits atomic.Int32
	server := instanceServer(t, &hits)
	client := api.NewClient(server.URL, "")

	var called atomic.Int32
	handler := InfoHandlerFunc(func(model.InstanceInfo) error {
		called.Add(1)
		return nil
	})

	p := New(Config{Interval: 50 * time.Millisecond, Timeout: 5 * time.Second, RateLimits: true}, client, handler, nil)

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for called.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if called.Load() < 2 {
		t.Errorf("handler called %d times, want >= 2", called.Load())
	}
	if hits.Load() < 2 {
		t.Errorf("server hit %d times, want >= 2", hits.Load())
	}
}

type failingSource struct{}

func (failingSource) GetInstanceInfo(ctx context.Context, rateLimits bool) (*model.InstanceInfo, error) {
	return nil, errors.New("instance unreachable")
}

func TestPoller_Error(t *testing.T) {
	var called atomic.Bool
	handler := InfoHandlerFunc(func(model.InstanceInfo) error {
		called.Store(true)
		return nil
	})

	p := New(Config{Interval: time.Hour}, failingSource{}, handler, nil)
	p.poll()

	if called.Load() {
		t.Error("handler called after failed poll")
	}
	if _, _, ok := p.Latest(); ok {
		t.Error("Latest() ok after failed poll")
	}
	if s := p.Stats(); s.Errors != 1 {
		t.Errorf("Errors = %d, want 1", s.Errors)
	}
}

func TestPoller_HandlerError(t *testing.T) {
	server := instanceServer(t, nil)
	client := api.NewClient(server.URL, "")

	handler := InfoHandlerFunc(func(model.InstanceInfo) error {
		return errors.New("rejected")
	})

	p := New(Config{RateLimits: true}, client, handler, nil)
	p.poll()

	// A failing handler does not discard the fetched info.
	if _, _, ok := p.Latest(); !ok {
		t.Error("Latest() not ok after handler error")
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New(Config{}, failingSource{}, nil, nil)
	def := DefaultConfig()
	if p.cfg.Interval != def.Interval {
		t.Errorf("Interval = %v, want %v", p.cfg.Interval, def.Interval)
	}
	if p.cfg.Timeout != def.Timeout {
		t.Errorf("Timeout = %v, want %v", p.cfg.Timeout, def.Timeout)
	}
}
