package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evangeline-go/evangeline/internal/model"
)

// InfoSource fetches instance information.
type InfoSource interface {
	GetInstanceInfo(ctx context.Context, rateLimits bool) (*model.InstanceInfo, error)
}

// InfoHandler receives fetched instance info.
type InfoHandler interface {
	HandleInfo(info model.InstanceInfo) error
}

// InfoHandlerFunc is a function adapter for InfoHandler.
type InfoHandlerFunc func(model.InstanceInfo) error

func (f InfoHandlerFunc) HandleInfo(info model.InstanceInfo) error {
	return f(info)
}

// Config holds poller configuration.
type Config struct {
	Interval   time.Duration // Poll interval (default: 5m)
	Timeout    time.Duration // Per-request timeout (default: 10s)
	RateLimits bool          // Request the rate limit table
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:   5 * time.Minute,
		Timeout:    10 * time.Second,
		RateLimits: true,
	}
}

// Stats counts poll outcomes.
type Stats struct {
	Polls  int64
	Errors int64
}

// Poller periodically fetches instance info via the REST API.
type Poller struct {
	cfg     Config
	source  InfoSource
	handler InfoHandler
	logger  *slog.Logger

	mu     sync.RWMutex
	latest *model.InstanceInfo
	at     time.Time

	polls  atomic.Int64
	errors atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller. handler may be nil.
func New(cfg Config, source InfoSource, handler InfoHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	return &Poller{
		cfg:     cfg,
		source:  source,
		handler: handler,
		logger:  logger,
		ctx:     context.Background(),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("instance poller started", "interval", p.cfg.Interval)
	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("instance poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Latest returns the most recent successful result and when it was fetched.
// ok is false until a poll succeeds.
func (p *Poller) Latest() (info model.InstanceInfo, at time.Time, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return model.InstanceInfo{}, time.Time{}, false
	}
	return *p.latest, p.at, true
}

// Stats returns poll counters.
func (p *Poller) Stats() Stats {
	return Stats{Polls: p.polls.Load(), Errors: p.errors.Load()}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.poll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll fetches and handles the instance info once.
func (p *Poller) poll() {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	p.polls.Add(1)
	start := time.Now()

	info, err := p.source.GetInstanceInfo(ctx, p.cfg.RateLimits)
	if err != nil {
		p.errors.Add(1)
		p.logger.Warn("failed to poll instance info", "err", err)
		return
	}

	p.mu.Lock()
	p.latest = info
	p.at = time.Now()
	p.mu.Unlock()

	p.logger.Debug("poll complete",
		"instance", info.InstanceName,
		"version", info.Version,
		"duration", time.Since(start),
	)

	if p.handler != nil {
		if err := p.handler.HandleInfo(*info); err != nil {
			p.logger.Warn("instance info handler failed", "err", err)
		}
	}
}
