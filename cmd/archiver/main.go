// archiver connects to the gateway as a bot and archives every message it
// sees to PostgreSQL.
// Usage: go run ./cmd/archiver --config configs/archiver.example.yaml
//
// Environment variables referenced by the config (e.g. ${EVANGELINE_TOKEN},
// ${ARCHIVE_DB_PASSWORD}) may also be supplied through a .env file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/evangeline-go/evangeline"
	"github.com/evangeline-go/evangeline/internal/config"
	"github.com/evangeline-go/evangeline/internal/database"
	"github.com/evangeline-go/evangeline/internal/metrics"
	"github.com/evangeline-go/evangeline/internal/poller"
	"github.com/evangeline-go/evangeline/internal/version"
	"github.com/evangeline-go/evangeline/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/archiver.example.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting archiver", version.Attr(), "config", *configPath)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("archiver failed", "error", err)
		os.Exit(1)
	}
	logger.Info("archiver stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	bot, err := evangeline.NewFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}
	logger.Info("bot configured",
		"identity", bot.Identity(),
		"gateway", cfg.API.GatewayURL,
		"rest", bot.REST().RestURL(),
		"cdn", bot.REST().CDNURL(),
	)

	// Left nil when archiving is disabled; /health then omits them.
	var (
		db      pinger
		archive statser
	)
	if cfg.Archive.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}

		queue := writer.NewQueue[evangeline.MessageCreateEvent](cfg.Archive.QueueSize)
		mw := writer.NewMessageWriter(writer.WriterConfig{
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: cfg.Archive.FlushInterval,
		}, queue, pool, logger)
		db, archive = pool, mw

		bot.OnMessageEvent(func(ev evangeline.MessageCreateEvent) {
			if !queue.Push(ev) {
				logger.Warn("archive queue closed, dropping message", "author", ev.Message.Author)
				return
			}
			metrics.ArchiveQueueDepth.Set(float64(queue.Len()))
		})

		// Stopped explicitly after the bot so queued messages are flushed.
		if err := mw.Start(context.Background()); err != nil {
			return fmt.Errorf("start writer: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			queue.Close()
			if err := mw.Stop(stopCtx); err != nil {
				logger.Error("writer stop failed", "error", err)
			}
		}()
	}

	instance := poller.New(poller.Config{
		Interval:   cfg.Instance.PollInterval,
		Timeout:    cfg.Instance.PollTimeout,
		RateLimits: true,
	}, bot.REST(), poller.InfoHandlerFunc(func(info evangeline.InstanceInfo) error {
		logger.Debug("instance info",
			"instance", info.InstanceName,
			"version", info.Version,
			"message_limit", info.MessageLimit,
		)
		return nil
	}), logger)
	if err := instance.Start(ctx); err != nil {
		return fmt.Errorf("start instance poller: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := instance.Stop(stopCtx); err != nil {
			logger.Error("instance poller stop failed", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	// The gateway does not reconnect by itself; a lost session ends the
	// process so the supervisor restarts it.
	lost := make(chan error, 1)
	bot.OnReady(func() {
		logger.Info("gateway ready", "identity", bot.Identity())
	})
	bot.OnError(func(err error) {
		logger.Warn("gateway error", "error", err)
	})
	bot.OnClose(func(code int, reason string) {
		if gctx.Err() != nil {
			return
		}
		select {
		case lost <- fmt.Errorf("gateway closed: %d %s", code, reason):
		default:
		}
	})

	health := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           newHealthHandler(cfg.Metrics.Path, bot, db, archive, instance),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := health.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := bot.Connect(gctx); err != nil {
			return fmt.Errorf("connect gateway: %w", err)
		}

		var err error
		select {
		case <-gctx.Done():
		case err = <-lost:
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if serr := bot.Shutdown(shutdownCtx); serr != nil {
			logger.Error("bot shutdown failed", "error", serr)
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return health.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newHealthHandler serves /health and the Prometheus metrics endpoint.
func newHealthHandler(metricsPath string, bot interface{ State() evangeline.State }, db pinger, mw statser, inst latestInfo) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.Handler())
	mux.HandleFunc("/health", healthFunc(bot, db, mw, inst))
	return mux
}
