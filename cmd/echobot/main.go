// echobot connects to the gateway, prints every message it sees and answers
// "!ping" with "pong".
// Usage: go run ./cmd/echobot --identity echobot [--upload ./cat.png]
//
// Optional environment variables (also read from .env):
//
//	EVANGELINE_TOKEN        - session token sent on authenticated requests
//	EVANGELINE_GATEWAY_URL  - gateway endpoint override
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/evangeline-go/evangeline"
	"github.com/evangeline-go/evangeline/internal/version"
)

func main() {
	identity := flag.String("identity", "echobot", "author name for sent messages")
	gatewayURL := flag.String("gateway", "", "gateway URL (default from EVANGELINE_GATEWAY_URL or the public instance)")
	restURL := flag.String("rest", "", "REST API URL")
	cdnURL := flag.String("cdn", "", "CDN URL")
	upload := flag.String("upload", "", "file to upload as an attachment once connected")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if *gatewayURL == "" {
		*gatewayURL = os.Getenv("EVANGELINE_GATEWAY_URL")
	}

	opts := []evangeline.Option{evangeline.WithLogger(logger)}
	if *gatewayURL != "" {
		opts = append(opts, evangeline.WithGatewayURL(*gatewayURL))
	}
	if *restURL != "" {
		opts = append(opts, evangeline.WithRESTURL(*restURL))
	}
	if *cdnURL != "" {
		opts = append(opts, evangeline.WithCDNURL(*cdnURL))
	}
	if token := os.Getenv("EVANGELINE_TOKEN"); token != "" {
		opts = append(opts, evangeline.WithToken(token))
	}

	if err := evangeline.ValidateIdentity(*identity); err != nil {
		logger.Error("invalid identity", "error", err)
		os.Exit(1)
	}

	bot := evangeline.New(*identity, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var msgCount int

	bot.OnReady(func() {
		logger.Info("connected", "identity", bot.Identity(), version.Attr())
		if *upload != "" {
			// Handlers run one at a time; upload off the dispatch goroutine.
			go uploadAndPost(ctx, bot, *upload, logger)
		}
	})

	bot.OnMessageCreate(func(msg evangeline.Message) {
		msgCount++
		if *verbose {
			data, _ := json.MarshalIndent(msg, "", "  ")
			fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), data)
		} else {
			fmt.Printf("[%s] %s: %s\n", time.Now().Format("15:04:05.000"), msg.Author, msg.Content)
		}

		if msg.Author == bot.Identity() {
			return
		}
		if strings.TrimSpace(msg.Content) == "!ping" {
			go func() {
				if _, err := bot.SendMessage(ctx, "pong"); err != nil {
					logger.Error("failed to send pong", "error", err)
				}
			}()
		}
	})

	bot.OnError(func(err error) {
		logger.Warn("gateway error", "error", err)
	})

	bot.OnClose(func(code int, reason string) {
		logger.Info("disconnected", "code", code, "reason", reason, "messages", msgCount)
		if ctx.Err() == nil {
			stop()
		}
	})

	logger.Info("connecting", "identity", *identity)
	if err := bot.Run(ctx); err != nil {
		logger.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete", "messages", msgCount)
}

func uploadAndPost(ctx context.Context, bot *evangeline.Bot, path string, logger *slog.Logger) {
	f, err := os.Open(path)
	if err != nil {
		logger.Error("failed to open upload", "path", path, "error", err)
		return
	}
	defer f.Close()

	fd, err := bot.UploadAttachment(ctx, filepath.Base(path), f, false)
	if err != nil {
		logger.Error("upload failed", "path", path, "error", err)
		return
	}
	logger.Info("uploaded attachment", "id", fd.ID, "name", fd.Name)

	if _, err := bot.SendMessage(ctx, bot.AttachmentURL(fd.ID)); err != nil {
		logger.Error("failed to post attachment URL", "error", err)
	}
}
