// Package version holds the SDK's release identity. The binaries log it on
// start and the REST client reports it in the User-Agent header.
//
// Release builds stamp the values with ldflags:
//
//	go build -ldflags "-X github.com/evangeline-go/evangeline/internal/version.Version=0.4.0 \
//	                   -X github.com/evangeline-go/evangeline/internal/version.Commit=$(git rev-parse --short HEAD)" ./cmd/archiver
package version

import "log/slog"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown" // UTC, RFC 3339
)

// UserAgent is sent with every REST and CDN request.
func UserAgent() string {
	return "evangeline-go/" + Version
}

// Attr groups the build identity under "build" for startup logs.
func Attr() slog.Attr {
	return slog.Group("build",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("built", BuildTime),
	)
}
