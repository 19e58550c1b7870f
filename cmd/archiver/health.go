package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/evangeline-go/evangeline"
	"github.com/evangeline-go/evangeline/internal/writer"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type statser interface {
	Stats() writer.WriterMetrics
	QueueStats() writer.QueueStats
}

type latestInfo interface {
	Latest() (evangeline.InstanceInfo, time.Time, bool)
}

type healthReport struct {
	Status     string         `json:"status"`
	Components map[string]any `json:"components"`
}

func healthFunc(bot interface{ State() evangeline.State }, db pinger, mw statser, inst latestInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := healthReport{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		state := bot.State()
		health.Components["gateway"] = state.String()
		if state != evangeline.StateOpen {
			health.Status = "degraded"
		}

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["database"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["database"] = "connected"
			}
		}

		if mw != nil {
			stats := mw.Stats()
			queue := mw.QueueStats()
			health.Components["archive"] = map[string]int64{
				"inserts":        stats.Inserts,
				"conflicts":      stats.Conflicts,
				"errors":         stats.Errors,
				"queued":         int64(queue.Len),
				"queue_capacity": int64(queue.Capacity),
			}
		}

		if inst != nil {
			if info, at, ok := inst.Latest(); ok {
				health.Components["instance"] = map[string]string{
					"name":       info.InstanceName,
					"version":    info.Version,
					"fetched_at": at.UTC().Format(time.RFC3339),
				}
			} else {
				health.Components["instance"] = "unknown"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	}
}
