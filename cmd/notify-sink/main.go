// Command notify-sink is a local receiver for ledger account events. Point
// NOTIFY_WEBHOOK_URL at it to watch the outbox drain during development.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	env "github.com/caarlos0/env/v11"

	"github.com/josh-kwaku/credit-ledger/internal/logging"
)

type sinkConfig struct {
	Port   int    `env:"SINK_PORT" envDefault:"8081"`
	AppEnv string `env:"APP_ENV" envDefault:"development"`
	// FailEvery makes every n-th delivery fail so retry handling can be observed.
	FailEvery int `env:"SINK_FAIL_EVERY" envDefault:"0"`
}

type accountEvent struct {
	EventID   string          `json:"event_id"`
	AccountID string          `json:"account_id"`
	EventType string          `json:"event_type"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func main() {
	cfg, err := env.ParseAs[sinkConfig]()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Init("notify-sink", "info", cfg.AppEnv)

	var received atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			slog.Error("failed to write health response", "error", err)
		}
	})
	mux.HandleFunc("POST /events", func(w http.ResponseWriter, r *http.Request) {
		var ev accountEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			slog.Warn("rejected malformed event", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		n := received.Add(1)
		if cfg.FailEvery > 0 && n%int64(cfg.FailEvery) == 0 {
			slog.Warn("simulating delivery failure", "event_id", ev.EventID)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		slog.Info("event received",
			"event_id", ev.EventID,
			"header_event_id", r.Header.Get("X-Event-ID"),
			"account_id", ev.AccountID,
			"event_type", ev.EventType,
			"actor", ev.Actor,
			"payload", string(ev.Payload),
		)
		w.WriteHeader(http.StatusNoContent)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	slog.Info("notify sink started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
