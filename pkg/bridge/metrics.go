// Copyright 2025-2026 LittleRpg Community

package bridge

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	relayedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcbridge_relayed_messages_total",
		Help: "Messages relayed between chat and game, by direction.",
	}, []string{"direction"})
	blockedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcbridge_blocked_messages_total",
		Help: "Relay messages dropped by the content filter.",
	})
	transactionsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcbridge_transactions_total",
		Help: "Purchase transactions processed.",
	})
	grantsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcbridge_grants_expired_total",
		Help: "Temporary grants removed by reconciliation.",
	})
	consoleFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcbridge_console_failures_total",
		Help: "Failed command-channel batches.",
	})
)

// serveMetrics exposes the Prometheus registry on the admin listener. The
// returned server is closed by the caller on shutdown.
func serveMetrics(addr string, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("Starting metrics listener")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics listener error")
		}
	}()
	return server
}
