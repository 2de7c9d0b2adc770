// Package metric exposes Prometheus counters for the message pipeline.
package metric

import (
	"context"
	"net/http"
	"time"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set holds the pipeline's counters. All counters are safe for concurrent
// use by handlers under any dispatch strategy.
type Set struct {
	MessagesReceived prometheus.Counter
	MessagesFailed   prometheus.Counter
	RuleMatches      *prometheus.CounterVec
	PointsWritten    prometheus.Counter
	SinkErrors       *prometheus.CounterVec
}

// NewSet creates and registers the counter set.
func NewSet(reg prometheus.Registerer) *Set {
	s := &Set{
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logflux_messages_received_total",
			Help: "Datagrams accepted from the socket.",
		}),
		MessagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logflux_messages_failed_total",
			Help: "Messages that failed anywhere in the handling chain.",
		}),
		RuleMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logflux_rule_matches_total",
			Help: "Rule matches by rule name.",
		}, []string{"rule"}),
		PointsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logflux_points_written_total",
			Help: "Points handed to sinks.",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logflux_sink_errors_total",
			Help: "Batch write failures by sink.",
		}, []string{"sink"}),
	}

	reg.MustRegister(s.MessagesReceived, s.MessagesFailed, s.RuleMatches,
		s.PointsWritten, s.SinkErrors)
	return s
}

// Serve runs a Prometheus scrape endpoint until the context is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, log logger.ILogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("metrics endpoint listening: addr=%s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
