// Package metrics exposes Prometheus counters for the interception
// pipeline. Every error the pipeline swallows to protect the host page is
// surfaced here so silent recovery never means silent loss.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	ShapeMismatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedscope_shape_mismatches_total",
		Help: "Responses whose payload did not match the expected schema path",
	}, []string{"schema"})

	EntriesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedscope_entries_skipped_total",
		Help: "Timeline entries skipped during extraction",
	}, []string{"cause"})

	RecordsExtracted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedscope_records_extracted_total",
		Help: "Domain records extracted from intercepted responses",
	}, []string{"kind"})

	AdmitDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedscope_admit_decisions_total",
		Help: "Dedup gate decisions by outcome",
	}, []string{"outcome"})

	SweepDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feedscope_sweep_deleted_total",
		Help: "Records deleted by the retention sweep",
	})
)

func init() {
	prometheus.MustRegister(ShapeMismatches, EntriesSkipped, RecordsExtracted, AdmitDecisions, SweepDeleted)
}

// StartServer serves /metrics and /health on addr until the context is
// canceled.
func StartServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	server := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	log.Info().Str("addr", addr).Msg("Metrics server started")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Metrics server shutdown failed")
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
