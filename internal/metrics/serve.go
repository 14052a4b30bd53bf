package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rdt-over-udp-go/pkg/logger"
)

// Serve registers coll with a dedicated registry and serves /metrics on
// addr until ctx is cancelled. It runs in the caller's goroutine and
// returns once the server shuts down.
func Serve(ctx context.Context, addr string, coll prometheus.Collector) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(coll); err != nil {
		return fmt.Errorf("metrics: register collector: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	logger.Info("metrics listening on %s/metrics", addr)
	err := srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics: serve: %w", err)
	}
	return nil
}
