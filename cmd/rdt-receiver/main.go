package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"rdt-over-udp-go/internal/chunker"
	"rdt-over-udp-go/internal/metrics"
	"rdt-over-udp-go/internal/stats"
	"rdt-over-udp-go/pkg/logger"
	"rdt-over-udp-go/pkg/rdt"
)

const version = "1.0.0"

func main() {
	var (
		host        = flag.String("host", "0.0.0.0", "local host to listen on")
		port        = flag.Int("port", 20001, "local UDP port to listen on")
		outPath     = flag.String("out", "", "path to write the received file")
		metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address")
		logLevel    = flag.String("log-level", "info", "minimum log level: debug, info, warn, error, success")
	)
	flag.Parse()

	if level, err := logger.ParseLevel(*logLevel); err != nil {
		logger.Fatal("%v", err)
	} else {
		logger.SetLevel(level)
	}

	logger.Banner("RDT over UDP - Receiver", version)

	if *outPath == "" {
		logger.Fatal("missing required -out argument")
	}

	transferID := stats.NewTransferID()
	logger.Info("transfer %s: receiving on %s:%d, writing to %s", transferID, *host, *port, *outPath)

	collector := metrics.NewTransfer("receiver", transferID.String())
	timing := stats.NewCollector()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, *metricsAddr, collector); err != nil {
				logger.Error("metrics server stopped: %v", err)
			}
		}()
	}

	receiver, err := rdt.NewReceiver(*host, *port)
	if err != nil {
		logger.Fatal("failed to start receiver: %v", err)
	}
	receiver.SetInstrumentation(collector)

	delivered := make(chan rdt.DeliveredChunk)
	runErrc := make(chan error, 1)
	go func() {
		runErrc <- receiver.Run(delivered)
	}()

	sinkErrc := make(chan error, 1)
	instrumented := make(chan rdt.DeliveredChunk)
	go func() {
		defer close(instrumented)
		for chunk := range delivered {
			collector.AddBytesDelivered(len(chunk.Payload))
			// Pairs mirror calculate_avg_and_total_time's send/receive
			// timestamps: one chunk contributes one round-trip sample.
			timing.Record(chunk.SendTS)
			timing.Record(float64(chunk.RecvTS.UnixNano()) / 1e9)
			instrumented <- chunk
		}
	}()
	go func() {
		sinkErrc <- chunker.Sink(*outPath, instrumented)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-runErrc:
		if err != nil {
			logger.Fatal("receive failed: %v", err)
		}
		if err := <-sinkErrc; err != nil {
			logger.Fatal("writing file failed: %v", err)
		}
		avgMs, totalMs := timing.Summary()
		collector.SetTiming(avgMs, totalMs)
		logger.Success("transfer %s complete, wrote %s, %.2fms total, %.2fms avg transit", transferID, *outPath, totalMs, avgMs)
	case sig := <-sigChan:
		logger.Warn("received signal: %v, aborting receive", sig)
		os.Exit(1)
	}
}
