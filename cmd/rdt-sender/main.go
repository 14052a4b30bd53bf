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
		localPort   = flag.Int("local-port", 0, "local UDP port to bind (0 picks an ephemeral port)")
		peerHost    = flag.String("peer-host", "127.0.0.1", "receiver host to send to")
		peerPort    = flag.Int("peer-port", 20001, "receiver port to send to")
		filePath    = flag.String("file", "", "path of the file to send")
		metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address")
		logLevel    = flag.String("log-level", "info", "minimum log level: debug, info, warn, error, success")
	)
	flag.Parse()

	if level, err := logger.ParseLevel(*logLevel); err != nil {
		logger.Fatal("%v", err)
	} else {
		logger.SetLevel(level)
	}

	logger.Banner("RDT over UDP - Sender", version)

	if *filePath == "" {
		logger.Fatal("missing required -file argument")
	}

	transferID := stats.NewTransferID()
	logger.Info("transfer %s: sending %s to %s:%d", transferID, *filePath, *peerHost, *peerPort)

	collector := metrics.NewTransfer("sender", transferID.String())
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

	chunks, fileErrc := chunker.Stream(*filePath)
	instrumented := instrumentChunks(chunks, collector)

	sender, err := rdt.NewSender(*localPort, *peerHost, *peerPort, instrumented)
	if err != nil {
		logger.Fatal("failed to start sender: %v", err)
	}
	sender.SetInstrumentation(collector)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	timing.RecordNow()

	resultChan := make(chan result, 1)
	go func() {
		retransmissions, err := sender.Run()
		resultChan <- result{retransmissions, err}
	}()

	select {
	case res := <-resultChan:
		timing.RecordNow()
		collector.SetRetransmissions(res.retransmissions)
		if res.err != nil {
			logger.Fatal("transfer failed: %v", res.err)
		}
		if err := <-fileErrc; err != nil {
			logger.Fatal("file read failed: %v", err)
		}
		avgMs, totalMs := timing.Summary()
		collector.SetTiming(avgMs, totalMs)
		logger.Success("transfer %s complete, %d retransmissions, %.2fms total, %.2fms avg", transferID, res.retransmissions, totalMs, avgMs)
	case sig := <-sigChan:
		logger.Warn("received signal: %v, aborting transfer", sig)
		os.Exit(1)
	}
}

type result struct {
	retransmissions int
	err             error
}

// instrumentChunks wraps a chunk source so every chunk handed to the
// sender is also counted toward the sent-packet metric.
func instrumentChunks(in <-chan []byte, collector *metrics.Transfer) <-chan []byte {
	out := make(chan []byte)
	go func() {
		defer close(out)
		for chunk := range in {
			collector.AddPacketSent()
			out <- chunk
		}
	}()
	return out
}
