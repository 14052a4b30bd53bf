package main

import (
	"flag"
	"fmt"

	"rdt-over-udp-go/internal/chunker"
	"rdt-over-udp-go/internal/tcpbaseline"
	"rdt-over-udp-go/pkg/logger"
)

const version = "1.0.0"

func main() {
	var (
		peerHost = flag.String("peer-host", "127.0.0.1", "receiver host to connect to")
		peerPort = flag.Int("peer-port", 65432, "receiver port to connect to")
		filePath = flag.String("file", "", "path of the file to send")
		logLevel = flag.String("log-level", "info", "minimum log level: debug, info, warn, error, success")
	)
	flag.Parse()

	if level, err := logger.ParseLevel(*logLevel); err != nil {
		logger.Fatal("%v", err)
	} else {
		logger.SetLevel(level)
	}

	logger.Banner("TCP Baseline - Sender", version)

	if *filePath == "" {
		logger.Fatal("missing required -file argument")
	}

	addr := fmt.Sprintf("%s:%d", *peerHost, *peerPort)
	logger.Info("sending %s to %s over TCP", *filePath, addr)

	chunks, fileErrc := chunker.Stream(*filePath)
	if err := tcpbaseline.Send(addr, chunks); err != nil {
		logger.Fatal("tcp send failed: %v", err)
	}
	if err := <-fileErrc; err != nil {
		logger.Fatal("file read failed: %v", err)
	}

	logger.Success("transfer complete")
}
