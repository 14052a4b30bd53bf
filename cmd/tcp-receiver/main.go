package main

import (
	"flag"
	"fmt"
	"os"

	"rdt-over-udp-go/internal/tcpbaseline"
	"rdt-over-udp-go/pkg/logger"
)

const version = "1.0.0"

func main() {
	var (
		host     = flag.String("host", "0.0.0.0", "local host to listen on")
		port     = flag.Int("port", 65432, "local TCP port to listen on")
		outPath  = flag.String("out", "", "path to write the received file")
		logLevel = flag.String("log-level", "info", "minimum log level: debug, info, warn, error, success")
	)
	flag.Parse()

	if level, err := logger.ParseLevel(*logLevel); err != nil {
		logger.Fatal("%v", err)
	} else {
		logger.SetLevel(level)
	}

	logger.Banner("TCP Baseline - Receiver", version)

	if *outPath == "" {
		logger.Fatal("missing required -out argument")
	}

	addr := fmt.Sprintf("%s:%d", *host, *port)
	logger.Info("listening on %s, writing to %s", addr, *outPath)

	received := make(chan tcpbaseline.Received)
	acceptErrc := make(chan error, 1)
	go func() {
		acceptErrc <- tcpbaseline.Accept(addr, received)
	}()

	f, err := os.Create(*outPath)
	if err != nil {
		logger.Fatal("failed to create %s: %v", *outPath, err)
	}
	defer f.Close()

	for chunk := range received {
		if _, err := f.Write(chunk.Payload); err != nil {
			logger.Fatal("write failed: %v", err)
		}
	}

	if err := <-acceptErrc; err != nil {
		logger.Fatal("tcp receive failed: %v", err)
	}

	logger.Success("transfer complete, wrote %s", *outPath)
}
