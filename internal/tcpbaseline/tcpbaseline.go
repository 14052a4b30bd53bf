// Package tcpbaseline implements a TCP comparison mode for the same file
// transfer: frames of the same fixed 8000-byte size as the UDP protocol,
// but with only a timestamp and length header (no sequence number or
// checksum), and without a window or ACKs, since TCP already guarantees ordered, lossless delivery.
// It exists to let the two transports be measured against each other.
package tcpbaseline

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net"
	"time"

	"rdt-over-udp-go/pkg/logger"
)

const (
	headerBytes  = 8 + 4 // timestamp float64 + uint32 length
	mssValue     = 8000
	maxChunkSize = mssValue - headerBytes
)

func timeNowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Send opens a TCP connection to addr and streams every chunk from in,
// framed as [timestamp:8 BE float | length:4 BE | chunk | padding] to a
// constant mssValue bytes, relying entirely on TCP for reliability.
func Send(addr string, in <-chan []byte) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("tcpbaseline: dial %s: %w", addr, err)
	}
	defer conn.Close()

	logger.Info("tcp baseline sender connected to %s", addr)

	frame := make([]byte, mssValue)
	for chunk := range in {
		if len(chunk) > maxChunkSize {
			return fmt.Errorf("tcpbaseline: chunk of %d bytes exceeds max %d", len(chunk), maxChunkSize)
		}

		ts := timeNowSeconds()
		length := uint32(len(chunk))

		binary.BigEndian.PutUint64(frame[0:8], math.Float64bits(ts))
		binary.BigEndian.PutUint32(frame[8:12], length)
		copy(frame[headerBytes:headerBytes+int(length)], chunk)
		for i := headerBytes + int(length); i < mssValue; i++ {
			frame[i] = ' '
		}

		if _, err := conn.Write(frame); err != nil {
			return fmt.Errorf("tcpbaseline: write: %w", err)
		}
	}

	return nil
}

// Received is one frame unpacked on the receiving end.
type Received struct {
	SendTS  float64
	RecvTS  time.Time
	Payload []byte
}

// Accept listens on addr, accepts a single connection, and reads
// mssValue-framed chunks until the peer closes the connection, sending
// each to out and then closing it.
func Accept(addr string, out chan<- Received) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("tcpbaseline: listen %s: %w", addr, err)
	}
	defer ln.Close()
	defer close(out)

	logger.Info("tcp baseline receiver listening on %s", addr)

	conn, err := ln.Accept()
	if err != nil {
		return fmt.Errorf("tcpbaseline: accept: %w", err)
	}
	defer conn.Close()

	frame := make([]byte, mssValue)
	for {
		if _, err := io.ReadFull(conn, frame); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return fmt.Errorf("tcpbaseline: read: %w", err)
		}

		ts := math.Float64frombits(binary.BigEndian.Uint64(frame[0:8]))
		length := binary.BigEndian.Uint32(frame[8:12])
		if int(length) > maxChunkSize {
			return fmt.Errorf("tcpbaseline: declared length %d exceeds max %d", length, maxChunkSize)
		}

		payload := make([]byte, length)
		copy(payload, frame[headerBytes:headerBytes+int(length)])

		out <- Received{SendTS: ts, RecvTS: time.Now(), Payload: payload}
	}
}
