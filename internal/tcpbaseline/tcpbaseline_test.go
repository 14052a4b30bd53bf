package tcpbaseline

import (
	"bytes"
	"net"
	"testing"
	"time"
)

func TestSendAcceptRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve a port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	received := make(chan Received)
	acceptErrc := make(chan error, 1)
	go func() {
		acceptErrc <- Accept(addr, received)
	}()

	time.Sleep(50 * time.Millisecond) // let Accept's listener come up

	chunks := make(chan []byte)
	go func() {
		defer close(chunks)
		chunks <- []byte("first chunk")
		chunks <- []byte("second chunk")
	}()

	if err := Send(addr, chunks); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	var got [][]byte
	for r := range received {
		got = append(got, r.Payload)
	}

	if err := <-acceptErrc; err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(got))
	}
	if !bytes.Equal(got[0], []byte("first chunk")) {
		t.Errorf("expected first chunk %q, got %q", "first chunk", got[0])
	}
	if !bytes.Equal(got[1], []byte("second chunk")) {
		t.Errorf("expected second chunk %q, got %q", "second chunk", got[1])
	}
}

func TestSendRejectsOversizedChunk(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve a port: %v", err)
	}
	addr := ln.Addr().String()

	received := make(chan Received)
	go func() {
		Accept(addr, received)
	}()
	go func() {
		for range received {
		}
	}()

	time.Sleep(50 * time.Millisecond)

	chunks := make(chan []byte, 1)
	chunks <- make([]byte, maxChunkSize+1)
	close(chunks)

	if err := Send(addr, chunks); err == nil {
		t.Error("expected an error for an oversized chunk")
	}
}
