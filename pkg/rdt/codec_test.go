package rdt

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeDataRoundTrip(t *testing.T) {
	payload := []byte("hello over udp")

	frame, err := EncodeData(42, payload)
	if err != nil {
		t.Fatalf("EncodeData failed: %v", err)
	}

	if len(frame) != MSSValue {
		t.Errorf("expected frame length %d, got %d", MSSValue, len(frame))
	}

	decoded, err := DecodeData(frame)
	if err != nil {
		t.Fatalf("DecodeData failed: %v", err)
	}

	if decoded.Seq != 42 {
		t.Errorf("expected seq 42, got %d", decoded.Seq)
	}
	if !bytes.Equal(decoded.Payload, payload) {
		t.Errorf("expected payload %q, got %q", payload, decoded.Payload)
	}
}

func TestEncodeDataRejectsOversizedPayload(t *testing.T) {
	oversized := make([]byte, UDPMaxChunkSize+1)

	_, err := EncodeData(1, oversized)
	if !errors.Is(err, ErrOversizedPayload) {
		t.Errorf("expected ErrOversizedPayload, got %v", err)
	}
}

func TestDecodeDataRejectsWrongLength(t *testing.T) {
	_, err := DecodeData(make([]byte, MSSValue-1))
	if !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestDecodeDataRejectsCorruptedChecksum(t *testing.T) {
	frame, err := EncodeData(7, []byte("payload"))
	if err != nil {
		t.Fatalf("EncodeData failed: %v", err)
	}

	frame[12] ^= 0xFF // flip a byte inside the checksum field

	decoded, err := DecodeData(frame)
	if !errors.Is(err, ErrCorruptedBody) {
		t.Errorf("expected ErrCorruptedBody, got %v", err)
	}
	if decoded.Seq != 7 {
		t.Errorf("expected seq still populated as 7, got %d", decoded.Seq)
	}
	if decoded.Payload != nil {
		t.Errorf("expected nil payload on corrupted body, got %q", decoded.Payload)
	}
}

func TestEncodeDecodeEmptyPayloadSentinel(t *testing.T) {
	frame, err := EncodeData(99, nil)
	if err != nil {
		t.Fatalf("EncodeData failed: %v", err)
	}

	decoded, err := DecodeData(frame)
	if err != nil {
		t.Fatalf("DecodeData failed: %v", err)
	}
	if len(decoded.Payload) != 0 {
		t.Errorf("expected zero-length payload, got %d bytes", len(decoded.Payload))
	}
}

func TestEncodeDecodeAckRoundTrip(t *testing.T) {
	frame := EncodeAck(17, 123.456)
	if len(frame) != AckPacketSize {
		t.Errorf("expected ACK length %d, got %d", AckPacketSize, len(frame))
	}

	decoded, err := DecodeAck(frame)
	if err != nil {
		t.Fatalf("DecodeAck failed: %v", err)
	}
	if decoded.Seq != 17 {
		t.Errorf("expected seq 17, got %d", decoded.Seq)
	}
	if decoded.SendTS != 123.456 {
		t.Errorf("expected timestamp 123.456, got %v", decoded.SendTS)
	}
}

func TestDecodeAckRejectsWrongLength(t *testing.T) {
	_, err := DecodeAck(make([]byte, AckPacketSize+1))
	if !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("expected ErrMalformedFrame, got %v", err)
	}
}
