package rdt

import (
	"encoding/binary"
	"math"
	"time"
)

// timeNowSeconds is the wall-clock source used for send timestamps,
// exposed as a var so tests can pin it to reproduce exact timeout
// arithmetic without sleeping.
var timeNowSeconds = func() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// DecodedData is what DecodeData extracts from a DATA frame. Payload is
// nil when the checksum did not verify (ErrCorruptedBody) — the caller
// must not treat a nil Payload as an empty chunk.
type DecodedData struct {
	Seq     uint32
	SendTS  float64
	Payload []byte
}

// EncodeData lays out a DATA frame: [seq:4 BE | ts:8 BE float | checksum:16
// | length:4 BE | payload | padding] to exactly MSSValue bytes. It captures
// the current wall-clock timestamp itself.
func EncodeData(seq uint32, payload []byte) ([]byte, error) {
	if len(payload) > UDPMaxChunkSize {
		return nil, ErrOversizedPayload
	}

	sendTS := timeNowSeconds()
	length := uint32(len(payload))
	sum := checksum(seq, sendTS, length, payload)

	buf := make([]byte, MSSValue)
	binary.BigEndian.PutUint32(buf[0:4], seq)
	binary.BigEndian.PutUint64(buf[4:12], math.Float64bits(sendTS))
	copy(buf[12:12+checksumSize], sum[:])
	binary.BigEndian.PutUint32(buf[28:32], length)
	copy(buf[32:32+length], payload)
	for i := 32 + length; i < MSSValue; i++ {
		buf[i] = ' '
	}
	return buf, nil
}

// DecodeData parses a DATA frame. A wrong-length buffer or an
// out-of-range declared length yields ErrMalformedFrame. A checksum
// mismatch yields ErrCorruptedBody with Seq/SendTS still populated but
// Payload nil — the caller may act on Seq but must not deliver the
// payload.
func DecodeData(buf []byte) (DecodedData, error) {
	if len(buf) != MSSValue {
		return DecodedData{}, ErrMalformedFrame
	}

	seq := binary.BigEndian.Uint32(buf[0:4])
	sendTS := math.Float64frombits(binary.BigEndian.Uint64(buf[4:12]))
	var sum [checksumSize]byte
	copy(sum[:], buf[12:12+checksumSize])
	length := binary.BigEndian.Uint32(buf[28:32])

	if length > UDPMaxChunkSize {
		return DecodedData{}, ErrMalformedFrame
	}

	payload := buf[32 : 32+length]
	if checksum(seq, sendTS, length, payload) != sum {
		return DecodedData{Seq: seq, SendTS: sendTS}, ErrCorruptedBody
	}

	out := make([]byte, length)
	copy(out, payload)
	return DecodedData{Seq: seq, SendTS: sendTS, Payload: out}, nil
}

// EncodeAck lays out an ACK frame: [seq:4 BE | echoed-ts:8 BE float] to
// exactly AckPacketSize bytes.
func EncodeAck(seq uint32, echoedSendTS float64) []byte {
	buf := make([]byte, AckPacketSize)
	binary.BigEndian.PutUint32(buf[0:4], seq)
	binary.BigEndian.PutUint64(buf[4:12], math.Float64bits(echoedSendTS))
	return buf
}

// DecodedAck is what DecodeAck extracts from an ACK frame.
type DecodedAck struct {
	Seq    uint32
	SendTS float64
}

// DecodeAck parses an ACK frame, enforcing the strict length check.
func DecodeAck(buf []byte) (DecodedAck, error) {
	if len(buf) != AckPacketSize {
		return DecodedAck{}, ErrMalformedFrame
	}
	seq := binary.BigEndian.Uint32(buf[0:4])
	ts := math.Float64frombits(binary.BigEndian.Uint64(buf[4:12]))
	return DecodedAck{Seq: seq, SendTS: ts}, nil
}
