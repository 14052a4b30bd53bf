package rdt

import "errors"

// Error taxonomy for the protocol. Frame-level corruption is recovered
// locally by the caller (drop and wait for retransmission); StalledChannel
// and IOFailure are fatal and must be surfaced.
var (
	// ErrMalformedFrame means a DATA or ACK buffer had the wrong length or
	// an unparseable header. The packet must be dropped, no ACK sent.
	ErrMalformedFrame = errors.New("rdt: malformed frame")

	// ErrCorruptedBody means the header parsed but the checksum did not
	// match. The sequence number is still meaningful; the payload is not.
	ErrCorruptedBody = errors.New("rdt: corrupted body")

	// ErrOversizedPayload means the caller handed the sender a chunk
	// longer than UDPMaxChunkSize.
	ErrOversizedPayload = errors.New("rdt: payload exceeds UDPMaxChunkSize")

	// ErrStalledChannel means the receiver saw no datagram for
	// RecvIdleTimeout.
	ErrStalledChannel = errors.New("rdt: stalled channel")

	// ErrIOFailure wraps an underlying socket or filesystem error that is
	// neither a protocol violation nor a timeout. Sender and Receiver wrap
	// the originating error with fmt.Errorf("...: %w", err) against this
	// sentinel so callers can errors.Is(err, ErrIOFailure) regardless of
	// the concrete net/os error underneath.
	ErrIOFailure = errors.New("rdt: i/o failure")
)
