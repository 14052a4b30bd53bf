package rdt

import (
	"fmt"
	"net"
	"time"

	"rdt-over-udp-go/pkg/logger"
)

// ChunkSource is the lazy, finite stream of payload chunks the Sender
// drains. The caller closes it once the last chunk has been sent; each
// chunk must be at most UDPMaxChunkSize bytes.
type ChunkSource <-chan []byte

// Instrumentation receives optional observer callbacks for events that
// happen deep inside Run's loops, where a caller sitting on the chunk
// channel can't see them. A nil Instrumentation is never installed;
// Sender and Receiver fall back to a no-op implementation instead.
type Instrumentation interface {
	AddAckReceived()
	AddMalformedDrop()
	AddCorruptedDrop()
}

type noopInstrumentation struct{}

func (noopInstrumentation) AddAckReceived()   {}
func (noopInstrumentation) AddMalformedDrop() {}
func (noopInstrumentation) AddCorruptedDrop() {}

// Sender drives a fixed-size sliding window of DATA packets toward a peer,
// retransmitting on a per-packet timer, until the end-of-stream sentinel
// has been acknowledged and the window has drained.
type Sender struct {
	conn   *net.UDPConn
	peer   *net.UDPAddr
	chunks ChunkSource
	instr  Instrumentation

	window    []*WindowEntry
	nextSeq   uint32
	exhausted bool
	sentinel  bool

	retransmissions int
}

// SetInstrumentation installs an observer for ACK-received events. Must be
// called before Run; a nil instr restores the no-op default.
func (s *Sender) SetInstrumentation(instr Instrumentation) {
	if instr == nil {
		instr = noopInstrumentation{}
	}
	s.instr = instr
}

// NewSender binds a UDP socket on localPort and prepares to stream chunks
// to peerHost:peerPort. A localPort of 0 picks an ephemeral port.
func NewSender(localPort int, peerHost string, peerPort int, chunks ChunkSource) (*Sender, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: localPort})
	if err != nil {
		return nil, fmt.Errorf("rdt: sender failed to bind UDP socket: %w: %w", ErrIOFailure, err)
	}

	peerAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", peerHost, peerPort))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rdt: sender failed to resolve peer address: %w: %w", ErrIOFailure, err)
	}

	logger.Info("sender bound on %s, target %s", conn.LocalAddr(), peerAddr)

	return &Sender{
		conn:   conn,
		peer:   peerAddr,
		chunks: chunks,
		instr:  noopInstrumentation{},
	}, nil
}

// Run performs the transfer and returns the count of retransmissions
// performed. It terminates once the window has drained after the input
// stream was exhausted and the end-of-stream sentinel was acknowledged.
func (s *Sender) Run() (int, error) {
	defer s.conn.Close()

	s.refill()

	for len(s.window) > 0 {
		if head := s.window[0]; head.State == Waiting {
			if err := s.transmit(head); err != nil {
				logger.Error("sender transmit failed: %v", err)
				return s.retransmissions, err
			}
		}

		if err := s.waitPhase(); err != nil {
			logger.Error("sender wait phase failed: %v", err)
			return s.retransmissions, err
		}

		s.slide()
		s.refill()
	}

	logger.Success("sender finished, %d retransmissions", s.retransmissions)
	return s.retransmissions, nil
}

// transmit encodes and sends one entry, applying the retransmission
// counting rule from the reference implementation: the counter increments
// based on the entry's state at the moment of the send call, so the first
// send of an entry is increment-free and every subsequent send counts.
func (s *Sender) transmit(e *WindowEntry) error {
	if e.State == Sent {
		s.retransmissions++
		logger.Debug("retransmitting seq %d (%d total)", e.Seq, s.retransmissions)
	}

	frame, err := EncodeData(e.Seq, e.Payload)
	if err != nil {
		// OversizedPayload is a caller programming error. refill() does not
		// check chunk size, so a chunk longer than UDPMaxChunkSize surfaces
		// here on its entry's first send and Run returns the error.
		return err
	}

	if _, err := s.conn.WriteToUDP(frame, s.peer); err != nil {
		return fmt.Errorf("rdt: sender write failed: %w: %w", ErrIOFailure, err)
	}

	e.markSent(time.Now())
	return nil
}

// waitPhase blocks on the socket with a receive timeout of Timeout,
// processing ACKs and driving retransmission, until no entry remains in
// state Sent.
func (s *Sender) waitPhase() error {
	buf := make([]byte, AckPacketSize+1)

	for s.anySent() {
		s.conn.SetReadDeadline(time.Now().Add(Timeout))
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				s.retransmitExpired()
				s.slide()
				s.refill()
				continue
			}
			return fmt.Errorf("rdt: sender read failed: %w: %w", ErrIOFailure, err)
		}

		ack, err := DecodeAck(buf[:n])
		if err != nil {
			continue // malformed ACK datagram: discard silently
		}
		s.instr.AddAckReceived()

		s.applyAck(ack.Seq)
		s.slide()
		s.refill()
	}

	return nil
}

func (s *Sender) anySent() bool {
	for _, e := range s.window {
		if e.State == Sent {
			return true
		}
	}
	return false
}

// applyAck marks the entry with the matching sequence number as Acked.
// ACKs whose sequence is not present in the current window (late or
// duplicate after a slide) are ignored silently.
func (s *Sender) applyAck(seq uint32) {
	for _, e := range s.window {
		if e.Seq == seq {
			e.State = Acked
			return
		}
	}
}

// retransmitExpired resends every Sent entry whose last send is older than
// Timeout.
func (s *Sender) retransmitExpired() {
	threshold := time.Now().Add(-Timeout)
	for _, e := range s.window {
		if e.State == Sent && e.lastSend.Before(threshold) {
			// transmit() errors here are swallowed the way the reference
			// sender's best-effort resend loop does; a persistent socket
			// failure will surface on the next explicit write or read.
			_ = s.transmit(e)
		}
	}
}

// slide removes Acked entries from the left edge of the window.
func (s *Sender) slide() {
	i := 0
	for i < len(s.window) && s.window[i].State == Acked {
		i++
	}
	s.window = s.window[i:]
}

// refill appends new Waiting entries from the chunk source until the
// window reaches WindowSize or the input is exhausted. Exhaustion appends
// exactly one empty-payload sentinel entry and then produces no more.
func (s *Sender) refill() {
	for len(s.window) < WindowSize {
		if s.exhausted {
			return
		}

		chunk, ok := <-s.chunks
		if !ok {
			s.exhausted = true
			if !s.sentinel {
				s.sentinel = true
				s.window = append(s.window, s.newEntry(nil))
			}
			return
		}

		s.window = append(s.window, s.newEntry(chunk))
	}
}

// newEntry allocates the next sequence number in order and wraps chunk in
// a fresh Waiting entry. A nil chunk produces the zero-length end-of-stream
// sentinel.
func (s *Sender) newEntry(chunk []byte) *WindowEntry {
	e := newEntry(s.nextSeq)
	e.Payload = chunk
	s.nextSeq = nextSeq(s.nextSeq)
	return e
}
