package rdt

import (
	"errors"
	"fmt"
	"net"
	"time"

	"rdt-over-udp-go/pkg/logger"
)

// DeliveredChunk is one in-order chunk handed back to the caller, carrying
// both timestamps needed for transit-time statistics.
type DeliveredChunk struct {
	Seq     uint32
	SendTS  float64
	RecvTS  time.Time
	Payload []byte
}

// Receiver listens on a UDP socket, reassembles an in-order byte stream
// out of a lossy, reordering, corrupting channel, and yields delivered
// chunks on a channel until the end-of-stream sentinel is observed or the
// channel stalls for RecvIdleTimeout.
//
// window always holds a run of WindowSize consecutive expected sequence
// numbers, in seq order starting at the oldest undelivered one: the same
// shape as the sender's window, mirrored on the receiving side. A DATA
// frame landing inside this run is matched by position; one landing
// outside it (a duplicate of an already-delivered or already-slid seq)
// is ACKed but otherwise ignored.
type Receiver struct {
	conn  *net.UDPConn
	instr Instrumentation

	window      []*WindowEntry
	tailSeq     uint32 // seq one past the last entry currently in window
	finished    bool
	idleTimeout time.Duration
}

// SetInstrumentation installs an observer for malformed/corrupted drop
// events. Must be called before Run; a nil instr restores the no-op
// default.
func (r *Receiver) SetInstrumentation(instr Instrumentation) {
	if instr == nil {
		instr = noopInstrumentation{}
	}
	r.instr = instr
}

// Addr returns the socket's bound local address, useful when localPort
// was 0 and the kernel picked an ephemeral port.
func (r *Receiver) Addr() *net.UDPAddr {
	return r.conn.LocalAddr().(*net.UDPAddr)
}

// NewReceiver binds a UDP socket on localHost:localPort and pre-populates
// the initial window of WindowSize expected sequence slots.
func NewReceiver(localHost string, localPort int) (*Receiver, error) {
	addr := &net.UDPAddr{Port: localPort}
	if localHost != "" {
		addr.IP = net.ParseIP(localHost)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("rdt: receiver failed to bind UDP socket: %w: %w", ErrIOFailure, err)
	}

	logger.Info("receiver listening on %s", conn.LocalAddr())

	r := &Receiver{conn: conn, instr: noopInstrumentation{}, idleTimeout: RecvIdleTimeout}
	for i := 0; i < WindowSize; i++ {
		r.window = append(r.window, newEntry(r.tailSeq))
		r.tailSeq = nextSeq(r.tailSeq)
	}
	return r, nil
}

// Run drains the socket and sends delivered chunks, in order, to out. It
// closes out and returns when the end-of-stream sentinel has been
// delivered, or returns ErrStalledChannel (also closing out) if no
// datagram arrives for RecvIdleTimeout.
func (r *Receiver) Run(out chan<- DeliveredChunk) error {
	defer r.conn.Close()
	defer close(out)

	buf := make([]byte, MSSValue+1)

	for !r.finished {
		r.conn.SetReadDeadline(time.Now().Add(r.idleTimeout))
		n, peer, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Error("receiver idle for %s, stalling", r.idleTimeout)
				return ErrStalledChannel
			}
			return fmt.Errorf("rdt: receiver read failed: %w: %w", ErrIOFailure, err)
		}

		decoded, err := DecodeData(buf[:n])
		if err != nil {
			// MalformedFrame and CorruptedBody are dropped without an ACK;
			// the sender's retransmission timer will resend.
			if errors.Is(err, ErrCorruptedBody) {
				r.instr.AddCorruptedDrop()
			} else {
				r.instr.AddMalformedDrop()
			}
			logger.Warn("dropping frame from %s: %v", peer, err)
			continue
		}

		r.handleData(decoded, peer)
		r.deliverPrefix(out)
	}

	return nil
}

func (r *Receiver) handleData(d DecodedData, peer *net.UDPAddr) {
	if len(d.Payload) == 0 {
		r.handleSentinel(d, peer)
		return
	}

	r.ack(d.Seq, d.SendTS, peer)

	if entry := r.entryInWindow(d.Seq); entry != nil && entry.State == Waiting {
		entry.markReceived(d.SendTS, d.Payload, time.Now())
	}
	// A duplicate whose entry is already Received or Acked, or whose seq
	// has already slid out of the window entirely, is re-ACKed above but
	// never re-mutated, matching the reference receiver's handling of
	// redundant datagrams.
}

// handleSentinel ACKs the zero-length end-of-stream frame sentinelACKRepeats
// times, the redundancy the reference implementation relies on since a
// single lost ACK here would otherwise stall the sender forever.
func (r *Receiver) handleSentinel(d DecodedData, peer *net.UDPAddr) {
	for i := 0; i < sentinelACKRepeats; i++ {
		r.ack(d.Seq, d.SendTS, peer)
	}
	r.finished = true
}

func (r *Receiver) ack(seq uint32, echoedSendTS float64, peer *net.UDPAddr) {
	frame := EncodeAck(seq, echoedSendTS)
	if _, err := r.conn.WriteToUDP(frame, peer); err != nil {
		logger.Warn("receiver ACK write failed: %v", err)
	}
}

// entryInWindow returns the entry for seq if seq currently falls within
// the window's run of consecutive expected sequence numbers, nil
// otherwise. Position is computed modularly so wraparound past
// SeqModulus is handled the same as any other advance.
func (r *Receiver) entryInWindow(seq uint32) *WindowEntry {
	if len(r.window) == 0 {
		return nil
	}
	offset := (seq + SeqModulus - r.window[0].Seq) % SeqModulus
	if int(offset) >= len(r.window) {
		return nil
	}
	return r.window[offset]
}

// deliverPrefix pushes every contiguous Received entry from the left edge
// of the window to out, in order, dropping it from the window and
// appending a fresh Waiting slot at the tail to keep the window's run at
// constant length.
func (r *Receiver) deliverPrefix(out chan<- DeliveredChunk) {
	for len(r.window) > 0 && r.window[0].State == Received {
		e := r.window[0]
		out <- DeliveredChunk{
			Seq:     e.Seq,
			SendTS:  e.SendTS,
			RecvTS:  e.RecvTS,
			Payload: e.Payload,
		}
		r.window = r.window[1:]
		if !r.finished {
			r.window = append(r.window, newEntry(r.tailSeq))
			r.tailSeq = nextSeq(r.tailSeq)
		}
	}
}
