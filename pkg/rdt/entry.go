package rdt

import "time"

// EntryState is the lifecycle stage of one window entry.
type EntryState int

const (
	// Waiting entries have not been transmitted yet.
	Waiting EntryState = iota
	// Sent entries are in flight, awaiting an ACK or a retransmit timeout.
	Sent
	// Received entries (receiver side only) have arrived and validated but
	// not yet been delivered to the caller.
	Received
	// Acked entries (sender side only) have had their ACK observed and are
	// waiting to slide out of the left edge of the window.
	Acked
)

func (s EntryState) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Sent:
		return "sent"
	case Received:
		return "received"
	case Acked:
		return "acked"
	default:
		return "unknown"
	}
}

// WindowEntry describes one in-flight or waiting DATA packet, held by
// either the sender's or the receiver's window. Created on window refill,
// destroyed on slide.
type WindowEntry struct {
	Seq     uint32
	Payload []byte
	State   EntryState

	// SendTS is the original sender-side send timestamp, copied from the
	// decoded DATA frame when the receiver marks an entry Received. The
	// sender leaves it unset and tracks its own send time in lastSend.
	SendTS float64
	// RecvTS is the receiver's local arrival time, set only on the
	// receiver side when an entry transitions to Received.
	RecvTS time.Time
	// lastSend is the sender-side wall-clock time of the most recent
	// transmission, used to drive the per-packet retransmission timer.
	lastSend time.Time
}

// newEntry creates a Waiting entry with the given sequence number.
func newEntry(seq uint32) *WindowEntry {
	return &WindowEntry{Seq: seq % SeqModulus, State: Waiting}
}

// markSent transitions the entry to Sent and records the send time used by
// the retransmission timer.
func (e *WindowEntry) markSent(now time.Time) {
	e.lastSend = now
	e.State = Sent
}

// markReceived transitions a receiver-side entry to Received, recording
// both the original sender timestamp and the local arrival time.
func (e *WindowEntry) markReceived(sendTS float64, payload []byte, now time.Time) {
	e.Payload = payload
	e.SendTS = sendTS
	e.RecvTS = now
	e.State = Received
}

// nextSeq computes the modular successor of a sequence number.
func nextSeq(seq uint32) uint32 {
	return (seq + 1) % SeqModulus
}
