package rdt

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

// lossyRelay sits between a Sender and a Receiver on real loopback UDP
// sockets, forwarding every datagram it sees unless a test-installed
// policy says to drop it. Sender and Receiver both take a concrete
// *net.UDPConn rather than an interface, so this is the seam available
// for exercising lossy-channel behavior without touching production code.
type lossyRelay struct {
	conn         *net.UDPConn
	receiverAddr *net.UDPAddr

	mu         sync.Mutex
	senderAddr *net.UDPAddr
	dataSeen   int
	ackSeen    int

	dropData func(n int, frame []byte) bool
	dropAck  func(n int, frame []byte) bool
}

func newLossyRelay(t *testing.T, receiverAddr *net.UDPAddr) *lossyRelay {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("relay failed to bind: %v", err)
	}
	return &lossyRelay{conn: conn, receiverAddr: receiverAddr}
}

func (l *lossyRelay) Addr() *net.UDPAddr {
	return l.conn.LocalAddr().(*net.UDPAddr)
}

func (l *lossyRelay) Close() {
	l.conn.Close()
}

// run shuttles datagrams between whichever address first sent to the
// relay (the sender) and receiverAddr, applying dropData/dropAck along
// the way. It returns once the relay socket is closed.
func (l *lossyRelay) run() {
	buf := make([]byte, MSSValue+1)
	for {
		n, from, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])

		l.mu.Lock()
		fromReceiver := l.senderAddr != nil && from.String() == l.receiverAddr.String()
		if !fromReceiver && l.senderAddr == nil {
			l.senderAddr = from
		}

		var drop bool
		if fromReceiver {
			l.ackSeen++
			if l.dropAck != nil {
				drop = l.dropAck(l.ackSeen, frame)
			}
		} else {
			l.dataSeen++
			if l.dropData != nil {
				drop = l.dropData(l.dataSeen, frame)
			}
		}
		senderAddr := l.senderAddr
		l.mu.Unlock()

		if drop {
			continue
		}

		if fromReceiver {
			l.conn.WriteToUDP(frame, senderAddr)
		} else {
			l.conn.WriteToUDP(frame, l.receiverAddr)
		}
	}
}

// sendViaRelay wires a Receiver and a Sender together through a lossyRelay
// and returns the sender's reported retransmission count plus every
// payload the receiver delivered, in order.
func sendViaRelay(t *testing.T, chunks [][]byte, dropData, dropAck func(n int, frame []byte) bool) (int, [][]byte) {
	t.Helper()

	receiver, err := NewReceiver("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("NewReceiver failed: %v", err)
	}

	relay := newLossyRelay(t, receiver.Addr())
	relay.dropData = dropData
	relay.dropAck = dropAck
	go relay.run()
	defer relay.Close()

	source := make(chan []byte)
	go func() {
		defer close(source)
		for _, c := range chunks {
			source <- c
		}
	}()

	relayAddr := relay.Addr()
	sender, err := NewSender(0, relayAddr.IP.String(), relayAddr.Port, source)
	if err != nil {
		t.Fatalf("NewSender failed: %v", err)
	}

	delivered := make(chan DeliveredChunk)
	recvDone := make(chan error, 1)
	go func() {
		recvDone <- receiver.Run(delivered)
	}()

	var got [][]byte
	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		for d := range delivered {
			payload := make([]byte, len(d.Payload))
			copy(payload, d.Payload)
			got = append(got, payload)
		}
	}()

	sendDone := make(chan struct {
		n   int
		err error
	}, 1)
	go func() {
		n, err := sender.Run()
		sendDone <- struct {
			n   int
			err error
		}{n, err}
	}()

	var retransmissions int
	select {
	case res := <-sendDone:
		if res.err != nil {
			t.Fatalf("sender.Run failed: %v", res.err)
		}
		retransmissions = res.n
	case <-time.After(5 * time.Second):
		t.Fatal("sender did not finish in time")
	}

	select {
	case err := <-recvDone:
		if err != nil {
			t.Fatalf("receiver.Run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("receiver did not finish in time")
	}

	<-collectDone
	return retransmissions, got
}

// TestRelayRetransmitsDroppedFirstData covers a dropped first DATA frame:
// the transfer must still complete, with exactly one retransmission for
// the affected sequence number.
func TestRelayRetransmitsDroppedFirstData(t *testing.T) {
	chunks := [][]byte{[]byte("hello")}

	var mu sync.Mutex
	dropped := false
	dropData := func(n int, _ []byte) bool {
		mu.Lock()
		defer mu.Unlock()
		if n == 1 {
			dropped = true
			return true
		}
		return false
	}

	retransmissions, got := sendViaRelay(t, chunks, dropData, nil)

	mu.Lock()
	defer mu.Unlock()
	if !dropped {
		t.Fatal("expected the relay to have dropped the first DATA frame")
	}
	if retransmissions != 1 {
		t.Fatalf("expected exactly 1 retransmission, got %d", retransmissions)
	}
	if len(got) != 1 || !bytes.Equal(got[0], chunks[0]) {
		t.Fatalf("expected delivered %v, got %v", chunks, got)
	}
}

// TestRelaySurvivesPartialSentinelAckLoss covers the redundant sentinel
// ACK: dropping all but one of the 5 repeats must still let the sender
// terminate cleanly.
func TestRelaySurvivesPartialSentinelAckLoss(t *testing.T) {
	chunks := [][]byte{[]byte("x")}
	const sentinelSeq = 1 // the one chunk occupies seq 0; the sentinel is seq 1

	var mu sync.Mutex
	sentinelAcksSeen := 0
	dropAck := func(_ int, frame []byte) bool {
		ack, err := DecodeAck(frame)
		if err != nil || ack.Seq != sentinelSeq {
			return false
		}
		mu.Lock()
		defer mu.Unlock()
		sentinelAcksSeen++
		return sentinelAcksSeen <= sentinelACKRepeats-1 // drop all but the last repeat
	}

	_, got := sendViaRelay(t, chunks, nil, dropAck)

	if len(got) != 1 || !bytes.Equal(got[0], chunks[0]) {
		t.Fatalf("expected delivered %v, got %v", chunks, got)
	}
	mu.Lock()
	defer mu.Unlock()
	if sentinelAcksSeen < sentinelACKRepeats {
		t.Fatalf("expected all %d redundant sentinel ACKs to reach the relay, observed %d", sentinelACKRepeats, sentinelAcksSeen)
	}
}

// TestRelayToleratesIntermittentLoss covers a multi-chunk transfer across
// a relay that drops roughly one datagram in three in both directions; the
// transfer must still complete with every chunk delivered in order.
func TestRelayToleratesIntermittentLoss(t *testing.T) {
	var chunks [][]byte
	for i := 0; i < 20; i++ {
		chunks = append(chunks, bytes.Repeat([]byte{byte('a' + i)}, 500))
	}

	everyThird := func(counter *int, mu *sync.Mutex) func(int, []byte) bool {
		return func(int, []byte) bool {
			mu.Lock()
			defer mu.Unlock()
			*counter++
			return *counter%3 == 0
		}
	}
	var dataMu, ackMu sync.Mutex
	var dataCount, ackCount int

	_, got := sendViaRelay(t, chunks, everyThird(&dataCount, &dataMu), everyThird(&ackCount, &ackMu))

	if len(got) != len(chunks) {
		t.Fatalf("expected %d chunks, got %d", len(chunks), len(got))
	}
	for i := range chunks {
		if !bytes.Equal(got[i], chunks[i]) {
			t.Errorf("chunk %d: expected %q, got %q", i, chunks[i], got[i])
		}
	}
}

// TestReceiverStallsWhenChannelGoesSilent covers total sender silence: the
// receiver must give up with ErrStalledChannel once its idle timeout
// elapses, rather than blocking forever.
func TestReceiverStallsWhenChannelGoesSilent(t *testing.T) {
	receiver, err := NewReceiver("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("NewReceiver failed: %v", err)
	}
	receiver.idleTimeout = 50 * time.Millisecond

	delivered := make(chan DeliveredChunk)
	errc := make(chan error, 1)
	go func() {
		errc <- receiver.Run(delivered)
	}()
	go func() {
		for range delivered {
		}
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrStalledChannel) {
			t.Fatalf("expected ErrStalledChannel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("receiver did not stall in time")
	}
}
