package rdt

import "testing"

func TestNewEntryAppliesModulus(t *testing.T) {
	e := newEntry(SeqModulus + 5)
	if e.Seq != 5 {
		t.Errorf("expected seq 5, got %d", e.Seq)
	}
	if e.State != Waiting {
		t.Errorf("expected state Waiting, got %v", e.State)
	}
}

func TestNextSeqWrapsAtModulus(t *testing.T) {
	got := nextSeq(SeqModulus - 1)
	if got != 0 {
		t.Errorf("expected wraparound to 0, got %d", got)
	}
}

func TestEntryStateString(t *testing.T) {
	cases := map[EntryState]string{
		Waiting:     "waiting",
		Sent:        "sent",
		Received:    "received",
		Acked:       "acked",
		EntryState(99): "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("state %d: expected %q, got %q", state, want, got)
		}
	}
}
