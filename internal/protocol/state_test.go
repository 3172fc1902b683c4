package protocol

import "testing"

func TestCanTransition_LegalEdges(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateNew, StateConnecting, true},
		{StateConnecting, StateConnected, true},
		{StateConnected, StateSubscribed, true},
		{StateConnected, StatePublishing, true},
		{StateSubscribed, StateConnected, true},
		{StatePublishing, StateConnected, true},
		{StateConnected, StateDisconnecting, true},
		{StateDisconnecting, StateClosed, true},
		{StateClosed, StateConnecting, false},
		{StateNew, StateConnected, false},
		{StateConnecting, StateSubscribed, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestState_String(t *testing.T) {
	if StateConnected.String() != "connected" {
		t.Fatalf("unexpected string: %s", StateConnected.String())
	}
	if State(99).String() != "unknown" {
		t.Fatalf("expected unknown for out-of-range state")
	}
}
