package session

import "testing"

func TestTransitionHappyPath(t *testing.T) {
	steps := []struct {
		from State
		ev   event
		want State
	}{
		{StateIdle, eventJoin, StateConnecting},
		{StateConnecting, eventChannelOpen, StateSubscribed},
		{StateSubscribed, eventChannelLost, StateReconnecting},
		{StateReconnecting, eventChannelOpen, StateSubscribed},
		{StateSubscribed, eventResume, StateReconnecting},
		{StateSubscribed, eventLeave, StateClosed},
	}
	for _, step := range steps {
		got, ok := transition(step.from, step.ev)
		if !ok {
			t.Fatalf("%s + %s: expected legal transition", step.from, step.ev)
		}
		if got != step.want {
			t.Fatalf("%s + %s = %s, want %s", step.from, step.ev, got, step.want)
		}
	}
}

func TestTransitionOpenFailureRevertsToIdle(t *testing.T) {
	got, ok := transition(StateConnecting, eventChannelLost)
	if !ok || got != StateIdle {
		t.Fatalf("connecting + channelLost = %s (ok=%v), want idle", got, ok)
	}
}

func TestTransitionFailedRecoveryStaysReconnecting(t *testing.T) {
	got, ok := transition(StateReconnecting, eventChannelLost)
	if !ok || got != StateReconnecting {
		t.Fatalf("reconnecting + channelLost = %s (ok=%v), want reconnecting", got, ok)
	}
	got, ok = transition(StateReconnecting, eventResume)
	if !ok || got != StateReconnecting {
		t.Fatalf("reconnecting + resume = %s (ok=%v), want reconnecting", got, ok)
	}
}

func TestTransitionClosedAbsorbsEverything(t *testing.T) {
	for _, ev := range []event{eventJoin, eventChannelOpen, eventChannelLost, eventResume, eventLeave} {
		got, ok := transition(StateClosed, ev)
		if ok {
			t.Fatalf("closed + %s must be illegal", ev)
		}
		if got != StateClosed {
			t.Fatalf("closed + %s leaked to %s", ev, got)
		}
	}
}

func TestTransitionLeaveFromAnywhere(t *testing.T) {
	for _, from := range []State{StateIdle, StateConnecting, StateSubscribed, StateReconnecting} {
		got, ok := transition(from, eventLeave)
		if !ok || got != StateClosed {
			t.Fatalf("%s + leave = %s (ok=%v), want closed", from, got, ok)
		}
	}
}

func TestTransitionIllegalEvents(t *testing.T) {
	if _, ok := transition(StateIdle, eventChannelOpen); ok {
		t.Fatal("idle + channelOpen must be illegal")
	}
	if _, ok := transition(StateSubscribed, eventJoin); ok {
		t.Fatal("subscribed + join must be illegal")
	}
}
