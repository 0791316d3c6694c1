package engine

import (
	"testing"

	"github.com/corvidio/wsconn/closecode"
	"github.com/corvidio/wsconn/frame"
)

func attachedConnectionWithTimeout(t *testing.T, seconds int) (*Connection, *fakeService, *fakeChannel, *fakeIdleDetector) {
	t.Helper()
	svc := &fakeService{}
	idle := &fakeIdleDetector{}
	timeout := seconds
	c := NewConnection(svc, Options{
		ConnectionTimeout: &timeout,
		IdleDetector:      idle,
		Metrics:           NewMetrics("heartbeat", newIsolatedRegistry()),
	})
	ch := newFakeChannel()
	c.Attach(ch)
	drain(c)
	return c, svc, ch, idle
}

// First idle cycle with no outstanding ping sends a ping and arms
// waitingForPong, per spec.md §4.4.
func TestFirstIdleCycleSendsPing(t *testing.T) {
	c, _, ch, idle := attachedConnectionWithTimeout(t, 60)

	idle.fire()
	drain(c)

	written := ch.written()
	if len(written) != 1 || written[0].Opcode != byte(frame.OpcodePing) {
		t.Fatalf("written = %+v, want one ping", written)
	}
}

// P6: a second idle cycle with no pong in between hard-closes the
// channel without emitting a close frame.
func TestSecondIdleCycleWithoutPongHardCloses(t *testing.T) {
	c, svc, ch, idle := attachedConnectionWithTimeout(t, 60)

	idle.fire()
	drain(c)
	idle.fire()
	drain(c)

	written := ch.written()
	if len(written) != 1 {
		t.Fatalf("written = %+v, want only the first ping — no close frame on heartbeat miss", written)
	}
	if len(ch.ClosedMode) != 1 || ch.ClosedMode[0] != CloseImmediate {
		t.Fatalf("ClosedMode = %v, want [CloseImmediate]", ch.ClosedMode)
	}
	reasons := svc.disconnectedReasons()
	if len(reasons) != 1 || reasons[0].Reason != closecode.ReasonNoReasonCodeSent {
		t.Fatalf("DisconnectedCalls = %v, want one noReasonCodeSent", reasons)
	}
}

// A pong received between two idle cycles clears waitingForPong, so
// the next cycle sends a fresh ping instead of hard-closing.
func TestPongClearsWaitingForPong(t *testing.T) {
	c, _, ch, idle := attachedConnectionWithTimeout(t, 60)

	idle.fire()
	drain(c)
	c.OnFrame(&frame.Frame{Fin: true, Opcode: frame.OpcodePong, Masked: true, MaskKey: [4]byte{1, 2, 3, 4}})
	drain(c)
	idle.fire()
	drain(c)

	written := ch.written()
	if len(written) != 2 {
		t.Fatalf("written = %+v, want two pings (no hard close)", written)
	}
	if len(ch.ClosedMode) != 0 {
		t.Fatal("channel should not have been closed")
	}
}
