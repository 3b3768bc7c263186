package arch

import (
	"context"
	"testing"
	"time"
)

func TestSwitchToHandsOffAndReceivesTrap(t *testing.T) {
	b := NewBaton()
	lane := b.NewLane(1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sp, priv, err := lane.WaitToRun(context.Background())
		if err != nil {
			t.Errorf("WaitToRun: %v", err)
			return
		}
		if sp != 0x2000FF00 || priv != Unprivileged {
			t.Errorf("got sp=%#x priv=%v, want 0x2000ff00 Unprivileged", sp, priv)
		}
		lane.Trap(TrapEvent{SVC: true, SVCImm: 7})
	}()

	ev, err := b.SwitchTo(context.Background(), 1, 0x2000FF00, Unprivileged)
	if err != nil {
		t.Fatalf("SwitchTo: %v", err)
	}
	if !ev.SVC || ev.SVCImm != 7 {
		t.Fatalf("got %+v, want SVC imm=7", ev)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task goroutine never finished")
	}
}

func TestRequestTickTripsCheckpoint(t *testing.T) {
	b := NewBaton()
	lane := b.NewLane(2)

	result := make(chan TrapEvent, 1)
	go func() {
		lane.WaitToRun(context.Background())
		for {
			sp, _, err := lane.Checkpoint(context.Background())
			_ = sp
			if err != nil {
				return
			}
		}
	}()

	// Drive one dispatch so the goroutine is past WaitToRun and polling
	// Checkpoint, then request a tick and observe the trap on SwitchTo.
	go func() {
		ev, _ := b.SwitchTo(context.Background(), 2, 0, Unprivileged)
		result <- ev
	}()

	time.Sleep(20 * time.Millisecond)
	b.RequestTick()

	select {
	case ev := <-result:
		if !ev.SysTick {
			t.Fatalf("got %+v, want a SysTick trap", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("tick never produced a trap")
	}
}

func TestHaltUnblocksSwitchTo(t *testing.T) {
	b := NewBaton()
	b.NewLane(3)
	b.Halt(3)

	if _, err := b.SwitchTo(context.Background(), 3, 0, Unprivileged); err == nil {
		t.Fatal("SwitchTo on a halted lane should error")
	}
}

func TestSeedReturnsStackTop(t *testing.T) {
	b := NewBaton()
	if got := b.Seed(0x20001000, Frame{PC: 0x0800_0100, XPSR: DefaultXPSR}); got != 0x20001000 {
		t.Fatalf("Seed = %#x, want 0x20001000", got)
	}
}
