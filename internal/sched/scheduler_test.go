package sched

import (
	"testing"

	"github.com/tinyrange/rtkernel/internal/task"
)

func mustCreate(t *testing.T, tb *task.Table, pid uintptr, name string, prio uint8) int {
	t.Helper()
	idx, err := tb.Create(pid, name, prio, 0, 0)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return idx
}

func TestPriorityPreemption(t *testing.T) {
	// spec.md §8 scenario 1: A (prio 0) and B (prio 8); B runs until A
	// becomes ready, then the very next pick selects A.
	tb := task.NewTable()
	a := mustCreate(t, tb, 1, "A", 0)
	b := mustCreate(t, tb, 2, "B", 8)

	tb.Get(a).State = task.StateBlockedSemaphore
	s := New()

	if got := s.Next(tb); got != b {
		t.Fatalf("expected B (%d) to run while A is blocked, got %d", b, got)
	}

	tb.Get(a).State = task.StateReady
	if got := s.Next(tb); got != a {
		t.Fatalf("expected A (%d) to preempt B once ready, got %d", a, got)
	}
}

func TestRoundRobinAmongEquals(t *testing.T) {
	// spec.md §8 scenario 2: X, Y, Z all prio 12, always ready. Six calls
	// return X,Y,Z,X,Y,Z.
	tb := task.NewTable()
	x := mustCreate(t, tb, 1, "X", 12)
	y := mustCreate(t, tb, 2, "Y", 12)
	z := mustCreate(t, tb, 3, "Z", 12)

	s := New()
	want := []int{x, y, z, x, y, z}
	for i, w := range want {
		if got := s.Next(tb); got != w {
			t.Fatalf("call %d: got %d, want %d", i, got, w)
		}
	}
}

func TestRoundRobinModeCursorPersists(t *testing.T) {
	tb := task.NewTable()
	a := mustCreate(t, tb, 1, "a", 5)
	b := mustCreate(t, tb, 2, "b", 9)

	s := New()
	s.Mode = ModeRoundRobin

	first := s.Next(tb)
	second := s.Next(tb)
	if first == second {
		t.Fatalf("round-robin mode should not repeatedly select the same task when others are ready")
	}
	if first != a && first != b {
		t.Fatalf("unexpected first pick %d", first)
	}
}

func TestNextPanicsWithNoReadyTask(t *testing.T) {
	tb := task.NewTable()
	mustCreate(t, tb, 1, "blocked", 1)
	tb.Get(0).State = task.StateBlockedMutex

	defer func() {
		if recover() == nil {
			t.Fatalf("expected Next to panic when no task is ready")
		}
	}()
	New().Next(tb)
}

func TestSameTaskTwiceInARowIsPermitted(t *testing.T) {
	tb := task.NewTable()
	mustCreate(t, tb, 1, "solo", 4)

	s := New()
	first := s.Next(tb)
	second := s.Next(tb)
	if first != second {
		t.Fatalf("sole ready task should be selected again, got %d then %d", first, second)
	}
}
