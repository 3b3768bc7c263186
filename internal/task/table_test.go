package task

import "testing"

func TestCreateFillsTableToCapacity(t *testing.T) {
	tb := NewTable()
	for i := 0; i < MaxTasks; i++ {
		if _, err := tb.Create(uintptr(i+1), nameFor(i), 10, 0x20000000, 0); err != nil {
			t.Fatalf("create task %d: %v", i, err)
		}
	}
	if tb.Len() != MaxTasks {
		t.Fatalf("Len() = %d, want %d", tb.Len(), MaxTasks)
	}
	if _, err := tb.Create(uintptr(MaxTasks+1), "overflow", 10, 0x20000000, 0); err == nil {
		t.Fatalf("expected MaxTasks+1'th create to fail")
	}
	if tb.Len() != MaxTasks {
		t.Fatalf("Len() after failed create = %d, want %d", tb.Len(), MaxTasks)
	}
}

func TestCreateRejectsDuplicatePID(t *testing.T) {
	tb := NewTable()
	if _, err := tb.Create(0x1000, "a", 1, 0, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := tb.Create(0x1000, "b", 1, 0, 0); err == nil {
		t.Fatalf("expected duplicate pid to be rejected")
	}
}

func TestFindByPIDAndName(t *testing.T) {
	tb := NewTable()
	idx, err := tb.Create(0xCAFE, "idle", 15, 0, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got, ok := tb.FindByPID(0xCAFE); !ok || got != idx {
		t.Fatalf("FindByPID = (%d, %v), want (%d, true)", got, ok, idx)
	}
	if got, ok := tb.FindByName("idle"); !ok || got != idx {
		t.Fatalf("FindByName = (%d, %v), want (%d, true)", got, ok, idx)
	}
	if _, ok := tb.FindByName("nope"); ok {
		t.Fatalf("FindByName(nope) should fail")
	}
}

func TestTotalRuntime(t *testing.T) {
	tb := NewTable()
	i0, _ := tb.Create(1, "a", 1, 0, 0)
	i1, _ := tb.Create(2, "b", 1, 0, 0)
	tb.Get(i0).Runtime = 30
	tb.Get(i1).Runtime = 70
	if got := tb.TotalRuntime(); got != 100 {
		t.Fatalf("TotalRuntime() = %d, want 100", got)
	}
}

func nameFor(i int) string {
	return string(rune('a' + i))
}
