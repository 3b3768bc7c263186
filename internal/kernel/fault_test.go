package kernel

import (
	"testing"

	"github.com/tinyrange/rtkernel/internal/console"
	"github.com/tinyrange/rtkernel/internal/task"
)

// discardBuf is a console.UART that just accumulates writes, so a test can
// install it without any output reaching the real terminal.
type discardBuf struct{ n int }

func (d *discardBuf) WriteString(s string) (int, error) {
	d.n += len(s)
	return len(s), nil
}

func TestReportFaultMPULeavesTaskScheduledButStalled(t *testing.T) {
	k := New()
	idx := mustCreate(t, k, "A", 5, 512, func(ctx *TaskContext) {})
	pid := k.Tasks.Get(idx).PID

	old := console.SetSink(&discardBuf{})
	defer console.SetSink(old)

	k.ReportFault(FaultMPU, pid, Frame{PC: 0x20000000}, 0x02)

	if k.Core.LaneFor(pid) == nil {
		t.Fatalf("MPU fault halted the task's lane, want it left alive")
	}
	if k.Tasks.Get(idx).State == task.StateStopped {
		t.Fatalf("MPU fault stopped the task, want it left scheduled")
	}
}

func TestReportFaultHardBusUsageHaltTheTask(t *testing.T) {
	old := console.SetSink(&discardBuf{})
	defer console.SetSink(old)

	for _, kind := range []FaultKind{FaultHard, FaultBus, FaultUsage} {
		k := New()
		idx := mustCreate(t, k, "A", 5, 512, func(ctx *TaskContext) {})
		pid := k.Tasks.Get(idx).PID

		k.ReportFault(kind, pid, Frame{PC: 0x1000}, 0x01)

		if k.Core.LaneFor(pid) != nil {
			t.Fatalf("%s fault left the task's lane alive, want it halted", kind)
		}
	}
}

func TestFaultKindString(t *testing.T) {
	cases := map[FaultKind]string{
		FaultMPU:   "MPU",
		FaultHard:  "hard",
		FaultBus:   "bus",
		FaultUsage: "usage",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Fatalf("FaultKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
