package kernel

import (
	"fmt"

	"github.com/tinyrange/rtkernel/internal/ipc"
	"github.com/tinyrange/rtkernel/internal/task"
)

// Service numbers, one per row of spec.md §4.3's table. Naming and
// numbering are part of the SVC ABI and must not be renumbered.
const (
	SVCYield = iota
	SVCSleep
	SVCLock
	SVCUnlock
	SVCWait
	SVCPost
	SVCPreempt
	SVCSched
	SVCPKill
	SVCKill
	SVCPidof
	SVCRestart
	SVCSetPriority
	SVCReboot
	SVCIPCS
	SVCProc
	SVCMalloc
	SVCFree
	SVCPS
)

// stopTask implements the shared stop semantics of services 8 (pkill) and 9
// (kill): release any mutex the target owns (promoting the next waiter),
// remove it from whatever queue it is blocked in, then mark it stopped and
// clear its resource bookkeeping. Caller must hold k.mu.
//
// Ownership of a mutex is not recorded on the TCB (the Mutex field is
// meaningful only while blocked, see internal/task.TCB), so every mutex is
// searched for LockedBy == idx rather than trusting t.Mutex; a task that
// acquired a mutex immediately, without ever blocking, still owns it and
// still needs it released here.
func (k *Kernel) stopTask(idx int) {
	t := k.Tasks.Get(idx)

	for i := range k.Mutexes {
		m := &k.Mutexes[i]
		if m.Locked && m.LockedBy == uint8(idx) {
			if next, woke := m.ForceRelease(); woke {
				k.Tasks.Get(int(next)).State = task.StateReady
			}
		}
	}
	if t.State == task.StateBlockedMutex && t.Mutex != task.NoResource {
		k.Mutexes[t.Mutex].RemoveWaiter(uint8(idx))
	}
	if t.State == task.StateBlockedSemaphore && t.Semaphore != task.NoResource {
		k.Semaphores[t.Semaphore].RemoveWaiter(uint8(idx))
	}

	t.State = task.StateStopped
	t.Mutex = task.NoResource
	t.Semaphore = task.NoResource
	t.Ticks = 0
}

// cpuPercent computes service 18's per-task CPU percentage: runtime·100 /
// total runtime, or 0 if nothing has run yet. Caller must hold k.mu.
func cpuPercent(t *task.TCB, total uint64) uint32 {
	if total == 0 {
		return 0
	}
	return uint32(t.Runtime * 100 / total)
}

// blockingResource reports the kind and index of whatever resource a
// blocked task is waiting on, for the ps snapshot's blockingResourceType
// field (spec.md §6: 0 = none, 1 = mutex, 2 = semaphore).
func blockingResource(t *task.TCB) (kind uint8, id uint8) {
	switch t.State {
	case task.StateBlockedMutex:
		return 1, t.Mutex
	case task.StateBlockedSemaphore:
		return 2, t.Semaphore
	default:
		return 0, 0
	}
}

// validateMutexAndSemaphoreCounts is a boot-time sanity check that the
// fixed IPC table sizes match what internal/ipc actually allocated; it
// exists to catch a mismatched const edit across packages early rather
// than corrupting snapshots silently.
func validateMutexAndSemaphoreCounts(m *ipc.MutexTable, s *ipc.SemaphoreTable) error {
	if len(m) != ipc.MaxMutexes {
		return fmt.Errorf("kernel: mutex table length %d does not match MaxMutexes %d", len(m), ipc.MaxMutexes)
	}
	if len(s) != ipc.MaxSemaphores {
		return fmt.Errorf("kernel: semaphore table length %d does not match MaxSemaphores %d", len(s), ipc.MaxSemaphores)
	}
	return nil
}
