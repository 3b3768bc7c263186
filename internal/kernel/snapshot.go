// snapshot.go defines the two buffer layouts spec.md §6 calls out as
// stable: PSInfo for service 18 (ps) and IPCSInfo for service 14 (ipcs).
// On real hardware these are caller-supplied structures written to through
// a pointer; here they are ordinary Go values copied out under the
// kernel's lock, the same "single consistent copy taken inside the trap"
// spec.md §4.3 requires.
package kernel

import (
	"github.com/tinyrange/rtkernel/internal/ipc"
	"github.com/tinyrange/rtkernel/internal/task"
)

// TaskSnapshot is one row of a PS snapshot.
type TaskSnapshot struct {
	PID                  uintptr
	Name                 string
	State                string
	Running              bool
	CPUPercent           uint32
	BlockingResourceType uint8 // 0 = none, 1 = mutex, 2 = semaphore
	BlockingResourceID   uint8
}

// PSInfo is service 18's snapshot buffer.
type PSInfo struct {
	Tasks []TaskSnapshot
}

// MutexSnapshot is one row of an IPCS snapshot's mutex table.
type MutexSnapshot struct {
	Locked    bool
	LockedBy  uint8
	QueueSize int
	Queue     []uint8
}

// SemaphoreSnapshot is one row of an IPCS snapshot's semaphore table.
type SemaphoreSnapshot struct {
	Count     uint8
	QueueSize int
	Queue     []uint8
}

// IPCSInfo is service 14's snapshot buffer.
type IPCSInfo struct {
	Mutexes    []MutexSnapshot
	Semaphores []SemaphoreSnapshot
}

// buildPSSnapshot copies the task table's current state. Caller must hold
// k.mu, so the copy is atomic with respect to every other SVC/PendSV path.
func (k *Kernel) buildPSSnapshot() PSInfo {
	total := k.Tasks.TotalRuntime()
	var snap PSInfo
	k.Tasks.Each(func(idx int, t *task.TCB) {
		kind, id := blockingResource(t)
		snap.Tasks = append(snap.Tasks, TaskSnapshot{
			PID:                  t.PID,
			Name:                 t.Name,
			State:                t.State.String(),
			Running:              idx == k.current,
			CPUPercent:           cpuPercent(t, total),
			BlockingResourceType: kind,
			BlockingResourceID:   id,
		})
	})
	return snap
}

// buildIPCSSnapshot copies the mutex and semaphore tables. Caller must hold
// k.mu.
func (k *Kernel) buildIPCSSnapshot() IPCSInfo {
	var snap IPCSInfo
	for i := 0; i < ipc.MaxMutexes; i++ {
		m := &k.Mutexes[i]
		snap.Mutexes = append(snap.Mutexes, MutexSnapshot{
			Locked:    m.Locked,
			LockedBy:  m.LockedBy,
			QueueSize: m.QueueSize(),
			Queue:     m.Queue(),
		})
	}
	for i := 0; i < ipc.MaxSemaphores; i++ {
		s := &k.Semaphores[i]
		snap.Semaphores = append(snap.Semaphores, SemaphoreSnapshot{
			Count:     s.Count,
			QueueSize: s.QueueSize(),
			Queue:     s.Queue(),
		})
	}
	return snap
}
