// Package ipc implements the kernel's two blocking primitives: mutexes and
// counting semaphores, each with a strict FIFO wait queue.
//
// Grounded on the `mutex`/`semaphore` structs and the lock/unlock/wait/post
// SVC bodies in original_source/kernel.c. A mutex queue holds up to three
// waiters and a semaphore queue up to two (MaxMutexQueueSize,
// MaxSemaphoreQueueSize); the table capacities below keep shell.h's
// MAX_MUTEXES/MAX_SEMAPHORES.
package ipc

import (
	"errors"
	"fmt"
)

// ErrQueueFull is returned by Mutex.Lock and Semaphore.Wait (via the kernel
// layer) when a caller that could not acquire the resource immediately also
// could not be enqueued because its wait queue was already at capacity.
// spec.md §9 resolves the open question on full queues in favor of
// reporting this explicitly rather than dropping the caller silently.
var ErrQueueFull = errors.New("ipc: wait queue is full")

// MaxMutexQueueSize bounds how many tasks may wait on one mutex.
const MaxMutexQueueSize = 3

// MaxMutexes is the fixed mutex table capacity.
const MaxMutexes = 4

// NoOwner marks a mutex as unlocked.
const NoOwner = 0xFF

// Mutex is an exclusive lock with a FIFO wait queue (spec.md §3).
type Mutex struct {
	Locked   bool
	LockedBy uint8
	queue    []uint8
}

// MutexTable is the fixed-capacity table of mutexes.
type MutexTable [MaxMutexes]Mutex

// NewMutexTable returns a table of unlocked, empty-queued mutexes.
func NewMutexTable() *MutexTable {
	t := &MutexTable{}
	for i := range t {
		t[i] = Mutex{LockedBy: NoOwner}
	}
	return t
}

// QueueSize returns how many tasks are currently waiting on m.
func (m *Mutex) QueueSize() int {
	return len(m.queue)
}

// Queue returns a copy of the current wait queue, in FIFO order.
func (m *Mutex) Queue() []uint8 {
	out := make([]uint8, len(m.queue))
	copy(out, m.queue)
	return out
}

// Lock implements SVC service 2. If the mutex is free, the caller becomes
// the owner immediately. Otherwise the caller is enqueued and the return
// value reports whether it was (queue has room) or was dropped (queue is
// full, spec.md §9 resolves the open question on full queues in favor of
// explicit failure, reported to the caller rather than silently dropped).
func (m *Mutex) Lock(caller uint8) (acquired bool, enqueued bool) {
	if !m.Locked {
		m.Locked = true
		m.LockedBy = caller
		return true, false
	}
	if len(m.queue) >= MaxMutexQueueSize {
		return false, false
	}
	m.queue = append(m.queue, caller)
	return false, true
}

// Unlock implements SVC service 3. A caller that does not own the mutex is
// a silent no-op (spec.md §7). If the queue is non-empty, ownership passes
// to the head of the queue and that task's index is returned as newly
// ready.
func (m *Mutex) Unlock(caller uint8) (nextOwner uint8, woke bool) {
	if !m.Locked || m.LockedBy != caller {
		return 0, false
	}
	if len(m.queue) == 0 {
		m.Locked = false
		m.LockedBy = NoOwner
		return 0, false
	}
	next := m.queue[0]
	m.queue = m.queue[1:]
	m.LockedBy = next
	return next, true
}

// RemoveWaiter removes a task from the wait queue, preserving the order of
// the remainder, used when the waiting task is killed (spec.md §4.3).
func (m *Mutex) RemoveWaiter(task uint8) {
	for i, q := range m.queue {
		if q == task {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

// ForceRelease releases ownership unconditionally (the owning task was
// killed) and promotes the head of the queue if present, exactly like
// Unlock but without an ownership check.
func (m *Mutex) ForceRelease() (nextOwner uint8, woke bool) {
	if len(m.queue) == 0 {
		m.Locked = false
		m.LockedBy = NoOwner
		return 0, false
	}
	next := m.queue[0]
	m.queue = m.queue[1:]
	m.LockedBy = next
	m.Locked = true
	return next, true
}

// ValidateMutex reports whether a mutex index is in range.
func ValidateMutex(id uint8) error {
	if int(id) >= MaxMutexes {
		return fmt.Errorf("ipc: mutex index %d out of range [0,%d)", id, MaxMutexes)
	}
	return nil
}
