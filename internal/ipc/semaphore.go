package ipc

import "fmt"

// MaxSemaphoreQueueSize bounds how many tasks may wait on one semaphore.
const MaxSemaphoreQueueSize = 2

// MaxSemaphores is the fixed semaphore table capacity.
const MaxSemaphores = 4

// Semaphore is a counting semaphore with a FIFO wait queue (spec.md §3).
// Invariant: Count > 0 implies the queue is empty.
type Semaphore struct {
	Count uint8
	queue []uint8
}

// SemaphoreTable is the fixed-capacity table of semaphores.
type SemaphoreTable [MaxSemaphores]Semaphore

// NewSemaphoreTable returns a table of zero-count, empty-queued semaphores.
func NewSemaphoreTable() *SemaphoreTable {
	return &SemaphoreTable{}
}

// Init sets a semaphore's starting count, as rtos.c's initSemaphore does
// for the board's keyPressed/keyReleased/flashReq resources.
func (s *Semaphore) Init(count uint8) {
	s.Count = count
	s.queue = nil
}

// QueueSize returns how many tasks are waiting on s.
func (s *Semaphore) QueueSize() int {
	return len(s.queue)
}

// Queue returns a copy of the current wait queue, in FIFO order.
func (s *Semaphore) Queue() []uint8 {
	out := make([]uint8, len(s.queue))
	copy(out, s.queue)
	return out
}

// Wait implements SVC service 4. If count is positive it is decremented
// and the caller proceeds; otherwise the caller is enqueued, or dropped if
// the queue is full (see Mutex.Lock's note on the full-queue policy).
func (s *Semaphore) Wait(caller uint8) (acquired bool, enqueued bool) {
	if s.Count > 0 {
		s.Count--
		return true, false
	}
	if len(s.queue) >= MaxSemaphoreQueueSize {
		return false, false
	}
	s.queue = append(s.queue, caller)
	return false, true
}

// Post implements SVC service 5. If a task is waiting, it is dequeued and
// marked ready; otherwise the count is incremented. spec.md §9 leaves
// overflow at 255 unguarded; this implementation saturates at 255 rather
// than wrapping, a conservative reading of "implementations may cap".
func (s *Semaphore) Post() (woken uint8, wokeSomeone bool) {
	if len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		return next, true
	}
	if s.Count < 255 {
		s.Count++
	}
	return 0, false
}

// RemoveWaiter removes a task from the wait queue, preserving order of the
// remainder, used when the waiting task is killed.
func (s *Semaphore) RemoveWaiter(task uint8) {
	for i, q := range s.queue {
		if q == task {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// ValidateSemaphore reports whether a semaphore index is in range.
func ValidateSemaphore(id uint8) error {
	if int(id) >= MaxSemaphores {
		return fmt.Errorf("ipc: semaphore index %d out of range [0,%d)", id, MaxSemaphores)
	}
	return nil
}
