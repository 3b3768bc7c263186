// Package sched implements the next-task-to-run decision described in
// spec.md §4.1: strict priority with round-robin among ties, or plain
// round-robin.
//
// Grounded directly on rtosScheduler() in original_source/kernel.c,
// including its candidate-collection and last-task-index bookkeeping.
package sched

import "github.com/tinyrange/rtkernel/internal/task"

// Mode selects between the two scheduling policies (spec.md §4.1).
type Mode int

const (
	ModePriority Mode = iota
	ModeRoundRobin
)

// noneSelected marks "no candidate found yet" the way the source's 0xFF
// sentinel does.
const noneSelected = -1

// Scheduler selects the next ready task from a task.Table. It keeps the
// bookkeeping state (last dispatched index for priority mode, cursor for
// round-robin mode) that spec.md §4.1 requires to persist across calls.
type Scheduler struct {
	Mode Mode

	lastPriorityPick int // -1 when unset, mirrors the source's 0xFF
	rrCursor         int // -1 when unset
}

// New returns a Scheduler in priority mode with no prior pick recorded.
func New() *Scheduler {
	return &Scheduler{
		Mode:             ModePriority,
		lastPriorityPick: noneSelected,
		rrCursor:         noneSelected,
	}
}

// Next returns the index of the task to dispatch. The caller must guarantee
// at least one task is ready (the idle task satisfies this); Next panics if
// that invariant is violated, since spec.md §4.1 states the scheduler must
// never return in that case, a caller that has let it happen has already
// broken a system invariant.
func (s *Scheduler) Next(tb *task.Table) int {
	var next int
	switch s.Mode {
	case ModeRoundRobin:
		next = s.nextRoundRobin(tb)
	default:
		next = s.nextPriority(tb)
	}
	if next == noneSelected {
		panic("sched: no ready task found; the idle task readiness invariant was violated")
	}
	return next
}

// nextPriority scans the whole table for the lowest currentPriority among
// ready tasks, collects every task at that priority in table order, and
// returns the candidate immediately after the last dispatched task
// (circularly), or the first candidate if the last dispatched task isn't
// among them.
func (s *Scheduler) nextPriority(tb *task.Table) int {
	highest := uint8(task.NumPriorities)
	var candidates []int

	for i := 0; i < tb.Cap(); i++ {
		t := tb.Get(i)
		if t.State != task.StateReady {
			continue
		}
		switch {
		case t.CurrentPriority < highest:
			highest = t.CurrentPriority
			candidates = candidates[:0]
			candidates = append(candidates, i)
		case t.CurrentPriority == highest:
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return noneSelected
	}

	startIdx := 0
	if s.lastPriorityPick != noneSelected {
		for i, c := range candidates {
			if c == s.lastPriorityPick && tb.Get(s.lastPriorityPick).State == task.StateReady {
				startIdx = (i + 1) % len(candidates)
				break
			}
		}
	}

	selected := candidates[startIdx]
	s.lastPriorityPick = selected
	return selected
}

// nextRoundRobin advances a persistent cursor through the table until a
// ready task is found.
func (s *Scheduler) nextRoundRobin(tb *task.Table) int {
	capacity := tb.Cap()
	for i := 0; i < capacity; i++ {
		s.rrCursor++
		if s.rrCursor >= capacity {
			s.rrCursor = 0
		}
		if tb.Get(s.rrCursor).State == task.StateReady {
			return s.rrCursor
		}
	}
	return noneSelected
}
