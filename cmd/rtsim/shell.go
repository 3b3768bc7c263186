// shell.go is a minimal Go port of original_source/shell.c's command
// parser: a line-at-a-time demo shell, external to the kernel's tested
// surface (spec.md §1 names the shell as an out-of-scope collaborator).
// Unlike the original's polling getsUart0/kbhitUart0 pair, input arrives
// over a channel fed by main's raw-terminal reader goroutine.
package main

import (
	"strconv"
	"strings"

	"github.com/tinyrange/rtkernel/internal/console"
	"github.com/tinyrange/rtkernel/internal/kernel"
)

// SGR color prefixes for the ps table's state column, written as raw escape
// sequences (no terminal-styling package is used); sgrReset closes any of
// them.
const (
	sgrGreen  = "\x1b[32m"
	sgrYellow = "\x1b[33m"
	sgrRed    = "\x1b[31m"
	sgrGray   = "\x1b[90m"
	sgrReset  = "\x1b[0m"
)

// shellTask reads whitespace-separated command lines from lines and issues
// the matching kernel.TaskContext call, the same command set
// original_source/shell.c's shell() task recognizes.
func (d *demo) shellTask(lines <-chan string) kernel.TaskFunc {
	return func(ctx *kernel.TaskContext) {
		console.Writeln("rtsim shell ready. Commands: ps, ipcs, leds, kill <pid>, pkill <name>, pidof <name>, proc <name>, preempt on|off, sched prio|rr, press <mask>, release <mask>, reboot")
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					return
				}
				d.dispatch(ctx, line)
			default:
			}
			ctx.Yield()
		}
	}
}

func (d *demo) dispatch(ctx *kernel.TaskContext, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "reboot":
		ctx.Reboot()
	case "ps":
		d.printPS(ctx)
	case "ipcs":
		d.printIPCS(ctx)
	case "kill":
		if len(args) != 1 {
			console.Writeln("usage: kill <pid>")
			return
		}
		pid, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			console.Writeln("kill: invalid pid %q", args[0])
			return
		}
		ctx.Kill(uintptr(pid))
	case "pkill":
		if len(args) != 1 {
			console.Writeln("usage: pkill <name>")
			return
		}
		ctx.PKill(args[0])
	case "pidof":
		if len(args) != 1 {
			console.Writeln("usage: pidof <name>")
			return
		}
		ctx.Pidof(args[0])
	case "proc":
		if len(args) != 1 {
			console.Writeln("usage: proc <name>")
			return
		}
		ctx.Proc(args[0])
	case "preempt":
		if len(args) != 1 {
			console.Writeln("usage: preempt on|off")
			return
		}
		ctx.SetPreempt(args[0] == "on")
	case "sched":
		if len(args) != 1 {
			console.Writeln("usage: sched prio|rr")
			return
		}
		ctx.SetScheduler(args[0] == "prio")
	case "press":
		if len(args) != 1 {
			console.Writeln("usage: press <mask>")
			return
		}
		mask, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			console.Writeln("press: invalid mask %q", args[0])
			return
		}
		d.board.Press(uint8(mask))
	case "leds":
		d.printLEDs()
	case "release":
		if len(args) != 1 {
			console.Writeln("usage: release <mask>")
			return
		}
		mask, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			console.Writeln("release: invalid mask %q", args[0])
			return
		}
		d.board.Release(uint8(mask))
	default:
		console.Writeln("unknown command %q", cmd)
	}
}

// stateColor returns the SGR prefix used to colorize a task's state column
// in the ps table; unrecognized states render unstyled.
func stateColor(state string) string {
	switch state {
	case "ready":
		return sgrGreen
	case "delayed":
		return sgrYellow
	case "blocked-mutex", "blocked-semaphore":
		return sgrRed
	case "stopped":
		return sgrGray
	default:
		return ""
	}
}

func (d *demo) printPS(ctx *kernel.TaskContext) {
	snap, err := ctx.PS()
	if err != nil {
		console.Writeln("ps: %v", err)
		return
	}
	console.Writeln("PID       NAME            STATE              CPU%%  BLOCKING")
	for _, t := range snap.Tasks {
		blocking := "none"
		switch t.BlockingResourceType {
		case 1:
			blocking = "mutex " + strconv.Itoa(int(t.BlockingResourceID))
		case 2:
			blocking = "semaphore " + strconv.Itoa(int(t.BlockingResourceID))
		}
		running := ""
		if t.Running {
			running = "*"
		}
		console.Writeln("%-9d %-15s %s%-15s%s %4d%%  %s",
			t.PID, t.Name, stateColor(t.State), t.State+running, sgrReset, t.CPUPercent, blocking)
	}
}

// printLEDs reports the simulated board's LED states by name, the shell's
// substitute for watching the eval board's LEDs directly.
func (d *demo) printLEDs() {
	for id, name := range ledNames {
		state := "off"
		if d.board.LED(id) {
			state = "on"
		}
		console.Writeln("  %-8s %s", name, state)
	}
}

func (d *demo) printIPCS(ctx *kernel.TaskContext) {
	snap, err := ctx.IPCS()
	if err != nil {
		console.Writeln("ipcs: %v", err)
		return
	}
	console.Writeln("mutexes:")
	for i, m := range snap.Mutexes {
		console.Writeln("  %d: locked=%v lockedBy=%d queue=%v", i, m.Locked, m.LockedBy, m.Queue)
	}
	console.Writeln("semaphores:")
	for i, s := range snap.Semaphores {
		console.Writeln("  %d: count=%d queue=%v", i, s.Count, s.Queue)
	}
}
