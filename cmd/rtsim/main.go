// Command rtsim hosts the kernel in a terminal session: it loads a boot
// descriptor, creates the default demo tasks (tasks.go), and drives the
// kernel's dispatch loop until the user reboots or kills the process.
//
// Grounded on cmd/cc/main.go's run() error + flag + os.Exit(1) shape.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/tinyrange/rtkernel/internal/config"
	"github.com/tinyrange/rtkernel/internal/console"
	"github.com/tinyrange/rtkernel/internal/kernel"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rtsim: %v\n", err)
		os.Exit(1)
	}
}

// stdoutUART adapts os.Stdout to console.UART, translating bare \n into
// \r\n the way original_source/uart0.c's putsUart0 would over a real
// 8N1 line, since the terminal is in raw mode and won't do it for us.
type stdoutUART struct{}

func (stdoutUART) WriteString(s string) (int, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			os.Stdout.WriteString("\r\n")
		} else {
			os.Stdout.Write(s[i : i+1])
		}
	}
	return len(s), nil
}

func run() error {
	bootPath := flag.String("boot", "", "Path to a boot descriptor YAML file (default: internal/config/testdata/boot.yaml, relative to the working directory)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Run the RTOS kernel simulator with the default demo task set.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	console.SetSink(stdoutUART{})

	var boot config.Boot
	if *bootPath != "" {
		b, err := config.Load(*bootPath)
		if err != nil {
			return fmt.Errorf("load boot descriptor: %w", err)
		}
		boot = b
	} else {
		b, err := config.Load("internal/config/testdata/boot.yaml")
		if err != nil {
			return fmt.Errorf("load default boot descriptor: %w", err)
		}
		boot = b
	}

	k := kernel.New()
	board := NewBoard()
	d := &demo{board: board}

	lines := make(chan string, 16)

	fns := map[string]kernel.TaskFunc{
		"Idle":      d.idle,
		"LengthyFn": d.lengthyFn,
		"Flash4Hz":  d.flash4Hz,
		"OneShot":   d.oneShot,
		"ReadKeys":  d.readKeys,
		"Debounce":  d.debounce,
		"Important": d.important,
		"Uncoop":    d.uncooperative,
		"Errant":    d.errant,
		"Shell":     d.shellTask(lines),
	}

	if err := k.Boot(boot, fns); err != nil {
		return fmt.Errorf("boot kernel: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt)
	defer stopSignals()

	restoreTerm, err := enterRawMode(os.Stdin)
	if err != nil {
		return fmt.Errorf("enter raw terminal mode: %w", err)
	}
	defer restoreTerm()

	group, groupCtx := errgroup.WithContext(sigCtx)
	group.Go(func() error {
		return readLines(groupCtx, os.Stdin, lines)
	})
	group.Go(func() error {
		err := k.Run(groupCtx)
		cancel()
		return err
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// enterRawMode puts fd's terminal into raw mode if it is one, returning a
// restore function that is a no-op otherwise. Grounded on cmd/cc/main.go's
// term.MakeRaw/term.Restore pairing.
func enterRawMode(f *os.File) (func(), error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return func() {}, nil
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() { term.Restore(fd, old) }, nil
}

// readLines reads raw bytes from r one at a time, assembling them into
// lines the shell task consumes. It stands in for original_source/
// uart0.c's interrupt-driven getsUart0: backspace deletes the last byte,
// carriage return or newline terminates and delivers a line, Ctrl+C stops
// reading, and every other byte is appended and echoed back so the raw
// terminal shows what was typed.
func readLines(ctx context.Context, r *os.File, lines chan<- string) error {
	defer close(lines)
	br := bufio.NewReader(r)
	var buf []byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			return nil
		}
		switch b {
		case '\r', '\n':
			os.Stdout.WriteString("\r\n")
			line := string(buf)
			buf = buf[:0]
			select {
			case lines <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
		case 0x7f, 0x08: // backspace / delete
			if len(buf) > 0 {
				buf = buf[:len(buf)-1]
				os.Stdout.WriteString("\b \b")
			}
		case 0x03: // Ctrl+C
			return nil
		default:
			buf = append(buf, b)
			os.Stdout.Write([]byte{b})
		}
	}
}
