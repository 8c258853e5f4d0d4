// Package tty provides terminal emulation for the "attach" command: an
// interactive console wired to a function's console-style effects rather
// than to any in-core device.
package tty

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Console adapts a raw terminal to the console.read / console.write effect
// pair (§6, register-ABI effect dispatch): keys typed at the terminal are
// delivered to a console.read handler's caller, and values a running
// function writes through console.write are echoed to the terminal.
//
// Neither name is in the built-in catalog (§4.5), so both are ordinary
// host-resolved effects — tty has no special standing in the force loop,
// it is just one possible registrant of internal/host's Handler map.
type Console struct {
	in    *os.File
	out   *term.Terminal
	fd    int
	state *term.State

	keyCh  chan uint8
	termCh chan rune
}

// ErrNoTTY is returned if standard input is not a terminal. In this case, asynchronous I/O is
// not supported by the console.
var ErrNoTTY error = errors.New("console: not a TTY")

// ConsoleContext creates a Console context with the standard streams. Calling cancel will restore the
// terminal state and release resources.
func ConsoleContext(parent context.Context) (context.Context, *Console, context.CancelFunc) {
	ctx, cause := context.WithCancelCause(parent)

	console, err := NewConsole(os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		cause(err)

		return ctx, console, func() { cause(err) }
	}

	go console.readTerminal(ctx, cause)
	go console.drainDisplay(ctx, cause)

	return ctx, console, console.Restore
}

// NewConsole creates a Console using the provided streams. If the input stream is not a terminal,
// ErrNoTTY is returned. Callers are responsible for calling [Restore] to return the terminal to its
// initial state.
func NewConsole(sin, sout, serr *os.File) (*Console, error) {
	fd := int(sin.Fd())

	if !term.IsTerminal(fd) {
		return nil, ErrNoTTY
	}

	saved, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoTTY, err)
	}

	cons := Console{
		fd:     fd,
		in:     sin,
		out:    term.NewTerminal(sin, ""),
		state:  saved,
		keyCh:  make(chan uint8, 1),
		termCh: make(chan rune, 80),
	}

	if err := cons.setTerminalParams(1, 0); err != nil {
		return nil, err
	}

	return &cons, nil
}

// Press injects a key press into the input stream. Exposed mainly for tests.
func (c Console) Press(key byte) {
	c.keyCh <- key
}

// Display queues a rune a console.write effect produced for output.
func (c Console) Display(r rune) {
	select {
	case c.termCh <- r:
	default:
		// dropped signal: the terminal consumer is behind, not fatal
	}
}

// Writer returns an io.Writer that writes to the terminal.
func (c Console) Writer() io.Writer {
	return c.out
}

// Restore returns the terminal to its initial state and cancels in-progress reads.
func (c *Console) Restore() {
	_ = os.Stdin.SetReadDeadline(time.Now())
	_ = term.Restore(c.fd, c.state)
}

func (c *Console) setTerminalParams(vmin, vtime byte) error {
	_ = syscall.SetNonblock(c.fd, true)

	termIO, err := unix.IoctlGetTermios(c.fd, getTermiosIoctl)
	if err != nil {
		return err
	}

	termIO.Cc[unix.VMIN] = vmin
	termIO.Cc[unix.VTIME] = vtime

	if err := unix.IoctlSetTermios(c.fd, setTermiosIoctl, termIO); err != nil {
		return err
	}

	_ = os.Stdin.SetReadDeadline(time.Time{})

	return nil
}

// readTerminal reads bytes from the terminal and writes them to the key channel until the context
// is cancelled. If reading from the terminal fails, the cancel is called.
func (c Console) readTerminal(ctx context.Context, cancel context.CancelCauseFunc) {
	buf := bufio.NewReader(c.in)

	_ = syscall.SetNonblock(c.fd, false)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b, err := buf.ReadByte()
		if err != nil {
			cancel(err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case c.keyCh <- b:
		}
	}
}

// drainDisplay writes queued runes to the terminal until the context is cancelled.
func (c Console) drainDisplay(ctx context.Context, cancel context.CancelCauseFunc) {
	for {
		select {
		case r := <-c.termCh:
			if _, err := fmt.Fprintf(c.out, "%c", r); err != nil {
				cancel(err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// ReadKey blocks for the next key press or ctx cancellation, for use by a
// console.read effect handler.
func (c Console) ReadKey(ctx context.Context) (byte, error) {
	select {
	case key := <-c.keyCh:
		return key, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
