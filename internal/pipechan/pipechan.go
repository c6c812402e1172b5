// Package pipechan is the two-pipe link between an action window and its
// worker process: report text flows child to parent, single answer bytes
// flow parent to child.
package pipechan

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Descriptor numbers of the child's ends when passed as ExtraFiles.
const (
	ChildInFD  = 3
	ChildOutFD = 4
)

// ErrClosed is returned by operations on a closed Channel.
var ErrClosed = errors.New("pipechan: channel closed")

// Pair holds both pipes between creation and the fork.
type Pair struct {
	parentRead, childWrite *os.File // child -> parent
	childRead, parentWrite *os.File // parent -> child
}

// New allocates both pipes.
func New() (*Pair, error) {
	pr, cw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create report pipe: %w", err)
	}
	cr, pw, err := os.Pipe()
	if err != nil {
		pr.Close()
		cw.Close()
		return nil, fmt.Errorf("failed to create answer pipe: %w", err)
	}
	return &Pair{parentRead: pr, childWrite: cw, childRead: cr, parentWrite: pw}, nil
}

// ChildFiles returns the child's ends in descriptor order (3: answers in,
// 4: report out).
func (p *Pair) ChildFiles() []*os.File {
	return []*os.File{p.childRead, p.childWrite}
}

// Parent closes the child's ends in this process and returns the parent's
// side of the link.
func (p *Pair) Parent() *Channel {
	p.childRead.Close()
	p.childWrite.Close()
	return FromFiles(p.parentRead, p.parentWrite)
}

// Close releases all four descriptors; used when the fork failed.
func (p *Pair) Close() error {
	return errors.Join(
		p.parentRead.Close(), p.childWrite.Close(),
		p.childRead.Close(), p.parentWrite.Close(),
	)
}

// Channel is one side of the link. Writes are buffered until Flush or
// Send.
type Channel struct {
	in  *os.File
	out *os.File
	w   *bufio.Writer

	mu       sync.Mutex
	once     sync.Once
	closed   bool
	closeErr error
}

// FromFiles wraps an inbound and outbound stream.
func FromFiles(in, out *os.File) *Channel {
	return &Channel{in: in, out: out, w: bufio.NewWriter(out)}
}

// Child returns the worker's side, built from descriptors 3 and 4. Both are
// marked close-on-exec so programs the worker runs cannot hold the link
// open after the worker exits.
func Child() (*Channel, error) {
	return childFromFDs(ChildInFD, ChildOutFD)
}

func childFromFDs(inFD, outFD int) (*Channel, error) {
	in := os.NewFile(uintptr(inFD), "answers")
	out := os.NewFile(uintptr(outFD), "report")
	if in == nil || out == nil {
		return nil, fmt.Errorf("pipechan: descriptors %d/%d not available", inFD, outFD)
	}
	unix.CloseOnExec(inFD)
	unix.CloseOnExec(outFD)
	return FromFiles(in, out), nil
}

// Send writes text and flushes. It succeeds only if every byte was
// accepted.
func (c *Channel) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if _, err := c.w.WriteString(text); err != nil {
		return err
	}
	return c.w.Flush()
}

// Printf formats into the buffer without flushing.
func (c *Channel) Printf(format string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	_, err := fmt.Fprintf(c.w, format, args...)
	return err
}

// Flush pushes buffered text to the pipe.
func (c *Channel) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.w.Flush()
}

// ReceiveByte blocks until exactly one byte arrives. Any error means the
// other side is gone.
func (c *Channel) ReceiveByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(c.in, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// Reader exposes the inbound stream for chunked reads. Chunk boundaries
// carry no meaning.
func (c *Channel) Reader() io.Reader {
	return c.in
}

// Close closes both ends once; later calls return the first result.
func (c *Channel) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		flushErr := c.w.Flush()
		c.mu.Unlock()
		var errs []error
		if flushErr != nil && !errors.Is(flushErr, os.ErrClosed) {
			errs = append(errs, flushErr)
		}
		for _, f := range []*os.File{c.out, c.in} {
			if err := f.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}
