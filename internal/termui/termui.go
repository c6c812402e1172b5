// Package termui shows action windows on the controlling terminal and
// reads confirmation answers as single key presses.
package termui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/rox-desktop/rox-filer-sub001/internal/action"
)

// Session is the part of an action session the surface drives.
type Session interface {
	Respond(b byte) error
	Close()
}

const (
	keyEsc   = 0x1b
	keyCtrlC = 0x03
)

// Available reports whether stdin and stdout are both terminals.
func Available() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Surface prints report lines prefixed with a short session tag and asks
// for a key on every question: y, n or q answer, Esc or Ctrl-C dismisses
// the action.
type Surface struct {
	session Session
	tag     string
	in      io.Reader
	out     io.Writer

	mu    sync.Mutex
	split action.LineSplitter
}

// New returns a Surface for session id reading keys from in.
func New(s Session, id string, in io.Reader, out io.Writer) *Surface {
	tag := id
	if len(tag) > 8 {
		tag = tag[:8]
	}
	return &Surface{session: s, tag: tag, in: in, out: out}
}

// Factory adapts New for action.Controller using the process terminal.
func Factory(s *action.Session) action.Surface {
	return New(s, s.ID, os.Stdin, os.Stdout)
}

func (s *Surface) Append(chunk string) {
	s.mu.Lock()
	lines := s.split.Write(chunk)
	s.mu.Unlock()

	for _, line := range lines {
		fmt.Fprintf(s.out, "[%s] %s\r\n", s.tag, line)
		if !action.IsQuestion(line) {
			continue
		}
		fmt.Fprintf(s.out, "[%s] (y)es, (n)o, (q)uiet, Esc to cancel\r\n", s.tag)
		b, ok := s.readAnswer()
		if !ok {
			s.session.Close()
			return
		}
		if err := s.session.Respond(b); err != nil {
			fmt.Fprintf(s.out, "[%s] %v\r\n", s.tag, err)
		}
	}
}

func (s *Surface) Finished() {
	s.mu.Lock()
	rest := s.split.Pending()
	s.mu.Unlock()
	if rest != "" {
		fmt.Fprintf(s.out, "[%s] %s\r\n", s.tag, rest)
	}
	fmt.Fprintf(s.out, "[%s] finished\r\n", s.tag)
}

// readAnswer waits for an answer key. ok is false when the user cancels
// or input ends.
func (s *Surface) readAnswer() (b byte, ok bool) {
	if f, isFile := s.in.(*os.File); isFile && term.IsTerminal(int(f.Fd())) {
		oldState, err := term.MakeRaw(int(f.Fd()))
		if err == nil {
			defer term.Restore(int(f.Fd()), oldState)
		}
	}

	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(s.in, buf); err != nil {
			return 0, false
		}
		switch buf[0] {
		case 'y', 'Y':
			return action.AnswerYes, true
		case 'n', 'N':
			return action.AnswerNo, true
		case 'q', 'Q':
			return action.AnswerQuiet, true
		case keyEsc, keyCtrlC:
			return 0, false
		}
	}
}
