package action

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/rox-desktop/rox-filer-sub001/internal/pipechan"
	"github.com/rox-desktop/rox-filer-sub001/internal/transcript"
)

// Session is one running action: the worker process, its pipes and the
// surface showing its output.
type Session struct {
	ID      string
	Request Request

	ctrl    *Controller
	ch      *pipechan.Channel
	cmd     *exec.Cmd
	surface Surface
	events  chan string
	exited  chan struct{}
	done    chan struct{}

	mu     sync.Mutex
	alive  bool
	closed bool
	log    strings.Builder
}

// Pid returns the worker's process id.
func (s *Session) Pid() int {
	return s.cmd.Process.Pid
}

// Respond sends one answer byte to the worker.
func (s *Session) Respond(b byte) error {
	if !ValidAnswer(b) {
		return fmt.Errorf("action: invalid answer %q", b)
	}
	if err := s.ch.Send(string(b)); err != nil {
		return fmt.Errorf("failed to answer worker: %w", err)
	}
	s.ctrl.opts.Transcript.Log(transcript.EventAnswer, s.ID, map[string]any{"answer": string(b)})
	return nil
}

// Log returns everything the worker has reported so far.
func (s *Session) Log() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.String()
}

// Done is closed when the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Exited is closed once the worker has been reaped.
func (s *Session) Exited() <-chan struct{} {
	return s.exited
}

// Close tears the session down: both pipe ends are closed, a worker that
// is still running gets SIGTERM, and the application lifetime is released.
// Later calls do nothing.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	alive := s.alive
	s.mu.Unlock()

	if err := s.ch.Close(); err != nil {
		s.ctrl.opts.Logger.Debug("closing action pipes", "session", s.ID, "error", err)
	}
	if alive {
		// os.Process.Signal copes with a worker reaped in the meantime.
		if err := s.cmd.Process.Signal(unix.SIGTERM); err != nil {
			s.ctrl.opts.Logger.Debug("signalling worker", "session", s.ID, "error", err)
		}
	}

	s.surface.Finished()
	s.ctrl.opts.Transcript.Log(transcript.EventFinish, s.ID, map[string]any{"worker_alive": alive})
	s.ctrl.opts.Logger.Info("action finished", "session", s.ID, "kind", s.Request.Kind)
	if fn := s.ctrl.opts.OnFinished; fn != nil {
		fn(s.Request, s.Log())
	}
	s.ctrl.app.Release()
	close(s.done)
}

// reap waits for the worker exactly once.
func (s *Session) reap() {
	err := s.cmd.Wait()
	s.mu.Lock()
	s.alive = false
	s.mu.Unlock()
	if err != nil {
		s.ctrl.opts.Logger.Debug("worker exited", "session", s.ID, "error", err)
	}
	close(s.exited)
}

// readLoop moves report chunks from the pipe onto the event queue. A zero
// read or an error ends it.
func (s *Session) readLoop(chunkSize int) {
	defer close(s.events)
	buf := make([]byte, chunkSize)
	r := s.ch.Reader()
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.events <- string(buf[:n])
		}
		if err != nil || n == 0 {
			return
		}
	}
}

// pump delivers queued chunks to the surface in order and closes the
// session when the worker's output ends.
func (s *Session) pump() {
	for chunk := range s.events {
		s.mu.Lock()
		closed := s.closed
		s.log.WriteString(chunk)
		s.mu.Unlock()
		if closed {
			continue
		}
		s.ctrl.opts.Transcript.Log(transcript.EventOutput, s.ID,
			map[string]any{"text": transcript.Preview(chunk, 200)})
		s.surface.Append(chunk)
	}
	s.Close()
}
