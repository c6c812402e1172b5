package action

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rox-desktop/rox-filer-sub001/internal/config"
	"github.com/rox-desktop/rox-filer-sub001/internal/launcher"
	"github.com/rox-desktop/rox-filer-sub001/internal/lifetime"
	"github.com/rox-desktop/rox-filer-sub001/internal/pipechan"
	"github.com/rox-desktop/rox-filer-sub001/internal/transcript"
)

// Request describes one action to start.
type Request struct {
	Kind  Kind
	Items []string
	Dest  string
	Leaf  string
	Quiet bool
	// OpenAfter asks the desktop to open freshly mounted points.
	OpenAfter bool
}

// Validate checks that the request can be handed to a worker.
func (r Request) Validate() error {
	if _, err := ParseKind(string(r.Kind)); err != nil {
		return err
	}
	if len(r.Items) == 0 {
		return errors.New("action: nothing to act on")
	}
	if r.Kind.NeedsDest() && r.Dest == "" {
		return fmt.Errorf("action: %s needs a destination", r.Kind)
	}
	return nil
}

// Surface shows a session's output. Append receives raw chunks in order;
// Finished is called once when the session ends.
type Surface interface {
	Append(chunk string)
	Finished()
}

// SurfaceFactory builds the surface for a new session.
type SurfaceFactory func(s *Session) Surface

// Options configures a Controller.
type Options struct {
	Logger     *slog.Logger
	ChunkSize  int
	DonePause  time.Duration
	Surface    SurfaceFactory
	Transcript *transcript.Logger
	// OnFinished runs after a session has been torn down.
	OnFinished func(req Request, log string)
	// WorkerArgv builds the worker command line; defaults to re-running
	// this executable with WorkerCommand.
	WorkerArgv func(args []string) ([]string, error)
}

// Controller starts action sessions.
type Controller struct {
	app  *lifetime.App
	opts Options
}

// NewController returns a Controller whose sessions hold app open.
func NewController(app *lifetime.App, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = config.DefaultChunkSize
	}
	if opts.Surface == nil {
		opts.Surface = func(s *Session) Surface {
			return NewLogSurface(s, opts.Logger, config.AnswerNo)
		}
	}
	if opts.WorkerArgv == nil {
		opts.WorkerArgv = func(args []string) ([]string, error) {
			return launcher.WorkerArgv(WorkerCommand, args...)
		}
	}
	return &Controller{app: app, opts: opts}
}

// Start launches a worker for req. Pipe or process failures are returned
// and leave no session behind.
func (c *Controller) Start(req Request) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	argv, err := c.opts.WorkerArgv(WorkerArgs(req, c.opts.DonePause))
	if err != nil {
		return nil, err
	}

	pair, err := pipechan.New()
	if err != nil {
		return nil, err
	}
	cmd, err := launcher.Spawn(argv, "", pair.ChildFiles()...)
	if err != nil {
		pair.Close()
		return nil, fmt.Errorf("failed to start %s worker: %w", req.Kind, err)
	}

	s := &Session{
		ID:      uuid.NewString(),
		Request: req,
		ctrl:    c,
		ch:      pair.Parent(),
		cmd:     cmd,
		alive:   true,
		events:  make(chan string, 16),
		exited:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.app.Acquire()
	s.surface = c.opts.Surface(s)

	c.opts.Logger.Info("action started", "session", s.ID, "kind", req.Kind,
		"items", len(req.Items), "pid", cmd.Process.Pid)
	c.opts.Transcript.Log(transcript.EventStart, s.ID, map[string]any{
		"kind":  string(req.Kind),
		"items": len(req.Items),
		"dest":  req.Dest,
		"pid":   cmd.Process.Pid,
	})

	go s.reap()
	go s.readLoop(c.opts.ChunkSize)
	go s.pump()
	return s, nil
}
