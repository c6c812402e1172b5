// Package remote decides whether this process is the filer instance for
// the display, and moves request and reply documents between instances
// over a Display side channel.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Handle names a receiver on the display (an X window id).
type Handle uint32

// Display is the side channel shared by all instances on one display.
type Display interface {
	// Root is the shared namespace every instance can read.
	Root() Handle
	CreateReceiver() (Handle, error)
	DestroyReceiver(h Handle)

	// Marker reads the handle stored under key on h. It returns
	// ErrNoMarker when h carries no such marker or no longer exists.
	Marker(h Handle, key string) (Handle, error)
	SetMarker(h Handle, key string, target Handle) error

	// SetPayload stores a document on h; TakePayload reads and removes
	// it, returning ErrNoPayload if there is none.
	SetPayload(h Handle, data []byte) error
	TakePayload(h Handle) ([]byte, error)

	// Notify tells target that a payload is waiting on from.
	Notify(target, from Handle) error
	// OnNotify registers fn for notifications delivered to h.
	OnNotify(h Handle, fn func(from Handle))
	// WaitNotify blocks until h is notified or ctx ends, keeping other
	// display events flowing meanwhile.
	WaitNotify(ctx context.Context, h Handle) (Handle, error)
}

var (
	ErrNoMarker         = errors.New("remote: no instance marker")
	ErrNoPayload        = errors.New("remote: no payload")
	ErrNoInstance       = errors.New("remote: no running instance")
	ErrPeerUnresponsive = errors.New("remote: running instance did not answer")
	ErrNotClaimed       = errors.New("remote: this process is not the instance")
)

// Keys are the marker names for one user on one host.
type Keys struct {
	// Versioned only matches instances of the same version.
	Versioned string
	// Any matches an instance of any version.
	Any string
}

// NewKeys builds the marker names for euid, version and host.
func NewKeys(euid int, version, host string) Keys {
	return Keys{
		Versioned: fmt.Sprintf("_FILER_%d_%s_%s", euid, version, host),
		Any:       fmt.Sprintf("_FILER_%d_%s", euid, host),
	}
}

// LocalKeys builds the keys for the current user and host.
func LocalKeys(version string) (Keys, error) {
	host, err := os.Hostname()
	if err != nil {
		return Keys{}, fmt.Errorf("failed to get hostname: %w", err)
	}
	return NewKeys(unix.Geteuid(), version, host), nil
}

// Options tunes an Arbiter.
type Options struct {
	// Timeout bounds the wait for a peer's reply.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Arbiter finds a running instance or makes this process the instance.
type Arbiter struct {
	d      Display
	keys   Keys
	opts   Options
	logger *slog.Logger
	self   Handle
}

// New returns an Arbiter using d.
func New(d Display, keys Keys, opts Options) *Arbiter {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Arbiter{d: d, keys: keys, opts: opts, logger: logger}
}

// Keys returns the marker names in use.
func (a *Arbiter) Keys() Keys { return a.keys }

// Self returns this process's receiver, or 0 before Claim.
func (a *Arbiter) Self() Handle { return a.self }

// Find looks up the versioned marker on the root and checks that the
// named receiver still points at itself. A marker that fails the check was
// left behind by a dead instance whose window id may have been reused.
func (a *Arbiter) Find() (Handle, bool) {
	peer, err := a.d.Marker(a.d.Root(), a.keys.Versioned)
	if err != nil {
		return 0, false
	}
	back, err := a.d.Marker(peer, a.keys.Versioned)
	if err != nil || back != peer {
		a.logger.Debug("ignoring stale instance marker", "window", peer)
		return 0, false
	}
	return peer, true
}

// TryDelegate hands request to a running instance and returns its reply
// with delegated set. If there is no valid instance, or forceNew is set,
// this process claims the markers and delegated is false. An instance that
// was found but did not answer in time yields ErrPeerUnresponsive.
func (a *Arbiter) TryDelegate(ctx context.Context, request []byte, forceNew bool) ([]byte, bool, error) {
	if !forceNew {
		if peer, ok := a.Find(); ok {
			reply, err := a.send(ctx, peer, request)
			if err != nil {
				return nil, false, err
			}
			return reply, true, nil
		}
	}
	if err := a.Claim(); err != nil {
		return nil, false, err
	}
	return nil, false, nil
}

// Deliver sends request to the running instance without ever claiming.
func (a *Arbiter) Deliver(ctx context.Context, request []byte) ([]byte, error) {
	peer, ok := a.Find()
	if !ok {
		return nil, ErrNoInstance
	}
	return a.send(ctx, peer, request)
}

// Claim creates this process's receiver and publishes both markers on
// the receiver itself and on the root.
func (a *Arbiter) Claim() error {
	if a.self != 0 {
		return nil
	}
	self, err := a.d.CreateReceiver()
	if err != nil {
		return fmt.Errorf("failed to create receiver: %w", err)
	}
	// Self-pointing markers go first so a reader following the root
	// marker never sees a receiver that fails validation.
	for _, on := range []Handle{self, a.d.Root()} {
		for _, key := range []string{a.keys.Versioned, a.keys.Any} {
			if err := a.d.SetMarker(on, key, self); err != nil {
				a.d.DestroyReceiver(self)
				return fmt.Errorf("failed to publish %s: %w", key, err)
			}
		}
	}
	a.self = self
	a.logger.Debug("claimed instance markers", "window", self)
	return nil
}

// Serve routes incoming requests to handler. handler returns the reply
// document; nil sends nothing back.
func (a *Arbiter) Serve(handler func(request []byte) []byte) error {
	if a.self == 0 {
		return ErrNotClaimed
	}
	a.d.OnNotify(a.self, func(from Handle) {
		request, err := a.d.TakePayload(from)
		if err != nil {
			a.logger.Warn("failed to read request", "from", from, "error", err)
			return
		}
		reply := handler(request)
		if reply == nil {
			return
		}
		if err := a.d.SetPayload(from, reply); err != nil {
			a.logger.Warn("failed to store reply", "from", from, "error", err)
			return
		}
		if err := a.d.Notify(from, a.self); err != nil {
			a.logger.Warn("failed to notify caller", "from", from, "error", err)
		}
	})
	return nil
}

// Close destroys the receiver. Markers left on the root stop validating
// once the receiver is gone.
func (a *Arbiter) Close() {
	if a.self != 0 {
		a.d.DestroyReceiver(a.self)
		a.self = 0
	}
}

func (a *Arbiter) send(ctx context.Context, peer Handle, request []byte) ([]byte, error) {
	w, err := a.d.CreateReceiver()
	if err != nil {
		return nil, fmt.Errorf("failed to create reply window: %w", err)
	}
	defer a.d.DestroyReceiver(w)

	if err := a.d.SetPayload(w, request); err != nil {
		return nil, fmt.Errorf("failed to store request: %w", err)
	}
	if err := a.d.Notify(peer, w); err != nil {
		return nil, fmt.Errorf("failed to notify instance: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()
	if _, err := a.d.WaitNotify(ctx, w); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrPeerUnresponsive
		}
		return nil, err
	}

	reply, err := a.d.TakePayload(w)
	if err != nil {
		return nil, fmt.Errorf("failed to read reply: %w", err)
	}
	return reply, nil
}
