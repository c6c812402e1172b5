package x11

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"

	"github.com/rox-desktop/rox-filer-sub001/internal/remote"
)

// PayloadProperty holds request and reply documents, and is also the
// client message type used to announce them.
const PayloadProperty = "_FILER_SOAP"

const wakeAtomName = "_FILER_WAKE"

type receiver struct {
	handler func(from remote.Handle)
	queue   chan remote.Handle
}

// SideChannel implements remote.Display with window properties and
// client messages on one X connection.
type SideChannel struct {
	c           *Connection
	payloadAtom xproto.Atom

	mu        sync.Mutex
	receivers map[xproto.Window]*receiver
}

var _ remote.Display = (*SideChannel)(nil)

// NewSideChannel prepares the atoms used by the side channel.
func NewSideChannel(c *Connection) (*SideChannel, error) {
	atom, err := xprop.Atm(c.XUtil, PayloadProperty)
	if err != nil {
		return nil, fmt.Errorf("failed to intern %s: %w", PayloadProperty, err)
	}
	return &SideChannel{
		c:           c,
		payloadAtom: atom,
		receivers:   make(map[xproto.Window]*receiver),
	}, nil
}

func (s *SideChannel) Root() remote.Handle {
	return remote.Handle(s.c.Root)
}

// CreateReceiver makes an unmapped 1x1 input-only window that listens for
// payload notifications.
func (s *SideChannel) CreateReceiver() (remote.Handle, error) {
	win, err := s.c.createInputOnly()
	if err != nil {
		return 0, err
	}

	r := &receiver{queue: make(chan remote.Handle, 4)}
	s.mu.Lock()
	s.receivers[win] = r
	s.mu.Unlock()

	xevent.ClientMessageFun(func(_ *xgbutil.XUtil, ev xevent.ClientMessageEvent) {
		if ev.Type != s.payloadAtom || ev.Format != 32 {
			return
		}
		s.deliver(win, remote.Handle(ev.Data.Data32[0]))
	}).Connect(s.c.XUtil, win)

	return remote.Handle(win), nil
}

func (s *SideChannel) deliver(win xproto.Window, from remote.Handle) {
	s.mu.Lock()
	r, ok := s.receivers[win]
	s.mu.Unlock()
	if !ok {
		return
	}
	if r.handler != nil {
		r.handler(from)
		return
	}
	select {
	case r.queue <- from:
	default:
	}
}

func (s *SideChannel) DestroyReceiver(h remote.Handle) {
	win := xproto.Window(h)
	s.mu.Lock()
	delete(s.receivers, win)
	s.mu.Unlock()
	xevent.Detach(s.c.XUtil, win)
	xproto.DestroyWindow(s.c.XUtil.Conn(), win)
}

// Marker reads a WINDOW property. Any failure, including a window that no
// longer exists, reads as no marker.
func (s *SideChannel) Marker(h remote.Handle, key string) (remote.Handle, error) {
	atom, err := xprop.Atm(s.c.XUtil, key)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", remote.ErrNoMarker, err)
	}
	reply, err := xproto.GetProperty(s.c.XUtil.Conn(), false, xproto.Window(h),
		atom, xproto.AtomWindow, 0, 1).Reply()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", remote.ErrNoMarker, err)
	}
	if reply.Format != 32 || reply.ValueLen < 1 || len(reply.Value) < 4 {
		return 0, remote.ErrNoMarker
	}
	return remote.Handle(xgb.Get32(reply.Value)), nil
}

func (s *SideChannel) SetMarker(h remote.Handle, key string, target remote.Handle) error {
	atom, err := xprop.Atm(s.c.XUtil, key)
	if err != nil {
		return fmt.Errorf("failed to intern %s: %w", key, err)
	}
	buf := make([]byte, 4)
	xgb.Put32(buf, uint32(target))
	return xproto.ChangePropertyChecked(s.c.XUtil.Conn(), xproto.PropModeReplace,
		xproto.Window(h), atom, xproto.AtomWindow, 32, 1, buf).Check()
}

func (s *SideChannel) SetPayload(h remote.Handle, data []byte) error {
	return xproto.ChangePropertyChecked(s.c.XUtil.Conn(), xproto.PropModeReplace,
		xproto.Window(h), s.payloadAtom, xproto.AtomString, 8, uint32(len(data)), data).Check()
}

// TakePayload reads and deletes the payload property in one request.
func (s *SideChannel) TakePayload(h remote.Handle) ([]byte, error) {
	reply, err := xproto.GetProperty(s.c.XUtil.Conn(), true, xproto.Window(h),
		s.payloadAtom, xproto.GetPropertyTypeAny, 0, math.MaxUint32).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", PayloadProperty, err)
	}
	if reply.Format == 0 {
		return nil, remote.ErrNoPayload
	}
	return reply.Value, nil
}

// Notify sends a client message naming from and the payload property.
func (s *SideChannel) Notify(target, from remote.Handle) error {
	return s.c.sendClientMessage(xproto.Window(target), s.payloadAtom,
		[]uint32{uint32(from), uint32(s.payloadAtom), 0, 0, 0})
}

// OnNotify handlers run on the event loop goroutine.
func (s *SideChannel) OnNotify(h remote.Handle, fn func(from remote.Handle)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.receivers[xproto.Window(h)]; ok {
		r.handler = fn
	}
}

// WaitNotify blocks until h is notified. The event loop is started in the
// background if this process is not already running it, so other events
// keep being dispatched while we wait.
func (s *SideChannel) WaitNotify(ctx context.Context, h remote.Handle) (remote.Handle, error) {
	s.mu.Lock()
	r, ok := s.receivers[xproto.Window(h)]
	s.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("window 0x%x is not a receiver", uint32(h))
	}

	s.c.ensureLoop()
	select {
	case from := <-r.queue:
		return from, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// createInputOnly creates an unmapped, override-redirect input-only window.
func (c *Connection) createInputOnly() (xproto.Window, error) {
	conn := c.XUtil.Conn()
	win, err := xproto.NewWindowId(conn)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate window id: %w", err)
	}
	// Value list order follows the mask bit order.
	mask := uint32(xproto.CwOverrideRedirect | xproto.CwEventMask)
	values := []uint32{1, xproto.EventMaskPropertyChange}
	err = xproto.CreateWindowChecked(conn, 0, win, c.Root,
		-100, -100, 1, 1, 0,
		xproto.WindowClassInputOnly, 0, mask, values).Check()
	if err != nil {
		return 0, fmt.Errorf("failed to create window: %w", err)
	}
	return win, nil
}

func (c *Connection) sendClientMessage(target xproto.Window, typ xproto.Atom, data []uint32) error {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: target,
		Type:   typ,
		Data:   xproto.ClientMessageDataUnionData32New(data),
	}
	return xproto.SendEventChecked(c.XUtil.Conn(), false, target, 0, string(ev.Bytes())).Check()
}

// wake sends a dummy client message to a window of ours so xevent.Main
// returns from its blocking read.
func (c *Connection) wake() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wakeWin == 0 {
		win, err := c.createInputOnly()
		if err != nil {
			return err
		}
		c.wakeWin = win
	}
	atom, err := xprop.Atm(c.XUtil, wakeAtomName)
	if err != nil {
		return err
	}
	return c.sendClientMessage(c.wakeWin, atom, []uint32{0, 0, 0, 0, 0})
}
