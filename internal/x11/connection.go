package x11

import (
	"log"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Connection manages the X11 connection and its event loop
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window

	mu      sync.Mutex
	wakeWin xproto.Window

	loopOnce sync.Once
	loopDone chan struct{}
}

// NewConnection connects to the X server named by $DISPLAY
func NewConnection() (*Connection, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, err
	}

	return &Connection{
		XUtil:    xu,
		Root:     xu.RootWin(),
		loopDone: make(chan struct{}),
	}, nil
}

// EventLoop runs the X event loop until Quit (blocking). If the loop is
// already running in the background it waits for that loop instead.
func (c *Connection) EventLoop() {
	owner := false
	c.loopOnce.Do(func() { owner = true })
	if !owner {
		<-c.loopDone
		return
	}
	xevent.Main(c.XUtil)
	close(c.loopDone)
}

// ensureLoop starts the event loop in the background if nobody runs it.
func (c *Connection) ensureLoop() {
	c.loopOnce.Do(func() {
		go func() {
			xevent.Main(c.XUtil)
			close(c.loopDone)
		}()
	})
}

// Quit stops the event loop after the event being handled. A wake message
// is sent to ourselves so an idle loop notices.
func (c *Connection) Quit() {
	xevent.Quit(c.XUtil)
	if err := c.wake(); err != nil {
		log.Printf("x11: failed to wake event loop: %v", err)
	}
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}
