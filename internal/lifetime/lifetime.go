package lifetime

import "sync"

// App counts the top-level surfaces that keep the application running.
// The release that brings the count back to zero closes Done; the main
// loop watches that channel and stops.
type App struct {
	mu    sync.Mutex
	count int
	done  chan struct{}
	ended bool
}

// New returns an App with no surfaces open.
func New() *App {
	return &App{done: make(chan struct{})}
}

// Acquire registers one more open surface.
func (a *App) Acquire() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ended {
		return
	}
	a.count++
}

// Release unregisters a surface. Unbalanced releases are ignored.
func (a *App) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ended || a.count == 0 {
		return
	}
	a.count--
	if a.count == 0 {
		a.ended = true
		close(a.done)
	}
}

// Count returns the number of open surfaces.
func (a *App) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Done is closed once the last surface has been released.
func (a *App) Done() <-chan struct{} {
	return a.done
}
