// Package filer is the headless desktop model driven by remote procedure
// calls: directory views, the pinboard, panels and background actions.
package filer

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gabriel-vasile/mimetype"

	"github.com/rox-desktop/rox-filer-sub001/internal/action"
	"github.com/rox-desktop/rox-filer-sub001/internal/config"
	"github.com/rox-desktop/rox-filer-sub001/internal/launcher"
	"github.com/rox-desktop/rox-filer-sub001/internal/lifetime"
)

// ActionStarter starts background actions.
type ActionStarter interface {
	Start(req action.Request) (*action.Session, error)
}

// Options configures a Desktop.
type Options struct {
	Config  *config.Config
	App     *lifetime.App
	Logger  *slog.Logger
	Actions ActionStarter
	Version string
	// Spawn starts programs for Run; defaults to launcher.Spawn.
	Spawn func(argv []string, dir string) error
	// Watch rescans open views when their directories change.
	Watch bool
}

// Desktop holds every open top-level surface. Each open view, the
// pinboard and each panel hold the application lifetime.
type Desktop struct {
	cfg     *config.Config
	app     *lifetime.App
	logger  *slog.Logger
	actions ActionStarter
	version string
	spawn   func(argv []string, dir string) error
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	views    map[string]*View
	pinboard *PinboardState
	panels   map[Side]*PanelState
}

// NewDesktop returns an empty desktop.
func NewDesktop(opts Options) *Desktop {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Spawn == nil {
		opts.Spawn = func(argv []string, dir string) error {
			cmd, err := launcher.Spawn(argv, dir)
			if err != nil {
				return err
			}
			go cmd.Wait()
			return nil
		}
	}
	d := &Desktop{
		cfg:     opts.Config,
		app:     opts.App,
		logger:  opts.Logger,
		actions: opts.Actions,
		version: opts.Version,
		spawn:   opts.Spawn,
		views:   make(map[string]*View),
		panels:  make(map[Side]*PanelState),
	}
	if opts.Watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			d.logger.Warn("directory watching disabled", "error", err)
		} else {
			d.watcher = w
			go d.watch()
		}
	}
	return d
}

// Close stops directory watching.
func (d *Desktop) Close() error {
	if d.watcher != nil {
		return d.watcher.Close()
	}
	return nil
}

func (d *Desktop) watch() {
	for {
		select {
		case ev, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) {
				continue
			}
			d.Rescan(filepath.Dir(ev.Name))
			d.Rescan(ev.Name)
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn("directory watch error", "error", err)
		}
	}
}

func absPath(p string) (string, error) {
	if p == "" {
		return "", errors.New("empty path")
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", p, err)
	}
	return abs, nil
}

func pick(value, def string, valid func(string) bool) string {
	if value != "" && valid(value) {
		return value
	}
	return def
}

// OpenDir opens (or updates) the view of dir. Empty options keep the
// view's current settings or fall back to the configured defaults.
func (d *Desktop) OpenDir(dir, style, details, sortKey string) error {
	path, err := absPath(dir)
	if err != nil {
		return err
	}
	if info, err := os.Stat(path); err != nil {
		return err
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	for name, val := range map[string]string{"Style": style, "Details": details, "Sort": sortKey} {
		if val != "" && !validOption(name, val) {
			d.logger.Warn("ignoring invalid view option", "option", name, "value", val)
		}
	}

	d.mu.Lock()
	v, existed := d.views[path]
	if !existed {
		v = &View{
			Path:    path,
			Style:   d.cfg.View.Style,
			Details: d.cfg.View.Details,
			Sort:    d.cfg.View.Sort,
		}
		d.views[path] = v
	}
	v.Style = pick(style, v.Style, config.ValidStyle)
	v.Details = pick(details, v.Details, config.ValidDetails)
	v.Sort = pick(sortKey, v.Sort, config.ValidSort)
	v.Scan()
	style, sortKey, summary := v.Style, v.Sort, v.Summary()
	d.mu.Unlock()

	if !existed {
		d.app.Acquire()
		if d.watcher != nil {
			if err := d.watcher.Add(path); err != nil {
				d.logger.Warn("cannot watch directory", "path", path, "error", err)
			}
		}
	}
	d.logger.Info("view opened", "path", path, "style", style, "sort", sortKey, "summary", summary)
	return nil
}

func validOption(name, val string) bool {
	switch name {
	case "Style":
		return config.ValidStyle(val)
	case "Details":
		return config.ValidDetails(val)
	case "Sort":
		return config.ValidSort(val)
	}
	return false
}

// CloseDir closes the view of dir, if open.
func (d *Desktop) CloseDir(dir string) bool {
	path, err := absPath(dir)
	if err != nil {
		return false
	}
	d.mu.Lock()
	_, ok := d.views[path]
	delete(d.views, path)
	d.mu.Unlock()
	if !ok {
		return false
	}
	if d.watcher != nil {
		d.watcher.Remove(path)
	}
	d.logger.Info("view closed", "path", path)
	d.app.Release()
	return true
}

// Show opens dir and selects leaf in it.
func (d *Desktop) Show(dir, leaf string) error {
	if err := d.OpenDir(dir, "", "", ""); err != nil {
		return err
	}
	path, _ := absPath(dir)
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.views[path].Select(leaf) {
		return fmt.Errorf("%s not found in %s", leaf, path)
	}
	return nil
}

// Rescan refreshes the view of dir if one is open.
func (d *Desktop) Rescan(dir string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := d.views[filepath.Clean(dir)]; ok {
		v.Scan()
	}
}

// View returns a copy of the view of dir.
func (d *Desktop) View(dir string) (View, bool) {
	path, err := absPath(dir)
	if err != nil {
		return View{}, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.views[path]
	if !ok {
		return View{}, false
	}
	cp := *v
	cp.Entries = append([]Entry(nil), v.Entries...)
	return cp, true
}

// Examine describes a file and refreshes the view containing it.
func (d *Desktop) Examine(p string) (string, error) {
	path, err := absPath(p)
	if err != nil {
		return "", err
	}
	info, err := os.Lstat(path)
	if err != nil {
		return "", err
	}
	d.Rescan(filepath.Dir(path))
	mime, _ := d.FileType(path)
	desc := fmt.Sprintf("%s: %s, %d bytes, %s", path, info.Mode(), info.Size(), mime)
	d.logger.Info("examine", "path", path, "mode", info.Mode().String(), "size", info.Size(), "type", mime)
	return desc, nil
}

// FileType returns the MIME type of a file; directories are
// inode/directory.
func (d *Desktop) FileType(p string) (string, error) {
	path, err := absPath(p)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "inode/directory", nil
	}
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to detect type of %s: %w", path, err)
	}
	mt, _, _ := strings.Cut(m.String(), ";")
	return strings.TrimSpace(mt), nil
}

// Run opens directories, starts executables in their own directory and
// hands other files to the run action configured for their type.
func (d *Desktop) Run(p string) error {
	path, err := absPath(p)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return d.OpenDir(path, "", "", "")
	}
	if info.Mode().IsRegular() && info.Mode()&0111 != 0 {
		return d.spawn([]string{path}, filepath.Dir(path))
	}
	mime, err := d.FileType(path)
	if err != nil {
		return err
	}
	cmd, ok := d.cfg.RunAction(mime)
	if !ok {
		return fmt.Errorf("no run action for %s (%s)", path, mime)
	}
	argv := append(strings.Fields(cmd), path)
	return d.spawn(argv, filepath.Dir(path))
}

// ShowPinboard loads and shows the named pinboard; an empty name removes
// the pinboard.
func (d *Desktop) ShowPinboard(name string) error {
	var next *PinboardState
	if name != "" {
		st, err := LoadPinboard(name)
		if err != nil {
			return err
		}
		next = st
	}
	d.mu.Lock()
	prev := d.pinboard
	d.pinboard = next
	d.mu.Unlock()

	if next != nil && prev == nil {
		d.app.Acquire()
	}
	if next == nil && prev != nil {
		d.app.Release()
	}
	d.logger.Info("pinboard", "name", name)
	return nil
}

// Pinboard returns a copy of the current pinboard.
func (d *Desktop) Pinboard() (PinboardState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pinboard == nil {
		return PinboardState{}, false
	}
	cp := *d.pinboard
	cp.Icons = append([]Icon(nil), d.pinboard.Icons...)
	return cp, true
}

// PinboardAdd pins path at x, y on the current pinboard.
func (d *Desktop) PinboardAdd(path string, x, y int, label string) error {
	abs, err := absPath(path)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pinboard == nil {
		return errors.New("no pinboard is shown")
	}
	d.pinboard.Icons = append(d.pinboard.Icons, Icon{Path: abs, X: x, Y: y, Label: label})
	return d.pinboard.Save()
}

// SetBackdrop sets the pinboard background.
func (d *Desktop) SetBackdrop(app, path, style string) error {
	if style == "" {
		style = "Tile"
	}
	valid := false
	for _, s := range backdropStyles {
		valid = valid || s == style
	}
	if !valid {
		return fmt.Errorf("invalid backdrop style %q", style)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pinboard == nil {
		return errors.New("no pinboard is shown")
	}
	d.pinboard.Backdrop = Backdrop{App: app, Path: path, Style: style}
	return d.pinboard.Save()
}

// ShowPanel loads the named panel on side; an empty name removes the
// panel on that side.
func (d *Desktop) ShowPanel(side Side, name string) error {
	var next *PanelState
	if name != "" {
		st, err := LoadPanel(name, side)
		if err != nil {
			return err
		}
		next = st
	}
	d.mu.Lock()
	prev := d.panels[side]
	if next == nil {
		delete(d.panels, side)
	} else {
		d.panels[side] = next
	}
	d.mu.Unlock()

	if next != nil && prev == nil {
		d.app.Acquire()
	}
	if next == nil && prev != nil {
		d.app.Release()
	}
	d.logger.Info("panel", "side", string(side), "name", name)
	return nil
}

// Panel returns a copy of the panel on side.
func (d *Desktop) Panel(side Side) (PanelState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.panels[side]
	if !ok {
		return PanelState{}, false
	}
	cp := *p
	cp.Items = append([]PanelItem(nil), p.Items...)
	return cp, true
}

// PanelAdd adds path to the panel on side.
func (d *Desktop) PanelAdd(side Side, path, label string, after bool) error {
	abs, err := absPath(path)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.panels[side]
	if !ok {
		return fmt.Errorf("no panel on the %s side", side)
	}
	p.Add(PanelItem{Path: abs, Label: label, End: after})
	return p.Save()
}

// StartAction runs req in a worker.
func (d *Desktop) StartAction(req action.Request) error {
	if d.actions == nil {
		return errors.New("background actions are not available")
	}
	req.Items = append([]string(nil), req.Items...)
	for i, item := range req.Items {
		if req.Kind == action.Mount {
			continue
		}
		abs, err := absPath(item)
		if err != nil {
			return err
		}
		req.Items[i] = abs
	}
	if req.Dest != "" {
		abs, err := absPath(req.Dest)
		if err != nil {
			return err
		}
		req.Dest = abs
	}
	_, err := d.actions.Start(req)
	return err
}

// ActionFinished refreshes views touched by a finished action and opens
// freshly mounted points when asked to.
func (d *Desktop) ActionFinished(req action.Request, log string) {
	dirs := map[string]bool{}
	if req.Dest != "" {
		dirs[filepath.Clean(req.Dest)] = true
	}
	for _, item := range req.Items {
		dirs[filepath.Dir(filepath.Clean(item))] = true
	}
	for dir := range dirs {
		d.Rescan(dir)
	}

	if req.Kind != action.Mount || !req.OpenAfter {
		return
	}
	for _, line := range strings.Split(log, "\n") {
		if path, text := action.SplitLine(line); text == action.TextMounted {
			if err := d.OpenDir(path, "", "", ""); err != nil {
				d.logger.Warn("cannot open mount point", "path", path, "error", err)
			}
		}
	}
}
