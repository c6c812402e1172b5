package action

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// ErrPeerGone means the parent stopped listening or answered with a byte
// outside the protocol. The worker must stop.
var ErrPeerGone = errors.New("action: parent went away")

// Channel is the worker's side of the pipe pair.
type Channel interface {
	Send(text string) error
	Printf(format string, args ...any) error
	Flush() error
	ReceiveByte() (byte, error)
}

// Runner performs one action over a list of items, reporting each step on
// Chan. Filesystem errors are reported and never stop the run.
type Runner struct {
	Kind  Kind
	Chan  Channel
	Quiet bool
	// Dest is the target directory for copy, move and link.
	Dest string
	// Leaf renames the item when exactly one is given.
	Leaf      string
	Mounter   Mounter
	DonePause time.Duration

	useLeaf bool
}

// Run processes items in order, then sends DoneMarker and lingers for
// DonePause so the parent can drain the pipe.
func (r *Runner) Run(items []string) error {
	if r.Kind == Mount && r.Mounter == nil {
		r.Mounter = SystemMounter{}
	}
	r.useLeaf = r.Leaf != "" && len(items) == 1

	for _, item := range items {
		if err := r.runOne(item); err != nil {
			return err
		}
	}
	if err := r.Chan.Send(DoneMarker); err != nil {
		return fmt.Errorf("%w: %v", ErrPeerGone, err)
	}
	time.Sleep(r.DonePause)
	return nil
}

func (r *Runner) runOne(item string) error {
	switch r.Kind {
	case Delete:
		return r.delete(item)
	case Copy:
		return r.copyItem(item, r.destFor(item))
	case Move:
		return r.move(item, r.destFor(item))
	case Link:
		return r.link(item, r.destFor(item))
	case Mount:
		return r.mount(item)
	}
	return fmt.Errorf("action: unknown kind %q", r.Kind)
}

func (r *Runner) destFor(item string) string {
	leaf := filepath.Base(item)
	if r.useLeaf {
		leaf = r.Leaf
	}
	return filepath.Join(r.Dest, leaf)
}

// line writes "<path>: <text>\n" and flushes.
func (r *Runner) line(path, text string) error {
	if err := r.Chan.Printf("%s%s%s\n", path, pathTextDivider, text); err != nil {
		return fmt.Errorf("%w: %v", ErrPeerGone, err)
	}
	if err := r.Chan.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrPeerGone, err)
	}
	return nil
}

// confirm asks question about path unless the run is quiet. 'Q' answers
// yes and makes the rest of the run quiet.
func (r *Runner) confirm(path, question string) (bool, error) {
	if r.Quiet {
		return true, nil
	}
	if err := r.line(path, question); err != nil {
		return false, err
	}
	b, err := r.Chan.ReceiveByte()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPeerGone, err)
	}
	switch b {
	case AnswerYes:
		return true, nil
	case AnswerNo:
		return false, nil
	case AnswerQuiet:
		r.Quiet = true
		return true, nil
	}
	return false, fmt.Errorf("%w: unexpected answer %q", ErrPeerGone, b)
}

// errText is the platform description of err, without the operation and
// path already shown on the line.
func errText(err error) string {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return pe.Err.Error()
	}
	var le *os.LinkError
	if errors.As(err, &le) {
		return le.Err.Error()
	}
	return err.Error()
}

func (r *Runner) delete(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return r.line(path, errText(err))
	}

	if info.IsDir() {
		if err := r.line(path, TextScanning); err != nil {
			return err
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return r.line(path, errText(err))
		}
		for _, e := range entries {
			if err := r.delete(filepath.Join(path, e.Name())); err != nil {
				return err
			}
		}
		if err := os.Remove(path); err != nil {
			return r.line(path, errText(err))
		}
		return r.line(path, TextDirDeleted)
	}

	ok, err := r.confirm(path, Prompt(Delete))
	if err != nil || !ok {
		return err
	}
	if err := os.Remove(path); err != nil {
		return r.line(path, errText(err))
	}
	return r.line(path, TextOK)
}

func (r *Runner) question(kind Kind, dest string) string {
	if _, err := os.Lstat(dest); err == nil {
		return TextOverwrite
	}
	return Prompt(kind)
}

func (r *Runner) copyItem(src, dest string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return r.line(src, errText(err))
	}
	if dinfo, err := os.Lstat(dest); err == nil && os.SameFile(info, dinfo) {
		return r.line(src, "source and destination are the same")
	}

	if info.IsDir() {
		if within(dest, src) {
			return r.line(src, "cannot copy a directory into itself")
		}
		if err := r.line(src, TextScanning); err != nil {
			return err
		}
		if err := os.Mkdir(dest, info.Mode().Perm()|0700); err != nil && !os.IsExist(err) {
			return r.line(src, errText(err))
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return r.line(src, errText(err))
		}
		for _, e := range entries {
			if err := r.copyItem(filepath.Join(src, e.Name()), filepath.Join(dest, e.Name())); err != nil {
				return err
			}
		}
		return r.line(src, TextDirCopied)
	}

	ok, err := r.confirm(src, r.question(Copy, dest))
	if err != nil || !ok {
		return err
	}
	n, err := copyFile(src, dest, info)
	if err != nil {
		return r.line(src, errText(err))
	}
	return r.line(src, fmt.Sprintf("%s (%s)", TextOK, humanize.Bytes(uint64(n))))
}

func (r *Runner) move(src, dest string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return r.line(src, errText(err))
	}
	if info.IsDir() && within(dest, src) {
		return r.line(src, "cannot move a directory into itself")
	}
	ok, err := r.confirm(src, r.question(Move, dest))
	if err != nil || !ok {
		return err
	}

	err = os.Rename(src, dest)
	if errors.Is(err, unix.EXDEV) {
		// Different filesystems: copy, then remove the original.
		if err = copyTree(src, dest); err == nil {
			err = os.RemoveAll(src)
		}
	}
	if err != nil {
		return r.line(src, errText(err))
	}
	return r.line(src, TextOK)
}

func (r *Runner) link(src, dest string) error {
	abs, err := filepath.Abs(src)
	if err != nil {
		return r.line(src, errText(err))
	}
	question := r.question(Link, dest)
	ok, err := r.confirm(src, question)
	if err != nil || !ok {
		return err
	}
	if question == TextOverwrite {
		if err := os.Remove(dest); err != nil {
			return r.line(src, errText(err))
		}
	}
	if err := os.Symlink(abs, dest); err != nil {
		return r.line(src, errText(err))
	}
	return r.line(src, TextOK)
}

func (r *Runner) mount(point string) error {
	mounted, err := r.Mounter.IsMounted(point)
	if err != nil {
		return r.line(point, errText(err))
	}
	question := Prompt(Mount)
	if mounted {
		question = TextUnmount
	}
	ok, err := r.confirm(point, question)
	if err != nil || !ok {
		return err
	}
	if mounted {
		if err := r.Mounter.Unmount(point); err != nil {
			return r.line(point, errText(err))
		}
		return r.line(point, TextUnmounted)
	}
	if err := r.Mounter.Mount(point); err != nil {
		return r.line(point, errText(err))
	}
	return r.line(point, TextMounted)
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	p, err1 := filepath.Abs(path)
	d, err2 := filepath.Abs(dir)
	if err1 != nil || err2 != nil {
		return false
	}
	return p == d || strings.HasPrefix(p, d+string(filepath.Separator))
}

// copyFile copies a regular file or symlink and returns the bytes copied.
func copyFile(src, dest string, info os.FileInfo) (int64, error) {
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return 0, err
		}
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			return 0, err
		}
		return 0, os.Symlink(target, dest)
	case !info.Mode().IsRegular():
		return 0, fmt.Errorf("cannot copy special file")
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// copyTree copies src to dest without asking, for cross-device moves.
func copyTree(src, dest string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		_, err := copyFile(src, dest, info)
		return err
	}
	if err := os.Mkdir(dest, info.Mode().Perm()|0700); err != nil && !os.IsExist(err) {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := copyTree(filepath.Join(src, e.Name()), filepath.Join(dest, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
