package filer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
)

// Entry is one item shown in a directory view.
type Entry struct {
	Name    string
	Size    int64
	Mode    os.FileMode
	ModTime time.Time
	UID     uint32
	GID     uint32
}

// View is an open directory viewer.
type View struct {
	Path     string
	Style    string
	Details  string
	Sort     string
	Selected string
	Entries  []Entry
	Err      error
}

// Scan rereads the directory and sorts the entries. A scan error is kept
// on the view and leaves it empty.
func (v *View) Scan() {
	v.Entries = nil
	v.Err = nil
	dirents, err := os.ReadDir(v.Path)
	if err != nil {
		v.Err = err
		return
	}
	for _, de := range dirents {
		info, err := de.Info()
		if err != nil {
			continue
		}
		e := Entry{Name: de.Name(), Size: info.Size(), Mode: info.Mode(), ModTime: info.ModTime()}
		if st, ok := info.Sys().(*syscall.Stat_t); ok {
			e.UID, e.GID = st.Uid, st.Gid
		}
		v.Entries = append(v.Entries, e)
	}
	sortEntries(v.Entries, v.Sort)
	if v.Selected != "" && v.index(v.Selected) < 0 {
		v.Selected = ""
	}
}

func (v *View) index(name string) int {
	for i, e := range v.Entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// Select marks leaf as the selected item if it exists.
func (v *View) Select(leaf string) bool {
	if v.index(leaf) < 0 {
		return false
	}
	v.Selected = leaf
	return true
}

// Summary describes the view contents in one line.
func (v *View) Summary() string {
	if v.Err != nil {
		return v.Err.Error()
	}
	var total int64
	dirs := 0
	for _, e := range v.Entries {
		if e.Mode.IsDir() {
			dirs++
			continue
		}
		total += e.Size
	}
	return fmt.Sprintf("%d items (%d directories), %s", len(v.Entries), dirs, humanize.Bytes(uint64(total)))
}

func sortEntries(entries []Entry, key string) {
	less := func(a, b Entry) bool { return a.Name < b.Name }
	switch key {
	case "Type":
		less = func(a, b Entry) bool {
			if a.Mode.IsDir() != b.Mode.IsDir() {
				return a.Mode.IsDir()
			}
			ea, eb := strings.ToLower(filepath.Ext(a.Name)), strings.ToLower(filepath.Ext(b.Name))
			if ea != eb {
				return ea < eb
			}
			return a.Name < b.Name
		}
	case "Date":
		less = func(a, b Entry) bool {
			if !a.ModTime.Equal(b.ModTime) {
				return a.ModTime.After(b.ModTime)
			}
			return a.Name < b.Name
		}
	case "Size":
		less = func(a, b Entry) bool {
			if a.Size != b.Size {
				return a.Size > b.Size
			}
			return a.Name < b.Name
		}
	case "Owner":
		less = func(a, b Entry) bool {
			if a.UID != b.UID {
				return a.UID < b.UID
			}
			return a.Name < b.Name
		}
	case "Group":
		less = func(a, b Entry) bool {
			if a.GID != b.GID {
				return a.GID < b.GID
			}
			return a.Name < b.Name
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return less(entries[i], entries[j]) })
}
