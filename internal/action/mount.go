package action

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Mounter toggles mount points.
type Mounter interface {
	IsMounted(path string) (bool, error)
	Mount(path string) error
	Unmount(path string) error
}

// SystemMounter uses the mount and umount commands. A point counts as
// mounted when it sits on a different device from its parent directory.
type SystemMounter struct{}

func (SystemMounter) IsMounted(path string) (bool, error) {
	var st, parent unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := unix.Stat(filepath.Dir(filepath.Clean(path)), &parent); err != nil {
		return false, fmt.Errorf("stat parent of %s: %w", path, err)
	}
	return st.Dev != parent.Dev, nil
}

func (SystemMounter) Mount(path string) error {
	return run("mount", path)
}

func (SystemMounter) Unmount(path string) error {
	return run("umount", path)
}

func run(name, path string) error {
	out, err := exec.Command(name, path).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return errors.New(msg)
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}
