// Package launcher starts helper processes for the filer.
package launcher

import (
	"fmt"
	"os"
	"os/exec"
)

// Spawn starts argv[0], searched on $PATH, with the remaining elements as
// arguments. If dir is set but cannot be used, the problem is written to
// stderr and the program starts in the current directory instead. extra
// files become descriptors 3, 4, ... in the child. A failed start is
// returned to the caller and not retried.
func Spawn(argv []string, dir string, extra ...*os.File) (*exec.Cmd, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("spawn: empty argv")
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", argv[0], err)
	}

	cmd := exec.Command(path, argv[1:]...)
	cmd.Args[0] = argv[0]
	cmd.Stdin = nil
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = extra
	if dir != "" {
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			fmt.Fprintf(os.Stderr, "filer: cannot change to %s, starting in current directory\n", dir)
		} else {
			cmd.Dir = dir
		}
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", argv[0], err)
	}
	return cmd, nil
}

// Self returns the path of the running executable, used to start workers.
func Self() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable: %w", err)
	}
	return exe, nil
}

// WorkerArgv builds the argv that re-runs this executable in worker mode.
func WorkerArgv(mode string, args ...string) ([]string, error) {
	exe, err := Self()
	if err != nil {
		return nil, err
	}
	return append([]string{exe, mode}, args...), nil
}
