package action

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rox-desktop/rox-filer-sub001/internal/config"
	"github.com/rox-desktop/rox-filer-sub001/internal/pipechan"
)

// WorkerCommand is the subcommand that runs a worker.
const WorkerCommand = "action-worker"

// WorkerArgs returns the worker command line for req, after the
// subcommand name.
func WorkerArgs(req Request, donePause time.Duration) []string {
	args := []string{"--kind", string(req.Kind), "--pause", donePause.String()}
	if req.Quiet {
		args = append(args, "--quiet")
	}
	if req.Dest != "" {
		args = append(args, "--to", req.Dest)
	}
	if req.Leaf != "" {
		args = append(args, "--leaf", req.Leaf)
	}
	args = append(args, "--")
	return append(args, req.Items...)
}

// RunWorker is the worker process entry point. It talks to the parent on
// descriptors 3 (answers) and 4 (report) and returns the exit status.
func RunWorker(args []string) int {
	fs := flag.NewFlagSet(WorkerCommand, flag.ContinueOnError)
	kindName := fs.String("kind", "", "Action kind: delete, copy, move, link or mount")
	quiet := fs.Bool("quiet", false, "Do not ask for confirmation")
	dest := fs.String("to", "", "Destination directory for copy, move and link")
	leaf := fs.String("leaf", "", "New name when acting on a single item")
	pause := fs.Duration("pause", config.DefaultDonePause, "Linger after Done")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	kind, err := ParseKind(*kindName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", WorkerCommand, err)
		return 2
	}
	if kind.NeedsDest() && *dest == "" {
		fmt.Fprintf(os.Stderr, "%s: --to is required for %s\n", WorkerCommand, kind)
		return 2
	}

	ch, err := pipechan.Child()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", WorkerCommand, err)
		return 1
	}
	defer ch.Close()

	r := &Runner{
		Kind:      kind,
		Chan:      ch,
		Quiet:     *quiet,
		Dest:      *dest,
		Leaf:      *leaf,
		DonePause: *pause,
	}
	if err := r.Run(fs.Args()); err != nil {
		if !errors.Is(err, ErrPeerGone) {
			fmt.Fprintf(os.Stderr, "%s: %v\n", WorkerCommand, err)
		}
		return 1
	}
	return 0
}

