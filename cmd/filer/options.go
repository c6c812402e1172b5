package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rox-desktop/rox-filer-sub001/internal/filer"
	"github.com/rox-desktop/rox-filer-sub001/internal/rpc"
	"github.com/rox-desktop/rox-filer-sub001/internal/soap"
)

// repeated collects every use of a flag.
type repeated []string

func (r *repeated) String() string { return strings.Join(*r, ",") }

func (r *repeated) Set(v string) error {
	*r = append(*r, v)
	return nil
}

type panelFlag struct {
	side filer.Side
	name string
}

// options is the parsed command line of the default mode.
type options struct {
	newInstance bool
	rpcStdin    bool
	version     bool

	open    repeated
	close   repeated
	examine repeated
	show    repeated
	mount   repeated

	pinboard    string
	pinboardSet bool
	panels      []panelFlag

	run []string
}

func newFlagSet(o *options, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("filer", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.BoolVar(&o.newInstance, "n", false, "Start a new instance even if one is running")
	fs.BoolVar(&o.rpcStdin, "R", false, "Read a SOAP request from stdin and print the reply")
	fs.BoolVar(&o.version, "v", false, "Print version information")
	fs.Var(&o.open, "d", "Open directory `DIR` (repeatable)")
	fs.Var(&o.close, "D", "Close the view of directory `DIR` (repeatable)")
	fs.Var(&o.examine, "x", "Examine `PATH` after it changed (repeatable)")
	fs.Var(&o.show, "s", "Open the directory containing `PATH` and select it (repeatable)")
	fs.Var(&o.mount, "m", "Mount or unmount `MOUNTPOINT` (repeatable)")
	fs.Func("p", "Show pinboard `NAME` (empty removes it)", func(v string) error {
		o.pinboard, o.pinboardSet = v, true
		return nil
	})
	for flagName, side := range map[string]filer.Side{"l": filer.Left, "r": filer.Right, "t": filer.Top, "b": filer.Bottom} {
		fs.Func(flagName, fmt.Sprintf("Show panel `NAME` on the %s edge (empty removes it)", strings.ToLower(string(side))), func(v string) error {
			o.panels = append(o.panels, panelFlag{side: side, name: v})
			return nil
		})
	}
	fs.Usage = func() {
		fmt.Fprintln(out, "Usage: filer [options] [PATH...]")
		fmt.Fprintln(out, "       filer action-worker --kind KIND [options] -- ITEM...")
		fmt.Fprintln(out, "       filer mcp serve")
		fmt.Fprintln(out, "       filer config print|validate [--path PATH]")
		fmt.Fprintln(out, "")
		fmt.Fprintln(out, "Each PATH is run: directories are opened, programs started and other")
		fmt.Fprintln(out, "files handed to their run action. With no PATH and no other request")
		fmt.Fprintln(out, "the current directory is opened. Requests go to the filer already")
		fmt.Fprintln(out, "running on this display when there is one.")
		fmt.Fprintln(out, "")
		fmt.Fprintln(out, "Options:")
		fs.PrintDefaults()
	}
	return fs
}

func parseOptions(args []string, out io.Writer) (*options, error) {
	o := &options{}
	fs := newFlagSet(o, out)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.run = fs.Args()
	if o.rpcStdin && o.hasRequests() {
		return nil, errors.New("-R cannot be combined with other requests")
	}
	return o, nil
}

func (o *options) hasRequests() bool {
	return len(o.open)+len(o.close)+len(o.examine)+len(o.show)+len(o.mount)+len(o.panels)+len(o.run) > 0 || o.pinboardSet
}

func call(name string, values map[string]any) (soap.Request, error) {
	return rpc.NewRequest(filer.MustLookup(name), values)
}

// requests turns the command line into procedure calls. Paths are made
// absolute here because the instance answering may run elsewhere.
func (o *options) requests(cwd string) ([]soap.Request, error) {
	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(cwd, p)
	}

	var reqs []soap.Request
	add := func(name string, values map[string]any) error {
		req, err := call(name, values)
		if err != nil {
			return err
		}
		reqs = append(reqs, req)
		return nil
	}

	for _, dir := range o.open {
		if err := add("OpenDir", map[string]any{"Filename": abs(dir)}); err != nil {
			return nil, err
		}
	}
	for _, dir := range o.close {
		if err := add("CloseDir", map[string]any{"Filename": abs(dir)}); err != nil {
			return nil, err
		}
	}
	for _, p := range o.examine {
		if err := add("Examine", map[string]any{"Filename": abs(p)}); err != nil {
			return nil, err
		}
	}
	for _, p := range o.show {
		p = abs(p)
		if err := add("Show", map[string]any{"Directory": filepath.Dir(p), "Leafname": filepath.Base(p)}); err != nil {
			return nil, err
		}
	}
	if o.pinboardSet {
		values := map[string]any{}
		if o.pinboard != "" {
			values["Name"] = o.pinboard
		}
		if err := add("Pinboard", values); err != nil {
			return nil, err
		}
	}
	for _, p := range o.panels {
		values := map[string]any{"Side": string(p.side)}
		if p.name != "" {
			values["Name"] = p.name
		}
		if err := add("Panel", values); err != nil {
			return nil, err
		}
	}
	if len(o.mount) > 0 {
		points := make([]string, 0, len(o.mount))
		for _, m := range o.mount {
			points = append(points, abs(m))
		}
		if err := add("Mount", map[string]any{"MountPoints": points, "OpenDir": true}); err != nil {
			return nil, err
		}
	}
	for _, p := range o.run {
		if err := add("Run", map[string]any{"Filename": abs(p)}); err != nil {
			return nil, err
		}
	}

	if len(reqs) == 0 {
		if err := add("OpenDir", map[string]any{"Filename": cwd}); err != nil {
			return nil, err
		}
	}
	return reqs, nil
}

// document builds the request document, reading it from in for -R.
func (o *options) document(in io.Reader) ([]byte, error) {
	if o.rpcStdin {
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("failed to read request: %w", err)
		}
		return data, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	reqs, err := o.requests(cwd)
	if err != nil {
		return nil, err
	}
	return soap.MarshalRequests(reqs...)
}
