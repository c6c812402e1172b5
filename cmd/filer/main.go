package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rox-desktop/rox-filer-sub001/internal/action"
	"github.com/rox-desktop/rox-filer-sub001/internal/config"
	"github.com/rox-desktop/rox-filer-sub001/internal/filer"
	"github.com/rox-desktop/rox-filer-sub001/internal/lifetime"
	"github.com/rox-desktop/rox-filer-sub001/internal/remote"
	"github.com/rox-desktop/rox-filer-sub001/internal/rpc"
	"github.com/rox-desktop/rox-filer-sub001/internal/soap"
	"github.com/rox-desktop/rox-filer-sub001/internal/termui"
	"github.com/rox-desktop/rox-filer-sub001/internal/transcript"
	"github.com/rox-desktop/rox-filer-sub001/internal/x11"
)

// Version is the program version. Instances only delegate to instances
// of the same version.
const Version = "2.11"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case action.WorkerCommand:
			os.Exit(action.RunWorker(os.Args[2:]))
		case "mcp":
			os.Exit(runMCP(os.Args[2:]))
		case "config":
			os.Exit(runConfig(os.Args[2:]))
		case "help", "-h", "--help":
			newFlagSet(&options{}, os.Stdout).Usage()
			os.Exit(0)
		}
	}
	os.Exit(runFiler(os.Args[1:]))
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// display connects to the X server and builds the arbiter for this user
// and host.
func display(cfg *config.Config, logger *slog.Logger) (*x11.Connection, *remote.Arbiter, error) {
	conn, err := x11.NewConnection()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to display: %w", err)
	}
	side, err := x11.NewSideChannel(conn)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	keys, err := remote.LocalKeys(Version)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	arb := remote.New(side, keys, remote.Options{Timeout: cfg.DelegateTimeout, Logger: logger})
	return conn, arb, nil
}

func runFiler(args []string) int {
	opts, err := parseOptions(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}
	cfg.ApplyEnvironment()
	logger := newLogger(cfg.LogLevel)

	if opts.version {
		return printVersion(cfg, logger)
	}

	doc, err := opts.document(os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	conn, arb, err := display(cfg, logger)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer conn.Close()

	reply, delegated, err := arb.TryDelegate(context.Background(), doc, opts.newInstance)
	if err != nil {
		if errors.Is(err, remote.ErrPeerUnresponsive) {
			logger.Warn("the running filer did not answer; use -n to start a new one anyway")
		} else {
			log.Printf("Failed to contact running filer: %v", err)
		}
		return 1
	}
	if delegated {
		return report(reply, opts.rpcStdin, os.Stdout, logger)
	}
	return serve(cfg, conn, arb, doc, opts.rpcStdin, logger)
}

// report prints what the instance answered. Faults are warnings and make
// the exit status non-zero.
func report(reply []byte, raw bool, out io.Writer, logger *slog.Logger) int {
	if raw {
		out.Write(reply)
		if len(reply) > 0 && reply[len(reply)-1] != '\n' {
			fmt.Fprintln(out)
		}
		return 0
	}
	results, err := soap.ParseReply(reply)
	if err != nil {
		logger.Warn("unreadable reply", "error", err)
		return 1
	}
	status := 0
	for _, r := range results {
		if r.Fault != nil {
			logger.Warn("request failed", "fault", r.Fault.Code, "message", r.Fault.Message)
			status = 1
			continue
		}
		if r.Text != "" {
			fmt.Fprintln(out, r.Text)
		}
	}
	return status
}

func printVersion(cfg *config.Config, logger *slog.Logger) int {
	fmt.Printf("filer %s\n", Version)
	conn, arb, err := display(cfg, logger)
	if err != nil {
		logger.Debug("not asking a running filer", "error", err)
		return 0
	}
	defer conn.Close()

	req, err := call("Version", nil)
	if err != nil {
		return 1
	}
	doc, err := soap.MarshalRequests(req)
	if err != nil {
		return 1
	}
	reply, err := arb.Deliver(context.Background(), doc)
	if err != nil {
		if !errors.Is(err, remote.ErrNoInstance) {
			logger.Warn("running filer did not report its version", "error", err)
		}
		return 0
	}
	if results, err := soap.ParseReply(reply); err == nil && len(results) == 1 && results[0].Fault == nil {
		fmt.Printf("running instance: %s\n", results[0].Text)
	}
	return 0
}

func newTranscript(cfg *config.Config) *transcript.Logger {
	tc := cfg.GetTranscriptConfig()
	tr, err := transcript.New(transcript.Config{
		Enabled:   tc.Enabled,
		FilePath:  tc.File,
		MaxSizeMB: tc.MaxSizeMB,
		MaxFiles:  tc.MaxFiles,
	})
	if err != nil {
		log.Printf("Warning: failed to open action transcript: %v", err)
		return nil
	}
	return tr
}

// serve makes this process the instance: it handles its own request, then
// runs the event loop until the last surface closes.
func serve(cfg *config.Config, conn *x11.Connection, arb *remote.Arbiter, doc []byte, raw bool, logger *slog.Logger) int {
	defer arb.Close()

	app := lifetime.New()
	tr := newTranscript(cfg)
	defer tr.Close()

	surface := func(s *action.Session) action.Surface {
		return action.NewLogSurface(s, logger, cfg.HeadlessAnswer)
	}
	if cfg.TerminalSurface && termui.Available() {
		surface = termui.Factory
	}

	var desktop *filer.Desktop
	ctrl := action.NewController(app, action.Options{
		Logger:     logger,
		ChunkSize:  cfg.ChunkSize,
		DonePause:  cfg.DonePause,
		Surface:    surface,
		Transcript: tr,
		OnFinished: func(req action.Request, text string) {
			desktop.ActionFinished(req, text)
		},
	})
	desktop = filer.NewDesktop(filer.Options{
		Config:  cfg,
		App:     app,
		Logger:  logger,
		Actions: ctrl,
		Version: Version,
		Watch:   true,
	})
	defer desktop.Close()

	reg := rpc.NewRegistry()
	if err := filer.Register(reg, desktop); err != nil {
		log.Printf("Failed to register procedures: %v", err)
		return 1
	}
	reg.Freeze()
	disp := rpc.NewDispatcher(reg, logger)

	if err := arb.Serve(func(request []byte) []byte {
		reply, err := disp.HandleDocument(request)
		if err != nil {
			logger.Warn("dropping request", "error", err)
			return nil
		}
		return reply
	}); err != nil {
		log.Printf("Failed to accept requests: %v", err)
		return 1
	}
	logger.Info("filer started", "version", Version, "window", arb.Self(),
		"procedures", strings.Join(reg.Names(), ","))

	status := 0
	reply, err := disp.HandleDocument(doc)
	if err != nil {
		logger.Warn("dropping request", "error", err)
		status = 1
	} else {
		status = report(reply, raw, os.Stdout, logger)
	}

	if app.Count() == 0 {
		return status
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-app.Done():
		case sig := <-sigCh:
			logger.Info("shutting down", "signal", sig.String())
		}
		conn.Quit()
	}()

	conn.EventLoop()
	return status
}
