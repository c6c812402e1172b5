package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rox-desktop/rox-filer-sub001/internal/config"
	"github.com/rox-desktop/rox-filer-sub001/internal/mcp"
)

func printMCPUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: filer mcp <command>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Serve the running filer's remote procedures to MCP clients.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve    Forward MCP tool calls over stdio to the filer on $DISPLAY")
	fmt.Fprintln(w, "  tools    Describe the tools the server offers")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Tools:")
	printMCPTools(w, true)
}

// printMCPTools lists the server's tools, with only their first sentence
// when brief is set.
func printMCPTools(w io.Writer, brief bool) {
	for _, t := range mcp.Tools {
		desc := t.Description
		if brief {
			if i := strings.Index(desc, ". "); i >= 0 {
				desc = desc[:i+1]
			}
		}
		fmt.Fprintf(w, "  %-17s %s\n", t.Name, desc)
	}
}

func runMCP(args []string) int {
	if len(args) == 0 {
		printMCPUsage(os.Stderr)
		return 2
	}

	switch args[0] {
	case "serve":
		return runMCPServe(args[1:])
	case "tools":
		printMCPTools(os.Stdout, false)
		return 0
	case "help", "-h", "--help":
		printMCPUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown mcp command: %s\n\n", args[0])
		printMCPUsage(os.Stderr)
		return 2
	}
}

func runMCPServe(args []string) int {
	if len(args) > 0 && (args[0] == "help" || args[0] == "-h" || args[0] == "--help") {
		fmt.Fprintln(os.Stdout, "Usage: filer mcp serve")
		fmt.Fprintln(os.Stdout, "")
		fmt.Fprintf(os.Stdout, "Answer %s, %s and %s over stdio by sending SOAP\n", mcp.ToolCall, mcp.ToolVersion, mcp.ToolProcedures)
		fmt.Fprintln(os.Stdout, "requests to the filer that owns this display. If no filer is running the")
		fmt.Fprintln(os.Stdout, "tools fail; the server never starts one itself.")
		return 0
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.ApplyEnvironment()
	logger := newLogger(cfg.LogLevel)

	conn, arb, err := display(cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer conn.Close()

	server := mcp.NewServer(arb, Version, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := server.Run(ctx); err != nil {
		log.Printf("MCP server error: %v", err)
		return 1
	}
	return 0
}
