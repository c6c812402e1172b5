// Package mcp exposes the running filer's procedures as MCP tools. Calls
// are delivered to the instance on the display; this server never becomes
// the instance itself.
package mcp

import (
	"context"
	"errors"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rox-desktop/rox-filer-sub001/internal/remote"
)

const ServerName = "filer"

// Deliverer sends a request document to the running instance and returns
// its reply. *remote.Arbiter implements it.
type Deliverer interface {
	Deliver(ctx context.Context, request []byte) ([]byte, error)
}

var _ Deliverer = (*remote.Arbiter)(nil)

// Server is the MCP server forwarding tool calls to the filer.
type Server struct {
	mcpServer *mcpsdk.Server
	remote    Deliverer
	logger    *slog.Logger
}

// NewServer creates a server that forwards to d.
func NewServer(d Deliverer, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{remote: d, logger: logger}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Tool names.
const (
	ToolCall       = "filer_call"
	ToolVersion    = "filer_version"
	ToolProcedures = "filer_procedures"
)

// Tools describes the tools the server offers, in registration order.
var Tools = []ToolInfo{
	{ToolCall, "Call a procedure on the filer running on this display (open a directory, copy files, show the pinboard, ...). Arguments are checked against the procedure's signature before sending. Returns the filer's replies; procedures that succeed silently return no results."},
	{ToolVersion, "Ask the running filer for its version. Fails if no filer is running on this display."},
	{ToolProcedures, "List the procedures filer_call accepts, with argument names and kinds."},
}

// ToolInfo names one tool.
type ToolInfo struct {
	Name        string
	Description string
}

func tool(name string) *mcpsdk.Tool {
	for _, t := range Tools {
		if t.Name == name {
			return &mcpsdk.Tool{Name: t.Name, Description: t.Description}
		}
	}
	panic("mcp: unknown tool " + name)
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, tool(ToolCall), s.handleCall)
	mcpsdk.AddTool(s.mcpServer, tool(ToolVersion), s.handleVersion)
	mcpsdk.AddTool(s.mcpServer, tool(ToolProcedures), s.handleProcedures)
}

func deliveryError(err error) error {
	if errors.Is(err, remote.ErrNoInstance) {
		return errors.New("no filer is running on this display")
	}
	if errors.Is(err, remote.ErrPeerUnresponsive) {
		return errors.New("the running filer did not answer")
	}
	return err
}
