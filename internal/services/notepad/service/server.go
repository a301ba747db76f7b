package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/stellar-notepad/internal/services/notepad/domain"
	"github.com/louisbranch/stellar-notepad/internal/services/notepad/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "Stellar Notepad MCP"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP runs MCP over HTTP/SSE for remote clients.
	TransportHTTP TransportKind = "http"
)

// Config configures the MCP server transports.
type Config struct {
	Transport TransportKind
	HTTPAddr  string // HTTP server address. Defaults to localhost:8081 for HTTP transport.
}

// Server hosts the notepad MCP server.
type Server struct {
	mcpServer *mcp.Server
}

// New creates a configured MCP server with the notepad tool catalog bound to
// the provided ledger dependencies.
func New(mutator domain.Mutator) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	registerNotepadTools(mcpServer, mutator)
	registerNotepadResources(mcpServer, mutator.Journal)
	return &Server{mcpServer: mcpServer}
}

// registerNotepadTools registers the fixed notepad tool catalog. Reads bind
// to the gateway alone; mutations carry the full serialization machinery.
func registerNotepadTools(server *mcp.Server, mutator domain.Mutator) {
	mcp.AddTool(server, domain.ReadNotesTool(), domain.ReadNotesHandler(mutator.Gateway))
	mcp.AddTool(server, domain.WriteNoteTool(), domain.WriteNoteHandler(mutator))
	mcp.AddTool(server, domain.DeleteNoteTool(), domain.DeleteNoteHandler(mutator))
}

// registerNotepadResources registers the submission journal resource when a
// journal is configured.
func registerNotepadResources(server *mcp.Server, journal storage.SubmissionStore) {
	if journal == nil {
		return
	}
	server.AddResource(domain.SubmissionsResource(), domain.SubmissionsResourceHandler(journal))
}

// Run is the service entrypoint and blocks until context cancellation. It is
// transport-agnostic so startup can choose stdio for local tools and HTTP for
// remote integrations.
func Run(ctx context.Context, cfg Config, mutator domain.Mutator) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}

	server := New(mutator)

	switch cfg.Transport {
	case TransportStdio:
		return server.serveWithTransport(ctx, &mcp.StdioTransport{})
	case TransportHTTP:
		httpAddr := cfg.HTTPAddr
		if httpAddr == "" {
			httpAddr = "localhost:8081"
		}
		transport := NewHTTPTransportWithServer(httpAddr, server.mcpServer)
		return transport.Start(ctx)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

// Serve starts the MCP server on stdio and blocks until it stops or the
// context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// serveWithTransport starts the MCP server using the provided transport.
// Context cancellation is the normal shutdown path, not an error.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
