// Package mcp provides the sift MCP server, registering all tools and
// publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/sift"
	"github.com/deixis/sift/internal/discovery"
	"github.com/deixis/sift/internal/grammar"
	"github.com/deixis/sift/internal/report"
)

//go:embed instructions.md
var Instructions string

// EngineLoader builds an engine for a workspace announced by the client
// through MCP roots. The returned function releases it.
type EngineLoader func(ctx context.Context, workspace string) (*discovery.Engine, func() error, error)

// handler holds shared dependencies for all tool handlers.
type handler struct {
	mu          sync.Mutex
	engine      *discovery.Engine
	closeEngine func() error

	store  report.Store
	parser *grammar.Parser
	load   EngineLoader
	logger *slog.Logger
}

// NewServer creates an MCP server with all sift tools registered. Runs
// made through the server are saved to store. The closer releases engines
// loaded from client roots; engine itself stays owned by the caller.
func NewServer(engine *discovery.Engine, store report.Store, opts ...ServerOption) (*mcp.Server, io.Closer) {
	var so serverOptions
	for _, o := range opts {
		o(&so)
	}
	if so.logger == nil {
		so.logger = slog.Default()
	}

	engine.Store = store
	h := &handler{
		engine: engine,
		store:  store,
		parser: &grammar.Parser{Logger: so.logger},
		load:   so.loader,
		logger: so.logger,
	}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "sift", Version: sift.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "sift_discover",
		Description: `Run the configured external analysis tools and queue work items for what they report.

Tools that exit 0, produce no output, time out or are not installed are skipped.
With interpretation enabled, an interpreter reads each tool's output file and answers with
sift add commands; otherwise each tool yields one summary item. Use dry_run to preview
without queueing. Results are stored for drill-down via sift_inspect.`,
	}, h.discoverHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "sift_tools",
		Description: "List the configured external tools, whether each executable can be found, and the discovery settings.",
	}, h.toolsHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "sift_inspect",
		Description: `Drill into a sift_discover run.

Without run_id, lists the recent runs. With run_id only, shows the run overview.
With run_id and tool, shows that tool's outcome and the full work items it produced.`,
	}, h.inspectHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "sift_parse",
		Description: `Parse sift add commands out of free text, one command per line.

Returns the accepted commands with their fields and the malformed ones with the reason.
Use this to check commands before handing them to a queue.`,
	}, h.parseHandler)

	return s, h
}

// Close releases an engine loaded from client roots.
func (h *handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closeEngine == nil {
		return nil
	}
	err := h.closeEngine()
	h.closeEngine = nil
	return err
}

// ServerOption configures the sift MCP server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	loader EngineLoader
	logger *slog.Logger
}

// WithEngineLoader rebuilds the engine when the client announces a
// workspace root.
func WithEngineLoader(l EngineLoader) ServerOption {
	return func(o *serverOptions) {
		o.loader = l
	}
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = l
	}
}

// currentEngine returns the engine tool calls should use.
func (h *handler) currentEngine() *discovery.Engine {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engine
}

// updateWorkspaceFromRoots queries the client for MCP roots and swaps in an
// engine for the first file root. This is called during session
// initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	if h.load == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	engine, closeFn, err := h.load(ctx, workspace)
	if err != nil {
		h.logger.Warn("failed to load workspace from client roots", "workspace", workspace, "error", err)
		return
	}
	engine.Store = h.store

	h.mu.Lock()
	old := h.closeEngine
	h.engine, h.closeEngine = engine, closeFn
	h.mu.Unlock()
	if old != nil {
		if err := old(); err != nil {
			h.logger.Warn("failed to release previous engine", "error", err)
		}
	}
	h.logger.Info("workspace updated from client roots", "workspace", workspace)
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
