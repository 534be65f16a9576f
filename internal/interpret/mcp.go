package interpret

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/sift"
)

// MCPInterpreter forwards the prompt to a tool on an MCP server running as a
// subprocess. The tool receives {"prompt": ..., "context": ...} and its
// text content is taken as the answer.
type MCPInterpreter struct {
	session *sdkmcp.ClientSession
	tool    string
}

// StartMCPInterpreter launches command through the shell in dir and
// connects to it as an MCP client. The caller must call stop.
func StartMCPInterpreter(ctx context.Context, command, dir, tool string) (*MCPInterpreter, func(), error) {
	if strings.TrimSpace(command) == "" {
		return nil, func() {}, fmt.Errorf("no MCP interpreter command configured")
	}
	if tool == "" {
		tool = "interpret"
	}

	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Dir = dir
	transport := &sdkmcp.CommandTransport{Command: cmd}

	client := sdkmcp.NewClient(
		&sdkmcp.Implementation{Name: "sift", Version: sift.Version},
		nil,
	)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, func() {}, fmt.Errorf("connecting to MCP interpreter: %w", err)
	}

	stop := func() {
		_ = session.Close()
	}
	return NewMCPInterpreter(session, tool), stop, nil
}

// NewMCPInterpreter uses an existing client session.
func NewMCPInterpreter(session *sdkmcp.ClientSession, tool string) *MCPInterpreter {
	return &MCPInterpreter{session: session, tool: tool}
}

func (m *MCPInterpreter) Interpret(ctx context.Context, req Request) (*Response, error) {
	args := map[string]any{"prompt": req.Prompt}
	// A nil map would be sent as null, which object schemas reject.
	if req.Context != nil {
		args["context"] = req.Context
	}
	result, err := m.session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      m.tool,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", m.tool, err)
	}
	text := extractToolText(result)
	if result.IsError {
		return &Response{Error: text}, nil
	}
	return &Response{Success: true, Output: text}, nil
}

// extractToolText joins the text content of a CallToolResult.
func extractToolText(r *sdkmcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	var parts []string
	for _, c := range r.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
