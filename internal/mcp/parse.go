package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/sift/internal/grammar"
)

type parseParams struct {
	Text string `json:"text" jsonschema:"free text containing sift add commands, one per line"`
}

type parseOutput struct {
	Accepted []grammar.Command `json:"accepted"`
	Rejected []grammar.Command `json:"rejected"`
}

func (h *handler) parseHandler(ctx context.Context, req *mcp.CallToolRequest, params parseParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.Text) == "" {
		return errorResult("text is required")
	}
	accepted, rejected := h.parser.Scan(params.Text)
	out := parseOutput{
		Accepted: nonNil(accepted),
		Rejected: nonNil(rejected),
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encoding result: %v", err))
	}
	return textResult(string(b))
}

func nonNil(cmds []grammar.Command) []grammar.Command {
	if cmds == nil {
		return []grammar.Command{}
	}
	return cmds
}
