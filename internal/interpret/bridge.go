// Package interpret asks an external interpreter, typically a coding agent,
// to read a tool's output file and answer with sift add commands.
//
// The bridge never looks at the tool output itself. It renders an
// instruction template that points at the file and hands it over.
package interpret

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Request is what the interpreter receives.
type Request struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Title   string         `json:"title"`
	Prompt  string         `json:"prompt"`
	Context map[string]any `json:"context"`
}

// Response is the interpreter's raw answer.
type Response struct {
	Success  bool          `json:"success"`
	Output   string        `json:"output"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"-"`
}

// MarshalJSON reports Duration as execution_time in seconds.
func (r Response) MarshalJSON() ([]byte, error) {
	type plain Response
	return json.Marshal(struct {
		plain
		ExecutionTime float64 `json:"execution_time"`
	}{plain(r), r.Duration.Seconds()})
}

// Interpreter turns a rendered instruction into free text.
type Interpreter interface {
	Interpret(ctx context.Context, req Request) (*Response, error)
}

// Bridge selects and renders a template for a tool run and delegates it to
// an Interpreter.
type Bridge struct {
	Templates   *Templates
	Interpreter Interpreter
	Template    string // explicit template name; inferred from the tool name when empty
	Logger      *slog.Logger
}

// Prompt renders the instruction for a tool run.
func (b *Bridge) Prompt(toolName, command, outputPath string) string {
	name := b.Template
	if name == "" {
		name = b.Templates.ForTool(toolName)
	}
	b.logger().Debug("rendering interpretation prompt", "tool", toolName, "template", name)
	return b.Templates.Render(name, toolName, command, outputPath)
}

// Request builds the interpreter request for a tool run.
func (b *Bridge) Request(toolName, command, outputPath string) Request {
	return Request{
		ID:     "interpret-" + toolName,
		Type:   "interpretation",
		Title:  "Interpret " + toolName + " output",
		Prompt: b.Prompt(toolName, command, outputPath),
		Context: map[string]any{
			"tool_name":    toolName,
			"tool_command": command,
			"output_file":  outputPath,
		},
	}
}

// Interpret sends the rendered instruction to the interpreter and returns
// its answer. Interpreter errors are reported on the response.
func (b *Bridge) Interpret(ctx context.Context, toolName, command, outputPath string) *Response {
	req := b.Request(toolName, command, outputPath)

	start := time.Now()
	resp, err := b.Interpreter.Interpret(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		b.logger().Warn("interpreter failed", "tool", toolName, "error", err)
		return &Response{Error: err.Error(), Duration: elapsed}
	}
	if resp == nil {
		resp = &Response{Error: "interpreter returned no response"}
	}
	if resp.Duration == 0 {
		resp.Duration = elapsed
	}
	if !resp.Success {
		b.logger().Warn("interpretation unsuccessful", "tool", toolName, "error", resp.Error)
	}
	return resp
}

func (b *Bridge) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}
