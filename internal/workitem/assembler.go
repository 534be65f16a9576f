package workitem

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deixis/sift/internal/grammar"
)

// DefaultMaxPerTool caps the items produced from one tool run.
const DefaultMaxPerTool = 50

const (
	summaryType     = "refactor"
	summaryPriority = 3

	dedupPrefixLen   = 1000
	outputPreviewLen = 500
	stdoutLines      = 20
	stderrLines      = 10

	addedVia = "sift_discover"
)

// Assembler builds work items. It remembers which summaries it has already
// produced, so one Assembler should live as long as the process.
type Assembler struct {
	MaxPerTool int              // default DefaultMaxPerTool
	Now        func() time.Time // default time.Now
	NewID      func() string    // default uuid.NewString
	Logger     *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// Summarize returns a single item describing a tool run that reported
// findings. Runs that failed, exited 0, produced no output, or whose output
// matches a previous summary yield nothing.
func (a *Assembler) Summarize(out ToolOutput) []Item {
	if !out.Success || out.ExitCode == 0 {
		return nil
	}
	if strings.TrimSpace(out.Stdout) == "" && strings.TrimSpace(out.Stderr) == "" {
		return nil
	}

	key := DedupKey(out.Name, out.Stdout)
	a.mu.Lock()
	if a.seen == nil {
		a.seen = make(map[string]struct{})
	}
	_, dup := a.seen[key]
	a.seen[key] = struct{}{}
	a.mu.Unlock()
	if dup {
		a.logger().Debug("skipping duplicate summary", "tool", out.Name)
		return nil
	}

	ctx := a.baseContext(out, "external_tool_discovery")
	ctx["output_preview"] = truncate(out.Stdout, outputPreviewLen)
	ctx["duration_seconds"] = out.Duration.Seconds()

	return []Item{{
		ID:          a.newID(),
		Type:        summaryType,
		Title:       fmt.Sprintf("Fix issues found by %s", out.Name),
		Description: describe(out),
		Priority:    summaryPriority,
		Status:      grammar.StatusPending,
		Source:      "external_tool:" + out.Name,
		Context:     ctx,
	}}
}

// FromCommands returns one item per valid command, keeping at most
// MaxPerTool of them.
func (a *Assembler) FromCommands(out ToolOutput, cmds []grammar.Command) []Item {
	items := make([]Item, 0, len(cmds))
	for _, cmd := range cmds {
		if !cmd.Valid {
			continue
		}
		ctx := a.baseContext(out, "interpreter")
		ctx["urgent"] = cmd.Urgent
		items = append(items, Item{
			ID:          a.newID(),
			Type:        cmd.Type,
			Title:       cmd.Title,
			Description: cmd.Description,
			Priority:    cmd.Priority,
			Status:      cmd.Status,
			Source:      "discover:" + out.Name,
			Context:     ctx,
		})
	}
	return a.Limit(out.Name, items)
}

// Forget drops a summary key recorded by Summarize, so the same output is
// summarized again next time. The engine calls it when the item never
// reached the queue.
func (a *Assembler) Forget(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.seen, key)
}

// Limit truncates items to MaxPerTool.
func (a *Assembler) Limit(tool string, items []Item) []Item {
	limit := a.maxPerTool()
	if len(items) <= limit {
		return items
	}
	a.logger().Info("limiting work items for tool",
		"tool", tool, "produced", len(items), "kept", limit)
	return items[:limit]
}

// DedupKey identifies a summary by tool name and the first 1000 characters
// of its output.
func DedupKey(tool, stdout string) string {
	sum := sha256.Sum256([]byte(tool + ":" + prefix(stdout, dedupPrefixLen)))
	return hex.EncodeToString(sum[:])
}

func (a *Assembler) baseContext(out ToolOutput, by string) map[string]any {
	ctx := map[string]any{
		"tool_name":     out.Name,
		"tool_command":  out.Command,
		"exit_code":     out.ExitCode,
		"timestamp":     a.now().UTC().Format(time.RFC3339),
		"discovered_by": by,
		"added_via":     addedVia,
	}
	if out.RunID != "" {
		ctx["run_id"] = out.RunID
	}
	if out.InvocationID != "" {
		ctx["invocation_id"] = out.InvocationID
	}
	return ctx
}

func describe(out ToolOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "External tool '%s' found issues that need attention.\n\n", out.Name)
	fmt.Fprintf(&b, "**Command:** `%s`\n", out.Command)
	fmt.Fprintf(&b, "**Exit Code:** %d\n", out.ExitCode)
	fmt.Fprintf(&b, "**Duration:** %.2fs\n", out.Duration.Seconds())

	if out.Stdout != "" {
		b.WriteString("\n**Output Preview:**\n```\n")
		writeLines(&b, out.Stdout, stdoutLines)
		b.WriteString("```\n")
	}
	if out.Stderr != "" {
		b.WriteString("\n**Stderr:**\n```\n")
		writeLines(&b, out.Stderr, stderrLines)
		b.WriteString("```\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeLines(b *strings.Builder, s string, n int) {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if i == n {
			b.WriteString("... (truncated)\n")
			break
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
}

// prefix returns the first n characters of s.
func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func truncate(s string, n int) string {
	p := prefix(s, n)
	if len(p) < len(s) {
		return p + "..."
	}
	return p
}

func (a *Assembler) maxPerTool() int {
	if a.MaxPerTool <= 0 {
		return DefaultMaxPerTool
	}
	return a.MaxPerTool
}

func (a *Assembler) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func (a *Assembler) newID() string {
	if a.NewID == nil {
		return uuid.NewString()
	}
	return a.NewID()
}

func (a *Assembler) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}
