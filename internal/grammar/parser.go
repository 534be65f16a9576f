// Package grammar parses the task-creation commands an interpreter emits,
//
//	sift add "<title>" [--type T] [--priority N] [--description D] [--status S] [--urgent]
//
// into structured commands. Parsing never executes anything, and malformed
// input is reported on the returned Command rather than as an error.
package grammar

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Status values accepted by --status.
const (
	StatusPending = "pending"
	StatusHold    = "hold"
)

// Priority bounds. --urgent forces MaxPriority.
const (
	MinPriority = 1
	MaxPriority = 5
)

const (
	defaultType     = "bug_fix"
	defaultPriority = 3
)

// DefaultVerbs is the command prefix recognised when Parser.Verbs is empty.
var DefaultVerbs = []string{"sift", "add"}

// Command is one parsed task-creation command. Valid is false when the line
// could not be accepted, and Error says why.
type Command struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Priority    int    `json:"priority"`
	Description string `json:"description,omitempty"`
	Urgent      bool   `json:"urgent"`
	Status      string `json:"status"`
	Raw         string `json:"raw"`
	Valid       bool   `json:"valid"`
	Error       string `json:"validation_error,omitempty"`
}

// Parser parses command lines. The zero value is ready to use.
type Parser struct {
	Verbs           []string // fixed leading keywords, default DefaultVerbs
	DefaultType     string   // default "bug_fix"
	DefaultPriority int      // default 3
	Logger          *slog.Logger
}

// ParseLine parses a single command line.
func (p *Parser) ParseLine(line string) Command {
	cmd := Command{
		Type:     p.defaultType(),
		Priority: p.defaultPriority(),
		Status:   StatusPending,
		Raw:      line,
	}
	invalid := func(format string, args ...any) Command {
		cmd.Valid = false
		cmd.Error = fmt.Sprintf(format, args...)
		return cmd
	}

	words, err := shellquote.Split(line)
	if err != nil {
		return invalid("failed to parse command: %v", err)
	}

	verbs := p.verbs()
	if !hasPrefix(words, verbs) {
		return invalid("command must start with '%s'", strings.Join(verbs, " "))
	}

	var (
		title    string
		hasTitle bool
	)
	args := words[len(verbs):]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			if !hasTitle {
				title, hasTitle = arg, true
			}
			continue
		}

		name, value, inline := strings.Cut(arg[2:], "=")
		switch name {
		case "urgent":
			cmd.Urgent = true
			continue
		case "type", "priority", "description", "status":
		default:
			p.logger().Debug("skipping unknown option", "option", "--"+name, "line", line)
			continue
		}

		if !inline {
			if i+1 >= len(args) {
				return invalid("option --%s requires a value", name)
			}
			i++
			value = args[i]
		}

		switch name {
		case "type":
			cmd.Type = value
		case "description":
			cmd.Description = value
		case "priority":
			n, err := strconv.Atoi(value)
			if err != nil {
				return invalid("priority must be an integer, got: %s", value)
			}
			if n < MinPriority || n > MaxPriority {
				return invalid("priority must be between %d and %d, got: %d", MinPriority, MaxPriority, n)
			}
			cmd.Priority = n
		case "status":
			if value != StatusPending && value != StatusHold {
				return invalid("status must be '%s' or '%s', got: %s", StatusPending, StatusHold, value)
			}
			cmd.Status = value
		}
	}

	if !hasTitle {
		return invalid("command must have a title")
	}
	if strings.TrimSpace(title) == "" {
		return invalid("title cannot be empty")
	}
	cmd.Title = title
	if cmd.Urgent {
		cmd.Priority = MaxPriority
	}
	cmd.Valid = true
	return cmd
}

// Scan extracts commands from free text, one per line. Lines whose first
// two words are not the command verbs are ignored. Matching lines that fail
// to parse are logged and returned in rejected.
func (p *Parser) Scan(text string) (accepted, rejected []Command) {
	verbs := p.verbs()
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !hasPrefix(strings.Fields(line), verbs) {
			continue
		}
		cmd := p.ParseLine(line)
		if !cmd.Valid {
			p.logger().Warn("skipping malformed command", "line", line, "reason", cmd.Error)
			rejected = append(rejected, cmd)
			continue
		}
		accepted = append(accepted, cmd)
	}
	return accepted, rejected
}

func (p *Parser) verbs() []string {
	if len(p.Verbs) == 0 {
		return DefaultVerbs
	}
	return p.Verbs
}

func (p *Parser) defaultType() string {
	if p.DefaultType == "" {
		return defaultType
	}
	return p.DefaultType
}

func (p *Parser) defaultPriority() int {
	if p.DefaultPriority == 0 {
		return defaultPriority
	}
	return p.DefaultPriority
}

func (p *Parser) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func hasPrefix(words, prefix []string) bool {
	if len(words) < len(prefix) {
		return false
	}
	for i, w := range prefix {
		if words[i] != w {
			return false
		}
	}
	return true
}
