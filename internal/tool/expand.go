package tool

import (
	"log/slog"
	"os"
	"regexp"
)

// envRef matches ${NAME} or $NAME, where NAME is an identifier that does
// not start with a digit.
var envRef = regexp.MustCompile(`\$(?:\{([A-Za-z_][A-Za-z0-9_]*)\}|([A-Za-z_][A-Za-z0-9_]*))`)

// LookupFunc resolves an environment variable. It has the signature of
// os.LookupEnv.
type LookupFunc func(name string) (string, bool)

// Expand substitutes $NAME and ${NAME} references in command with values
// from the process environment. Undefined variables are left as written
// and reported with a warning. Values are not expanded again.
func Expand(command string, logger *slog.Logger) string {
	return ExpandWith(command, os.LookupEnv, logger)
}

// ExpandWith is Expand with an explicit variable lookup.
func ExpandWith(command string, lookup LookupFunc, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}
	return envRef.ReplaceAllStringFunc(command, func(token string) string {
		m := envRef.FindStringSubmatch(token)
		name := m[1]
		if name == "" {
			name = m[2]
		}
		value, ok := lookup(name)
		if !ok {
			logger.Warn("environment variable is not set, leaving it unexpanded",
				"var", name, "token", token)
			return token
		}
		return value
	})
}
