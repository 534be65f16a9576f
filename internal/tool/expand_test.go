package tool

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func fakeEnv(vars map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func TestExpandWith_BothForms(t *testing.T) {
	env := fakeEnv(map[string]string{"TOKEN": "abc", "DIR": "src"})
	got := ExpandWith("scan -t $TOKEN ${DIR}/lib", env, nil)
	if got != "scan -t abc src/lib" {
		t.Errorf("ExpandWith = %q, want %q", got, "scan -t abc src/lib")
	}
}

func TestExpandWith_UndefinedLeftAsIs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	got := ExpandWith("sonar-scanner -Dsonar.token=${SONAR_TOKEN} $MISSING", fakeEnv(nil), logger)
	if got != "sonar-scanner -Dsonar.token=${SONAR_TOKEN} $MISSING" {
		t.Errorf("ExpandWith = %q", got)
	}
	if strings.Count(buf.String(), "level=WARN") != 2 {
		t.Errorf("expected two warnings, log = %q", buf.String())
	}
	if !strings.Contains(buf.String(), "SONAR_TOKEN") {
		t.Errorf("warning should name the variable, log = %q", buf.String())
	}
}

func TestExpandWith_NotRecursive(t *testing.T) {
	env := fakeEnv(map[string]string{"A": "$B", "B": "nope"})
	if got := ExpandWith("echo $A", env, nil); got != "echo $B" {
		t.Errorf("ExpandWith = %q, want %q", got, "echo $B")
	}
}

func TestExpandWith_DigitStartIgnored(t *testing.T) {
	env := fakeEnv(map[string]string{"1": "x"})
	if got := ExpandWith("awk '{print $1}'", env, nil); got != "awk '{print $1}'" {
		t.Errorf("ExpandWith = %q", got)
	}
}

func TestExpandWith_EmptyValue(t *testing.T) {
	env := fakeEnv(map[string]string{"FLAGS": ""})
	if got := ExpandWith("ruff $FLAGS.", env, nil); got != "ruff ." {
		t.Errorf("ExpandWith = %q, want %q", got, "ruff .")
	}
}

func TestSpec_ExpandedCommand(t *testing.T) {
	t.Setenv("SIFT_TEST_TARGET", "pkg")
	s := Spec{Name: "vet", Command: "go vet ./$SIFT_TEST_TARGET/..."}
	if got := s.ExpandedCommand(nil); got != "go vet ./pkg/..." {
		t.Errorf("ExpandedCommand = %q", got)
	}
	if s.Command != "go vet ./$SIFT_TEST_TARGET/..." {
		t.Error("ExpandedCommand must not mutate the spec")
	}
}
