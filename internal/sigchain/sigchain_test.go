package sigchain

import (
	"os"
	"syscall"
	"testing"
)

// Tests use signals nobody else in the test binary listens to and drive the
// table through dispatch, so nothing is actually delivered.

func TestInstall_ChainsToPrevious(t *testing.T) {
	var calls []string
	outer := Install(func(_ *Registration, sig os.Signal) {
		calls = append(calls, "outer")
	}, syscall.SIGUSR2)
	defer outer.Restore()

	inner := Install(func(reg *Registration, sig os.Signal) {
		calls = append(calls, "inner")
		reg.Forward(sig)
	}, syscall.SIGUSR2)
	defer inner.Restore()

	dispatch(syscall.SIGUSR2)

	if len(calls) != 2 || calls[0] != "inner" || calls[1] != "outer" {
		t.Errorf("calls = %v, want [inner outer]", calls)
	}
}

func TestRestore_ReinstatesPrevious(t *testing.T) {
	var got string
	outer := Install(func(*Registration, os.Signal) { got = "outer" }, syscall.SIGUSR2)
	defer outer.Restore()

	inner := Install(func(*Registration, os.Signal) { got = "inner" }, syscall.SIGUSR2)
	inner.Restore()

	dispatch(syscall.SIGUSR2)
	if got != "outer" {
		t.Errorf("handler = %q, want outer", got)
	}
}

func TestRestore_Idempotent(t *testing.T) {
	reg := Install(func(*Registration, os.Signal) {}, syscall.SIGUSR2)
	reg.Restore()
	reg.Restore()
	reg.Restore()
	if Installed(syscall.SIGUSR2) {
		t.Error("Installed = true after Restore, want false")
	}
}

func TestRestore_OutOfOrder(t *testing.T) {
	var got string
	first := Install(func(*Registration, os.Signal) { got = "first" }, syscall.SIGUSR2)
	second := Install(func(*Registration, os.Signal) { got = "second" }, syscall.SIGUSR2)

	// first is no longer live; restoring it must not unseat second.
	first.Restore()
	dispatch(syscall.SIGUSR2)
	if got != "second" {
		t.Errorf("handler = %q, want second", got)
	}

	// first was already restored, so nothing comes back after second.
	second.Restore()
	if Installed(syscall.SIGUSR2) {
		t.Error("Installed = true, want the restored first handler to stay gone")
		reclaim(t, syscall.SIGUSR2)
	}
}

func TestRestore_OutOfOrderSkipsToEarlier(t *testing.T) {
	var got string
	base := Install(func(*Registration, os.Signal) { got = "base" }, syscall.SIGUSR2)
	defer reclaim(t, syscall.SIGUSR2)
	middle := Install(func(*Registration, os.Signal) { got = "middle" }, syscall.SIGUSR2)
	top := Install(func(reg *Registration, sig os.Signal) { reg.Forward(sig) }, syscall.SIGUSR2)

	middle.Restore()
	dispatch(syscall.SIGUSR2)
	if got != "base" {
		t.Errorf("forwarded to %q, want base", got)
	}

	got = ""
	top.Restore()
	dispatch(syscall.SIGUSR2)
	if got != "base" {
		t.Errorf("handler after Restore = %q, want base", got)
	}
	base.Restore()
}

func TestSignals(t *testing.T) {
	reg := Install(func(*Registration, os.Signal) {}, syscall.SIGUSR2, syscall.SIGWINCH)
	defer reg.Restore()
	if n := len(reg.Signals()); n != 2 {
		t.Errorf("len(Signals()) = %d, want 2", n)
	}
}

// reclaim clears any handler left live for sig.
func reclaim(t *testing.T, sig os.Signal) {
	t.Helper()
	mu.Lock()
	delete(live, sig)
	unwatch(sig)
	mu.Unlock()
}
