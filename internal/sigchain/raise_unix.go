//go:build unix

package sigchain

import (
	"os"
	"os/signal"
	"syscall"
)

func raiseDefault(sig os.Signal) {
	s, ok := sig.(syscall.Signal)
	if !ok {
		os.Exit(1)
	}
	signal.Reset(sig)
	if err := syscall.Kill(os.Getpid(), s); err != nil {
		os.Exit(128 + int(s))
	}
}
