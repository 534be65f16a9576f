//go:build !unix

package sigchain

import "os"

// Without kill(2) the closest match to the default disposition of an
// interrupt is to exit.
func raiseDefault(os.Signal) {
	os.Exit(1)
}
