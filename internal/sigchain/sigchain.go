// Package sigchain keeps a process-wide table of signal handlers that can be
// stacked and chained.
//
// os/signal fans a signal out to every subscribed channel. That is the wrong
// shape for cleanup handlers, which must run once and then hand the signal to
// whoever was installed before them. Install records the handler that was
// live for each signal, Forward calls it (or re-raises the signal with its
// default disposition when there is none) and Restore puts it back.
package sigchain

import (
	"os"
	"os/signal"
	"sync"
)

// Handler is called from a dedicated goroutine when a signal arrives. The
// registration it was installed with is passed so the handler can chain to
// the previous one with Forward.
type Handler func(reg *Registration, sig os.Signal)

type entry struct {
	h   Handler
	reg *Registration
}

type watcher struct {
	ch   chan os.Signal
	done chan struct{}
}

var (
	mu       sync.Mutex
	live     = map[os.Signal]*entry{}
	watchers = map[os.Signal]*watcher{}
)

// Registration is the result of Install. It remembers which handlers were
// live before it so they can be chained to and restored.
type Registration struct {
	sigs     []os.Signal
	prev     map[os.Signal]*entry
	restored bool // guarded by mu

	once sync.Once
}

// Install makes h the live handler for each of sigs and returns the
// registration that chains to and restores the handlers it replaced.
func Install(h Handler, sigs ...os.Signal) *Registration {
	reg := &Registration{
		sigs: append([]os.Signal(nil), sigs...),
		prev: make(map[os.Signal]*entry, len(sigs)),
	}

	mu.Lock()
	defer mu.Unlock()
	for _, sig := range sigs {
		reg.prev[sig] = live[sig]
		live[sig] = &entry{h: h, reg: reg}
		watch(sig)
	}
	return reg
}

// Signals returns the signals the registration was installed for.
func (r *Registration) Signals() []os.Signal {
	return append([]os.Signal(nil), r.sigs...)
}

// Forward delivers sig to the handler that was live before r was installed.
// When there was none the signal's default disposition is restored and the
// signal is raised again, which for SIGINT and SIGTERM terminates the process.
func (r *Registration) Forward(sig os.Signal) {
	mu.Lock()
	prev := r.previous(sig)
	mu.Unlock()

	if prev != nil {
		prev.h(prev.reg, sig)
		return
	}
	raiseDefault(sig)
}

// Restore reinstates the handlers that were live before r. It only touches
// signals for which r is still the live handler, so registrations may be
// restored out of order. Calling Restore more than once is a no-op.
func (r *Registration) Restore() {
	r.once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		r.restored = true
		for _, sig := range r.sigs {
			cur := live[sig]
			if cur == nil || cur.reg != r {
				continue
			}
			if prev := r.previous(sig); prev != nil {
				live[sig] = prev
				continue
			}
			delete(live, sig)
			unwatch(sig)
		}
	})
}

// previous returns the nearest handler before r for sig whose registration
// has not been restored. Callers hold mu.
func (r *Registration) previous(sig os.Signal) *entry {
	prev := r.prev[sig]
	for prev != nil && prev.reg.restored {
		prev = prev.reg.prev[sig]
	}
	return prev
}

// Installed reports whether any handler is live for sig.
func Installed(sig os.Signal) bool {
	mu.Lock()
	defer mu.Unlock()
	return live[sig] != nil
}

// watch subscribes to sig once. Callers hold mu.
func watch(sig os.Signal) {
	if _, ok := watchers[sig]; ok {
		return
	}
	w := &watcher{ch: make(chan os.Signal, 1), done: make(chan struct{})}
	watchers[sig] = w
	signal.Notify(w.ch, sig)
	go func() {
		for {
			select {
			case s := <-w.ch:
				dispatch(s)
			case <-w.done:
				return
			}
		}
	}()
}

// unwatch stops delivery of sig to this package. Other subscribers of
// os/signal are left alone. Callers hold mu.
func unwatch(sig os.Signal) {
	w, ok := watchers[sig]
	if !ok {
		return
	}
	signal.Stop(w.ch)
	close(w.done)
	delete(watchers, sig)
}

// dispatch runs the live handler for sig, if any.
func dispatch(sig os.Signal) {
	mu.Lock()
	e := live[sig]
	mu.Unlock()
	if e == nil {
		return
	}
	e.h(e.reg, sig)
}
