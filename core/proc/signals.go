package proc

import (
	"log"
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
)

// JobControlSignals are the signals the shell must not act on while it is
// running, but that programs it starts need at their default disposition.
var JobControlSignals = []os.Signal{
	unix.SIGINT,
	unix.SIGQUIT,
	unix.SIGTSTP,
	unix.SIGTTIN,
	unix.SIGTTOU,
}

// SignalPolicy keeps the shell from being interrupted or stopped by job
// control signals.
//
// The signals are caught and dropped rather than set to SIG_IGN: an ignored
// disposition survives exec, but the Go runtime resets caught signals to
// their defaults in a forked child before it execs.
type SignalPolicy struct {
	logger *log.Logger
	sigs   chan os.Signal
	done   chan struct{}
	once   sync.Once
}

// InstallSignalPolicy starts catching JobControlSignals.
func InstallSignalPolicy(logger *log.Logger) *SignalPolicy {
	p := &SignalPolicy{
		logger: logger,
		sigs:   make(chan os.Signal, 8),
		done:   make(chan struct{}),
	}
	signal.Notify(p.sigs, JobControlSignals...)
	go p.drain()
	return p
}

func (p *SignalPolicy) drain() {
	for {
		select {
		case sig := <-p.sigs:
			p.logger.Printf("ignoring signal %v", sig)
		case <-p.done:
			return
		}
	}
}

// WithTerminalControl runs fn with SIGTTOU ignored.
//
// Changing the terminal's foreground group from a background group raises
// SIGTTOU, and the kernel restarts the call after a caught signal, so the
// signal has to be ignored while fn runs. It must not overlap a fork. A nil
// policy restores the default disposition afterwards.
func (p *SignalPolicy) WithTerminalControl(fn func() error) error {
	signal.Ignore(unix.SIGTTOU)
	defer func() {
		if p == nil {
			signal.Reset(unix.SIGTTOU)
			return
		}
		signal.Notify(p.sigs, unix.SIGTTOU)
	}()

	return fn()
}

// Stop restores the default dispositions.
func (p *SignalPolicy) Stop() {
	p.once.Do(func() {
		signal.Stop(p.sigs)
		signal.Reset(JobControlSignals...)
		close(p.done)
	})
}
