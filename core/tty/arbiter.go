package tty

import (
	"errors"
	"fmt"
	"log"

	"github.com/josephlewis42/jobsh/core/proc"
	"golang.org/x/sys/unix"
)

// WaitFunc blocks until a process in group pgid exits or stops.
type WaitFunc func(pgid int) (proc.Status, error)

// Arbiter hands the terminal back and forth between the shell's process group
// and the group of the foreground job.
type Arbiter struct {
	term      Terminal
	shellPgid int
	modes     *unix.Termios
	policy    *proc.SignalPolicy
	logger    *log.Logger

	// Wait is called while the job owns the terminal.
	Wait WaitFunc
}

// NewArbiter creates an arbiter for term. Call Claim before handing off the
// terminal.
func NewArbiter(term Terminal, logger *log.Logger) *Arbiter {
	return &Arbiter{
		term:      term,
		shellPgid: unix.Getpgrp(),
		logger:    logger,
		Wait:      proc.WaitGroup,
	}
}

// Claim makes the shell the owner of the terminal and installs the shell's
// signal policy.
//
// If the shell was started in the background it stops itself with SIGTTIN
// until it is moved to the foreground. It then moves into its own process
// group, takes the terminal and saves the line discipline settings to restore
// after every foreground job.
func (a *Arbiter) Claim() error {
	if a.term.Interactive() {
		if err := a.claimTerminal(); err != nil {
			return err
		}
	}

	a.policy = proc.InstallSignalPolicy(a.logger)
	return nil
}

func (a *Arbiter) claimTerminal() error {
	for {
		fg, err := a.term.Foreground()
		if err != nil {
			return fmt.Errorf("reading terminal foreground group: %w", err)
		}
		pgrp := unix.Getpgrp()
		if fg == pgrp {
			break
		}
		if err := unix.Kill(-pgrp, unix.SIGTTIN); err != nil {
			return err
		}
	}

	pid := unix.Getpid()
	if unix.Getpgrp() != pid {
		if err := unix.Setpgid(0, 0); err != nil {
			// Session leaders can't change group, they already lead one.
			a.logger.Printf("couldn't create process group: %v", err)
		}
	}
	a.shellPgid = unix.Getpgrp()

	if err := a.setForeground(a.shellPgid); err != nil {
		return fmt.Errorf("taking control of the terminal: %w", err)
	}

	modes, err := a.term.Attr()
	if err != nil {
		return fmt.Errorf("saving terminal modes: %w", err)
	}
	a.modes = modes
	return nil
}

// Release stops the signal policy.
func (a *Arbiter) Release() {
	if a.policy != nil {
		a.policy.Stop()
	}
}

// Interactive reports whether there's a terminal to arbitrate.
func (a *Arbiter) Interactive() bool {
	return a.term.Interactive()
}

// Fd returns the terminal descriptor, -1 if detached.
func (a *Arbiter) Fd() int {
	return a.term.Fd()
}

// ShellPgid returns the shell's own process group.
func (a *Arbiter) ShellPgid() int {
	return a.shellPgid
}

// Foreground gives the terminal to pgid and blocks until that group exits or
// stops. The terminal and the shell's saved modes are always restored before
// returning, whatever the outcome of the wait.
func (a *Arbiter) Foreground(pgid int) (status proc.Status, err error) {
	defer func() {
		if restoreErr := a.reclaim(); restoreErr != nil {
			a.logger.Printf("restoring terminal: %v", restoreErr)
			err = errors.Join(err, restoreErr)
		}
	}()

	if err := a.setForeground(pgid); err != nil {
		// The job may already have exited; waiting still collects it.
		a.logger.Printf("giving terminal to group %d: %v", pgid, err)
	}

	return a.Wait(pgid)
}

// Reclaim gives the terminal and the saved modes back to the shell. Launches
// that fail after the child took the terminal need it.
func (a *Arbiter) Reclaim() error {
	return a.reclaim()
}

func (a *Arbiter) reclaim() error {
	if !a.term.Interactive() {
		return nil
	}

	ownerErr := a.setForeground(a.shellPgid)

	var modesErr error
	if a.modes != nil {
		modesErr = a.term.SetAttr(a.modes)
	}

	return errors.Join(ownerErr, modesErr)
}

// setForeground changes the terminal's foreground group. The shell may be in
// the background when this is called, so SIGTTOU is ignored around the change.
func (a *Arbiter) setForeground(pgid int) error {
	if !a.term.Interactive() {
		return a.term.SetForeground(pgid)
	}
	return a.policy.WithTerminalControl(func() error {
		return a.term.SetForeground(pgid)
	})
}
