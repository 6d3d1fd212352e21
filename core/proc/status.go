// Package proc wraps the process primitives the shell's job control is built
// on: waiting, continuing and the shell's signal policy.
package proc

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ExitNotExecutable is the status reported for a command that could not be
// executed.
const ExitNotExecutable = 127

// Status is the decoded result of a wait.
type Status struct {
	// Pid is the process the status belongs to.
	Pid int

	Exited   bool
	Code     int
	Signaled bool
	Stopped  bool
	Signal   unix.Signal
}

// FromWaitStatus decodes a raw wait status.
func FromWaitStatus(pid int, ws unix.WaitStatus) Status {
	st := Status{Pid: pid}
	switch {
	case ws.Exited():
		st.Exited = true
		st.Code = ws.ExitStatus()
	case ws.Signaled():
		st.Signaled = true
		st.Signal = ws.Signal()
		st.Code = 128 + int(ws.Signal())
	case ws.Stopped():
		st.Stopped = true
		st.Signal = ws.StopSignal()
		st.Code = 128 + int(ws.StopSignal())
	}
	return st
}

// ExitedWith builds the status of a process that exited with code.
func ExitedWith(pid, code int) Status {
	return Status{Pid: pid, Exited: true, Code: code}
}

// Success is true if the process exited with status 0.
func (s Status) Success() bool {
	return s.Exited && s.Code == 0
}

// Terminated is true if the process is gone.
func (s Status) Terminated() bool {
	return s.Exited || s.Signaled
}

func (s Status) String() string {
	switch {
	case s.Exited && s.Code == 0:
		return "done"
	case s.Exited:
		return fmt.Sprintf("exit %d", s.Code)
	case s.Signaled:
		return fmt.Sprintf("killed (%s)", unix.SignalName(s.Signal))
	case s.Stopped:
		return fmt.Sprintf("stopped (%s)", unix.SignalName(s.Signal))
	default:
		return "unknown"
	}
}

// WaitGroup blocks until a process in group pgid exits or stops.
func WaitGroup(pgid int) (Status, error) {
	return wait(-pgid, unix.WUNTRACED)
}

// WaitAny blocks until any child exits. It returns unix.ECHILD when there
// are no children left.
func WaitAny() (Status, error) {
	return wait(-1, 0)
}

// Probe checks whether the child pid has terminated without blocking. A
// terminated child is reaped and its status returned with done set.
// Processes that aren't children of the shell report unix.ECHILD.
func Probe(pid int) (st Status, done bool, err error) {
	var ws unix.WaitStatus
	for {
		wpid, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case err != nil:
			return Status{Pid: pid}, false, err
		case wpid == 0:
			return Status{Pid: pid}, false, nil
		default:
			return FromWaitStatus(wpid, ws), true, nil
		}
	}
}

func wait(pid, options int) (Status, error) {
	var ws unix.WaitStatus
	for {
		wpid, err := unix.Wait4(pid, &ws, options, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return Status{Pid: pid}, err
		}
		return FromWaitStatus(wpid, ws), nil
	}
}

// Continue sends SIGCONT to every process in the group pgid.
func Continue(pgid int) error {
	return unix.Kill(-pgid, unix.SIGCONT)
}

// ContinueProcess sends SIGCONT to a single process.
func ContinueProcess(pid int) error {
	return unix.Kill(pid, unix.SIGCONT)
}
