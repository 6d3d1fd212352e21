// Package launch starts external commands as jobs.
//
// Every command runs in a new process group whose id is the pid of the
// command. Foreground jobs are handed the terminal until they exit or stop,
// background jobs are recorded in the job registry and left running.
package launch

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"syscall"

	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/josephlewis42/jobsh/core/proc"
	"github.com/josephlewis42/jobsh/core/redirect"
	"github.com/josephlewis42/jobsh/core/tty"
	"golang.org/x/sys/unix"
)

var (
	// ErrFork is returned when the system couldn't create a process.
	ErrFork = errors.New("cannot fork")
	// ErrExec is returned when the process couldn't execute the command.
	ErrExec = errors.New("cannot execute")
	// ErrContinue is returned when a stopped job couldn't be sent SIGCONT.
	ErrContinue = errors.New("cannot continue")
)

// Result describes a launched command.
type Result struct {
	Pid        int
	Pgid       int
	Background bool

	// Status is set for foreground commands and commands that failed to
	// execute.
	Status proc.Status

	// Job is the registry entry for background and stopped commands.
	Job *jobs.Job
}

// Launcher starts commands with the shell's standard streams.
type Launcher struct {
	arbiter *tty.Arbiter
	jobs    *jobs.Registry
	events  *logger.SessionLogger
	logger  *log.Logger

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// Messages receives job notices like "[pid]".
	Messages io.Writer

	// Env is passed to commands, nil uses the shell's environment.
	Env []string
}

// New creates a Launcher writing to the process's standard streams.
func New(arbiter *tty.Arbiter, registry *jobs.Registry, events *logger.SessionLogger, diag *log.Logger) *Launcher {
	if events == nil {
		events = logger.NewNopLogger().NewSession()
	}
	if diag == nil {
		diag = log.New(io.Discard, "", 0)
	}

	return &Launcher{
		arbiter:  arbiter,
		jobs:     registry,
		events:   events,
		logger:   diag,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Messages: os.Stdout,
	}
}

// Launch runs the executable at path with the command line tokens.
//
// Redirection operators and a trailing "&" are interpreted; tokens[0] is
// passed as the program name. Background commands return as soon as they're
// started. Foreground commands return once they exit or stop; stopped commands
// are added to the job registry.
//
// If the command can't be executed, the error wraps ErrExec and the Result
// carries exit status 127.
func (l *Launcher) Launch(path string, tokens []string) (*Result, error) {
	spec, err := redirect.Resolve(tokens)
	if err != nil {
		return nil, err
	}

	stdin, stdout, closeFiles, err := l.openRedirects(spec)
	if err != nil {
		return nil, err
	}
	// The child has its own copies once ForkExec returns.
	defer closeFiles()

	env := l.Env
	if env == nil {
		env = os.Environ()
	}

	sys := &syscall.SysProcAttr{Setpgid: true}
	if !spec.Background && l.arbiter.Interactive() {
		sys.Foreground = true
		sys.Ctty = l.arbiter.Fd()
	}

	pid, err := syscall.ForkExec(path, spec.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{stdin.Fd(), stdout.Fd(), l.Stderr.Fd()},
		Sys:   sys,
	})
	if err != nil {
		if sys.Foreground {
			// The child takes the terminal before exec, even if exec then fails.
			if restoreErr := l.arbiter.Reclaim(); restoreErr != nil {
				l.logger.Printf("restoring terminal: %v", restoreErr)
			}
		}
		return l.launchFailed(path, spec, err)
	}

	if pgid, err := unix.Getpgid(pid); err != nil {
		l.logger.Printf("checking process group of %d: %v", pid, err)
	} else if pgid != pid {
		l.logger.Printf("process %d is in group %d, expected its own", pid, pgid)
	}

	job := jobs.New(pid, spec.Args)
	l.events.Record(&logger.Launch{
		JobID:               job.ID,
		Pid:                 pid,
		Pgid:                job.Pgid,
		Command:             spec.Args,
		ResolvedCommandPath: path,
		Background:          spec.Background,
	})

	res := &Result{Pid: pid, Pgid: job.Pgid, Background: spec.Background}
	if spec.Background {
		l.jobs.Push(job)
		res.Job = job
		fmt.Fprintf(l.Messages, "[%d]\n", pid)
		return res, nil
	}

	status, err := l.Foreground(job)
	res.Status = status
	if status.Stopped {
		res.Job = job
	}
	return res, err
}

// Foreground gives the terminal to job and waits for it to exit or stop. A
// job that stops is pushed on the registry so fg and bg can find it.
func (l *Launcher) Foreground(job *jobs.Job) (proc.Status, error) {
	job.State = jobs.Running
	status, err := l.arbiter.Foreground(job.Pgid)

	l.events.Record(&logger.Foreground{
		JobID:    job.ID,
		Pid:      job.Pid,
		Status:   status.String(),
		ExitCode: status.Code,
		Stopped:  status.Stopped,
	})

	if status.Stopped {
		job.State = jobs.Stopped
		l.jobs.Push(job)
		fmt.Fprintf(l.Messages, "\n[%d] %s\t%s\n", job.Pid, status, job.Command())
	}

	return status, err
}

// Background resumes job without giving it the terminal.
func (l *Launcher) Background(job *jobs.Job) error {
	if err := proc.Continue(job.Pgid); err != nil {
		return err
	}
	job.State = jobs.Running

	l.events.Record(&logger.Continue{JobID: job.ID, Pid: job.Pid, Background: true})
	fmt.Fprintf(l.Messages, "[%d] %s &\n", job.Pid, job.Command())
	return nil
}

// Resume continues job and brings it to the foreground.
func (l *Launcher) Resume(job *jobs.Job) (proc.Status, error) {
	if err := proc.Continue(job.Pgid); err != nil {
		return proc.Status{Pid: job.Pid}, fmt.Errorf("%w: %w", ErrContinue, err)
	}

	l.events.Record(&logger.Continue{JobID: job.ID, Pid: job.Pid})
	fmt.Fprintln(l.Messages, job.Command())
	return l.Foreground(job)
}

func (l *Launcher) launchFailed(path string, spec *redirect.Spec, err error) (*Result, error) {
	l.events.Record(&logger.LaunchFailure{Command: spec.Args, Error: err.Error()})

	if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.ENOMEM) {
		return nil, fmt.Errorf("%w: %w", ErrFork, err)
	}

	return &Result{
		Background: spec.Background,
		Status:     proc.ExitedWith(0, proc.ExitNotExecutable),
	}, fmt.Errorf("%w: %s: %w", ErrExec, path, err)
}

func (l *Launcher) openRedirects(spec *redirect.Spec) (stdin, stdout *os.File, closeFiles func(), err error) {
	var opened []*os.File
	closeFiles = func() {
		for _, f := range opened {
			f.Close()
		}
	}

	stdin, stdout = l.Stdin, l.Stdout

	if spec.Stdin != "" {
		f, err := os.Open(spec.Stdin)
		if err != nil {
			return nil, nil, nil, err
		}
		opened = append(opened, f)
		stdin = f
	}

	if spec.Stdout != "" {
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if spec.Append {
			flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		}
		f, err := os.OpenFile(spec.Stdout, flags, 0666)
		if err != nil {
			closeFiles()
			return nil, nil, nil, err
		}
		opened = append(opened, f)
		stdout = f
	}

	return stdin, stdout, closeFiles, nil
}
