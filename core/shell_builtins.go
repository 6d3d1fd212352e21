package core

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/josephlewis42/jobsh/core/launch"
	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/josephlewis42/jobsh/core/proc"
	"github.com/mitchellh/go-ps"
	"github.com/pborman/getopt/v2"
	"golang.org/x/sys/unix"
)

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]*Builtin)

// builtinOrder is the order builtins are listed in help.
var builtinOrder []string

type ShellBuiltin interface {
	Main(s *Shell, args []string) int
}

type ShellBuiltinFunc func(s *Shell, args []string) int

func (f ShellBuiltinFunc) Main(s *Shell, args []string) int {
	return f(s, args)
}

var _ ShellBuiltin = (ShellBuiltinFunc)(nil)

// Builtin is a command implemented by the shell itself.
type Builtin struct {
	Name string
	Doc  string
	ShellBuiltin
}

func mustAddBuiltin(name, doc string, fn ShellBuiltinFunc) {
	if _, ok := AllBuiltins[name]; ok {
		panic(fmt.Sprintf("duplicate builtin %q", name))
	}
	AllBuiltins[name] = &Builtin{Name: name, Doc: doc, ShellBuiltin: fn}
	builtinOrder = append(builtinOrder, name)
}

// ListBuiltins returns the builtins in help order.
func ListBuiltins() []*Builtin {
	var out []*Builtin
	for _, name := range builtinOrder {
		out = append(out, AllBuiltins[name])
	}
	return out
}

// BuiltinCommand parses the options of a builtin.
type BuiltinCommand struct {
	// Use holds a one line usage string
	Use string
	// Short holds a one line description of the command.
	Short string

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (b *BuiltinCommand) Flags() *getopt.Set {
	if b.flags == nil {
		b.flags = getopt.New()
	}

	return b.flags
}

// PrintHelp writes help for the command to the given writer.
func (b *BuiltinCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, b.Use)
	fmt.Fprintln(w, b.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	b.Flags().PrintOptions(w)
}

// Run the command, if flag parsing was successful call the callback with the
// remaining arguments.
func (b *BuiltinCommand) Run(s *Shell, args []string, callback func(args []string) int) int {
	opts := b.Flags()
	showHelp := opts.BoolLong("help", 'h', "show this help and exit")

	if err := opts.Getopt(args, nil); err != nil {
		s.Events.Record(&logger.InvalidInvocation{Command: args, Error: err.Error()})
		s.errorf("%s: %v", args[0], err)
		b.PrintHelp(s.Stderr)
		return ExitUsage
	}

	if *showHelp {
		b.PrintHelp(s.Stdout)
		return 0
	}

	return callback(opts.Args())
}

// fail reports a builtin error and returns its exit status.
func (s *Shell) fail(args []string, err error) int {
	s.Events.Record(&logger.InvalidInvocation{Command: args, Error: err.Error()})
	s.errorf("%s: %v", args[0], err)
	return 1
}

var errTooManyArgs = errors.New("too many arguments")

// Help prints the builtin table.
func Help(s *Shell, args []string) int {
	for _, b := range ListBuiltins() {
		fmt.Fprintf(s.Stdout, "%s - %s\n", b.Name, b.Doc)
	}
	return 0
}

// Exit quits the shell
func Exit(s *Shell, args []string) int {
	s.exit(0)
	return 0
}

// Pwd prints the working directory.
func Pwd(s *Shell, args []string) int {
	cmd := &BuiltinCommand{
		Use:   "pwd",
		Short: "Print the name of the current working directory.",
	}

	return cmd.Run(s, args, func([]string) int {
		wd, err := os.Getwd()
		if err != nil {
			return s.fail(args, err)
		}
		fmt.Fprintln(s.Stdout, wd)
		return 0
	})
}

// Cd is the cd shell builtin
func Cd(s *Shell, args []string) int {
	switch len(args) {
	case 1:
		args = append(args, os.Getenv(EnvHome))
		fallthrough
	case 2:
		if err := os.Chdir(args[1]); err != nil {
			return s.fail(args, err)
		}
	default:
		return s.fail(args, errTooManyArgs)
	}

	if wd, err := os.Getwd(); err == nil {
		os.Setenv(EnvPWD, wd)
	}
	return 0
}

// Wait reaps children until none are left.
func Wait(s *Shell, args []string) int {
	cmd := &BuiltinCommand{
		Use:   "wait",
		Short: "Wait until all background jobs have terminated.",
	}

	return cmd.Run(s, args, func([]string) int {
		for {
			status, err := proc.WaitAny()
			switch {
			case errors.Is(err, unix.ECHILD):
				return 0
			case err != nil:
				return s.fail(args, err)
			}
			s.reaped(status)
		}
	})
}

// Fg moves a job to the foreground.
func Fg(s *Shell, args []string) int {
	cmd := &BuiltinCommand{
		Use:   "fg [pid]",
		Short: "Move the process with id pid, or the most recent job, to the foreground.",
	}

	return cmd.Run(s, args, func(rest []string) int {
		job, err := s.targetJob(rest)
		if err != nil {
			return s.fail(args, err)
		}

		_, queued := s.Jobs.Remove(job.Pid)
		status, err := s.Launcher.Resume(job)
		if errors.Is(err, launch.ErrContinue) {
			if queued {
				s.Jobs.Push(job)
			}
			return s.fail(args, err)
		}
		if err != nil {
			s.errorf("%s: %v", args[0], err)
		}
		return status.Code
	})
}

// Bg resumes a job in the background.
func Bg(s *Shell, args []string) int {
	cmd := &BuiltinCommand{
		Use:   "bg [pid]",
		Short: "Resume a paused process, or the most recent job, in the background.",
	}

	return cmd.Run(s, args, func(rest []string) int {
		job, err := s.targetJob(rest)
		switch {
		case errors.Is(err, jobs.ErrNoSuchJob) && len(rest) == 1:
			// Not one of ours, but still allowed to continue it.
			return s.continueForeign(args, rest[0])
		case err != nil:
			return s.fail(args, err)
		}

		if err := s.Launcher.Background(job); err != nil {
			return s.fail(args, err)
		}
		return 0
	})
}

// targetJob finds the job named by a builtin's arguments: the pid given, or
// the most recent job. Jobs that are no longer running children of the shell
// are dropped from the registry and reported as jobs.ErrNoSuchJob.
func (s *Shell) targetJob(args []string) (*jobs.Job, error) {
	var job *jobs.Job
	switch len(args) {
	case 0:
		last, ok := s.Jobs.PeekLast()
		if !ok {
			return nil, jobs.ErrNoJobs
		}
		job = last

	case 1:
		pid, err := jobs.ParsePid(args[0])
		if err != nil {
			return nil, err
		}
		if known, ok := s.Jobs.Lookup(pid); ok {
			job = known
		} else {
			job = jobs.New(pid, nil)
			if pgid, err := unix.Getpgid(pid); err == nil {
				job.Pgid = pgid
			}
		}

	default:
		return nil, errTooManyArgs
	}

	status, done, err := proc.Probe(job.Pid)
	switch {
	case err != nil:
		s.Jobs.Remove(job.Pid)
		return nil, fmt.Errorf("%w: %d", jobs.ErrNoSuchJob, job.Pid)
	case done:
		s.reaped(status)
		return nil, fmt.Errorf("%w: %d", jobs.ErrNoSuchJob, job.Pid)
	}

	return job, nil
}

func (s *Shell) continueForeign(args []string, pidArg string) int {
	pid, err := jobs.ParsePid(pidArg)
	if err != nil {
		return s.fail(args, err)
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		return s.fail(args, err)
	}
	if process == nil {
		return s.fail(args, fmt.Errorf("%w: %d", jobs.ErrNoSuchJob, pid))
	}

	if err := proc.ContinueProcess(pid); err != nil {
		return s.fail(args, err)
	}
	s.Events.Record(&logger.Continue{Pid: pid, Background: true})
	return 0
}

func init() {
	mustAddBuiltin("?", "show this help menu", Help)
	mustAddBuiltin("help", "show this help menu", Help)
	mustAddBuiltin("exit", "exit the command shell", Exit)
	mustAddBuiltin("pwd", "prints the current working directory", Pwd)
	mustAddBuiltin("cd", "change the current working directory", Cd)
	mustAddBuiltin("wait", "waits until all background jobs have terminated", Wait)
	mustAddBuiltin("fg", "move the process with id pid to the foreground", Fg)
	mustAddBuiltin("bg", "resume a paused background process", Bg)
}
