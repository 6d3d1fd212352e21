package core

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/user"
	"strconv"
	"strings"

	"github.com/anmitsu/go-shlex"
	"github.com/fatih/color"
	"github.com/josephlewis42/jobsh/core/config"
	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/josephlewis42/jobsh/core/launch"
	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/josephlewis42/jobsh/core/proc"
	"github.com/josephlewis42/jobsh/core/tty"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

const (
	EnvHome = "HOME"
	EnvPWD  = "PWD"

	// ExitUsage is returned for lines and builtin invocations that can't be
	// parsed.
	ExitUsage = 2
)

var (
	colorPrompt = color.New(color.FgGreen, color.Bold)
	colorError  = color.New(color.FgRed)
)

// Shell holds the state of one interactive session.
type Shell struct {
	Config   *config.Configuration
	Jobs     *jobs.Registry
	Arbiter  *tty.Arbiter
	Launcher *launch.Launcher
	Events   *logger.SessionLogger
	Log      *log.Logger

	Stdin  *os.File
	Stdout io.Writer
	Stderr io.Writer

	lineNum  int
	lastRet  int
	useColor bool

	// exit terminates the process, replaced in tests.
	exit func(code int)
}

// NewShell creates a shell reading commands from the process's standard input.
func NewShell(cfg *config.Configuration, events *logger.SessionLogger, diag *log.Logger) *Shell {
	return newShell(cfg, tty.Open(os.Stdin), events, diag)
}

func newShell(cfg *config.Configuration, terminal tty.Terminal, events *logger.SessionLogger, diag *log.Logger) *Shell {
	if events == nil {
		events = logger.NewNopLogger().NewSession()
	}
	if diag == nil {
		diag = log.New(io.Discard, "", 0)
	}

	arbiter := tty.NewArbiter(terminal, diag)
	registry := jobs.NewRegistry()

	return &Shell{
		Config:   cfg,
		Jobs:     registry,
		Arbiter:  arbiter,
		Launcher: launch.New(arbiter, registry, events, diag),
		Events:   events,
		Log:      diag,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		useColor: shouldColor(cfg.Color, os.Stdout),
		exit:     os.Exit,
	}
}

func shouldColor(mode string, out *os.File) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default:
		return term.IsTerminal(int(out.Fd()))
	}
}

func (s *Shell) sprint(c *color.Color, a ...interface{}) string {
	if s.useColor {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(a...)
}

// Run reads and executes lines until the input ends.
func (s *Shell) Run() error {
	if err := s.Arbiter.Claim(); err != nil {
		return err
	}
	defer s.Arbiter.Release()

	s.Events.Record(&logger.SessionStart{
		Interactive: s.Arbiter.Interactive(),
		ShellPgid:   s.Arbiter.ShellPgid(),
	})

	reader, err := s.newLineReader()
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		s.reapFinished()

		line, err := reader.ReadLine(s.Prompt())
		switch {
		case err == io.EOF:
			return nil // Input closed, quit.

		case errors.Is(err, errInterrupted):
			continue

		case err != nil:
			return fmt.Errorf("reading input: %w", err)
		}

		s.lastRet = s.Execute(line)
		s.lineNum++
	}
}

func (s *Shell) newLineReader() (lineReader, error) {
	if !s.Arbiter.Interactive() {
		return newScanReader(s.Stdin), nil
	}
	return newEditorReader(s.Stdin, s.Stdout, s.Stderr, s.Config.HistoryPath())
}

// Prompt expands the configured prompt. Prompts are only shown when the
// shell is attached to a terminal.
func (s *Shell) Prompt() string {
	if !s.Arbiter.Interactive() {
		return ""
	}
	return s.sprint(colorPrompt, s.expandPrompt(s.Config.Prompt))
}

func (s *Shell) expandPrompt(prompt string) string {
	home := os.Getenv(EnvHome)
	pwd, _ := os.Getwd()
	if home != "" && strings.HasPrefix(pwd, home) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}

	username := ""
	if u, err := user.Current(); err == nil {
		username = u.Username
	}

	dollar := "$"
	if os.Geteuid() == 0 {
		dollar = "#"
	}

	return strings.NewReplacer(
		`\#`, strconv.Itoa(s.lineNum),
		`\w`, pwd,
		`\u`, username,
		`\$`, dollar,
	).Replace(prompt)
}

// Execute runs a single command line and returns its exit status.
func (s *Shell) Execute(line string) int {
	tokens, err := shlex.Split(line, true)
	if err != nil {
		s.Events.Record(&logger.InvalidInvocation{Command: []string{line}, Error: err.Error()})
		s.errorf("syntax error: %v", err)
		return ExitUsage
	}

	if len(tokens) == 0 {
		return s.lastRet
	}

	if builtin, ok := AllBuiltins[tokens[0]]; ok {
		return builtin.Main(s, tokens)
	}

	execPath, err := LookPath(s.Config.SearchPath(), tokens[0])
	switch {
	case errors.Is(err, ErrNotFound) || errors.Is(err, os.ErrNotExist):
		s.Events.Record(&logger.UnknownCommand{Command: tokens})
		s.errorf("%s: command not found", tokens[0])
		return proc.ExitNotExecutable
	case err != nil:
		s.Events.Record(&logger.UnknownCommand{Command: tokens})
		s.errorf("%s: %v", tokens[0], err)
		return proc.ExitNotExecutable
	}

	res, err := s.Launcher.Launch(execPath, tokens)
	switch {
	case errors.Is(err, launch.ErrExec):
		s.errorf("%s: %v", tokens[0], err)
		return res.Status.Code
	case err != nil:
		s.errorf("%s: %v", tokens[0], err)
		return 1
	case res.Background:
		return 0
	default:
		return res.Status.Code
	}
}

func (s *Shell) errorf(format string, a ...interface{}) {
	fmt.Fprintln(s.Stderr, s.sprint(colorError, fmt.Sprintf(format, a...)))
}

// reapFinished removes background jobs that have terminated since the last
// prompt.
func (s *Shell) reapFinished() {
	for _, job := range s.Jobs.Jobs() {
		status, done, err := proc.Probe(job.Pid)
		switch {
		case errors.Is(err, unix.ECHILD):
			// Collected elsewhere.
			s.Jobs.Remove(job.Pid)
		case err != nil:
			s.Log.Printf("checking job %d: %v", job.Pid, err)
		case done:
			s.reaped(status)
			if s.Config.NotifyDone {
				label := "Done"
				if !status.Success() {
					label = status.String()
				}
				fmt.Fprintf(s.Stdout, "[%d] %s\t%s\n", job.Pid, label, job.Command())
			}
		}
	}
}

// reaped records a collected child and drops it from the registry.
func (s *Shell) reaped(status proc.Status) {
	event := &logger.Reaped{
		Pid:      status.Pid,
		Status:   status.String(),
		ExitCode: status.Code,
	}
	if job, ok := s.Jobs.Remove(status.Pid); ok {
		event.JobID = job.ID
	}
	s.Events.Record(event)
}
